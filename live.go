// Live update hub for the brainstorm game.
//
// Lecturer and student front-ends connect to /ws and receive an initial
// state snapshot followed by change events as the roster, groups, sessions,
// submissions and verdicts evolve. Clients never send commands over the
// socket; all mutations go through the REST API.

package main

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// Event is the envelope for every message pushed to clients.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type initialState struct {
	Students       []Student `json:"students"`
	Groups         []Group   `json:"groups"`
	ActiveSessions []Session `json:"activeSessions"`
	LetterPairs    []string  `json:"letterPairs"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan Event
}

type EventHub struct {
	cfg   *Config
	store *Store

	clients  map[*wsClient]bool
	register chan *wsClient
	unreg    chan *wsClient
	events   chan Event
}

func newEventHub(cfg *Config, store *Store) *EventHub {
	return &EventHub{
		cfg:      cfg,
		store:    store,
		clients:  make(map[*wsClient]bool),
		register: make(chan *wsClient),
		unreg:    make(chan *wsClient),
		events:   make(chan Event, 64),
	}
}

func (h *EventHub) run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true

			c.send <- Event{
				Type: "initialState",
				Data: initialState{
					Students:       h.store.Students(),
					Groups:         h.store.Groups(),
					ActiveSessions: h.store.ActiveSessions(),
					LetterPairs:    letterPairs,
				},
			}

		case c := <-h.unreg:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}

		case ev := <-h.events:
			for client := range h.clients {
				select {
				case client.send <- ev:
				default:
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// Broadcast queues an event for every connected client.
func (h *EventHub) Broadcast(eventType string, data any) {
	h.events <- Event{Type: eventType, Data: data}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func serveWS(cfg *Config, hub *EventHub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "LIVE: Upgrade error from %s: %v", realIP(r), err)
			return
		}

		client := &wsClient{
			conn: conn,
			send: make(chan Event, 8),
		}

		hub.register <- client
		logf(cfg, "LIVE: Client connected from %s", realIP(r))

		go client.writePump()
		client.readPump(hub)
	}
}

// readPump drains the connection until the peer goes away; inbound payloads
// carry no commands and are discarded.
func (c *wsClient) readPump(h *EventHub) {
	defer func() {
		h.unreg <- c
		_ = c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *wsClient) writePump() {
	defer c.conn.Close()

	for ev := range c.send {
		if err := c.conn.WriteJSON(ev); err != nil {
			return
		}
	}
}

func registerLive(cfg *Config, hub *EventHub, mux *httprouter.Router) {
	mux.GET(cfg.prefix+"/ws", serveWS(cfg, hub))
}
