package main

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, store *Store) (*EventHub, *websocket.Conn) {
	t.Helper()

	cfg := testConfig()
	hub := newEventHub(cfg, store)
	go hub.run()

	mux := httprouter.New()
	registerLive(cfg, hub, mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return hub, conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestHubSendsInitialStateOnConnect(t *testing.T) {
	store := newStore()
	_, err := store.RegisterStudent("דנה", false)
	require.NoError(t, err)

	_, conn := dialHub(t, store)

	ev := readEvent(t, conn)
	assert.Equal(t, "initialState", ev.Type)

	state, ok := ev.Data.(map[string]any)
	require.True(t, ok)

	pairs, ok := state["letterPairs"].([]any)
	require.True(t, ok)
	assert.Len(t, pairs, len(letterPairs))

	students, ok := state["students"].([]any)
	require.True(t, ok)
	assert.Len(t, students, 1)
}

func TestHubBroadcastReachesClient(t *testing.T) {
	hub, conn := dialHub(t, newStore())

	// Drain the snapshot before asserting on the broadcast.
	ev := readEvent(t, conn)
	require.Equal(t, "initialState", ev.Type)

	hub.Broadcast("studentsUpdated", []Student{{ID: 1, Name: "דנה"}})

	ev = readEvent(t, conn)
	assert.Equal(t, "studentsUpdated", ev.Type)

	students, ok := ev.Data.([]any)
	require.True(t, ok)
	require.Len(t, students, 1)
}
