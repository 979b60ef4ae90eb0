package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
)

// App bundles the collaborators the REST surface needs.
type App struct {
	cfg      *Config
	store    *Store
	verifier *Verifier
	agg      *Aggregator
	hub      *EventHub
}

func writeJSON(cfg *Config, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	securityHeaders(cfg, w)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(cfg *Config, w http.ResponseWriter, status int, message string) {
	writeJSON(cfg, w, status, map[string]string{"error": message})
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func (a *App) registerStudent() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req struct {
			Name               string `json:"name"`
			SkipDuplicateCheck bool   `json:"skipDuplicateCheck"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(a.cfg, w, http.StatusBadRequest, "invalid request body")
			return
		}

		student, err := a.store.RegisterStudent(req.Name, req.SkipDuplicateCheck)
		if err != nil {
			writeError(a.cfg, w, http.StatusBadRequest, err.Error())
			return
		}

		logf(a.cfg, "API: Student %q registered as #%d", student.Name, student.ID)

		a.hub.Broadcast("studentsUpdated", a.store.Students())
		writeJSON(a.cfg, w, http.StatusOK, student)
	}
}

func (a *App) listStudents() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		writeJSON(a.cfg, w, http.StatusOK, a.store.Students())
	}
}

func (a *App) deleteStudent() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		id, err := strconv.Atoi(p.ByName("id"))
		if err != nil {
			writeError(a.cfg, w, http.StatusBadRequest, "invalid student id")
			return
		}

		a.store.DeleteStudent(id)
		a.hub.Broadcast("studentsUpdated", a.store.Students())
		writeJSON(a.cfg, w, http.StatusOK, map[string]bool{"success": true})
	}
}

func (a *App) createGroup() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req struct {
			Type      GroupType `json:"type"`
			MemberIDs []int     `json:"memberIds"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(a.cfg, w, http.StatusBadRequest, "invalid request body")
			return
		}

		group, err := a.store.CreateGroup(req.Type, req.MemberIDs, a.cfg.minGroupSize)
		if err != nil {
			writeError(a.cfg, w, http.StatusBadRequest, err.Error())
			return
		}

		a.hub.Broadcast("groupsUpdated", a.store.Groups())
		writeJSON(a.cfg, w, http.StatusOK, group)
	}
}

func (a *App) listGroups() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		writeJSON(a.cfg, w, http.StatusOK, a.store.Groups())
	}
}

func (a *App) deleteGroup() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		id, err := strconv.ParseInt(p.ByName("id"), 10, 64)
		if err != nil {
			writeError(a.cfg, w, http.StatusBadRequest, "invalid group id")
			return
		}

		a.store.DeleteGroup(id)
		a.hub.Broadcast("groupsUpdated", a.store.Groups())
		writeJSON(a.cfg, w, http.StatusOK, map[string]bool{"success": true})
	}
}

func (a *App) startSession() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req struct {
			Duration int     `json:"duration"`
			GroupIDs []int64 `json:"groupIds"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(a.cfg, w, http.StatusBadRequest, "invalid request body")
			return
		}

		session, err := a.store.StartSession(req.Duration, req.GroupIDs)
		if err != nil {
			writeError(a.cfg, w, http.StatusBadRequest, err.Error())
			return
		}

		logf(a.cfg, "API: Session %d started for %d groups", session.ID, len(session.Groups))

		a.hub.Broadcast("sessionStarted", session)
		writeJSON(a.cfg, w, http.StatusOK, session)
	}
}

func (a *App) endSession() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		id, err := strconv.ParseInt(p.ByName("sessionid"), 10, 64)
		if err != nil {
			writeError(a.cfg, w, http.StatusBadRequest, "invalid session id")
			return
		}

		if err := a.store.EndSession(id); err != nil {
			writeError(a.cfg, w, http.StatusBadRequest, err.Error())
			return
		}

		a.hub.Broadcast("sessionEnded", map[string]int64{"sessionId": id})
		writeJSON(a.cfg, w, http.StatusOK, map[string]any{"success": true, "sessionId": id})
	}
}

func (a *App) getSession() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		id, err := strconv.ParseInt(p.ByName("sessionid"), 10, 64)
		if err != nil {
			writeError(a.cfg, w, http.StatusBadRequest, "invalid session id")
			return
		}

		session, ok := a.store.Session(id)
		if !ok {
			writeJSON(a.cfg, w, http.StatusOK, nil)
			return
		}
		writeJSON(a.cfg, w, http.StatusOK, session)
	}
}

func (a *App) activeSessions() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		writeJSON(a.cfg, w, http.StatusOK, a.store.ActiveSessions())
	}
}

func (a *App) allSessions() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		writeJSON(a.cfg, w, http.StatusOK, a.store.Sessions())
	}
}

// completeAll closes out the round: every unique name across every group is
// re-verified before results are published, so this blocks for the whole
// aggregation pass.
func (a *App) completeAll() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		a.store.MarkAllCompleted()

		results := a.agg.ComputeAll(r.Context(), a.store)

		a.hub.Broadcast("allResultsReady", results)
		writeJSON(a.cfg, w, http.StatusOK, results)
	}
}

func (a *App) getResults() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		writeJSON(a.cfg, w, http.StatusOK, a.agg.ComputeAll(r.Context(), a.store))
	}
}

func (a *App) submit() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req struct {
			StudentID int        `json:"studentId"`
			GroupID   int64      `json:"groupId"`
			Answers   Submission `json:"answers"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(a.cfg, w, http.StatusBadRequest, "invalid request body")
			return
		}

		submitter, err := a.store.SubmitAnswers(req.StudentID, req.GroupID, req.Answers)
		if errors.Is(err, errAlreadySubmitted) {
			writeJSON(a.cfg, w, http.StatusForbidden, map[string]any{
				"error":     err.Error(),
				"submitter": submitter,
			})
			return
		}
		if err != nil {
			writeError(a.cfg, w, http.StatusBadRequest, err.Error())
			return
		}

		a.hub.Broadcast("submissionReceived", map[string]any{
			"studentId": req.StudentID,
			"groupId":   req.GroupID,
		})
		writeJSON(a.cfg, w, http.StatusOK, map[string]bool{"success": true})
	}
}

func (a *App) canSubmit() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		groupID, err := strconv.ParseInt(p.ByName("groupid"), 10, 64)
		if err != nil {
			writeError(a.cfg, w, http.StatusBadRequest, "invalid group id")
			return
		}
		studentID, err := strconv.Atoi(p.ByName("studentid"))
		if err != nil {
			writeError(a.cfg, w, http.StatusBadRequest, "invalid student id")
			return
		}

		ok, activeMember := a.store.CanSubmit(groupID, studentID)
		writeJSON(a.cfg, w, http.StatusOK, map[string]any{
			"canSubmit":      ok,
			"activeMember":   activeMember,
			"isActiveMember": ok,
		})
	}
}

func (a *App) verifyManual() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req struct {
			Name    string `json:"name"`
			IsValid bool   `json:"isValid"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(a.cfg, w, http.StatusBadRequest, "invalid request body")
			return
		}

		override, err := a.store.SetOverride(req.Name, req.IsValid)
		if err != nil {
			writeError(a.cfg, w, http.StatusBadRequest, err.Error())
			return
		}

		logf(a.cfg, "API: Lecturer verdict for %q: valid=%t", req.Name, req.IsValid)

		a.hub.Broadcast("manualVerificationUpdated", map[string]any{
			"name":         req.Name,
			"verification": override,
		})
		writeJSON(a.cfg, w, http.StatusOK, map[string]any{"success": true, "verification": override})
	}
}

func (a *App) verifyManualReset() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req struct {
			Name string `json:"name"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(a.cfg, w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := a.store.ClearOverride(req.Name); err != nil {
			writeError(a.cfg, w, http.StatusBadRequest, err.Error())
			return
		}

		a.hub.Broadcast("manualVerificationUpdated", map[string]any{
			"name":         req.Name,
			"verification": nil,
		})
		writeJSON(a.cfg, w, http.StatusOK, map[string]bool{"success": true})
	}
}

func (a *App) reset() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		a.store.Reset()
		logf(a.cfg, "API: System reset")

		a.hub.Broadcast("systemReset", nil)
		writeJSON(a.cfg, w, http.StatusOK, map[string]bool{"success": true})
	}
}

// testNames is the lecturer's ad-hoc bench: classify arbitrary (name, pair)
// items without touching any group state.
func (a *App) testNames() httprouter.Handle {
	type item struct {
		Name string `json:"name"`
		Pair string `json:"pair"`
	}
	type outcome struct {
		Name   string       `json:"name"`
		Pair   string       `json:"pair"`
		Result Verification `json:"result"`
	}

	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req struct {
			Names []item `json:"names"`
		}
		if err := decodeJSON(r, &req); err != nil || req.Names == nil {
			writeError(a.cfg, w, http.StatusBadRequest, "invalid input")
			return
		}

		results := make([]outcome, 0, len(req.Names))
		for _, it := range req.Names {
			logf(a.cfg, "API: Testing %q for pair %s", it.Name, it.Pair)
			results = append(results, outcome{
				Name:   it.Name,
				Pair:   it.Pair,
				Result: a.verifier.Verify(r.Context(), it.Name, it.Pair),
			})
		}

		writeJSON(a.cfg, w, http.StatusOK, results)
	}
}

func registerAPI(cfg *Config, app *App, mux *httprouter.Router) {
	p := cfg.prefix

	mux.POST(p+"/api/students/register", app.registerStudent())
	mux.GET(p+"/api/students", app.listStudents())
	mux.DELETE(p+"/api/students/:id", app.deleteStudent())

	mux.POST(p+"/api/groups", app.createGroup())
	mux.GET(p+"/api/groups", app.listGroups())
	mux.DELETE(p+"/api/groups/:id", app.deleteGroup())
	mux.GET(p+"/api/groups/:groupid/can-submit/:studentid", app.canSubmit())

	mux.POST(p+"/api/session/start", app.startSession())
	mux.POST(p+"/api/session/end/:sessionid", app.endSession())
	mux.GET(p+"/api/session/:sessionid", app.getSession())
	mux.GET(p+"/api/sessions/active", app.activeSessions())
	mux.GET(p+"/api/sessions/all", app.allSessions())
	mux.POST(p+"/api/sessions/complete-all", app.completeAll())

	mux.POST(p+"/api/submissions", app.submit())
	mux.GET(p+"/api/results", app.getResults())

	mux.POST(p+"/api/verify-name-manual", app.verifyManual())
	mux.POST(p+"/api/verify-name-manual/reset", app.verifyManualReset())
	mux.POST(p+"/api/reset", app.reset())
	mux.POST(p+"/api/test-names", app.testNames())
}
