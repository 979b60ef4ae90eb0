package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, oracle Oracle) (*App, *httprouter.Router) {
	t.Helper()

	cfg := testConfig()
	store := newStore()
	hub := newEventHub(cfg, store)
	go hub.run()

	verifier := newVerifier(cfg, oracle)
	app := &App{
		cfg:      cfg,
		store:    store,
		verifier: verifier,
		agg:      newAggregator(cfg, verifier),
		hub:      hub,
	}

	mux := httprouter.New()
	registerAPI(cfg, app, mux)
	registerLive(cfg, hub, mux)
	registerQR(cfg, mux)

	return app, mux
}

func doJSON(t *testing.T, mux *httprouter.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	return rec
}

func TestRegisterStudentEndpoint(t *testing.T) {
	_, mux := newTestApp(t, &fakeOracle{})

	rec := doJSON(t, mux, http.MethodPost, "/api/students/register", map[string]any{"name": "דנה"})
	require.Equal(t, http.StatusOK, rec.Code)

	var student Student
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&student))
	assert.Equal(t, 1, student.ID)
	assert.Equal(t, "דנה", student.Name)

	rec = doJSON(t, mux, http.MethodPost, "/api/students/register", map[string]any{"name": "דנה"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/api/students/register", map[string]any{"name": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStudentListAndDelete(t *testing.T) {
	_, mux := newTestApp(t, &fakeOracle{})

	doJSON(t, mux, http.MethodPost, "/api/students/register", map[string]any{"name": "דנה"})
	doJSON(t, mux, http.MethodPost, "/api/students/register", map[string]any{"name": "רון"})

	rec := doJSON(t, mux, http.MethodGet, "/api/students", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var students []Student
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&students))
	require.Len(t, students, 2)

	rec = doJSON(t, mux, http.MethodDelete, "/api/students/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/students", nil)
	students = nil
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&students))
	require.Len(t, students, 1)
	assert.Equal(t, "רון", students[0].Name)
}

func TestCreateGroupEndpointValidation(t *testing.T) {
	app, mux := newTestApp(t, &fakeOracle{})

	students := seedStudents(t, app.store, "דנה", "רון", "גיל", "נוי")

	rec := doJSON(t, mux, http.MethodPost, "/api/groups", map[string]any{
		"type":      "regular",
		"memberIds": studentIDs(students)[:2],
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/api/groups", map[string]any{
		"type":      "regular",
		"memberIds": studentIDs(students),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var group Group
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&group))
	assert.Equal(t, GroupRegular, group.Type)
	assert.Len(t, group.Members, 4)
}

func TestSubmissionConflictReturnsForbidden(t *testing.T) {
	app, mux := newTestApp(t, &fakeOracle{})

	students := seedStudents(t, app.store, "דנה", "רון", "גיל", "נוי")
	group, err := app.store.CreateGroup(GroupRegular, studentIDs(students), 4)
	require.NoError(t, err)

	rec := doJSON(t, mux, http.MethodPost, "/api/submissions", map[string]any{
		"studentId": students[0].ID,
		"groupId":   group.ID,
		"answers":   Submission{"יח": {"יוסי חן"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/api/submissions", map[string]any{
		"studentId": students[1].ID,
		"groupId":   group.ID,
		"answers":   Submission{"יח": {"יובל חן"}},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.EqualValues(t, students[0].ID, resp["submitter"])
}

func TestManualVerificationFlow(t *testing.T) {
	app, mux := newTestApp(t, &fakeOracle{})

	students := seedStudents(t, app.store, "דנה", "רון", "גיל", "נוי")
	group, err := app.store.CreateGroup(GroupRegular, studentIDs(students), 4)
	require.NoError(t, err)
	_, err = app.store.SubmitAnswers(students[0].ID, group.ID, Submission{"יח": {"יובל חממי"}})
	require.NoError(t, err)

	rec := doJSON(t, mux, http.MethodPost, "/api/verify-name-manual", map[string]any{
		"name":    "יובל חממי",
		"isValid": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/results", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var results Results
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&results))
	require.Len(t, results.GroupResults, 1)
	assert.Equal(t, 1, results.GroupResults[0].VerifiedNames)

	// Clearing the verdict sends the name back to the (empty) oracle.
	rec = doJSON(t, mux, http.MethodPost, "/api/verify-name-manual/reset", map[string]any{
		"name": "יובל חממי",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/results", nil)
	results = Results{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&results))
	assert.Equal(t, 0, results.GroupResults[0].VerifiedNames)
}

func TestSessionEndpoints(t *testing.T) {
	app, mux := newTestApp(t, &fakeOracle{})

	students := seedStudents(t, app.store, "דנה", "רון", "גיל", "נוי")
	group, err := app.store.CreateGroup(GroupRegular, studentIDs(students), 4)
	require.NoError(t, err)

	rec := doJSON(t, mux, http.MethodPost, "/api/session/start", map[string]any{
		"duration": 300,
		"groupIds": []int64{group.ID},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var session Session
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&session))
	assert.Equal(t, letterPairs, session.LetterPairs)

	rec = doJSON(t, mux, http.MethodGet, "/api/sessions/active", nil)
	var active []Session
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&active))
	require.Len(t, active, 1)

	rec = doJSON(t, mux, http.MethodPost, "/api/session/end/987654", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompleteAllReturnsResults(t *testing.T) {
	app, mux := newTestApp(t, validHitOracle("יוסי חן"))

	students := seedStudents(t, app.store, "דנה", "רון", "גיל", "נוי")
	group, err := app.store.CreateGroup(GroupRegular, studentIDs(students), 4)
	require.NoError(t, err)
	_, err = app.store.SubmitAnswers(students[0].ID, group.ID, Submission{"יח": {"יוסי חן"}})
	require.NoError(t, err)

	rec := doJSON(t, mux, http.MethodPost, "/api/sessions/complete-all", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var results Results
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&results))
	assert.Equal(t, 1, results.Summary[GroupRegular].VerifiedNames)
}

func TestTestNamesEndpoint(t *testing.T) {
	_, mux := newTestApp(t, &fakeOracle{})

	rec := doJSON(t, mux, http.MethodPost, "/api/test-names", map[string]any{
		"names": []map[string]string{
			{"name": "יעל לוי", "pair": "יח"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var results []struct {
		Name   string       `json:"name"`
		Pair   string       `json:"pair"`
		Result Verification `json:"result"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&results))
	require.Len(t, results, 1)
	assert.Equal(t, StatusInvalid, results[0].Result.Status)

	rec = doJSON(t, mux, http.MethodPost, "/api/test-names", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResetEndpoint(t *testing.T) {
	app, mux := newTestApp(t, &fakeOracle{})

	seedStudents(t, app.store, "דנה", "רון")

	rec := doJSON(t, mux, http.MethodPost, "/api/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Empty(t, app.store.Students())
	assert.Empty(t, app.store.Groups())
}

func TestCanSubmitEndpoint(t *testing.T) {
	app, mux := newTestApp(t, &fakeOracle{})

	students := seedStudents(t, app.store, "דנה", "רון", "גיל", "נוי")
	group, err := app.store.CreateGroup(GroupRegular, studentIDs(students), 4)
	require.NoError(t, err)

	path := "/api/groups/" + strconv.FormatInt(group.ID, 10) + "/can-submit/" + strconv.Itoa(students[0].ID)
	rec := doJSON(t, mux, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, true, resp["canSubmit"])
	assert.Equal(t, "דנה", resp["activeMember"])

	path = "/api/groups/" + strconv.FormatInt(group.ID, 10) + "/can-submit/" + strconv.Itoa(students[1].ID)
	rec = doJSON(t, mux, http.MethodGet, path, nil)
	resp = nil
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, false, resp["canSubmit"])
	assert.Equal(t, "דנה", resp["activeMember"])
}

func TestQRHandlerServesPNG(t *testing.T) {
	_, mux := newTestApp(t, &fakeOracle{})

	rec := doJSON(t, mux, http.MethodGet, "/register/qr", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Body.Bytes())
}

func TestHealthCheckHandler(t *testing.T) {
	cfg := testConfig()
	mux := httprouter.New()
	errs := make(chan error, 1)
	mux.GET("/healthz", serveHealthCheck(cfg, errs))

	rec := doJSON(t, mux, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ok\n", rec.Body.String())
}
