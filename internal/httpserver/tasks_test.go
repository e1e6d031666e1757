package httpserver

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/tasktracker/internal/models"
	"github.com/Skotchmaster/tasktracker/internal/service"
	"github.com/Skotchmaster/tasktracker/internal/transport"
	"github.com/Skotchmaster/tasktracker/internal/util"
)

type taskList struct {
	Data []transport.TaskResponse `json:"data"`
	Meta util.Meta                `json:"meta"`
}

func TestTasks_Lifecycle(t *testing.T) {
	s := newTestServer(t)
	alice := s.createUser("alice", models.RoleUser)
	s.createUser("bob", models.RoleUser)
	aliceTok := s.login("alice")
	bobTok := s.login("bob")

	rec := s.do(http.MethodPost, "/tasks", map[string]any{
		"title": "write report", "description": "q3", "done": 0, "due_date": "01-10-2026 09:00",
	}, aliceTok)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	task := decode[transport.TaskResponse](t, rec)
	assert.Equal(t, alice.ID, task.UserID)
	require.NotNil(t, task.DueDate)
	assert.Contains(t, rec.Body.String(), `"due_date":"01-10-2026 09:00"`)

	path := fmt.Sprintf("/tasks/%d", task.ID)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, path, nil, bobTok).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/tasks/9999", nil, aliceTok).Code)

	rec = s.do(http.MethodPatch, path, map[string]any{"done": 1}, aliceTok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[transport.TaskResponse](t, rec).Done)

	rec = s.do(http.MethodPut, path, map[string]any{"title": "only title"}, aliceTok)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPatch, path, map[string]any{"title": "stolen"}, bobTok)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodDelete, path, nil, bobTok)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodDelete, path, nil, aliceTok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, path, nil, aliceTok).Code)
}

func TestTasks_Validation(t *testing.T) {
	s := newTestServer(t)
	s.createUser("alice", models.RoleUser)
	tok := s.login("alice")

	tests := []struct {
		name string
		body map[string]any
	}{
		{name: "missing title", body: map[string]any{"description": "x"}},
		{name: "bad due date", body: map[string]any{"title": "x", "due_date": "2026-10-01"}},
		{name: "bad done", body: map[string]any{"title": "x", "done": "yes"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/tasks", tt.body, tok)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/tasks", map[string]any{"title": "x"}, "").Code)
}

func TestTasks_Lists(t *testing.T) {
	s := newTestServer(t)
	s.createUser("root", models.RoleAdmin)
	alice := s.createUser("alice", models.RoleUser)
	bob := s.createUser("bob", models.RoleUser)
	aliceTok := s.login("alice")
	bobTok := s.login("bob")

	for _, title := range []string{"a1", "a2"} {
		require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/tasks", map[string]any{"title": title}, aliceTok).Code)
	}
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/tasks", map[string]any{"title": "b1"}, bobTok).Code)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/tasks", nil, aliceTok).Code)

	rec := s.do(http.MethodGet, "/tasks", nil, s.login("root"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(3), decode[taskList](t, rec).Meta.Total)

	rec = s.do(http.MethodGet, fmt.Sprintf("/tasks/user/%d", alice.ID), nil, aliceTok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[taskList](t, rec).Data, 2)

	rec = s.do(http.MethodGet, fmt.Sprintf("/tasks/user/%d", bob.ID), nil, aliceTok)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTasks_Search(t *testing.T) {
	s := newTestServer(t)
	s.createUser("root", models.RoleAdmin)
	s.createUser("alice", models.RoleUser)
	s.createUser("bob", models.RoleUser)
	aliceTok := s.login("alice")

	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/tasks", map[string]any{"title": "buy milk"}, aliceTok).Code)
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/tasks", map[string]any{"title": "buy bread"}, s.login("bob")).Code)

	rec := s.do(http.MethodGet, "/tasks/search?q=buy", nil, aliceTok)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[taskList](t, rec)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "buy milk", res.Data[0].Title)

	rec = s.do(http.MethodGet, "/tasks/search?q=buy", nil, s.login("root"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[taskList](t, rec).Data, 2)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/tasks/search", nil, aliceTok).Code)
}

func TestTasks_SearchUnavailable(t *testing.T) {
	s := newTestServer(t, func(d *Deps) {
		d.TaskHandler.Svc = &service.TaskService{Repo: d.TaskHandler.Svc.Repo}
	})
	s.createUser("alice", models.RoleUser)

	rec := s.do(http.MethodGet, "/tasks/search?q=x", nil, s.login("alice"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTasks_UpdateAccessBeforeBody(t *testing.T) {
	s := newTestServer(t)
	s.createUser("alice", models.RoleUser)
	s.createUser("bob", models.RoleUser)
	aliceTok := s.login("alice")
	bobTok := s.login("bob")

	rec := s.do(http.MethodPost, "/tasks", map[string]any{"title": "mine"}, aliceTok)
	require.Equal(t, http.StatusCreated, rec.Code)
	path := fmt.Sprintf("/tasks/%d", decode[transport.TaskResponse](t, rec).ID)

	body := map[string]any{"title": "x"}

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPut, path, body, bobTok).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPatch, path, map[string]any{"title": ""}, bobTok).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPut, "/tasks/9999", body, bobTok).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPut, path, body, aliceTok).Code)
}

func TestTasks_HugePageIsEmpty(t *testing.T) {
	s := newTestServer(t)
	alice := s.createUser("alice", models.RoleUser)
	tok := s.login("alice")

	rec := s.do(http.MethodPost, "/tasks", map[string]any{"title": "only"}, tok)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(http.MethodGet, fmt.Sprintf("/tasks/user/%d?page=9223372036854775807", alice.ID), nil, tok)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list := decode[taskList](t, rec)
	assert.Empty(t, list.Data)
	assert.Equal(t, int64(1), list.Meta.Total)
	assert.True(t, list.Meta.HasPrev)
	assert.False(t, list.Meta.HasNext)
}
