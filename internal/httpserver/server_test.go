package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Skotchmaster/tasktracker/internal/hash"
	"github.com/Skotchmaster/tasktracker/internal/models"
	"github.com/Skotchmaster/tasktracker/internal/repo"
	"github.com/Skotchmaster/tasktracker/internal/service"
	pkgdb "github.com/Skotchmaster/tasktracker/pkg/db"
	"github.com/Skotchmaster/tasktracker/pkg/logging"
	"github.com/Skotchmaster/tasktracker/pkg/tokens"
)

// ownerIndex is a search index that matches on title substring.
type ownerIndex struct {
	mu    sync.Mutex
	tasks map[uint]models.Task
}

func (x *ownerIndex) Put(_ context.Context, t models.Task) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.tasks[t.ID] = t
	return nil
}

func (x *ownerIndex) Delete(_ context.Context, id uint) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.tasks, id)
	return nil
}

func (x *ownerIndex) DeleteByOwner(_ context.Context, ownerID uint) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for id, t := range x.tasks {
		if t.UserID == ownerID {
			delete(x.tasks, id)
		}
	}
	return nil
}

func (x *ownerIndex) Search(_ context.Context, q string, ownerID uint, _, _ int) (int64, []models.Task, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	var out []models.Task
	for _, t := range x.tasks {
		if (ownerID == 0 || t.UserID == ownerID) && strings.Contains(t.Title, q) {
			out = append(out, t)
		}
	}
	return int64(len(out)), out, nil
}

type testServer struct {
	t      *testing.T
	e      *echo.Echo
	repo   *repo.GormRepo
	auth   *service.AuthService
	issuer *tokens.Issuer
	ready  error
}

type serverOption func(*Deps)

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	ctx := context.Background()
	gdb, err := pkgdb.Open(ctx, pkgdb.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pkgdb.Close(gdb) })

	r := repo.New(gdb)
	require.NoError(t, r.Migrate(ctx))

	hasher := hash.NewBcrypt(bcrypt.MinCost)
	issuer := tokens.NewIssuer([]byte("http-test-secret"), 15*time.Minute)
	index := &ownerIndex{tasks: map[uint]models.Task{}}
	events := service.NopPublisher{}

	authSvc := &service.AuthService{Users: r, Ledger: r, Tokens: issuer, Hasher: hasher, Events: events}
	ts := &testServer{t: t, repo: r, auth: authSvc, issuer: issuer}

	d := &Deps{
		AuthHandler: &AuthHTTP{Svc: authSvc},
		UserHandler: &UserHTTP{Auth: authSvc, Svc: &service.UserService{Repo: r, Hasher: hasher, Events: events, Index: index}},
		TaskHandler: &TaskHTTP{Svc: &service.TaskService{Repo: r, Index: index, Events: events}},
		Authn:       &AuthMiddleware{Auth: authSvc},
		Ready:       func(context.Context) error { return ts.ready },
	}
	for _, opt := range opts {
		opt(d)
	}

	ts.e = New(logging.NewWithWriter(io.Discard, "error"), d)
	return ts
}

func (s *testServer) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	s.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) createUser(username string, role models.Role) *models.User {
	s.t.Helper()

	ctx := context.Background()
	var (
		u   *models.User
		err error
	)
	if role == models.RoleAdmin {
		u, err = s.auth.CreateAdmin(ctx, username, username+"@example.com", "pw-"+username)
	} else {
		u, err = s.auth.Register(ctx, service.RegisterInput{
			Username: username, Email: username + "@example.com", Password: "pw-" + username,
		}, nil)
	}
	require.NoError(s.t, err)
	return u
}

func (s *testServer) login(username string) string {
	s.t.Helper()

	rec := s.do(http.MethodPost, "/login", map[string]string{"username": username, "password": "pw-" + username}, "")
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())

	var res struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.NotEmpty(s.t, res.AccessToken)
	return res.AccessToken
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]any](t, rec)["message"].(string)
}

var errNotReady = errors.New("db down")
