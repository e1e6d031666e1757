package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Skotchmaster/tasktracker/internal/hash"
	"github.com/Skotchmaster/tasktracker/internal/models"
	"github.com/Skotchmaster/tasktracker/internal/repo"
	pkgdb "github.com/Skotchmaster/tasktracker/pkg/db"
	"github.com/Skotchmaster/tasktracker/pkg/tokens"
)

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []Event
	err    error
}

func (p *recordingPublisher) PublishEvent(_ context.Context, topic, _ string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	if ev, ok := event.(Event); ok {
		p.events = append(p.events, ev)
	}
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type memIndex struct {
	mu    sync.Mutex
	tasks map[uint]models.Task
	err   error
}

func newMemIndex() *memIndex {
	return &memIndex{tasks: map[uint]models.Task{}}
}

func (m *memIndex) Put(_ context.Context, t models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.tasks[t.ID] = t
	return nil
}

func (m *memIndex) Delete(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, id)
	return m.err
}

func (m *memIndex) DeleteByOwner(_ context.Context, ownerID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.tasks {
		if t.UserID == ownerID {
			delete(m.tasks, id)
		}
	}
	return m.err
}

func (m *memIndex) Search(_ context.Context, query string, ownerID uint, offset, limit int) (int64, []models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, nil, m.err
	}
	q := strings.ToLower(query)
	var hits []models.Task
	for _, t := range m.tasks {
		if ownerID != 0 && t.UserID != ownerID {
			continue
		}
		if strings.Contains(strings.ToLower(t.Title+" "+t.Description), q) {
			hits = append(hits, t)
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].ID < hits[j].ID })
	total := int64(len(hits))
	if offset >= len(hits) {
		return total, []models.Task{}, nil
	}
	end := offset + limit
	if end > len(hits) {
		end = len(hits)
	}
	return total, hits[offset:end], nil
}

func (m *memIndex) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

type testEnv struct {
	repo   *repo.GormRepo
	issuer *tokens.Issuer
	events *recordingPublisher
	index  *memIndex
	auth   *AuthService
	users  *UserService
	tasks  *TaskService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	ctx := context.Background()
	gdb, err := pkgdb.Open(ctx, pkgdb.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pkgdb.Close(gdb) })

	r := repo.New(gdb)
	require.NoError(t, r.Migrate(ctx))

	hasher := hash.NewBcrypt(bcrypt.MinCost)
	issuer := tokens.NewIssuer([]byte("service-test-secret"), 15*time.Minute)
	events := &recordingPublisher{}
	index := newMemIndex()

	return &testEnv{
		repo:   r,
		issuer: issuer,
		events: events,
		index:  index,
		auth:   &AuthService{Users: r, Ledger: r, Tokens: issuer, Hasher: hasher, Events: events},
		users:  &UserService{Repo: r, Hasher: hasher, Events: events, Index: index},
		tasks:  &TaskService{Repo: r, Index: index, Events: events},
	}
}

func password(username string) string { return "pw-" + username }

func (e *testEnv) mustUser(t *testing.T, username string, role models.Role) *models.User {
	t.Helper()

	ctx := context.Background()
	if role == models.RoleAdmin {
		u, err := e.auth.CreateAdmin(ctx, username, username+"@example.com", password(username))
		require.NoError(t, err)
		return u
	}
	u, err := e.auth.Register(ctx, RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: password(username),
	}, nil)
	require.NoError(t, err)
	return u
}

func (e *testEnv) mustLogin(t *testing.T, username string) string {
	t.Helper()

	res, err := e.auth.Login(context.Background(), username, password(username))
	require.NoError(t, err)
	return res.AccessToken
}

func identityOf(u *models.User) Identity {
	return Identity{UserID: u.ID, Username: u.Username, Role: u.Role}
}

var errBroker = errors.New("broker down")

func ptr[T any](v T) *T { return &v }

// countingHasher records Verify calls and the hashes they were given.
type countingHasher struct {
	hash.Hasher
	hashErr error

	mu       sync.Mutex
	verified []string
}

func (h *countingHasher) Hash(password string) (string, error) {
	if h.hashErr != nil {
		return "", h.hashErr
	}
	return h.Hasher.Hash(password)
}

func (h *countingHasher) Verify(hashed, password string) bool {
	h.mu.Lock()
	h.verified = append(h.verified, hashed)
	h.mu.Unlock()
	return h.Hasher.Verify(hashed, password)
}

func (h *countingHasher) reset() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.verified
	h.verified = nil
	return out
}
