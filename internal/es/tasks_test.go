package es

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/tasktracker/internal/models"
)

// fakeES answers the handful of endpoints TaskIndex uses.
type fakeES struct {
	mu         sync.Mutex
	indexed    bool
	docs       map[string]models.Task
	lastSearch map[string]any
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	switch {
	case r.URL.Path == "/":
		_, _ = w.Write([]byte(`{"version":{"number":"9.0.0"},"tagline":"You Know, for Search"}`))
	case len(parts) == 1 && r.Method == http.MethodHead:
		if !f.indexed {
			w.WriteHeader(http.StatusNotFound)
		}
	case len(parts) == 1 && r.Method == http.MethodPut:
		f.indexed = true
		_, _ = w.Write([]byte(`{"acknowledged":true}`))
	case len(parts) == 3 && parts[1] == "_doc" && r.Method == http.MethodPut:
		var t models.Task
		if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.docs[parts[2]] = t
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	case len(parts) == 3 && parts[1] == "_doc" && r.Method == http.MethodDelete:
		if _, ok := f.docs[parts[2]]; !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"result":"not_found"}`))
			return
		}
		delete(f.docs, parts[2])
		_, _ = w.Write([]byte(`{"result":"deleted"}`))
	case len(parts) == 2 && parts[1] == "_delete_by_query":
		var body struct {
			Query struct {
				Term struct {
					UserID uint `json:"user_id"`
				} `json:"term"`
			} `json:"query"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		for id, t := range f.docs {
			if t.UserID == body.Query.Term.UserID {
				delete(f.docs, id)
			}
		}
		_, _ = w.Write([]byte(`{"deleted":1}`))
	case len(parts) == 2 && parts[1] == "_search":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.lastSearch = body
		f.writeHits(w, ownerFilter(body))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"unexpected request"}`))
	}
}

func ownerFilter(body map[string]any) uint {
	q, _ := body["query"].(map[string]any)
	b, _ := q["bool"].(map[string]any)
	f, _ := b["filter"].(map[string]any)
	term, _ := f["term"].(map[string]any)
	v, _ := term["user_id"].(float64)
	return uint(v)
}

func (f *fakeES) writeHits(w http.ResponseWriter, owner uint) {
	var hits []map[string]any
	var ids []string
	for id := range f.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		t := f.docs[id]
		if owner != 0 && t.UserID != owner {
			continue
		}
		hits = append(hits, map[string]any{"_id": id, "_source": t})
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"hits": map[string]any{
			"total": map[string]any{"value": len(hits), "relation": "eq"},
			"hits":  hits,
		},
	})
}

func newFakeIndex(t *testing.T) (*TaskIndex, *fakeES) {
	t.Helper()

	fake := &fakeES{docs: map[string]models.Task{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := NewClient(context.Background(), Config{URL: srv.URL})
	require.NoError(t, err)
	return NewTaskIndex(client, ""), fake
}

func TestTaskIndex_EnsureIndex(t *testing.T) {
	idx, fake := newFakeIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.EnsureIndex(ctx))
	assert.True(t, fake.indexed)

	require.NoError(t, idx.EnsureIndex(ctx))
}

func TestTaskIndex_PutSearchDelete(t *testing.T) {
	idx, fake := newFakeIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Put(ctx, models.Task{ID: 1, Title: "buy milk", UserID: 10}))
	require.NoError(t, idx.Put(ctx, models.Task{ID: 2, Title: "buy bread", UserID: 20}))

	total, items, err := idx.Search(ctx, "buy", 10, 0, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Equal(t, "buy milk", items[0].Title)
	assert.EqualValues(t, 0, fake.lastSearch["from"])
	assert.EqualValues(t, 20, fake.lastSearch["size"])

	total, _, err = idx.Search(ctx, "buy", 0, 0, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	q := fake.lastSearch["query"].(map[string]any)["bool"].(map[string]any)
	assert.NotContains(t, q, "filter")

	require.NoError(t, idx.Delete(ctx, 1))
	require.NoError(t, idx.Delete(ctx, 1))

	require.NoError(t, idx.DeleteByOwner(ctx, 20))
	total, _, err = idx.Search(ctx, "buy", 0, 0, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestNewClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(context.Background(), Config{URL: url})
	require.Error(t, err)
}
