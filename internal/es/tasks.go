package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/esapi"

	"github.com/Skotchmaster/tasktracker/internal/models"
)

const DefaultIndex = "tasks"

var taskMapping = map[string]any{
	"mappings": map[string]any{
		"properties": map[string]any{
			"id":          map[string]any{"type": "long"},
			"title":       map[string]any{"type": "text"},
			"description": map[string]any{"type": "text"},
			"done":        map[string]any{"type": "boolean"},
			"due_date":    map[string]any{"type": "date"},
			"user_id":     map[string]any{"type": "long"},
		},
	},
}

// TaskIndex mirrors tasks into an Elasticsearch index for full text search.
type TaskIndex struct {
	client *elasticsearch.Client
	index  string
}

func NewTaskIndex(client *elasticsearch.Client, index string) *TaskIndex {
	if index == "" {
		index = DefaultIndex
	}
	return &TaskIndex{client: client, index: index}
}

func (x *TaskIndex) EnsureIndex(ctx context.Context) error {
	res, err := x.client.Indices.Exists([]string{x.index}, x.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("index exists: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("index exists: %s", res.Status())
	}

	body, err := encodeBody(taskMapping)
	if err != nil {
		return err
	}
	res, err = x.client.Indices.Create(x.index,
		x.client.Indices.Create.WithContext(ctx),
		x.client.Indices.Create.WithBody(body),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return checkResponse(res, "create index")
}

func (x *TaskIndex) Put(ctx context.Context, t models.Task) error {
	body, err := encodeBody(t)
	if err != nil {
		return err
	}
	res, err := x.client.Index(x.index, body,
		x.client.Index.WithContext(ctx),
		x.client.Index.WithDocumentID(docID(t.ID)),
		x.client.Index.WithRefresh("wait_for"),
	)
	if err != nil {
		return fmt.Errorf("index task %d: %w", t.ID, err)
	}
	return checkResponse(res, "index task")
}

func (x *TaskIndex) Delete(ctx context.Context, id uint) error {
	res, err := x.client.Delete(x.index, docID(id),
		x.client.Delete.WithContext(ctx),
		x.client.Delete.WithRefresh("wait_for"),
	)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	if res.StatusCode == http.StatusNotFound {
		res.Body.Close()
		return nil
	}
	return checkResponse(res, "delete task")
}

func (x *TaskIndex) DeleteByOwner(ctx context.Context, ownerID uint) error {
	body, err := encodeBody(map[string]any{
		"query": map[string]any{
			"term": map[string]any{"user_id": ownerID},
		},
	})
	if err != nil {
		return err
	}
	res, err := x.client.DeleteByQuery([]string{x.index}, body,
		x.client.DeleteByQuery.WithContext(ctx),
		x.client.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return fmt.Errorf("delete tasks of user %d: %w", ownerID, err)
	}
	return checkResponse(res, "delete by owner")
}

// Search runs a fuzzy match over title and description. ownerID 0 searches
// every owner.
func (x *TaskIndex) Search(ctx context.Context, query string, ownerID uint, offset, limit int) (int64, []models.Task, error) {
	boolQuery := map[string]any{
		"must": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"title^2", "description"},
				"fuzziness": "AUTO",
			},
		},
	}
	if ownerID != 0 {
		boolQuery["filter"] = map[string]any{
			"term": map[string]any{"user_id": ownerID},
		}
	}

	body, err := encodeBody(map[string]any{
		"query": map[string]any{"bool": boolQuery},
		"from":  offset,
		"size":  limit,
	})
	if err != nil {
		return 0, nil, err
	}

	res, err := x.client.Search(
		x.client.Search.WithContext(ctx),
		x.client.Search.WithIndex(x.index),
		x.client.Search.WithBody(body),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search tasks: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, fmt.Errorf("search tasks: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.Task `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, fmt.Errorf("decode search response: %w", err)
	}

	items := make([]models.Task, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		items[i] = hit.Source
	}
	return r.Hits.Total.Value, items, nil
}

func docID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func encodeBody(v any) (io.Reader, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	return &buf, nil
}

func checkResponse(res *esapi.Response, op string) error {
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("%s: %s: %s", op, res.Status(), bytes.TrimSpace(body))
	}
	return nil
}
