package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/telhawk-systems/logsearch/logsearch/internal/dsl"
)

// Executor runs a payload against the search backend.
type Executor interface {
	Search(ctx context.Context, payload *Payload) (*Response, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, payload *Payload) (*Response, error)

func (f ExecutorFunc) Search(ctx context.Context, payload *Payload) (*Response, error) {
	return f(ctx, payload)
}

// Payload is a complete backend search request.
type Payload struct {
	Index             string   `json:"index"`
	Indexes           []string `json:"-"`
	Body              Body     `json:"body"`
	Size              int      `json:"size"`
	From              int      `json:"from"`
	IgnoreUnavailable bool     `json:"ignore_unavailable"`
	AllowNoIndices    bool     `json:"allow_no_indices"`
	SearchType        string   `json:"search_type,omitempty"`
}

// Body is the search document. Aggregations is nil when none were requested
// so the key is left out entirely.
type Body struct {
	Query        map[string]interface{}   `json:"query"`
	Sort         []map[string]interface{} `json:"sort"`
	Aggregations *dsl.Aggregations        `json:"aggregations,omitempty"`
}

// Encode writes the body as JSON.
func (b Body) Encode() (*bytes.Buffer, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(b); err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	return &buf, nil
}

// Response is the raw backend answer. Hits and aggregation buckets are left
// undecoded for the result interpreter.
type Response struct {
	Took         int             `json:"took"`
	TimedOut     bool            `json:"timed_out"`
	Hits         Hits            `json:"hits"`
	Aggregations json.RawMessage `json:"aggregations,omitempty"`
	ScrollID     string          `json:"_scroll_id,omitempty"`
}

// Hits is the hits envelope.
type Hits struct {
	Total    Total    `json:"total"`
	MaxScore *float64 `json:"max_score"`
	Hits     []Hit    `json:"hits"`
}

// Hit is one matching document.
type Hit struct {
	Index  string          `json:"_index"`
	ID     string          `json:"_id"`
	Score  *float64        `json:"_score,omitempty"`
	Source json.RawMessage `json:"_source,omitempty"`
	Sort   []interface{}   `json:"sort,omitempty"`
}

// Total is the hit count. Older backends report a bare number, newer ones
// an object with a relation.
type Total struct {
	Value    int64  `json:"value"`
	Relation string `json:"relation,omitempty"`
}

func (t *Total) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = Total{}
		return nil
	}
	if data[0] != '{' {
		var n int64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("decode hits total: %w", err)
		}
		*t = Total{Value: n, Relation: "eq"}
		return nil
	}
	type plain Total
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode hits total: %w", err)
	}
	*t = Total(p)
	return nil
}

// DecodeResponse reads a backend response body.
func DecodeResponse(r io.Reader) (*Response, error) {
	var resp Response
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}
