// Package store keeps a history of pipeline runs for the HTTP server.
//
// Every POST /generate writes one [Run] (its options, its outcome and the
// result ID handed to the client) so GET /runs/{id} can report on it later.
// [MongoStore] persists runs in MongoDB with a TTL index; [MemoryStore] is the
// fallback when no MongoDB URI is configured.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/maskcloud/pkg/errors"
	"github.com/matzehuels/maskcloud/pkg/pipeline"
)

// RunTTL is how long run records are kept.
const RunTTL = 30 * 24 * time.Hour

// Run status values.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Run is one pipeline execution.
type Run struct {
	ID        string          `json:"id" bson:"_id"`
	CreatedAt time.Time       `json:"created_at" bson:"created_at"`
	Source    string          `json:"source" bson:"source"`
	Status    string          `json:"status" bson:"status"`
	Options   map[string]any  `json:"options" bson:"options"`
	Stats     *pipeline.Stats `json:"stats,omitempty" bson:"stats,omitempty"`
	CacheHit  bool            `json:"cache_hit" bson:"cache_hit"`
	ErrorCode string          `json:"error_code,omitempty" bson:"error_code,omitempty"`
	Error     string          `json:"error,omitempty" bson:"error,omitempty"`
}

// NewRun starts a record with a fresh ID.
func NewRun(source string, opts pipeline.Options) *Run {
	return &Run{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Source:    source,
		Options:   optionsDoc(opts),
	}
}

// Finish records the outcome of Runner.Execute.
func (r *Run) Finish(res *pipeline.Result, err error) {
	if err != nil {
		r.Status = StatusFailed
		r.ErrorCode = string(errors.GetCode(err))
		r.Error = errors.UserMessage(err)
		return
	}
	r.Status = StatusOK
	st := res.Stats
	r.Stats = &st
	r.CacheHit = res.CacheInfo.Hit
}

// Store persists runs.
type Store interface {
	// SaveRun inserts or replaces a run.
	SaveRun(ctx context.Context, run *Run) error

	// GetRun returns the run with the given ID. A missing run is a
	// NOT_FOUND error.
	GetRun(ctx context.Context, id string) (*Run, error)

	// RecentRuns returns up to limit runs, newest first.
	RecentRuns(ctx context.Context, limit int) ([]*Run, error)

	// Close releases backend resources.
	Close(ctx context.Context) error
}

func notFound(id string) error {
	return errors.New(errors.ErrCodeNotFound, "run %s not found", id)
}

// optionsDoc flattens options through their JSON form, which drops runtime
// fields and keeps the API field names.
func optionsDoc(opts pipeline.Options) map[string]any {
	data, err := json.Marshal(opts)
	if err != nil {
		return nil
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil
	}
	return doc
}
