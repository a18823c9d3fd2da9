package domain

import (
	"context"
	"time"
)

// RunRecord is the outcome of one button command execution.
type RunRecord struct {
	ID       string     `json:"id"`
	Time     time.Time  `json:"time"`
	Shelf    string     `json:"shelf"`
	ButtonID string     `json:"button_id"`
	Label    string     `json:"label"`
	Kind     ScriptKind `json:"kind"`
	OK       bool       `json:"ok"`
	Output   string     `json:"output,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// RunHistory records button executions. Implementations prune old records
// on their own; callers never retry a failed append.
type RunHistory interface {
	Append(ctx context.Context, rec RunRecord) error
	Recent(ctx context.Context, limit int) ([]RunRecord, error)
	Close() error
}
