// Package storage persists records of flowchart runs.
package storage

import (
	"context"
	"time"

	"github.com/Comcast/flowcmd/core"
	"github.com/Comcast/flowcmd/expr"
)

// RunRecord is a presentation of a finished run as stored in a
// Storage system.
type RunRecord struct {
	// Rid is the id for the run.
	Rid string `json:"id,omitempty"`

	Filename string       `json:"filename,omitempty"`
	Reason   string       `json:"reason"`
	Turns    int          `json:"turns"`
	Error    string       `json:"error,omitempty"`
	Vars     expr.Context `json:"vars"`
	At       time.Time    `json:"at"`

	// Deleted indicated that this record has been deleted.
	Deleted bool `json:"-" yaml:"-"`
}

// Storage is a persistence interface for run records, which are
// grouped by flowchart.
type Storage interface {
	MakeFlowchart(ctx context.Context, fid string) error

	RemFlowchart(ctx context.Context, fid string) error

	GetRuns(ctx context.Context, fid string) ([]*RunRecord, error)

	WriteRuns(ctx context.Context, fid string, rs []*RunRecord) error
}

// AsRunRecord summarizes a Machine's run.
func AsRunRecord(rid, filename string, m *core.Machine, r *core.Result, err error) *RunRecord {
	rr := &RunRecord{
		Rid:      rid,
		Filename: filename,
		At:       time.Now().UTC(),
	}
	if r != nil {
		rr.Reason = r.Reason.String()
		rr.Turns = r.Turns
	}
	if err != nil {
		rr.Error = err.Error()
	}
	if m != nil && m.Env != nil {
		rr.Vars = m.Env.Context.Copy()
	}
	return rr
}
