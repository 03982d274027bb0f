// Package memory provides an in-memory row source for tests and tooling.
package memory

import (
	"context"
	"sync"

	"asetmon/internal/sheets"
)

// Sheet is a fixed grid of cells.
type Sheet struct {
	mu   sync.Mutex
	name string
	rows [][]string
	err  error
}

var _ sheets.RowSource = (*Sheet)(nil)

func New(name string, rows [][]string) *Sheet {
	return &Sheet{name: name, rows: rows}
}

// Failing returns a sheet whose reads fail with err.
func Failing(err error) *Sheet {
	return &Sheet{name: "failing", err: err}
}

func (s *Sheet) Name() string { return s.name }

// ReadRows returns a copy of the grid.
func (s *Sheet) ReadRows(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]string, len(s.rows))
	for i, r := range s.rows {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}

// Set replaces the grid.
func (s *Sheet) Set(rows [][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = rows
}
