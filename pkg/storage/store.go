package storage

import (
	"context"
	"errors"
	"fmt"
)

// Table names in the remote spreadsheet
const (
	TableGlobal  = "global"
	TablePages   = "pages"
	TableLeads   = "leads"
	TableSignals = "signals"
)

// Tables lists every table the site reads or writes
var Tables = []string{TableGlobal, TablePages, TableLeads, TableSignals}

var (
	// ErrNoMatch is returned when an update-by-filter matches no row
	ErrNoMatch = errors.New("storage: no row matches filter")

	// ErrClosed is returned by backends used after Close
	ErrClosed = errors.New("storage: backend closed")
)

// StatusError reports a non-2xx answer from the remote store
type StatusError struct {
	Op         string
	Table      string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("storage: %s %s: HTTP %d: %s", e.Op, e.Table, e.StatusCode, e.Body)
}

// Row is one spreadsheet row keyed by column header
type Row map[string]any

// String returns the column value as a string, or "" when absent or not a string
func (r Row) String(column string) string {
	switch v := r[column].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Backend defines the tabular operations of the remote store.
// Every method is a single remote call; callers throttle them.
type Backend interface {
	// ReadAll returns every row of a table
	ReadAll(ctx context.Context, table string) ([]Row, error)

	// ReadWhere returns the rows whose column equals value
	ReadWhere(ctx context.Context, table, column, value string) ([]Row, error)

	// Insert appends rows to a table
	Insert(ctx context.Context, table string, rows ...Row) error

	// UpdateWhere merges patch into the rows whose column equals value
	UpdateWhere(ctx context.Context, table, column, value string, patch Row) error

	// Name identifies the backend in logs and health output
	Name() string

	// Close releases backend resources
	Close() error
}
