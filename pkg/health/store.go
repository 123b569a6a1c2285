package health

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/sheetsite/pkg/storage"
)

// GlobalReader is the gateway read used as the store probe
type GlobalReader interface {
	GlobalRows(ctx context.Context) ([]storage.GlobalRow, error)
}

// StoreChecker probes the content store by reading the global table
type StoreChecker struct {
	reader GlobalReader
	name   string
}

// NewStoreChecker creates a store probe reporting as "store"
func NewStoreChecker(reader GlobalReader) *StoreChecker {
	return &StoreChecker{reader: reader, name: "store"}
}

// Name implements Checker
func (c *StoreChecker) Name() string { return c.name }

// Check implements Checker
func (c *StoreChecker) Check(ctx context.Context) Result {
	start := time.Now()
	rows, err := c.reader.GlobalRows(ctx)
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("read global table: %v", err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	return Result{
		Healthy:   true,
		Message:   fmt.Sprintf("%d global rows", len(rows)),
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}
