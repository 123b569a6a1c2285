package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// keyColumns maps keyed tables to the column that identifies a row.
// Rows of unkeyed tables (leads, signals) are appended under a fresh uuid.
var keyColumns = map[string]string{
	TableGlobal: "key",
	TablePages:  "slug",
}

// BoltBackend implements Backend on a local BoltDB file, one bucket per table.
// It serves offline development and the seed command.
type BoltBackend struct {
	db *bolt.DB
}

// NewBoltBackend opens (or creates) <dataDir>/sheetsite.db
func NewBoltBackend(dataDir string) (*BoltBackend, error) {
	dbPath := filepath.Join(dataDir, "sheetsite.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, table := range Tables {
			if _, err := tx.CreateBucketIfNotExists([]byte(table)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltBackend{db: db}, nil
}

// Name implements Backend
func (s *BoltBackend) Name() string { return "bolt" }

// Close closes the database
func (s *BoltBackend) Close() error {
	return s.db.Close()
}

// ReadAll implements Backend
func (s *BoltBackend) ReadAll(ctx context.Context, table string) ([]Row, error) {
	return s.scan(ctx, table, func(Row) bool { return true })
}

// ReadWhere implements Backend
func (s *BoltBackend) ReadWhere(ctx context.Context, table, column, value string) ([]Row, error) {
	return s.scan(ctx, table, func(r Row) bool { return r.String(column) == value })
}

func (s *BoltBackend) scan(ctx context.Context, table string, keep func(Row) bool) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []Row
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return fmt.Errorf("unknown table: %s", table)
		}
		return b.ForEach(func(k, v []byte) error {
			var row Row
			if err := json.Unmarshal(v, &row); err != nil {
				return fmt.Errorf("failed to unmarshal %s row %q: %w", table, k, err)
			}
			if keep(row) {
				rows = append(rows, row)
			}
			return nil
		})
	})
	return rows, err
}

// Insert implements Backend. Keyed tables overwrite the row with the same key.
func (s *BoltBackend) Insert(ctx context.Context, table string, rows ...Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return fmt.Errorf("unknown table: %s", table)
		}
		for _, row := range rows {
			key, err := rowKey(table, row)
			if err != nil {
				return err
			}
			data, err := json.Marshal(row)
			if err != nil {
				return fmt.Errorf("failed to marshal %s row: %w", table, err)
			}
			if err := b.Put(key, data); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateWhere implements Backend
func (s *BoltBackend) UpdateWhere(ctx context.Context, table, column, value string, patch Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return fmt.Errorf("unknown table: %s", table)
		}

		updates := map[string][]byte{}
		err := b.ForEach(func(k, v []byte) error {
			var row Row
			if err := json.Unmarshal(v, &row); err != nil {
				return fmt.Errorf("failed to unmarshal %s row %q: %w", table, k, err)
			}
			if row.String(column) != value {
				return nil
			}
			for col, val := range patch {
				row[col] = val
			}
			data, err := json.Marshal(row)
			if err != nil {
				return fmt.Errorf("failed to marshal %s row: %w", table, err)
			}
			updates[string(k)] = data
			return nil
		})
		if err != nil {
			return err
		}
		if len(updates) == 0 {
			return ErrNoMatch
		}
		// Puts are deferred; bolt forbids mutating a bucket inside ForEach.
		for k, data := range updates {
			if err := b.Put([]byte(k), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func rowKey(table string, row Row) ([]byte, error) {
	if col, ok := keyColumns[table]; ok {
		key := row.String(col)
		if key == "" {
			return nil, fmt.Errorf("%s row is missing key column %q", table, col)
		}
		return []byte(key), nil
	}
	// Version 7 ids sort by creation time, so ForEach yields insertion order.
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate row key: %w", err)
	}
	return []byte(id.String()), nil
}
