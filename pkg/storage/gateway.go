package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/sheetsite/pkg/decode"
	"github.com/cuemby/sheetsite/pkg/log"
	"github.com/cuemby/sheetsite/pkg/metrics"
	"github.com/cuemby/sheetsite/pkg/throttle"
	"github.com/cuemby/sheetsite/pkg/types"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Gateway exposes the site's operations on the remote store.
// Every backend call is enqueued on the shared Throttler.
type Gateway struct {
	backend   Backend
	throttler *throttle.Throttler
	group     singleflight.Group
	logger    zerolog.Logger

	// now is swapped in tests
	now func() time.Time
}

// NewGateway creates a gateway over backend, serialized by t
func NewGateway(backend Backend, t *throttle.Throttler) *Gateway {
	g := &Gateway{
		backend:   backend,
		throttler: t,
		logger:    log.WithComponent("gateway").With().Str("backend", backend.Name()).Logger(),
		now:       time.Now,
	}
	g.logger.Debug().Dur("delay", t.Delay()).Msg("Store gateway ready")
	return g
}

// tableLogger scopes log lines to one table of this gateway's backend
func (g *Gateway) tableLogger(table string) zerolog.Logger {
	return log.WithTable(table).With().
		Str("component", "gateway").
		Str("backend", g.backend.Name()).
		Logger()
}

// GlobalRows reads every row of the global table
func (g *Gateway) GlobalRows(ctx context.Context) ([]GlobalRow, error) {
	rows, err := g.shared(ctx, TableGlobal, TableGlobal, func(ctx context.Context) ([]Row, error) {
		return g.backend.ReadAll(ctx, TableGlobal)
	})
	if err != nil {
		return nil, err
	}
	out := make([]GlobalRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, globalRowFrom(r))
	}
	return out, nil
}

// PageRows reads the pages rows whose slug matches
func (g *Gateway) PageRows(ctx context.Context, slug string) ([]PageRow, error) {
	rows, err := g.shared(ctx, TablePages, TablePages+":"+slug, func(ctx context.Context) ([]Row, error) {
		return g.backend.ReadWhere(ctx, TablePages, ColSlug, slug)
	})
	if err != nil {
		return nil, err
	}
	out := make([]PageRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, pageRowFrom(r))
	}
	return out, nil
}

// InsertLead appends a lead, stamping created_at when unset
func (g *Gateway) InsertLead(ctx context.Context, lead types.Lead) error {
	created := lead.CreatedAt
	if created.IsZero() {
		created = g.now()
	}
	row := Row{
		"created_at": formatTime(created),
		"name":       lead.Name,
		"phone":      lead.Phone,
		"email":      lead.Email,
		"source":     lead.Source,
		"url":        lead.URL,
	}
	return g.call(ctx, TableLeads, "insert", func(ctx context.Context) error {
		return g.backend.Insert(ctx, TableLeads, row)
	})
}

// UpdatePageLayout rewrites the layout (and components, when given) of one page
func (g *Gateway) UpdatePageLayout(ctx context.Context, m types.PageMutation) error {
	if m.Slug == "" {
		return fmt.Errorf("update page layout: slug is required")
	}
	layout, err := decode.Encode(m.Layout)
	if err != nil {
		return fmt.Errorf("update page layout: %w", err)
	}
	patch := Row{
		ColLayout:        layout,
		ColLastOptimized: formatTime(g.now()),
		ColLastMutation:  m.Kind,
	}
	if m.Components != nil {
		components, err := decode.Encode(m.Components)
		if err != nil {
			return fmt.Errorf("update page layout: %w", err)
		}
		patch[ColComponents] = components
	}

	err = g.call(ctx, TablePages, "update", func(ctx context.Context) error {
		return g.backend.UpdateWhere(ctx, TablePages, ColSlug, m.Slug, patch)
	})
	if err != nil {
		return err
	}
	g.group.Forget(TablePages + ":" + m.Slug)
	return nil
}

// InsertSignals appends a batch of signals in one call
func (g *Gateway) InsertSignals(ctx context.Context, signals []types.Signal) error {
	if len(signals) == 0 {
		return nil
	}
	rows := make([]Row, 0, len(signals))
	for _, s := range signals {
		row := Row{
			ColSignalTimestamp: s.Timestamp.UnixMilli(),
			ColSignalPath:      s.Path,
			ColSignalType:      string(s.Type),
		}
		if s.ComponentID != "" {
			row[ColSignalComponentID] = s.ComponentID
		}
		if len(s.Metadata) > 0 {
			meta, err := decode.Encode(s.Metadata)
			if err != nil {
				tl := g.tableLogger(TableSignals)
				tl.Warn().Err(err).Str("path", s.Path).Msg("Dropping unencodable signal metadata")
			} else {
				row[ColSignalMetadata] = meta
			}
		}
		rows = append(rows, row)
	}
	return g.call(ctx, TableSignals, "insert", func(ctx context.Context) error {
		return g.backend.Insert(ctx, TableSignals, rows...)
	})
}

// SignalRows reads the recorded signals for one path
func (g *Gateway) SignalRows(ctx context.Context, path string) ([]types.Signal, error) {
	rows, err := g.shared(ctx, TableSignals, TableSignals+":"+path, func(ctx context.Context) ([]Row, error) {
		return g.backend.ReadWhere(ctx, TableSignals, ColSignalPath, path)
	})
	if err != nil {
		return nil, err
	}
	out := make([]types.Signal, 0, len(rows))
	for _, r := range rows {
		out = append(out, signalFrom(r))
	}
	return out, nil
}

// UpsertPage writes a full page row, updating by slug or inserting when absent
func (g *Gateway) UpsertPage(ctx context.Context, p PageRow) error {
	row, err := p.row()
	if err != nil {
		return fmt.Errorf("upsert page %s: %w", p.Slug, err)
	}
	err = g.call(ctx, TablePages, "update", func(ctx context.Context) error {
		return g.backend.UpdateWhere(ctx, TablePages, ColSlug, p.Slug, row)
	})
	if errors.Is(err, ErrNoMatch) {
		err = g.call(ctx, TablePages, "insert", func(ctx context.Context) error {
			return g.backend.Insert(ctx, TablePages, row)
		})
	}
	if err != nil {
		return err
	}
	g.group.Forget(TablePages + ":" + p.Slug)
	return nil
}

// PutGlobal upserts global rows by key
func (g *Gateway) PutGlobal(ctx context.Context, rows []GlobalRow) error {
	for _, r := range rows {
		row := r.row()
		err := g.call(ctx, TableGlobal, "update", func(ctx context.Context) error {
			return g.backend.UpdateWhere(ctx, TableGlobal, "key", r.Key, row)
		})
		if errors.Is(err, ErrNoMatch) {
			err = g.call(ctx, TableGlobal, "insert", func(ctx context.Context) error {
				return g.backend.Insert(ctx, TableGlobal, row)
			})
		}
		if err != nil {
			return fmt.Errorf("put global %s: %w", r.Key, err)
		}
	}
	g.group.Forget(TableGlobal)
	return nil
}

// shared collapses concurrent identical reads into one throttled call.
// The shared call outlives any single caller's cancellation.
func (g *Gateway) shared(ctx context.Context, table, key string, read func(context.Context) ([]Row, error)) ([]Row, error) {
	ch := g.group.DoChan(key, func() (any, error) {
		var rows []Row
		err := g.call(context.WithoutCancel(ctx), table, "read", func(ctx context.Context) error {
			var err error
			rows, err = read(ctx)
			return err
		})
		return rows, err
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			g.logger.Debug().Str("key", key).Msg("Read shared with concurrent caller")
		}
		return res.Val.([]Row), nil
	}
}

func (g *Gateway) call(ctx context.Context, table, op string, fn func(context.Context) error) error {
	err := g.throttler.Do(ctx, func(ctx context.Context) error {
		timer := metrics.NewTimer()
		defer timer.ObserveDurationVec(metrics.StoreRequestDuration, table, op)
		return fn(ctx)
	})

	status := "ok"
	switch {
	case errors.Is(err, ErrNoMatch):
		status = "no_match"
	case err != nil:
		status = "error"
		tl := g.tableLogger(table)
		tl.Error().Err(err).Str("op", op).Msg("Store call failed")
	}
	metrics.StoreRequestsTotal.WithLabelValues(table, op, status).Inc()
	return err
}
