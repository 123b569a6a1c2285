package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultSheet2DBURL is the public sheet2db API root
const DefaultSheet2DBURL = "https://api.sheet2db.com/v1"

// Sheet2DBConfig configures the sheet2db HTTP backend
type Sheet2DBConfig struct {
	// BaseURL is the API root, without the connection id
	BaseURL string

	// APIID is the sheet2db connection id
	APIID string

	// Token is sent as a bearer token when set
	Token string

	// Timeout bounds every request (default: 10s)
	Timeout time.Duration

	// Client overrides the HTTP client (tests)
	Client *http.Client
}

// Sheet2DB talks to a Google Sheet through the sheet2db REST facade
type Sheet2DB struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewSheet2DB creates a sheet2db backend
func NewSheet2DB(cfg Sheet2DBConfig) (*Sheet2DB, error) {
	if cfg.APIID == "" {
		return nil, fmt.Errorf("sheet2db: api id is required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultSheet2DBURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("sheet2db: invalid base url: %w", err)
	}

	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &Sheet2DB{
		endpoint: strings.TrimRight(base, "/") + "/" + url.PathEscape(cfg.APIID),
		token:    cfg.Token,
		client:   client,
	}, nil
}

// Name implements Backend
func (s *Sheet2DB) Name() string { return "sheet2db" }

// Close implements Backend
func (s *Sheet2DB) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// ReadAll implements Backend: GET {endpoint}?sheet=T
func (s *Sheet2DB) ReadAll(ctx context.Context, table string) ([]Row, error) {
	var rows []Row
	if err := s.do(ctx, "read", table, http.MethodGet, s.tableURL(table, ""), nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// ReadWhere implements Backend: GET {endpoint}/{column}/{value}?sheet=T
func (s *Sheet2DB) ReadWhere(ctx context.Context, table, column, value string) ([]Row, error) {
	var rows []Row
	u := s.tableURL(table, "/"+url.PathEscape(column)+"/"+url.PathEscape(value))
	if err := s.do(ctx, "read", table, http.MethodGet, u, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Insert implements Backend: POST {endpoint}?sheet=T
func (s *Sheet2DB) Insert(ctx context.Context, table string, rows ...Row) error {
	if len(rows) == 0 {
		return nil
	}
	var body any = rows
	if len(rows) == 1 {
		body = rows[0]
	}
	return s.do(ctx, "insert", table, http.MethodPost, s.tableURL(table, ""), body, nil)
}

// UpdateWhere implements Backend: PATCH {endpoint}/{column}/{value}?sheet=T
func (s *Sheet2DB) UpdateWhere(ctx context.Context, table, column, value string, patch Row) error {
	u := s.tableURL(table, "/"+url.PathEscape(column)+"/"+url.PathEscape(value))
	var result struct {
		Updated *int `json:"updated"`
	}
	if err := s.do(ctx, "update", table, http.MethodPatch, u, patch, &result); err != nil {
		return err
	}
	if result.Updated != nil && *result.Updated == 0 {
		return ErrNoMatch
	}
	return nil
}

func (s *Sheet2DB) tableURL(table, suffix string) string {
	return s.endpoint + suffix + "?sheet=" + url.QueryEscape(table)
}

func (s *Sheet2DB) do(ctx context.Context, op, table, method, u string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("sheet2db: encode %s body: %w", table, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("sheet2db: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sheet2db: %s %s: %w", op, table, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("sheet2db: read %s response: %w", table, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{
			Op:         op,
			Table:      table,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(truncateBody(data))),
		}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		// Write acknowledgements are not always JSON objects.
		if op != "read" {
			return nil
		}
		return fmt.Errorf("sheet2db: decode %s rows: %w", table, err)
	}
	return nil
}

func truncateBody(b []byte) []byte {
	if len(b) > 256 {
		return b[:256]
	}
	return b
}
