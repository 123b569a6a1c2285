package site

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/cuemby/sheetsite/pkg/content"
	"github.com/cuemby/sheetsite/pkg/metrics"
	"github.com/cuemby/sheetsite/pkg/render"
	"github.com/cuemby/sheetsite/pkg/signals"
	"github.com/cuemby/sheetsite/pkg/types"
)

const (
	sessionCookie  = "sheetsite_session"
	adminHeader    = "X-Admin-Token"
	maxBodyBytes   = 64 << 10
	maxSignalBatch = 100
)

func variantOf(r *http.Request) string {
	q := r.URL.Query()
	if v := q.Get("variant"); v != "" {
		return v
	}
	return q.Get("v")
}

// session returns the visitor's session id, issuing a cookie when absent
func (s *Server) session(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
	})
	return id
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slug := types.NormalizeSlug(r.URL.Path)
	variant := variantOf(r)
	sessionID := s.session(w, r)

	global := s.resolver.Global(ctx)
	page, src, err := s.resolver.Resolve(ctx, slug, variant)
	if errors.Is(err, content.ErrNotFound) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		if err := render.NotFound(w, global, slug); err != nil {
			s.logger.Error().Err(err).Str("slug", slug).Msg("Failed to render not-found page")
		}
		return
	}
	if err != nil {
		// Only cancellation reaches here; the client is gone.
		s.logger.Debug().Err(err).Str("slug", slug).Msg("Page resolution abandoned")
		http.Error(w, "request cancelled", http.StatusServiceUnavailable)
		return
	}

	var buf bytes.Buffer
	err = render.Shell(&buf, render.ShellData{
		Global:  global,
		Page:    page,
		Blocks:  render.Assemble(page, s.registry),
		Path:    slug,
		Variant: variant,
		Beacon:  true,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("slug", slug).Msg("Failed to render page shell")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.record(types.Signal{
		Type: types.SignalView,
		Path: slug,
		Metadata: map[string]any{
			"session": sessionID,
			"source":  string(src.Origin),
			"slug":    src.Slug,
			"variant": variant,
		},
	})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Source", string(src.Origin))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type leadRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Source string `json:"source"`
	URL    string `json:"url"`
}

func decodeLead(r *http.Request) (leadRequest, error) {
	var req leadRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		err := json.NewDecoder(r.Body).Decode(&req)
		return req, err
	}
	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req = leadRequest{
		Name:   r.PostForm.Get("name"),
		Email:  r.PostForm.Get("email"),
		Phone:  r.PostForm.Get("phone"),
		Source: r.PostForm.Get("source"),
		URL:    r.PostForm.Get("url"),
	}
	return req, nil
}

func (s *Server) handleLead(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow(r) {
		metrics.LeadsTotal.WithLabelValues("limited").Inc()
		s.logger.Warn().Str("client", getClientIP(r)).Msg("Lead rate limit exceeded")
		writeError(w, http.StatusTooManyRequests, "too many submissions, try again shortly")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	req, err := decodeLead(r)
	if err != nil {
		metrics.LeadsTotal.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, "malformed lead")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Email == "" && req.Phone == "" {
		metrics.LeadsTotal.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, "email or phone is required")
		return
	}
	if req.URL == "" {
		req.URL = r.Referer()
	}

	lead := types.Lead{
		Name:   strings.TrimSpace(req.Name),
		Email:  req.Email,
		Phone:  req.Phone,
		Source: req.Source,
		URL:    req.URL,
	}

	// The visitor is not kept waiting on the throttled store.
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.opts.LeadTimeout)
		defer cancel()
		if err := s.store.InsertLead(ctx, lead); err != nil {
			metrics.LeadsTotal.WithLabelValues("error").Inc()
			s.logger.Error().Err(err).Str("source", lead.Source).Msg("Failed to store lead")
			return
		}
		metrics.LeadsTotal.WithLabelValues("stored").Inc()
	}()

	s.record(types.Signal{
		Type:        types.SignalConversion,
		Path:        types.NormalizeSlug(pathOf(lead.URL)),
		ComponentID: lead.Source,
		Metadata:    map[string]any{"session": s.session(w, r)},
	})

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// pathOf strips scheme and host from an absolute URL
func pathOf(u string) string {
	if i := strings.Index(u, "://"); i >= 0 {
		rest := u[i+3:]
		if j := strings.IndexByte(rest, '/'); j >= 0 {
			return rest[j:]
		}
		return "/"
	}
	return u
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "malformed signal")
		return
	}

	var batch []types.Signal
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			writeError(w, http.StatusBadRequest, "malformed signal batch")
			return
		}
	} else {
		var one types.Signal
		if err := json.Unmarshal(trimmed, &one); err != nil {
			writeError(w, http.StatusBadRequest, "malformed signal")
			return
		}
		batch = []types.Signal{one}
	}
	if len(batch) > maxSignalBatch {
		writeError(w, http.StatusRequestEntityTooLarge, "too many signals")
		return
	}

	accepted := 0
	for _, sig := range batch {
		if !sig.Type.Valid() {
			continue
		}
		sig.Path = types.NormalizeSlug(sig.Path)
		s.record(sig)
		accepted++
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": accepted, "rejected": len(batch) - accepted})
}

type suggestionsResponse struct {
	Slug        string                         `json:"slug"`
	Source      content.Origin                 `json:"source"`
	Stats       signals.Stats                  `json:"stats"`
	Suggestions []types.OptimizationSuggestion `json:"suggestions"`
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		path = "/"
	}
	page, src, err := s.resolver.Resolve(r.Context(), path, variantOf(r))
	if err != nil {
		s.writeResolveError(w, err)
		return
	}

	var stats signals.Stats
	suggestions := []types.OptimizationSuggestion{}
	if s.agent != nil {
		stats = s.agent.Stats()
		if got := s.agent.Suggest(page); got != nil {
			suggestions = got
		}
	}
	writeJSON(w, http.StatusOK, suggestionsResponse{
		Slug:        src.Slug,
		Source:      src.Origin,
		Stats:       stats,
		Suggestions: suggestions,
	})
}

type mutationRequest struct {
	Path       string `json:"path"`
	Variant    string `json:"variant"`
	Suggestion string `json:"suggestion"`
}

type mutationResponse struct {
	Slug       string                           `json:"slug"`
	Kind       string                           `json:"kind"`
	Layout     []string                         `json:"layout"`
	Components map[string]types.ComponentRecord `json:"components"`
}

func (s *Server) handleMutation(w http.ResponseWriter, r *http.Request) {
	if s.opts.AdminToken == "" {
		writeError(w, http.StatusForbidden, "mutations are disabled")
		return
	}
	token := r.Header.Get(adminHeader)
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.AdminToken)) != 1 {
		writeError(w, http.StatusUnauthorized, "invalid admin token")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req mutationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Suggestion == "" {
		writeError(w, http.StatusBadRequest, "path and suggestion are required")
		return
	}

	ctx := r.Context()
	page, src, err := s.resolver.Resolve(ctx, req.Path, req.Variant)
	if err != nil {
		s.writeResolveError(w, err)
		return
	}
	if src.Origin != content.OriginRemote {
		writeError(w, http.StatusConflict, "page is served from mock content and cannot be mutated")
		return
	}

	m, ok := signals.Mutate(page, req.Suggestion)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "suggestion does not apply to this page")
		return
	}
	m.Slug = src.Slug

	if err := s.store.UpdatePageLayout(ctx, m); err != nil {
		s.logger.Error().Err(err).Str("slug", m.Slug).Str("suggestion", m.Kind).Msg("Failed to apply page mutation")
		writeError(w, http.StatusBadGateway, "failed to update page")
		return
	}
	s.resolver.Invalidate(m.Slug)
	s.logger.Info().Str("slug", m.Slug).Str("suggestion", m.Kind).Msg("Applied page mutation")

	writeJSON(w, http.StatusOK, mutationResponse{
		Slug:       m.Slug,
		Kind:       m.Kind,
		Layout:     m.Layout,
		Components: m.Components,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	switch s.resolver.LastOrigin() {
	case content.OriginMock:
		metrics.UpdateComponent("content", false, "serving mock content")
	case content.OriginRemote:
		metrics.UpdateComponent("content", true, "")
	default:
		metrics.UpdateComponent("content", true, "no page resolved yet")
	}
	metrics.ReadyHandler()(w, r)
}

func (s *Server) writeResolveError(w http.ResponseWriter, err error) {
	if errors.Is(err, content.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusServiceUnavailable, err.Error())
}

func (s *Server) record(sig types.Signal) {
	if s.agent != nil {
		s.agent.Record(sig)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
