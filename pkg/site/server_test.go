package site

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/sheetsite/pkg/content"
	"github.com/cuemby/sheetsite/pkg/signals"
	"github.com/cuemby/sheetsite/pkg/storage"
	"github.com/cuemby/sheetsite/pkg/throttle"
	"github.com/cuemby/sheetsite/pkg/types"
)

type fixture struct {
	server   *Server
	backend  *storage.MemoryBackend
	gateway  *storage.Gateway
	agent    *signals.Agent
	resolver *content.Resolver
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	th := throttle.New(0)
	th.Start()
	t.Cleanup(th.Stop)

	backend := storage.NewMemoryBackend()
	gw := storage.NewGateway(backend, th)
	resolver := content.NewResolver(gw, content.WithMock(content.NewMockSet()))
	agent := signals.New(gw, signals.WithBatchSize(1000), signals.WithFlushInterval(time.Hour))
	t.Cleanup(func() { _ = agent.Close(context.Background()) })

	if opts.LeadsPerMinute == 0 {
		opts.LeadsPerMinute = 100
	}
	opts.MockFallback = true
	return &fixture{
		server:   New(opts, resolver, gw, agent, nil),
		backend:  backend,
		gateway:  gw,
		agent:    agent,
		resolver: resolver,
	}
}

func (f *fixture) seed(t *testing.T, page *types.PageEntity) {
	t.Helper()
	require.NoError(t, f.gateway.UpsertPage(context.Background(), content.PageRow(page)))
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func bondiV1() *types.PageEntity {
	return &types.PageEntity{
		Slug:      "/areas/coogee",
		MetaTitle: "Coogee Roofers",
		Layout:    []string{"hero", "form"},
		Components: map[string]types.ComponentRecord{
			"hero": {ID: "hero", Type: types.ComponentHeroV1, Props: map[string]any{"headline": "Coogee Roofers"}},
			"form": {ID: "form", Type: types.ComponentLeadFormSimple, Props: map[string]any{}},
		},
	}
}

func TestPageFromMock(t *testing.T) {
	f := newFixture(t, Options{})

	rec := f.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "The Future of Roof Protection")
	assert.Contains(t, body, "Expert Roof Tilers | Gen Roof Tiling")
	assert.Equal(t, "mock", rec.Header().Get("X-Content-Source"))
	assert.NotEmpty(t, rec.Result().Cookies())
	assert.Equal(t, 1, f.agent.Stats().Pending)
	assert.Equal(t, int64(1), f.agent.Stats().Views)
}

func TestPageFromStoreWithVariant(t *testing.T) {
	f := newFixture(t, Options{})
	base := bondiV1()
	f.seed(t, base)
	variant := bondiV1()
	variant.Slug = "/areas/coogee_b"
	variant.MetaTitle = "Coogee Variant"
	f.seed(t, variant)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/areas/coogee/?variant=b", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Coogee Variant")
	assert.Equal(t, "remote", rec.Header().Get("X-Content-Source"))

	rec = f.do(httptest.NewRequest(http.MethodGet, "/areas/coogee?v=missing", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Coogee Roofers")
}

func TestPageNotFound(t *testing.T) {
	f := newFixture(t, Options{})

	rec := f.do(httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "/nowhere")
	assert.Zero(t, f.agent.Stats().Views)
}

func TestLeadJSON(t *testing.T) {
	f := newFixture(t, Options{})

	body := `{"name":"Ann","email":"ann@example.com","source":"lead_form_split","url":"https://example.com/areas/bondi"}`
	req := httptest.NewRequest(http.MethodPost, "/api/leads", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := f.do(req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	f.server.background.Wait()
	assert.Equal(t, 1, f.backend.Len(storage.TableLeads))

	stats := f.agent.Stats()
	assert.Equal(t, int64(1), stats.Conversions)
}

func TestLeadForm(t *testing.T) {
	f := newFixture(t, Options{})

	form := url.Values{"phone": {"0400 000 000"}, "source": {"lead_form_simple"}}
	req := httptest.NewRequest(http.MethodPost, "/api/leads", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := f.do(req)
	require.Equal(t, http.StatusAccepted, rec.Code)
	f.server.background.Wait()
	assert.Equal(t, 1, f.backend.Len(storage.TableLeads))
}

func TestLeadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "no contact", body: `{"name":"Ann"}`, want: http.StatusBadRequest},
		{name: "blank contact", body: `{"email":"  ","phone":""}`, want: http.StatusBadRequest},
		{name: "malformed", body: `{"email":`, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{})
			req := httptest.NewRequest(http.MethodPost, "/api/leads", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := f.do(req)
			assert.Equal(t, tt.want, rec.Code)
			assert.Zero(t, f.agent.Stats().Conversions)
		})
	}
}

func TestLeadStoreFailureStillAccepted(t *testing.T) {
	f := newFixture(t, Options{})
	f.backend.SetFail(assert.AnError)

	req := httptest.NewRequest(http.MethodPost, "/api/leads", strings.NewReader(`{"email":"a@b.c"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := f.do(req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	f.server.background.Wait()
}

func TestLeadRateLimit(t *testing.T) {
	f := newFixture(t, Options{LeadsPerMinute: 1})

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/leads", strings.NewReader(`{"email":"a@b.c"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", ip)
		return f.do(req).Code
	}

	assert.Equal(t, http.StatusAccepted, send("203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.1"))
	assert.Equal(t, http.StatusAccepted, send("203.0.113.2"))
	f.server.background.Wait()
}

func TestSignals(t *testing.T) {
	f := newFixture(t, Options{})

	rec := f.do(httptest.NewRequest(http.MethodPost, "/api/signals",
		strings.NewReader(`[{"type":"scroll","path":"/"},{"type":"click","path":"/x/","componentId":"cta"},{"type":"bogus","path":"/"}]`)))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp["accepted"])
	assert.Equal(t, 1, resp["rejected"])
	assert.Equal(t, 2, f.agent.Pending())

	rec = f.do(httptest.NewRequest(http.MethodPost, "/api/signals", strings.NewReader(`{"type":"view","path":"/"}`)))
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 3, f.agent.Pending())

	rec = f.do(httptest.NewRequest(http.MethodPost, "/api/signals", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignalsEpochMillisTimestamp(t *testing.T) {
	f := newFixture(t, Options{})

	rec := f.do(httptest.NewRequest(http.MethodPost, "/api/signals",
		strings.NewReader(`{"type":"click","path":"/","componentId":"hero","timestamp":1700000000000}`)))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, 1, f.agent.Pending())

	require.NoError(t, f.agent.Flush(context.Background(), true))
	stored, err := f.gateway.SignalRows(context.Background(), "/")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, int64(1700000000000), stored[0].Timestamp.UnixMilli())
	assert.Equal(t, "hero", stored[0].ComponentID)
}

func TestSuggestions(t *testing.T) {
	f := newFixture(t, Options{})
	f.seed(t, bondiV1())

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/pages/suggestions?path=/areas/coogee", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp suggestionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "/areas/coogee", resp.Slug)
	assert.Equal(t, content.OriginRemote, resp.Source)

	var ids []string
	for _, s := range resp.Suggestions {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{signals.HeroUpgrade, signals.AddTrust}, ids)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/pages/suggestions?path=/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func mutationRequestFor(path, suggestion, token string) *http.Request {
	body := `{"path":"` + path + `","suggestion":"` + suggestion + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/pages/mutations", strings.NewReader(body))
	if token != "" {
		req.Header.Set(adminHeader, token)
	}
	return req
}

func TestMutationAuth(t *testing.T) {
	disabled := newFixture(t, Options{})
	assert.Equal(t, http.StatusForbidden, disabled.do(mutationRequestFor("/", signals.HeroUpgrade, "x")).Code)

	f := newFixture(t, Options{AdminToken: "s3cret"})
	assert.Equal(t, http.StatusUnauthorized, f.do(mutationRequestFor("/", signals.HeroUpgrade, "")).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(mutationRequestFor("/", signals.HeroUpgrade, "wrong")).Code)
}

func TestMutationApplies(t *testing.T) {
	f := newFixture(t, Options{AdminToken: "s3cret"})
	f.seed(t, bondiV1())

	rec := f.do(mutationRequestFor("/areas/coogee", signals.HeroUpgrade, "s3cret"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	page, src, err := f.resolver.Resolve(context.Background(), "/areas/coogee", "")
	require.NoError(t, err)
	assert.Equal(t, content.OriginRemote, src.Origin)
	assert.Equal(t, types.ComponentHeroMagic, page.Components["hero"].Type)

	// Applying it again has nothing left to change.
	rec = f.do(mutationRequestFor("/areas/coogee", signals.HeroUpgrade, "s3cret"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestMutationRejectsMockPages(t *testing.T) {
	f := newFixture(t, Options{AdminToken: "s3cret"})

	rec := f.do(mutationRequestFor("/areas/bondi", signals.HeroUpgrade, "s3cret"))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, Options{})

	rec := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "sheetsite_")
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7:4242"
	assert.Equal(t, "198.51.100.7", getClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.8")
	assert.Equal(t, "198.51.100.8", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", getClientIP(req))
}

func TestLimiterCleanup(t *testing.T) {
	l := newClientLimiter(1)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.True(t, l.Allow(req))
	assert.Equal(t, 0, l.cleanup(time.Hour))
	assert.Equal(t, 1, l.cleanup(-time.Second))
}

func TestPathOf(t *testing.T) {
	assert.Equal(t, "/areas/bondi", pathOf("https://example.com/areas/bondi"))
	assert.Equal(t, "/", pathOf("https://example.com"))
	assert.Equal(t, "/x", pathOf("/x"))
}
