package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/goleak"
	"golang.org/x/crypto/bcrypt"

	"github.com/mohammad-safakhou/mindloop/config"
	"github.com/mohammad-safakhou/mindloop/internal/agents"
	"github.com/mohammad-safakhou/mindloop/internal/archive"
	"github.com/mohammad-safakhou/mindloop/internal/catalog"
	"github.com/mohammad-safakhou/mindloop/internal/events"
	"github.com/mohammad-safakhou/mindloop/internal/mindloop"
	"github.com/mohammad-safakhou/mindloop/internal/store"
	"github.com/mohammad-safakhou/mindloop/models"
	"github.com/mohammad-safakhou/mindloop/provider/openrouter"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("github.com/blevesearch/bleve/index.AnalysisWorker"),
	)
}

type echoCompleter struct{}

func (echoCompleter) Complete(_ context.Context, _ string, req openrouter.Request) (openrouter.Response, error) {
	return openrouter.Response{Content: "[REASONING] because\n[ESSENCE] idea from " + req.Model, Model: req.Model}, nil
}

func newTestServer(t *testing.T, cfg config.ServerConfig) (*Server, *mindloop.Orchestrator) {
	t.Helper()
	reg := agents.NewRegistry()
	for _, a := range reg.List() {
		if a.IsWorker() {
			if err := reg.SetActive(a.Role, a.Role == "geometer"); err != nil {
				t.Fatalf("SetActive(%s): %v", a.Role, err)
			}
		}
	}
	arc, err := archive.New()
	if err != nil {
		t.Fatalf("archive.New: %v", err)
	}
	t.Cleanup(func() { _ = arc.Close() })

	bus := events.NewBroadcaster()
	t.Cleanup(bus.Close)
	orch, err := mindloop.New(mindloop.Options{
		Completer: echoCompleter{},
		Registry:  reg,
		Catalog:   catalog.New(),
		Archive:   arc,
		Store:     store.NewBlobStore(store.NewMemory()),
		Events:    bus,
		APIKey:    "test-key",
	})
	if err != nil {
		t.Fatalf("mindloop.New: %v", err)
	}
	t.Cleanup(orch.Close)

	srv, err := New(cfg, Deps{
		Orch: orch,
		Bus:  bus,
		Seed: func(_ context.Context, url string) (string, error) {
			if strings.Contains(url, "broken") {
				return "", errors.New("no content")
			}
			return "Seeded page: tides", nil
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv, orch
}

func do(t *testing.T, s *Server, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestStartCycleRunsToCompletion(t *testing.T) {
	s, orch := newTestServer(t, config.ServerConfig{})

	rec := do(t, s, http.MethodPost, "/api/cycles", `{"topic":"entropy"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	var started models.Cycle
	decode(t, rec, &started)
	if started.Topic != "entropy" || started.Number != 1 {
		t.Fatalf("unexpected cycle: %+v", started)
	}
	orch.Wait()

	rec = do(t, s, http.MethodGet, "/api/state", "")
	var st mindloop.State
	decode(t, rec, &st)
	if st.Running || st.Current == nil || !st.Current.IsComplete {
		t.Fatalf("cycle did not complete: %+v", st)
	}

	rec = do(t, s, http.MethodGet, "/api/history", "")
	var rows []CycleSummary
	decode(t, rec, &rows)
	if len(rows) != 1 || rows[0].Status != models.StatusCompleted || rows[0].Thoughts != 3 {
		t.Fatalf("unexpected history: %+v", rows)
	}
}

func TestStartCycleSeedsTopicFromURL(t *testing.T) {
	s, orch := newTestServer(t, config.ServerConfig{})

	rec := do(t, s, http.MethodPost, "/api/cycles", `{"url":"https://example.com/a"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	var c models.Cycle
	decode(t, rec, &c)
	if c.Topic != "Seeded page: tides" {
		t.Fatalf("unexpected topic %q", c.Topic)
	}
	orch.Wait()

	rec = do(t, s, http.MethodPost, "/api/cycles", `{"url":"https://example.com/broken"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	s, _ := newTestServer(t, config.ServerConfig{})

	cases := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodPost, "/api/cycles", `{"topic":"  "}`, http.StatusBadRequest},
		{http.MethodPost, "/api/cycles/pause", "", http.StatusConflict},
		{http.MethodPost, "/api/cycles/comments", `{"text":"hi"}`, http.StatusConflict},
		{http.MethodGet, "/api/history/nope", "", http.StatusNotFound},
		{http.MethodGet, "/api/history/search", "", http.StatusBadRequest},
		{http.MethodPut, "/api/agents/geometer", `{"model":"no/such-model"}`, http.StatusBadRequest},
		{http.MethodDelete, "/api/agents/" + agents.Coordinator, "", http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := do(t, s, tc.method, tc.path, tc.body)
		if rec.Code != tc.want {
			t.Fatalf("%s %s: expected %d got %d: %s", tc.method, tc.path, tc.want, rec.Code, rec.Body.String())
		}
		var he HTTPError
		decode(t, rec, &he)
		if he.Error == "" {
			t.Fatalf("%s %s: empty error envelope", tc.method, tc.path)
		}
	}
}

func TestStatusOfCompletionError(t *testing.T) {
	err := &openrouter.CompletionError{Kind: openrouter.KindRateLimit, Model: "m", Attempts: 3}
	if code, _ := statusOf(err); code != http.StatusBadGateway {
		t.Fatalf("expected 502 got %d", code)
	}
	if code, _ := statusOf(errors.New("boom")); code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", code)
	}
}

func TestHistoryExportAndSearch(t *testing.T) {
	s, orch := newTestServer(t, config.ServerConfig{})
	rec := do(t, s, http.MethodPost, "/api/cycles", `{"topic":"tidal locking"}`)
	var c models.Cycle
	decode(t, rec, &c)
	orch.Wait()

	rec = do(t, s, http.MethodGet, "/api/history/"+c.ID+"/export?format=md", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "tidal locking") {
		t.Fatalf("export misses topic: %s", rec.Body.String())
	}
	if cd := rec.Header().Get(echo.HeaderContentDisposition); !strings.Contains(cd, "cycle-1.md") {
		t.Fatalf("unexpected disposition %q", cd)
	}

	rec = do(t, s, http.MethodGet, "/api/history/export?format=pdf", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown format got %d", rec.Code)
	}

	rec = do(t, s, http.MethodGet, "/api/history/search?q=tidal", "")
	var res SearchResponse
	decode(t, rec, &res)
	if len(res.Hits) != 1 || res.Hits[0].ID != c.ID {
		t.Fatalf("unexpected hits: %+v", res.Hits)
	}
}

func TestAgentAndSettingsUpdates(t *testing.T) {
	s, orch := newTestServer(t, config.ServerConfig{})

	rec := do(t, s, http.MethodPut, "/api/agents/geometer", `{"is_active":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	for _, a := range orch.Agents() {
		if a.Role == "geometer" && a.IsActive {
			t.Fatalf("geometer still active")
		}
	}

	rec = do(t, s, http.MethodPut, "/api/settings", `{"inter_agent_delay_ms":1500,"auto_advance":true,"continuous_mode":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var st mindloop.State
	decode(t, rec, &st)
	if st.InterAgentDelayMs != 1500 || !st.AutoAdvance || !st.ContinuousMode {
		t.Fatalf("settings not applied: %+v", st)
	}

	rec = do(t, s, http.MethodGet, "/api/models", "")
	var mr ModelsResponse
	decode(t, rec, &mr)
	if len(mr.Groups) == 0 {
		t.Fatalf("expected model groups")
	}
}

func TestAuthProtectsAPI(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	s, _ := newTestServer(t, config.ServerConfig{JWTSecret: "secret", AdminPasswordHash: string(hash)})

	if rec := do(t, s, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz expected 200 got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/state", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/auth/login", `{"password":"wrong"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password got %d", rec.Code)
	}

	rec := do(t, s, http.MethodPost, "/api/auth/login", `{"password":"hunter2"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var tok TokenResponse
	decode(t, rec, &tok)
	if tok.Token == "" {
		t.Fatalf("empty token")
	}
	if rec := do(t, s, http.MethodGet, "/api/state", "", echo.HeaderAuthorization, "Bearer "+tok.Token); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/state?token="+tok.Token, ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with query token got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/state", "", echo.HeaderAuthorization, "Bearer nope"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token got %d", rec.Code)
	}
}

func TestEventsStreamUntilClientLeaves(t *testing.T) {
	s, _ := newTestServer(t, config.ServerConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Echo.ServeHTTP(rec, req)
	}()
	cancel()
	<-done
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
}
