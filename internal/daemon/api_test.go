package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"slices"
	"strconv"
	"testing"
	"time"

	"cdrip/internal/logs"
	"cdrip/internal/store"
	"cdrip/internal/testsupport"
)

func serve(t *testing.T, h http.Handler, method, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func seedSession(t *testing.T, st *store.Store) int64 {
	t.Helper()
	ctx := context.Background()
	testsupport.NewSession(t, st, "older", time.Now().Add(-2*time.Hour))
	testsupport.NewSession(t, st, "newer", time.Now().Add(-time.Hour))
	run := &store.Run{
		SessionID:      "newer",
		Track:          1,
		Outcome:        "success",
		Message:        "Ripping OK (Track 1).",
		SectorsPlanned: 10,
		SectorsRead:    10,
	}
	if err := st.RecordRun(ctx, run, []string{"Start reading track 1 with 10 sectors", "Reading finished"}); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	return run.ID
}

func TestAPIStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _, _ := newTestDaemon(t, cfg)

	w := serve(t, d.api.handler, http.MethodGet, "/api/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
	status := decode[Status](t, w)
	if status.Running || status.Device != cfg.Drive.Device || status.Rip.Running {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.DatabasePath != cfg.DatabasePath() {
		t.Fatalf("database path = %q", status.DatabasePath)
	}
}

func TestAPISessions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, st, _ := newTestDaemon(t, cfg)
	seedSession(t, st)

	w := serve(t, d.api.handler, http.MethodGet, "/api/sessions", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d", w.Code)
	}
	list := decode[SessionListResponse](t, w)
	if len(list.Sessions) != 2 || list.Sessions[0].ID != "newer" {
		t.Fatalf("unexpected sessions: %#v", list.Sessions)
	}

	w = serve(t, d.api.handler, http.MethodGet, "/api/sessions?limit=1", nil)
	if got := decode[SessionListResponse](t, w); len(got.Sessions) != 1 {
		t.Fatalf("limit ignored: %d sessions", len(got.Sessions))
	}

	w = serve(t, d.api.handler, http.MethodGet, "/api/sessions?limit=nope", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid limit status = %d", w.Code)
	}
}

func TestAPISessionDetail(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, st, _ := newTestDaemon(t, cfg)
	seedSession(t, st)

	w := serve(t, d.api.handler, http.MethodGet, "/api/sessions/newer", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d", w.Code)
	}
	detail := decode[SessionResponse](t, w)
	if detail.Session.ID != "newer" || len(detail.Runs) != 1 || detail.Runs[0].Message != "Ripping OK (Track 1)." {
		t.Fatalf("unexpected detail: %#v", detail)
	}

	w = serve(t, d.api.handler, http.MethodGet, "/api/sessions/older", nil)
	if got := decode[SessionResponse](t, w); got.Runs == nil || len(got.Runs) != 0 {
		t.Fatalf("runs should be an empty list: %#v", got.Runs)
	}

	w = serve(t, d.api.handler, http.MethodGet, "/api/sessions/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing session status = %d", w.Code)
	}
}

func TestAPIProtocol(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, st, _ := newTestDaemon(t, cfg)
	runID := seedSession(t, st)

	tests := []struct {
		name   string
		target string
		code   int
	}{
		{"existing run", "/api/runs/" + strconv.FormatInt(runID, 10) + "/protocol", http.StatusOK},
		{"missing run", "/api/runs/9999/protocol", http.StatusNotFound},
		{"invalid id", "/api/runs/abc/protocol", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, d.api.handler, http.MethodGet, tt.target, nil)
			if w.Code != tt.code {
				t.Fatalf("status code = %d, want %d", w.Code, tt.code)
			}
		})
	}

	w := serve(t, d.api.handler, http.MethodGet, "/api/runs/"+strconv.FormatInt(runID, 10)+"/protocol", nil)
	resp := decode[ProtocolResponse](t, w)
	if resp.RunID != runID || len(resp.Lines) != 2 || resp.Lines[1] != "Reading finished" {
		t.Fatalf("unexpected protocol: %#v", resp)
	}
}

func TestAPILogs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _, _ := newTestDaemon(t, cfg)
	if err := os.WriteFile(cfg.LogFilePath(), []byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	w := serve(t, d.api.handler, http.MethodGet, "/api/logs?limit=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d: %s", w.Code, w.Body.String())
	}
	chunk := decode[logs.Chunk](t, w)
	if !slices.Equal(chunk.Lines, []string{"two", "three"}) || chunk.Offset != 14 {
		t.Fatalf("unexpected chunk: %+v", chunk)
	}

	w = serve(t, d.api.handler, http.MethodGet, "/api/logs?offset=4", nil)
	chunk = decode[logs.Chunk](t, w)
	if !slices.Equal(chunk.Lines, []string{"two", "three"}) {
		t.Fatalf("unexpected lines from offset: %+v", chunk.Lines)
	}

	for _, query := range []string{"offset=x", "limit=0", "wait=-1"} {
		w = serve(t, d.api.handler, http.MethodGet, "/api/logs?"+query, nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status code = %d", query, w.Code)
		}
	}
}

func TestAPICancelWhenIdle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _, _ := newTestDaemon(t, cfg)

	w := serve(t, d.api.handler, http.MethodPost, "/api/rip/cancel", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("status code = %d, want 409", w.Code)
	}
	w = serve(t, d.api.handler, http.MethodGet, "/api/rip/cancel", nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET cancel status = %d, want 405", w.Code)
	}
}

func TestAPIBearerToken(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Daemon.APIToken = "secret"
	d, _, _ := newTestDaemon(t, cfg)

	if w := serve(t, d.api.handler, http.MethodGet, "/api/status", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token status = %d", w.Code)
	}
	wrong := http.Header{"Authorization": {"Bearer nope"}}
	if w := serve(t, d.api.handler, http.MethodGet, "/api/status", wrong); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token status = %d", w.Code)
	}
	right := http.Header{"Authorization": {"Bearer secret"}}
	if w := serve(t, d.api.handler, http.MethodGet, "/api/status", right); w.Code != http.StatusOK {
		t.Fatalf("valid token status = %d", w.Code)
	}
}

func TestAPIServerDisabledWithoutBind(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Daemon.APIBind = ""
	d, _, _ := newTestDaemon(t, cfg)
	if d.api != nil {
		t.Fatal("expected no api server without a bind address")
	}
	if err := d.api.start(context.Background()); err != nil {
		t.Fatalf("nil server start: %v", err)
	}
	d.api.stop()
}

func TestAPIServesOverTCP(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _, _ := newTestDaemon(t, cfg)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	resp, err := http.Get("http://" + d.api.addr() + "/api/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	defer resp.Body.Close()
	var status Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status.Running || status.PID == 0 {
		t.Fatalf("unexpected status: %+v", status)
	}
}
