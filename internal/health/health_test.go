package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func probeOK(_ context.Context) error { return nil }

func probeFail(msg string) func(context.Context) error {
	return func(_ context.Context) error { return errors.New(msg) }
}

func decodeReport(t *testing.T, rec *httptest.ResponseRecorder) probeReport {
	t.Helper()
	var body probeReport
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode probe response: %v", err)
	}
	return body
}

func TestHealthz_AlwaysUp(t *testing.T) {
	h := New()

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if body := decodeReport(t, rec); body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestReadyz_AllProbesPass(t *testing.T) {
	h := New(
		Checker{Name: "lead-store", Check: probeOK},
		Checker{Name: "stt-provider", Check: probeOK},
		Checker{Name: "llm-provider", Check: probeOK},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := decodeReport(t, rec)
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
	for _, name := range []string{"lead-store", "stt-provider", "llm-provider"} {
		if body.Checks[name] != "ok" {
			t.Errorf("check %q = %q, want ok", name, body.Checks[name])
		}
	}
}

func TestReadyz_FailingProbeReports503(t *testing.T) {
	h := New(
		Checker{Name: "lead-store", Check: probeFail("pgx: connection refused")},
		Checker{Name: "stt-provider", Check: probeOK},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	body := decodeReport(t, rec)
	if body.Status != "fail" {
		t.Errorf("status = %q, want fail", body.Status)
	}
	if body.Checks["lead-store"] != "fail: pgx: connection refused" {
		t.Errorf("lead-store check = %q", body.Checks["lead-store"])
	}
	if body.Checks["stt-provider"] != "ok" {
		t.Errorf("stt-provider check = %q, want ok", body.Checks["stt-provider"])
	}
}

func TestReadyz_NoProbesMeansReady(t *testing.T) {
	h := New()

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if body := decodeReport(t, rec); body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
}

func TestReadyz_EveryProbeFailing(t *testing.T) {
	h := New(
		Checker{Name: "lead-store", Check: probeFail("dial timeout")},
		Checker{Name: "stt-provider", Check: probeFail("deepgram: 401 unauthorized")},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	body := decodeReport(t, rec)
	if body.Checks["lead-store"] != "fail: dial timeout" {
		t.Errorf("lead-store check = %q", body.Checks["lead-store"])
	}
	if body.Checks["stt-provider"] != "fail: deepgram: 401 unauthorized" {
		t.Errorf("stt-provider check = %q", body.Checks["stt-provider"])
	}
}

func TestRegister_MountsBothRoutes(t *testing.T) {
	h := New(Checker{Name: "lead-store", Check: probeOK})

	mux := http.NewServeMux()
	h.Register(mux)

	for _, path := range []string{"/healthz", "/readyz"} {
		t.Run(path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
			}
		})
	}
}

func TestReadyz_CancelledRequestFailsSlowProbe(t *testing.T) {
	h := New(Checker{Name: "stt-provider", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil).WithContext(ctx))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
