// Package health serves the capture server's liveness and readiness probes.
//
// /healthz answers 200 whenever the process can serve HTTP at all. /readyz
// runs the registered probes (lead store connectivity, speech and extraction
// provider reachability) and answers 503 until every one passes, so a
// fronting proxy does not route dictation traffic to a half-started server.
// Both respond with a JSON body carrying an overall "status" plus a per-probe
// "checks" map.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// probeTimeout caps a single readiness probe. A hung provider ping must not
// stall the whole /readyz response.
const probeTimeout = 5 * time.Second

// Checker is one named readiness probe, e.g. "lead-store" or "stt-provider".
// Check returns nil when the dependency is usable and must honour context
// cancellation.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

type probeReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler answers the probe endpoints. The probe list is fixed at
// construction; Handler itself is stateless and safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New builds a Handler over the given probes. /readyz runs them in the order
// given.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...)}
}

// Healthz is the liveness probe. Reaching it at all is the signal.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, probeReport{Status: "ok"})
}

// Readyz runs every probe under a [probeTimeout] deadline and reports 503
// with the failing probes named as soon as any of them is unhealthy.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	report := probeReport{
		Status: "ok",
		Checks: make(map[string]string, len(h.checkers)),
	}
	code := http.StatusOK

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			report.Checks[c.Name] = "fail: " + err.Error()
			report.Status = "fail"
			code = http.StatusServiceUnavailable
			continue
		}
		report.Checks[c.Name] = "ok"
	}

	respondJSON(w, code, report)
}

// Register mounts both probe routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
