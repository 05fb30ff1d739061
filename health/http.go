package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jonwraymond/ledgerops/resilience"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string                   `json:"status"`
	Timestamp string                   `json:"timestamp"`
	Failing   []string                 `json:"failing,omitempty"`
	Checks    map[string]CheckResponse `json:"checks,omitempty"`
}

// CheckResponse is one check in a HealthResponse, and the body of
// GET /health/{check}.
type CheckResponse struct {
	Status   string         `json:"status"`
	Message  string         `json:"message,omitempty"`
	Optional bool           `json:"optional,omitempty"`
	Duration string         `json:"duration,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
	Error    string         `json:"error,omitempty"`
}

func checkResponse(res Result, optional bool) CheckResponse {
	out := CheckResponse{
		Status:   res.Status.String(),
		Message:  res.Message,
		Optional: optional,
		Details:  res.Details,
	}
	if res.Duration > 0 {
		out.Duration = res.Duration.String()
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}

// StatsResponse is the body of GET /resilience.
type StatsResponse struct {
	Timestamp string `json:"timestamp"`
	resilience.Stats
}

// ResilienceSource is implemented by *resilience.Registry.
type ResilienceSource interface {
	StatsSource
	Resetter
}

// RegisterHandlers mounts the probes on mux:
//
//	GET /healthz          liveness, always 200 while serving
//	GET /readyz           503 while any required check is unhealthy
//	GET /health           every check as JSON
//	GET /health/{check}   one check as JSON
func RegisterHandlers(mux *http.ServeMux, agg *Aggregator) {
	mux.HandleFunc("GET /healthz", LivenessHandler())
	mux.HandleFunc("GET /readyz", ReadinessHandler(agg))
	mux.HandleFunc("GET /health", DetailedHandler(agg))
	mux.HandleFunc("GET /health/{check}", CheckHandler(agg))
}

// RegisterResilienceHandlers mounts GET /resilience on mux. Resetting
// defeats the breakers, so POST /resilience/reset is mounted only behind a
// guard, typically an authentication middleware; with a nil guard the
// route does not exist.
func RegisterResilienceHandlers(mux *http.ServeMux, source ResilienceSource, guard func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /resilience", StatsHandler(source))
	if guard != nil {
		mux.Handle("POST /resilience/reset", guard(ResetHandler(source)))
	}
}

func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeText(w, http.StatusOK, "OK")
	}
}

// ReadinessHandler answers OK, DEGRADED or UNHEALTHY followed by the
// failing check names. Degraded still counts as ready.
func ReadinessHandler(agg *Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := agg.Run(r.Context())
		body := strings.ToUpper(report.Status.String())
		if report.Status == StatusHealthy {
			body = "OK"
		}
		if failing := report.Failing(); len(failing) > 0 {
			body += ": " + strings.Join(failing, ", ")
		}
		writeText(w, httpStatus(report.Status), body)
	}
}

func DetailedHandler(agg *Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := agg.Run(r.Context())
		resp := HealthResponse{
			Status:    report.Status.String(),
			Timestamp: report.CheckedAt.UTC().Format(time.RFC3339),
			Failing:   report.Failing(),
			Checks:    make(map[string]CheckResponse, len(report.Checks)),
		}
		for name, res := range report.Checks {
			resp.Checks[name] = checkResponse(res, report.Optional[name])
		}
		writeJSON(w, httpStatus(report.Status), resp)
	}
}

// CheckHandler serves the check named by the {check} path value.
func CheckHandler(agg *Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := agg.Check(r.Context(), r.PathValue("check"))
		if errors.Is(err, ErrCheckerNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, httpStatus(res.Status), checkResponse(res, false))
	}
}

func StatsHandler(source StatsSource) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, StatsResponse{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Stats:     source.AllStats(),
		})
	}
}

// ResetHandler closes every breaker and refills every rate limiter.
func ResetHandler(resetter Resetter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resetter.ResetAll()
		writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
	}
}

func httpStatus(s Status) int {
	if s.severity() >= StatusUnhealthy.severity() {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

func writeText(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(body))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
