package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/jonwraymond/ledgerops/health"
	"github.com/jonwraymond/ledgerops/resilience"
)

type ledgerDB struct {
	err   error
	delay time.Duration
}

func (db ledgerDB) Ping(ctx context.Context) error {
	time.Sleep(db.delay)
	return db.err
}

func ExampleNewPingChecker() {
	checker := health.NewPingChecker("ledger", ledgerDB{})
	result := checker.Check(context.Background())

	fmt.Println("Checker name:", checker.Name())
	fmt.Println("Status:", result.Status)
	fmt.Println("Message:", result.Message)
	// Output:
	// Checker name: ledger
	// Status: healthy
	// Message: ledger reachable
}

func ExampleNewResilienceChecker() {
	reg := resilience.NewRegistry()
	cb := reg.CircuitBreaker("ledger", resilience.CircuitBreakerConfig{FailureThreshold: 1})
	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("endorser unreachable")
	})

	result := health.NewResilienceChecker(reg).Check(context.Background())

	fmt.Println("Status:", result.Status)
	fmt.Println("Message:", result.Message)
	// Output:
	// Status: unhealthy
	// Message: circuit open: ledger
}

func ExampleFunc() {
	checker := health.Func("graph", func(ctx context.Context) health.Result {
		return health.Healthy("status graph loaded")
	})

	result := checker.Check(context.Background())

	fmt.Println("Checker name:", checker.Name())
	fmt.Println("Status:", result.Status)
	fmt.Println("Message:", result.Message)
	// Output:
	// Checker name: graph
	// Status: healthy
	// Message: status graph loaded
}

func ExampleWithSlowThreshold() {
	slow := health.NewPingChecker("ledger", ledgerDB{delay: 20 * time.Millisecond},
		health.WithSlowThreshold(time.Millisecond))

	result := slow.Check(context.Background())

	fmt.Println("Status:", result.Status)
	fmt.Println("Message:", result.Message)
	// Output:
	// Status: degraded
	// Message: ledger responding slowly
}

func ExampleUnhealthy() {
	result := health.Unhealthy("ledger unreachable", errors.New("connection refused"))

	fmt.Println("Status:", result.Status)
	fmt.Println("Message:", result.Message)
	fmt.Println("Has error:", result.Err != nil)
	// Output:
	// Status: unhealthy
	// Message: ledger unreachable
	// Has error: true
}

func ExampleResult_WithDetails() {
	result := health.Healthy("ledger reachable").WithDetails(map[string]any{
		"records": 1234,
	})

	fmt.Println("Status:", result.Status)
	fmt.Println("Records:", result.Details["records"])
	// Output:
	// Status: healthy
	// Records: 1234
}

func ExampleStatus_Worse() {
	fmt.Println(health.StatusHealthy.Worse(health.StatusDegraded))
	fmt.Println(health.StatusUnhealthy.Worse(health.StatusDegraded))
	// Output:
	// degraded
	// unhealthy
}

func ExampleAggregator_Run() {
	agg := health.NewAggregator()
	agg.Register("ledger", health.NewPingChecker("ledger", ledgerDB{}))
	agg.Register("resilience", health.NewResilienceChecker(resilience.NewRegistry()))
	agg.Register("cache", health.Func("cache", func(context.Context) health.Result {
		return health.Unhealthy("cache closed", nil)
	}), health.Optional())

	report := agg.Run(context.Background())

	fmt.Println("Checks:", agg.Names())
	fmt.Println("ledger:", report.Checks["ledger"].Status)
	fmt.Println("cache:", report.Checks["cache"].Status)
	fmt.Println("failing:", report.Failing())
	fmt.Println("overall:", report.Status)
	// Output:
	// Checks: [ledger resilience cache]
	// ledger: healthy
	// cache: unhealthy
	// failing: [cache]
	// overall: degraded
}

func ExampleAggregator_Check() {
	agg := health.NewAggregator()
	agg.Register("ledger", health.NewPingChecker("ledger", ledgerDB{err: errors.New("database is closed")}))

	result, err := agg.Check(context.Background(), "ledger")
	if err == nil {
		fmt.Println("Status:", result.Status)
		fmt.Println("Error:", result.Err)
	}

	_, err = agg.Check(context.Background(), "unknown")
	fmt.Println("Unknown checker error:", errors.Is(err, health.ErrCheckerNotFound))
	// Output:
	// Status: unhealthy
	// Error: database is closed
	// Unknown checker error: true
}

func ExampleAggregator_Checker() {
	agg := health.NewAggregator(health.AggregatorConfig{
		Timeout:  5 * time.Second,
		Parallel: false,
	})
	agg.Register("ledger", health.NewPingChecker("ledger", ledgerDB{}))

	checker := agg.Checker()
	result := checker.Check(context.Background())

	fmt.Println("Checker name:", checker.Name())
	fmt.Println("Message:", result.Message)
	// Output:
	// Checker name: aggregate
	// Message: all checks passed
}

func ExampleReadinessHandler() {
	agg := health.NewAggregator()
	agg.Register("ledger", health.NewPingChecker("ledger", ledgerDB{err: errors.New("database is closed")}))

	rec := httptest.NewRecorder()
	health.ReadinessHandler(agg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	fmt.Println("Status code:", rec.Code)
	fmt.Println("Body:", rec.Body.String())
	// Output:
	// Status code: 503
	// Body: UNHEALTHY: ledger
}

func ExampleDetailedHandler() {
	agg := health.NewAggregator()
	agg.Register("ledger", health.NewPingChecker("ledger", ledgerDB{}))

	rec := httptest.NewRecorder()
	health.DetailedHandler(agg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var response health.HealthResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &response)

	fmt.Println("Status code:", rec.Code)
	fmt.Println("Overall status:", response.Status)
	fmt.Println("ledger:", response.Checks["ledger"].Message)
	// Output:
	// Status code: 200
	// Overall status: healthy
	// ledger: ledger reachable
}

func ExampleStatsHandler() {
	reg := resilience.NewRegistry()
	reg.CircuitBreaker("ledger")

	rec := httptest.NewRecorder()
	health.StatsHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/resilience", nil))

	var response health.StatsResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &response)

	fmt.Println("Status code:", rec.Code)
	fmt.Println("Breakers:", len(response.CircuitBreakers))
	// Output:
	// Status code: 200
	// Breakers: 1
}

func ExampleRegisterResilienceHandlers() {
	reg := resilience.NewRegistry()
	agg := health.NewAggregator()
	agg.Register("resilience", health.NewResilienceChecker(reg))

	// Only operators holding the token may reset the breakers.
	operatorsOnly := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer ops-token" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}

	mux := http.NewServeMux()
	health.RegisterHandlers(mux, agg)
	health.RegisterResilienceHandlers(mux, reg, operatorsOnly)

	requests := []struct{ method, path, token string }{
		{http.MethodGet, "/healthz", ""},
		{http.MethodGet, "/readyz", ""},
		{http.MethodGet, "/health", ""},
		{http.MethodGet, "/health/resilience", ""},
		{http.MethodGet, "/resilience", ""},
		{http.MethodPost, "/resilience/reset", ""},
		{http.MethodPost, "/resilience/reset", "ops-token"},
	}
	for _, r := range requests {
		req := httptest.NewRequest(r.method, r.path, nil)
		if r.token != "" {
			req.Header.Set("Authorization", "Bearer "+r.token)
		}
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		fmt.Printf("%s %s: %d\n", r.method, r.path, rec.Code)
	}
	// Output:
	// GET /healthz: 200
	// GET /readyz: 200
	// GET /health: 200
	// GET /health/resilience: 200
	// GET /resilience: 200
	// POST /resilience/reset: 401
	// POST /resilience/reset: 200
}
