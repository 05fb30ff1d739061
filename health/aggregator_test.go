package health

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/ledgerops/observe"
)

func static(name string, r Result) Checker {
	return Func(name, func(context.Context) Result { return r })
}

// switchable returns whatever result was last stored.
type switchable struct {
	name string
	mu   sync.Mutex
	res  Result
}

func (s *switchable) Name() string { return s.name }

func (s *switchable) Check(context.Context) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.res
}

func (s *switchable) set(r Result) {
	s.mu.Lock()
	s.res = r
	s.mu.Unlock()
}

func TestNewAggregator_Defaults(t *testing.T) {
	a := NewAggregator()
	if a.config.Timeout != 10*time.Second || !a.config.Parallel {
		t.Errorf("config = %+v, want 10s parallel", a.config)
	}

	a = NewAggregator(AggregatorConfig{Timeout: -1})
	if a.config.Timeout != 10*time.Second || a.config.Parallel {
		t.Errorf("config = %+v, want default timeout, sequential", a.config)
	}
}

func TestAggregator_Registration(t *testing.T) {
	a := NewAggregator()
	a.Register("resilience", static("resilience", Healthy("closed")))
	a.Register("ledger", static("ledger", Healthy("reachable")))
	a.Register("cache", static("cache", Healthy("warm")))
	a.Register("ledger", static("ledger", Degraded("slow")))

	if got, want := a.Names(), []string{"resilience", "ledger", "cache"}; !slices.Equal(got, want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	res, err := a.Check(context.Background(), "ledger")
	if err != nil || res.Status != StatusDegraded {
		t.Errorf("replaced check = %v, %v, want degraded", res.Status, err)
	}

	if !a.Unregister("ledger") {
		t.Error("Unregister(ledger) = false")
	}
	if a.Unregister("ledger") {
		t.Error("second Unregister(ledger) = true")
	}
	if got, want := a.Names(), []string{"resilience", "cache"}; !slices.Equal(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestAggregator_CheckNotFound(t *testing.T) {
	_, err := NewAggregator().Check(context.Background(), "fabric")
	if !errors.Is(err, ErrCheckerNotFound) {
		t.Fatalf("Check() error = %v, want ErrCheckerNotFound", err)
	}
	if !strings.Contains(err.Error(), "fabric") {
		t.Errorf("error %q does not name the check", err)
	}
}

func TestAggregator_Run(t *testing.T) {
	tests := []struct {
		name     string
		required []Result
		optional []Result
		want     Status
	}{
		{"empty", nil, nil, StatusHealthy},
		{"all healthy", []Result{Healthy("a"), Healthy("b")}, nil, StatusHealthy},
		{"one degraded", []Result{Healthy("a"), Degraded("b")}, nil, StatusDegraded},
		{"one unhealthy", []Result{Degraded("a"), Unhealthy("b", nil)}, nil, StatusUnhealthy},
		{"optional unhealthy degrades", []Result{Healthy("a")}, []Result{Unhealthy("c", nil)}, StatusDegraded},
		{"optional degraded", []Result{Healthy("a")}, []Result{Degraded("c")}, StatusDegraded},
		{"required wins over optional", []Result{Unhealthy("a", nil)}, []Result{Healthy("c")}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAggregator()
			for i, r := range tt.required {
				name := "required-" + string(rune('a'+i))
				a.Register(name, static(name, r))
			}
			for i, r := range tt.optional {
				name := "optional-" + string(rune('a'+i))
				a.Register(name, static(name, r), Optional())
			}

			report := a.Run(context.Background())
			if report.Status != tt.want {
				t.Errorf("Status = %v, want %v", report.Status, tt.want)
			}
			if len(report.Checks) != len(tt.required)+len(tt.optional) {
				t.Errorf("Checks = %d entries", len(report.Checks))
			}
			for name, opt := range report.Optional {
				if opt != strings.HasPrefix(name, "optional-") {
					t.Errorf("Optional[%s] = %v", name, opt)
				}
			}
		})
	}
}

func TestReport_Failing(t *testing.T) {
	r := Report{Checks: map[string]Result{
		"resilience": Degraded("circuit recovering: ledger"),
		"ledger":     Unhealthy("ledger unreachable", nil),
		"cache":      Healthy("warm"),
	}}
	if got, want := r.Failing(), []string{"ledger", "resilience"}; !slices.Equal(got, want) {
		t.Errorf("Failing() = %v, want %v", got, want)
	}
}

func TestAggregator_RunFillsTiming(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	a := NewAggregator(AggregatorConfig{Now: func() time.Time { return at }})
	a.Register("ledger", static("ledger", Healthy("reachable")))

	report := a.Run(context.Background())
	if !report.CheckedAt.Equal(at) {
		t.Errorf("CheckedAt = %v, want %v", report.CheckedAt, at)
	}
	if got := report.Checks["ledger"].CheckedAt; !got.Equal(at) {
		t.Errorf("check CheckedAt = %v, want %v", got, at)
	}
}

func TestAggregator_RunParallel(t *testing.T) {
	const n = 4
	var running, peak atomic.Int32
	slow := func(context.Context) Result {
		cur := running.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		running.Add(-1)
		return Healthy("done")
	}

	for _, tt := range []struct {
		name     string
		cfg      AggregatorConfig
		wantPeak int32
	}{
		{"sequential", AggregatorConfig{}, 1},
		{"unbounded", AggregatorConfig{Parallel: true}, n},
		{"limited", AggregatorConfig{Parallel: true, MaxConcurrent: 2}, 2},
	} {
		t.Run(tt.name, func(t *testing.T) {
			running.Store(0)
			peak.Store(0)
			a := NewAggregator(tt.cfg)
			for i := 0; i < n; i++ {
				name := string(rune('a' + i))
				a.Register(name, Func(name, slow))
			}
			a.Run(context.Background())
			if got := peak.Load(); got != tt.wantPeak {
				t.Errorf("peak concurrency = %d, want %d", got, tt.wantPeak)
			}
		})
	}
}

func TestAggregator_Timeout(t *testing.T) {
	a := NewAggregator(AggregatorConfig{Timeout: 20 * time.Millisecond, Parallel: true})
	a.Register("ledger", Func("ledger", func(ctx context.Context) Result {
		time.Sleep(time.Second)
		return Healthy("too late")
	}))
	a.Register("resilience", static("resilience", Healthy("closed")))

	start := time.Now()
	report := a.Run(context.Background())
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Run took %v, want about the timeout", elapsed)
	}

	res := report.Checks["ledger"]
	if res.Status != StatusUnhealthy || !errors.Is(res.Err, ErrCheckTimeout) {
		t.Errorf("ledger = %+v, want unhealthy timeout", res)
	}
	if report.Checks["resilience"].Status != StatusHealthy {
		t.Errorf("resilience = %+v, want healthy", report.Checks["resilience"])
	}
}

func TestAggregator_RecoversPanics(t *testing.T) {
	a := NewAggregator()
	a.Register("broken", Func("broken", func(context.Context) Result {
		panic("nil store")
	}))

	res, err := a.Check(context.Background(), "broken")
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusUnhealthy || !errors.Is(res.Err, ErrCheckPanicked) {
		t.Errorf("Check() = %+v, want unhealthy panic", res)
	}
	if !strings.Contains(res.Err.Error(), "nil store") {
		t.Errorf("Err = %v, want panic value", res.Err)
	}
}

func TestAggregator_LogsStatusChanges(t *testing.T) {
	var buf bytes.Buffer
	a := NewAggregator(AggregatorConfig{Logger: observe.NewLoggerWithWriter("info", &buf)})
	ledger := &switchable{name: "ledger", res: Healthy("reachable")}
	a.Register("ledger", ledger)

	ctx := context.Background()
	a.Run(ctx) // first healthy run: silent
	ledger.set(Unhealthy("ledger unreachable", errors.New("disk I/O error")))
	a.Run(ctx) // healthy -> unhealthy
	a.Run(ctx) // unchanged: silent
	ledger.set(Healthy("reachable"))
	a.Run(ctx) // unhealthy -> healthy

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var e map[string]any
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		entries = append(entries, e)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d log entries, want 2:\n%s", len(entries), buf.String())
	}

	down, up := entries[0], entries[1]
	if down["msg"] != "health check status changed" || down["level"] != "warn" ||
		down["previous"] != "healthy" || down["status"] != "unhealthy" || down["error"] != "disk I/O error" {
		t.Errorf("down entry = %v", down)
	}
	if up["msg"] != "health check recovered" || up["level"] != "info" || up["previous"] != "unhealthy" {
		t.Errorf("up entry = %v", up)
	}
}

func TestAggregator_Checker(t *testing.T) {
	a := NewAggregator()
	a.Register("ledger", static("ledger", Healthy("reachable")))
	a.Register("cache", static("cache", Unhealthy("evicting", nil)), Optional())

	c := a.Checker()
	if c.Name() != "aggregate" {
		t.Errorf("Name() = %q", c.Name())
	}
	res := c.Check(context.Background())
	if res.Status != StatusDegraded {
		t.Errorf("Status = %v, want degraded", res.Status)
	}
	if res.Message != "1 of 2 checks not healthy" {
		t.Errorf("Message = %q", res.Message)
	}
	if res.Details["ledger"] != "healthy" || res.Details["cache"] != "unhealthy" {
		t.Errorf("Details = %v", res.Details)
	}
}
