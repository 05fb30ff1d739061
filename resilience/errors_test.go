package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/jonwraymond/ledgerops/fault"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind fault.Kind
	}{
		{"ErrCircuitOpen", ErrCircuitOpen, fault.KindBreakerOpen},
		{"ErrMaxRetriesExceeded", ErrMaxRetriesExceeded, fault.KindTransient},
		{"ErrRateLimitExceeded", ErrRateLimitExceeded, fault.KindTransient},
		{"ErrBulkheadFull", ErrBulkheadFull, fault.KindTransient},
		{"ErrTimeout", ErrTimeout, fault.KindTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Fatalf("%s is nil", tt.name)
			}
			if tt.err.Error() == "" {
				t.Errorf("%s has empty message", tt.name)
			}
			if got := fault.KindOf(tt.err); got != tt.kind {
				t.Errorf("KindOf(%s) = %v, want %v", tt.name, got, tt.kind)
			}
		})
	}
}

func TestBreakerOpenError(t *testing.T) {
	retryAt := time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC)
	err := fmt.Errorf("submit: %w", &BreakerOpenError{Name: "ledger", RetryAt: retryAt})

	if !errors.Is(err, ErrCircuitOpen) {
		t.Error("BreakerOpenError should match ErrCircuitOpen")
	}
	if fault.KindOf(err) != fault.KindBreakerOpen {
		t.Errorf("KindOf = %v, want breaker_open", fault.KindOf(err))
	}
	if !strings.Contains(err.Error(), "2024-01-01T00:01:00Z") {
		t.Errorf("message %q should include the retry time", err)
	}

	halfOpen := &BreakerOpenError{Name: "ledger"}
	if strings.Contains(halfOpen.Error(), "until") {
		t.Errorf("message %q should not mention a retry time", halfOpen)
	}
}

func TestDependencyError(t *testing.T) {
	exhausted := &DependencyError{
		Dependency: "ledger",
		Label:      "UpdateStatus",
		Kind:       fault.KindTransient,
		Attempts:   4,
		Err:        errTransient,
	}
	if !errors.Is(exhausted, ErrMaxRetriesExceeded) {
		t.Error("exhausted retries should match ErrMaxRetriesExceeded")
	}
	if !errors.Is(exhausted, errTransient) {
		t.Error("DependencyError should unwrap to the last error")
	}
	if want := "ledger UpdateStatus: transient after 4 attempt(s): endorser unreachable"; exhausted.Error() != want {
		t.Errorf("Error() = %q, want %q", exhausted.Error(), want)
	}

	fatal := &DependencyError{Dependency: "ledger", Kind: fault.KindFatal, Attempts: 1, Err: errPeer}
	if errors.Is(fatal, ErrMaxRetriesExceeded) {
		t.Error("fatal error should not match ErrMaxRetriesExceeded")
	}
	if fault.KindOf(fatal) != fault.KindFatal {
		t.Errorf("KindOf = %v, want fatal", fault.KindOf(fatal))
	}
	if want := "ledger: fatal after 1 attempt(s): peer unavailable"; fatal.Error() != want {
		t.Errorf("Error() = %q, want %q", fatal.Error(), want)
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o deadline" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("record not found"), false},
		{"tagged transient", fault.Transient(errors.New("x")), true},
		{"tagged timeout", ErrTimeout, true},
		{"tagged fatal with network wording", fault.Fatal(errors.New("network policy denied")), false},
		{"validation", fault.New(fault.KindValidation, "timeout in name"), false},
		{"breaker open", &BreakerOpenError{Name: "ledger"}, false},
		{"bulkhead full", ErrBulkheadFull, true},
		{"errno refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"errno reset", syscall.ECONNRESET, true},
		{"errno other", syscall.EACCES, false},
		{"dns", &net.DNSError{Err: "no such host", Name: "peer0"}, true},
		{"net timeout", timeoutErr{}, true},
		{"op error", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}, true},
		{"code ECONNREFUSED", errors.New("connect ECONNREFUSED 10.0.0.1:7051"), true},
		{"code ETIMEDOUT", errors.New("ETIMEDOUT"), true},
		{"code ENOTFOUND", errors.New("getaddrinfo ENOTFOUND peer0"), true},
		{"code EPIPE", errors.New("write EPIPE"), true},
		{"code EHOSTUNREACH", errors.New("EHOSTUNREACH"), true},
		{"mvcc conflict", errors.New("transaction invalidated: MVCC_READ_CONFLICT"), true},
		{"network wording", errors.New("Network is unreachable"), true},
		{"timeout wording", errors.New("request Timeout"), true},
		{"timed out wording", errors.New("operation timed out"), true},
		{"canceled", fmt.Errorf("call: %w", context.Canceled), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
