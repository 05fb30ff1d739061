package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jonwraymond/ledgerops/fault"
)

// MVCCReadConflict is the marker a ledger reports when a write raced a
// concurrent update of the same key.
const MVCCReadConflict = "MVCC_READ_CONFLICT"

// transientCodes are textual error codes that indicate a network failure.
var transientCodes = []string{
	"ECONNREFUSED",
	"ETIMEDOUT",
	"ENOTFOUND",
	"ECONNRESET",
	"EPIPE",
	"EHOSTUNREACH",
}

var transientErrnos = []syscall.Errno{
	syscall.ECONNREFUSED,
	syscall.ETIMEDOUT,
	syscall.ECONNRESET,
	syscall.EPIPE,
	syscall.EHOSTUNREACH,
	syscall.ENETUNREACH,
	syscall.ECONNABORTED,
}

// IsTransient reports whether err is worth retrying.
//
// Tagged errors decide by kind: KindTransient and KindTimeout retry,
// every other tag does not. Untagged errors retry on network signatures,
// ledger read conflicts and the generic "network", "timeout" and
// "timed out" wording.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	switch fault.KindOf(err) {
	case fault.KindTransient, fault.KindTimeout:
		return true
	case fault.KindUnknown:
	default:
		return false
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		for _, e := range transientErrnos {
			if errno == e {
				return true
			}
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	msg := err.Error()
	for _, code := range transientCodes {
		if strings.Contains(msg, code) {
			return true
		}
	}
	if strings.Contains(msg, MVCCReadConflict) {
		return true
	}

	lower := strings.ToLower(msg)
	return strings.Contains(lower, "network") ||
		strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "timed out")
}
