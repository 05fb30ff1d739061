package cache

import (
	"errors"
	"strings"
	"testing"

	"github.com/jonwraymond/ledgerops/fault"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{"record key", "ledger:GetRecord:0123456789abcdef", nil},
		{"exactly max", strings.Repeat("k", MaxKeyLength), nil},
		{"unicode record id", "ledger:GetRecord:ቡና-1", nil},
		{"empty", "", ErrInvalidKey},
		{"blank", " \t ", ErrInvalidKey},
		{"over max", strings.Repeat("k", MaxKeyLength+1), ErrKeyTooLong},
		{"newline", "ledger:GetRecord:\nexp-1", ErrInvalidKey},
		{"carriage return", "ledger:GetRecord:exp-1\r", ErrInvalidKey},
		{"nul", "ledger:GetRecord:exp\x00-1", ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidateKey(%q) = %v, want %v", tt.key, err, tt.wantErr)
			}
			if err != nil && !fault.Is(err, fault.KindValidation) {
				t.Errorf("ValidateKey(%q) kind = %v, want validation", tt.key, fault.KindOf(err))
			}
		})
	}
}

func TestErrors_Distinct(t *testing.T) {
	all := []error{ErrNilCache, ErrInvalidKey, ErrKeyTooLong}
	for i, a := range all {
		for j, b := range all {
			if i != j && errors.Is(a, b) {
				t.Errorf("%v matches %v", a, b)
			}
		}
	}
}
