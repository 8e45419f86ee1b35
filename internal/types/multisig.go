package types

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	MinSigners = 2
	// MaxTimeoutSeconds caps the signing window at one year, far below the
	// point where the deadline would overflow time.Duration.
	MaxTimeoutSeconds int64 = 365 * 24 * 60 * 60
)

// MultiSigConfig is a registered group of signers. Signers and Threshold are
// immutable: the address is derived from them.
type MultiSigConfig struct {
	Address        string    `json:"address"`
	Threshold      int       `json:"threshold"`
	Signers        []string  `json:"signers"`
	TimeoutSeconds int64     `json:"timeout_seconds"`
	Description    string    `json:"description,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (c MultiSigConfig) IsSigner(identity string) bool {
	return slices.Contains(c.Signers, identity)
}

func (c MultiSigConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c MultiSigConfig) Clone() MultiSigConfig {
	c.Signers = slices.Clone(c.Signers)
	return c
}

// MultiSigCreateRequest represents a request to register a new multi-sig configuration.
type MultiSigCreateRequest struct {
	Threshold      int      `json:"threshold"`
	Signers        []string `json:"signers"`
	TimeoutSeconds int64    `json:"timeout_seconds"`
	Description    string   `json:"description"`
}

// IsValid reports the first violated rule as a validation error.
func (r MultiSigCreateRequest) IsValid() error {
	if len(r.Signers) < MinSigners {
		return ValidationErrorf("at least %d signers are required, got %d", MinSigners, len(r.Signers))
	}
	seen := make(map[string]struct{}, len(r.Signers))
	for _, s := range r.Signers {
		if strings.TrimSpace(s) == "" {
			return ValidationErrorf("signer identity must not be empty")
		}
		if _, ok := seen[s]; ok {
			return ValidationErrorf("signer %q is listed more than once", s)
		}
		seen[s] = struct{}{}
	}
	if r.Threshold < 1 || r.Threshold > len(r.Signers) {
		return ValidationErrorf("threshold must be between 1 and %d, got %d", len(r.Signers), r.Threshold)
	}
	if r.TimeoutSeconds <= 0 {
		return ValidationErrorf("timeout_seconds must be positive, got %d", r.TimeoutSeconds)
	}
	if r.TimeoutSeconds > MaxTimeoutSeconds {
		return ValidationErrorf("timeout_seconds must be at most %d, got %d", MaxTimeoutSeconds, r.TimeoutSeconds)
	}
	return nil
}

// MultiSigInfo is the read-only view returned by GetMultiSigInfo.
type MultiSigInfo struct {
	Config       MultiSigConfig   `json:"config"`
	Balance      *decimal.Decimal `json:"balance,omitempty"`
	PendingCount int              `json:"pending_count"`
}
