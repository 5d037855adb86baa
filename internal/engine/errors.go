package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Resolution error kinds. Every kind is terminal for the call that raised
// it; the engine never retries.
const (
	KindInvalidContext       = "invalid_context"
	KindCountryNotFound      = "country_not_found"
	KindProgramNotAvailable  = "program_not_available"
	KindNoSizeTierMatch      = "no_size_tier_match"
	KindNoFulfillmentFee     = "no_fulfillment_fee_match"
	KindNoReferralFee        = "no_referral_fee_match"
	KindResolutionTimeout    = "resolution_timeout"
	KindRepositoryFailure    = "repository_failure"
)

var (
	// ErrInvalidContext is returned when a dimension, weight, or price is
	// non-positive, or the category is empty.
	ErrInvalidContext = errors.New("engine: invalid product context")

	// ErrNoSizeTierMatch is returned when no configured tier satisfies the
	// product's dimensions and weight.
	ErrNoSizeTierMatch = errors.New("engine: no size tier matches product")

	// ErrNoFulfillmentFeeMatch is returned when every candidate tier is
	// exhausted without finding a fee row.
	ErrNoFulfillmentFeeMatch = errors.New("engine: no fulfillment fee row for any candidate tier")

	// ErrNoReferralFeeMatch is returned when the category cascade fails,
	// including the catch-all step.
	ErrNoReferralFeeMatch = errors.New("engine: no referral fee row for category")

	// ErrResolutionTimeout is returned when a mandatory resolver did not
	// complete within the caller's deadline.
	ErrResolutionTimeout = errors.New("engine: mandatory resolver exceeded deadline")
)

// ResolutionError is the structured failure surfaced to callers. It carries
// the taxonomy kind plus the inputs the failing resolver exhausted (tier
// candidates tried, cascade steps attempted) so rate-table authors can
// diagnose configuration gaps.
type ResolutionError struct {
	Kind    string   `json:"kind"`
	Message string   `json:"message"`
	Tried   []string `json:"tried,omitempty"`

	err error // taxonomy sentinel, for errors.Is
}

func (e *ResolutionError) Error() string {
	if len(e.Tried) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s (tried: %s)", e.Kind, e.Message, strings.Join(e.Tried, ", "))
}

func (e *ResolutionError) Unwrap() error { return e.err }

func newResolutionError(kind string, sentinel error, message string, tried ...string) *ResolutionError {
	return &ResolutionError{
		Kind:    kind,
		Message: message,
		Tried:   tried,
		err:     sentinel,
	}
}
