package segment

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Limits are the business limits enforced on segment mutations.
type Limits struct {
	// SegmentValuesLimit caps the total number of constraint values in a
	// single segment.
	SegmentValuesLimit int

	// StrategySegmentsLimit caps the number of segments linked to a single
	// strategy.
	StrategySegmentsLimit int
}

// LimitsProvider returns the limits in force right now. The service calls it
// on every operation so runtime config changes take effect without a restart.
type LimitsProvider func() Limits

// StaticLimits returns a provider that always yields the same limits.
func StaticLimits(limits Limits) LimitsProvider {
	return func() Limits { return limits }
}

// ValidateValuesLimit checks that a candidate segment's total constraint
// value count stays within the limit.
func ValidateValuesLimit(in *Input, limit int) error {
	if n := in.ValueCount(); n > limit {
		return &LimitExceededError{Resource: ResourceSegmentValues, Limit: limit, Actual: n}
	}
	return nil
}

// InputValidator turns raw untyped input into a typed candidate segment.
// Structural validation fails with a *ValidationError before any business
// rule runs.
type InputValidator interface {
	Validate(raw []byte) (*Input, error)
}

// JSONValidator is the default InputValidator: strict JSON decoding into the
// input shape, rejecting unknown fields.
type JSONValidator struct{}

func (JSONValidator) Validate(raw []byte) (*Input, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var in Input
	if err := dec.Decode(&in); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	for i, c := range in.Constraints {
		if c.ContextName == "" {
			return nil, &ValidationError{
				Field:   fmt.Sprintf("constraints[%d].contextName", i),
				Message: "context name is required",
			}
		}
		if c.Operator == "" {
			return nil, &ValidationError{
				Field:   fmt.Sprintf("constraints[%d].operator", i),
				Message: "operator is required",
			}
		}
	}

	return &in, nil
}
