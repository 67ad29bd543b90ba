package segment

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors
var (
	// ErrNotFound is returned when an operation targets a nonexistent segment.
	ErrNotFound = errors.New("segment not found")

	// ErrNameEmpty is returned when a segment name is empty.
	ErrNameEmpty = errors.New("segment name must not be empty")
)

// Limited resources, named in LimitExceededError.
const (
	ResourceSegmentValues    = "segment constraint values"
	ResourceStrategySegments = "strategy segments"
)

// ValidationError represents structurally malformed segment input. It is
// detected before any business rule runs and is never partially applied.
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid segment input: field %q: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid segment input: %s", e.Message)
}

// Details returns the structured fields from this validation error.
func (e *ValidationError) Details() map[string]interface{} {
	d := make(map[string]interface{})
	if e.Field != "" {
		d["field"] = e.Field
	}
	return d
}

// DuplicateNameError is returned when a segment name is already taken by a
// different segment.
type DuplicateNameError struct {
	Name string `json:"name"`
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("segment name %q already exists", e.Name)
}

func (e *DuplicateNameError) Details() map[string]interface{} {
	return map[string]interface{}{"name": e.Name}
}

// LimitExceededError is returned when a mutation would push a limited
// resource past its configured limit.
type LimitExceededError struct {
	Resource string `json:"resource"`
	Limit    int    `json:"limit"`
	Actual   int    `json:"actual"`
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("%s limit exceeded: %d > %d", e.Resource, e.Actual, e.Limit)
}

func (e *LimitExceededError) Details() map[string]interface{} {
	return map[string]interface{}{
		"resource": e.Resource,
		"limit":    e.Limit,
		"actual":   e.Actual,
	}
}

// InvalidProjectError is returned when an update would scope a segment to a
// project while strategies outside that project still reference it.
type InvalidProjectError struct {
	Project        string   `json:"project"`
	UsedByProjects []string `json:"usedByProjects"`
}

func (e *InvalidProjectError) Error() string {
	return fmt.Sprintf("cannot scope segment to project %q: segment is used by strategies in project(s) %s",
		e.Project, strings.Join(e.UsedByProjects, ", "))
}

func (e *InvalidProjectError) Details() map[string]interface{} {
	return map[string]interface{}{
		"project":          e.Project,
		"used_by_projects": e.UsedByProjects,
	}
}

// ErrorDetailer surfaces structured error details for API error responses.
// Implemented by the typed errors above so consumers extract details without
// type-asserting against concrete structs.
type ErrorDetailer interface {
	Details() map[string]interface{}
}
