package segment

import "time"

// Segment is a named, reusable set of targeting constraints that rollout
// strategies can reference.
type Segment struct {
	// ID is assigned by the store on creation and immutable thereafter.
	ID int `json:"id"`

	// Name is non-empty and unique across all segments (exact match).
	Name string `json:"name"`

	Description string `json:"description,omitempty"`
	Example     string `json:"example,omitempty"`

	// Project, when set, constrains which strategies may reference this
	// segment: every linked strategy must belong to this project.
	Project string `json:"project,omitempty"`

	// Constraints is the ordered sequence of matching conditions.
	Constraints []Constraint `json:"constraints"`

	CreatedAt time.Time `json:"createdAt"`
	CreatedBy string    `json:"createdBy"`
}

// Constraint is a single matching condition within a segment, optionally
// carrying a list of match values.
type Constraint struct {
	ContextName     string   `json:"contextName"`
	Operator        string   `json:"operator"`
	Values          []string `json:"values,omitempty"`
	Value           string   `json:"value,omitempty"`
	Inverted        bool     `json:"inverted,omitempty"`
	CaseInsensitive bool     `json:"caseInsensitive,omitempty"`
}

// ClientSegment is the reduced projection served to runtime evaluation
// consumers. It carries only what evaluation needs.
type ClientSegment struct {
	ID          int          `json:"id"`
	Name        string       `json:"name"`
	Constraints []Constraint `json:"constraints"`
}

// Strategy is the read-side view of a rollout strategy: its identifier and
// project assignment. Strategies themselves are owned elsewhere.
type Strategy struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
}

// Input is a typed candidate segment produced by structural validation of raw
// input. It carries everything a caller may set; IDs and timestamps are
// assigned by the store.
type Input struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Example     string       `json:"example,omitempty"`
	Project     string       `json:"project,omitempty"`
	Constraints []Constraint `json:"constraints,omitempty"`
}

// ValueCount returns the total number of match values across all constraints.
func (in *Input) ValueCount() int {
	n := 0
	for _, c := range in.Constraints {
		n += len(c.Values)
	}
	return n
}

// Actor identifies who performed a mutation, for audit attribution.
type Actor struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Identity returns the audit identity for this actor, preferring email and
// falling back to username.
func (a Actor) Identity() string {
	if a.Email != "" {
		return a.Email
	}
	return a.Username
}
