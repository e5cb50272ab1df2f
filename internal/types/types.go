package types

import "time"

// Outcome is the recorded result of acting on one target.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeDeferred  Outcome = "deferred"
	OutcomeSkipped   Outcome = "skipped"
)

// Kind identifies what a target is.
type Kind string

const (
	KindAccount Kind = "account" // follow-request target
	KindPost    Kind = "post"    // comment target
	KindComment Kind = "comment" // reply target
)

// Target is one remote entity eligible for an action.
type Target struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Kind  Kind   `json:"kind"`
	Depth int    `json:"depth"`

	// BlogID is the blog owning the entity. For accounts it equals ID.
	BlogID string `json:"blog_id,omitempty"`
	// LogNo is the post number, when known at discovery time.
	LogNo string `json:"log_no,omitempty"`
	// Text is the rendered body of a comment target.
	Text string `json:"text,omitempty"`
	// Date is the list date in YYYY-MM-DD form, when the list shows one.
	Date string `json:"date,omitempty"`
	// Post carries the parent post content for comment targets.
	Post *Content `json:"post,omitempty"`

	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
}

// Label returns a short human-readable name for log lines.
func (t Target) Label() string {
	if t.Name != "" && t.Name != t.ID {
		return t.Name + " (" + t.ID + ")"
	}
	return t.ID
}

// Content is the extracted title and body excerpt of a post.
type Content struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Empty reports whether neither title nor body carries text.
func (c Content) Empty() bool {
	return c.Title == "" && c.Body == ""
}

// DeferredItem is a target whose text generation exhausted its retry budget.
type DeferredItem struct {
	Target  Target  `json:"target"`
	Content Content `json:"content"`
	// Step names the sub-action that failed, e.g. "comment" or "reply".
	Step string `json:"step"`
	// Counts reports whether a successful replay consumes quota. It is false
	// when the primary chain already recorded a success for the target.
	Counts bool `json:"counts"`
}

// Probe is a tri-state answer from a heuristic DOM signal.
type Probe int

const (
	ProbeUnknown Probe = iota
	ProbeTrue
	ProbeFalse
)

// ProbeOf converts a definite boolean into a Probe.
func ProbeOf(b bool) Probe {
	if b {
		return ProbeTrue
	}
	return ProbeFalse
}

func (p Probe) String() string {
	switch p {
	case ProbeTrue:
		return "true"
	case ProbeFalse:
		return "false"
	default:
		return "unknown"
	}
}

// Summary is the final report of one run.
type Summary struct {
	RunID      string    `json:"run_id"`
	Campaign   string    `json:"campaign"`
	Identity   string    `json:"identity"`
	State      string    `json:"state"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Error      string    `json:"error,omitempty"`

	Discovered int `json:"discovered"`
	Attempted  int `json:"attempted"`
	Succeeded  int `json:"succeeded"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
	Deferred   int `json:"deferred"`
	Replayed   int `json:"replayed"`

	Targets []Target `json:"targets"`
}
