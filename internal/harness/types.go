package harness

import "fmt"

// TraceEvent records one executed step and the machine state after it.
//
// Seq is the 1-based step index (not the engine clock - trace ordering is
// about scenario steps, several of which may append multiple history
// records). Field order matters: it is the JSON key order in golden files.
type TraceEvent struct {
	Seq          int      `json:"seq"`
	Op           string   `json:"op"`
	Denomination int      `json:"denomination,omitempty"`
	Item         string   `json:"item,omitempty"`
	Count        int      `json:"count,omitempty"`
	Outcome      string   `json:"outcome"` // "ok" or a machine error code
	Dispensed    []string `json:"dispensed,omitempty"`
	Change       int      `json:"change,omitempty"`
	Refund       int      `json:"refund,omitempty"`
	Balance      int      `json:"balance"`
	Phase        string   `json:"phase"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per executed step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation failure messages. Empty when Pass.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result to accumulate into.
func NewResult() *Result {
	return &Result{
		Pass:  true,
		Trace: []TraceEvent{},
	}
}

// AddError records a validation failure and marks the result failed.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}
