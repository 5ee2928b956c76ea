package harness

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot is the golden-file payload for a scenario execution.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Pass         bool         `json:"pass"`
	Trace        []TraceEvent `json:"trace"`
	Errors       []string     `json:"errors,omitempty"`
}

// RunWithGolden executes a scenario and compares the trace snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// Golden files are the source of truth for expected traces; regenerate with
// `go test ./internal/harness -update` after an intentional behavior change.
func RunWithGolden(t *testing.T, sc *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(sc)
	if err != nil {
		return nil, err
	}

	snapshot := TraceSnapshot{
		ScenarioName: sc.Name,
		Pass:         result.Pass,
		Trace:        result.Trace,
		Errors:       result.Errors,
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal trace snapshot: %w", err)
	}

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"))
	g.Assert(t, sc.Name, data)

	return result, nil
}
