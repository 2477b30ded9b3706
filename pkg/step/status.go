package step

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Status is the outcome of executing a step or processor. Values are
// ordered by severity: Success < SimulatedFail < Fail.
type Status int

const (
	// Success means the step did what it was configured to do.
	Success Status = iota
	// SimulatedFail is a failure the configuration asked for.
	SimulatedFail
	// Fail is a genuine failure.
	Fail
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case Success:
		return "Success"
	case SimulatedFail:
		return "SimulatedFail"
	case Fail:
		return "Fail"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// MarshalJSON encodes the status by name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a status name, case-insensitively.
func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch strings.ToLower(name) {
	case "success":
		*s = Success
	case "simulatedfail":
		*s = SimulatedFail
	case "fail":
		*s = Fail
	default:
		return fmt.Errorf("unknown status %q", name)
	}
	return nil
}

// Worst returns the most severe status, or Success for none.
func Worst(statuses ...Status) Status {
	worst := Success
	for _, s := range statuses {
		if s > worst {
			worst = s
		}
	}
	return worst
}
