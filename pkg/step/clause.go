package step

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// Clause decides how the statuses of parallel replicas combine into one.
type Clause int

const (
	// Undefined succeeds only when every replica succeeds; otherwise Fail.
	Undefined Clause = iota
	// Any succeeds when at least one replica succeeds.
	Any
	// All succeeds only when every replica succeeds.
	All
	// Majority succeeds when more than half the replicas succeed.
	Majority
)

// ErrBlankClause is returned when a clause is written as an empty string.
var ErrBlankClause = errors.New("failOnParallelFailures cannot be blank")

var clauseNames = map[Clause]string{
	Undefined: "Undefined",
	Any:       "Any",
	All:       "All",
	Majority:  "Majority",
}

// String returns the clause name.
func (c Clause) String() string {
	if name, ok := clauseNames[c]; ok {
		return name
	}
	return clauseNames[Undefined]
}

// ParseClause parses a clause name case-insensitively. Unknown names map to
// Undefined; a blank name is an error.
func ParseClause(s string) (Clause, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Undefined, ErrBlankClause
	}
	for c, name := range clauseNames {
		if strings.EqualFold(s, name) {
			return c, nil
		}
	}
	return Undefined, nil
}

// MarshalJSON encodes the clause by name.
func (c Clause) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts a clause name or its ordinal. null leaves the
// clause unchanged.
func (c *Clause) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	var ordinal int
	if err := json.Unmarshal(data, &ordinal); err == nil {
		*c = Clause(ordinal)
		if _, known := clauseNames[*c]; !known {
			*c = Undefined
		}
		return nil
	}

	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseClause(name)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Aggregate combines replica statuses. An empty slice is Success.
func (c Clause) Aggregate(statuses []Status) Status {
	successes := 0
	for _, s := range statuses {
		if s == Success {
			successes++
		}
	}
	n := len(statuses)

	switch c {
	case Any:
		if n == 0 || successes > 0 {
			return Success
		}
	case All:
		if successes == n {
			return Success
		}
	case Majority:
		if n == 0 || successes*2 > n {
			return Success
		}
	default:
		if successes == n {
			return Success
		}
		return Fail
	}
	return Worst(statuses...)
}
