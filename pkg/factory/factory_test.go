package factory

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/containerd/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/mockmesh/pkg/logging"
)

type shape interface {
	Area() int
}

type square struct {
	Side  int  `json:"side"`
	bound bool
}

func (s *square) Area() int { return s.Side * s.Side }

func (s *square) Validate() error {
	if s.Side > 1000 {
		return errors.New("side must be at most 1000")
	}
	return nil
}

const squareSchema = `{
	"type": "object",
	"required": ["side"],
	"properties": {
		"side": {"type": "integer", "minimum": 0}
	}
}`

func newShapeFactory(t *testing.T) *Factory[shape, shape] {
	t.Helper()
	f := New("shapes", logging.Nop(), func(_ string, s shape) (shape, error) {
		if sq, ok := s.(*square); ok {
			sq.bound = true
		}
		return s, nil
	})
	require.NoError(t, f.Register("Square", func() shape { return &square{} }, squareSchema))
	return f
}

func TestCreate_ValidEntry(t *testing.T) {
	f := newShapeFactory(t)

	got, ok, err := f.Create(`{"type":"Square","value":{"side":4}}`)
	require.NoError(t, err)
	require.True(t, ok)

	sq, isSquare := got.(*square)
	require.True(t, isSquare)
	assert.Equal(t, 16, sq.Area())
	assert.True(t, sq.bound, "finalize hook should run before Create returns")
}

func TestCreate_RoundTrip(t *testing.T) {
	f := newShapeFactory(t)

	raw, err := Encode("Square", &square{Side: 7})
	require.NoError(t, err)

	got, ok, err := f.Create(raw)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 7, got.(*square).Side)
}

func TestCreate_SkipsTolerableInput(t *testing.T) {
	f := newShapeFactory(t)

	inputs := map[string]string{
		"empty string":      "",
		"whitespace":        "   ",
		"not json":          "{type: Square",
		"json array":        `[1,2,3]`,
		"json null":         "null",
		"empty object":      "{}",
		"no type":           `{"value":{"side":1}}`,
		"empty value":       `{"type":"Square","value":{}}`,
		"null value":        `{"type":"Square","value":null}`,
		"bare json string":  `"Square"`,
		"truncated payload": `{"type":"Square","value":{"side":`,
	}

	for name, raw := range inputs {
		t.Run(name, func(t *testing.T) {
			got, ok, err := f.Create(raw)
			assert.NoError(t, err)
			assert.False(t, ok)
			assert.Nil(t, got)
		})
	}
}

func TestCreate_MissingValueIsFatal(t *testing.T) {
	f := newShapeFactory(t)

	_, ok, err := f.Create(`{"type":"Square"}`)
	require.Error(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrMissingValue)
	assert.True(t, errdefs.IsFailedPrecondition(err))
}

func TestCreate_UnknownTypeIsFatal(t *testing.T) {
	f := newShapeFactory(t)

	_, _, err := f.Create(`{"type":"Circle","value":{"radius":1}}`)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownType)

	_, _, err = f.Create(`{"type":"","value":{"side":1}}`)
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestCreate_InvalidPopulatedValueIsFatal(t *testing.T) {
	f := newShapeFactory(t)

	tests := map[string]string{
		"negative side":      `{"type":"Square","value":{"side":-1}}`,
		"wrong type":         `{"type":"Square","value":{"side":"four"}}`,
		"missing required":   `{"type":"Square","value":{"colour":"red"}}`,
		"semantic validator": `{"type":"Square","value":{"side":5000}}`,
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, ok, err := f.Create(raw)
			require.Error(t, err)
			assert.False(t, ok)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.True(t, errdefs.IsInvalidArgument(err))
		})
	}
}

func TestCreateNamed_IncludesNameInErrorAndLog(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(logging.Config{Level: logging.LevelDebug, Output: &buf})
	f := New("shapes", log, Identity[shape])
	require.NoError(t, f.Register("Square", func() shape { return &square{} }, squareSchema))

	_, _, err := f.CreateNamed("big", `{"type":"Square"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `shapes "big"`)

	_, ok, err := f.CreateNamed("sloppy", "not json")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, buf.String(), "name=sloppy")
	assert.Contains(t, buf.String(), "level=WARN")
}

func TestRegister(t *testing.T) {
	f := New("shapes", nil, Identity[shape])

	require.NoError(t, f.Register("Square", func() shape { return &square{} }, ""))
	err := f.Register("Square", func() shape { return &square{} }, "")
	assert.ErrorIs(t, err, ErrDuplicateType)

	assert.Error(t, f.Register("", func() shape { return &square{} }, ""))
	assert.Error(t, f.Register("Nil", nil, ""))
	assert.Error(t, f.Register("BadSchema", func() shape { return &square{} }, `{"type":`))

	assert.Equal(t, []string{"Square"}, f.Types())
	assert.Equal(t, "shapes", f.Family())
}

func TestCreate_FinalizeError(t *testing.T) {
	f := New("shapes", nil, func(string, shape) (shape, error) {
		return nil, errors.New("no logger")
	})
	require.NoError(t, f.Register("Square", func() shape { return &square{} }, squareSchema))

	_, ok, err := f.Create(`{"type":"Square","value":{"side":2}}`)
	assert.False(t, ok)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "no logger"))
}

func TestCreate_Concurrent(t *testing.T) {
	f := newShapeFactory(t)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, ok, err := f.Create(`{"type":"Square","value":{"side":3}}`)
			assert.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, 9, got.Area())
		}()
	}
	wg.Wait()
}

func TestCreate_FinalizerReceivesNameAndConvertsType(t *testing.T) {
	f := New("shapes", nil, func(name string, s shape) (string, error) {
		return fmt.Sprintf("%s=%d", name, s.Area()), nil
	})
	require.NoError(t, f.Register("Square", func() shape { return &square{} }, squareSchema))

	got, ok, err := f.CreateNamed("tile", `{"type":"Square","value":{"side":2}}`)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "tile=4", got)
}

func TestRegister_RequiresFinalizer(t *testing.T) {
	f := New[shape, shape]("shapes", nil, nil)
	assert.Error(t, f.Register("Square", func() shape { return &square{} }, ""))
}
