package factory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/containerd/errdefs"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/getmockd/mockmesh/pkg/logging"
)

// Errors returned by Create. Each wraps an errdefs class so transport layers
// can map them without knowing this package.
var (
	// ErrMissingValue is returned when an entry names a type but carries no value.
	ErrMissingValue = fmt.Errorf("%w: configuration entry has a type but no value", errdefs.ErrFailedPrecondition)

	// ErrUnknownType is returned when the discriminator is not registered.
	ErrUnknownType = fmt.Errorf("%w: unknown configuration type", errdefs.ErrInvalidArgument)

	// ErrInvalidConfig is returned when a non-empty value fails validation.
	ErrInvalidConfig = fmt.Errorf("%w: invalid configuration value", errdefs.ErrInvalidArgument)

	// ErrDuplicateType is returned by Register for a type that is already known.
	ErrDuplicateType = errors.New("configuration type already registered")
)

// Validator is implemented by decoded values that check their own fields
// beyond what the JSON schema expresses.
type Validator interface {
	Validate() error
}

// Entry is the discriminated blob every configuration entry is written as.
type Entry struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// Encode renders value as a configuration entry of the given type.
func Encode(kind string, value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s value: %w", kind, err)
	}
	out, err := json.Marshal(Entry{Type: kind, Value: data})
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s entry: %w", kind, err)
	}
	return string(out), nil
}

type variant[D any] struct {
	newFn  func() D
	schema *jsonschema.Schema
}

// Finalizer attaches runtime dependencies to a decoded value and returns
// the live form handed out by Create. name is the entry's name, or empty.
type Finalizer[D, T any] func(name string, decoded D) (T, error)

// Identity is a Finalizer for families whose decoded form is already live.
func Identity[T any](_ string, v T) (T, error) {
	return v, nil
}

// Factory turns configuration entries into live values of one family
// (steps, processors, policies or clients).
//
// Variants are registered explicitly by discriminator and decode into D.
// Create validates the decoded value and passes it to the finalizer, which
// returns the live T.
type Factory[D, T any] struct {
	family   string
	log      *slog.Logger
	finalize Finalizer[D, T]

	mu       sync.RWMutex
	variants map[string]variant[D]
}

// New creates an empty factory for the named family.
func New[D, T any](family string, log *slog.Logger, finalize Finalizer[D, T]) *Factory[D, T] {
	return &Factory[D, T]{
		family:   family,
		log:      logging.Component(log, "factory").With("family", family),
		finalize: finalize,
		variants: make(map[string]variant[D]),
	}
}

// Family returns the family name the factory was created with.
func (f *Factory[D, T]) Family() string {
	return f.family
}

// Register adds a variant. newFn must return a fresh pointer each call so
// JSON can be decoded into it. schema is an optional JSON Schema for the
// entry's value.
func (f *Factory[D, T]) Register(kind string, newFn func() D, schema string) error {
	if kind == "" {
		return errors.New("configuration type cannot be empty")
	}
	if newFn == nil {
		return fmt.Errorf("constructor for %s is nil", kind)
	}

	if f.finalize == nil {
		return fmt.Errorf("%s factory has no finalizer", f.family)
	}

	v := variant[D]{newFn: newFn}
	if schema != "" {
		compiled, err := compileSchema(kind, schema)
		if err != nil {
			return fmt.Errorf("failed to compile schema for %s: %w", kind, err)
		}
		v.schema = compiled
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.variants[kind]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateType, kind)
	}
	f.variants[kind] = v
	return nil
}

// MustRegister is Register for package-level setup; it panics on error.
func (f *Factory[D, T]) MustRegister(kind string, newFn func() D, schema string) {
	if err := f.Register(kind, newFn, schema); err != nil {
		panic(err)
	}
}

// Types returns the registered discriminators in sorted order.
func (f *Factory[D, T]) Types() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	types := make([]string, 0, len(f.variants))
	for k := range f.variants {
		types = append(types, k)
	}
	sort.Strings(types)
	return types
}

// Create builds a value from a raw configuration entry.
//
// The boolean result is false when the entry was skipped: raw is not JSON,
// is empty, has no type, or has an empty value that fails validation. Skips
// are logged as warnings and are not errors. An error is returned when the
// entry is structurally wrong: a type without a value, an unknown type, or a
// populated value that fails validation.
func (f *Factory[D, T]) Create(raw string) (T, bool, error) {
	return f.CreateNamed("", raw)
}

// CreateNamed is Create with the entry name attached to log records and errors.
func (f *Factory[D, T]) CreateNamed(name, raw string) (T, bool, error) {
	var zero T
	log := f.log
	if name != "" {
		log = log.With("name", name)
	}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		log.Warn("skipping empty configuration entry")
		return zero, false, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
		log.Warn("skipping configuration entry that is not a JSON object", "error", err)
		return zero, false, nil
	}
	if len(fields) == 0 {
		log.Warn("skipping empty configuration entry")
		return zero, false, nil
	}

	rawType, hasType := fields["type"]
	if !hasType {
		log.Warn("skipping configuration entry without a type")
		return zero, false, nil
	}

	var kind string
	if err := json.Unmarshal(rawType, &kind); err != nil || strings.TrimSpace(kind) == "" {
		return zero, false, f.wrap(name, fmt.Errorf("%w: type must be a non-empty string", ErrUnknownType))
	}

	rawValue, hasValue := fields["value"]
	if !hasValue {
		return zero, false, f.wrap(name, fmt.Errorf("%w (type %s)", ErrMissingValue, kind))
	}

	f.mu.RLock()
	v, known := f.variants[kind]
	f.mu.RUnlock()
	if !known {
		return zero, false, f.wrap(name, fmt.Errorf("%w: %s", ErrUnknownType, kind))
	}

	instance, err := v.decode(rawValue)
	if err != nil {
		if isEmptyValue(rawValue) {
			log.Warn("skipping configuration entry with an empty value", "type", kind, "error", err)
			return zero, false, nil
		}
		return zero, false, f.wrap(name, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, kind, err))
	}

	out, err := f.finalize(name, instance)
	if err != nil {
		return zero, false, f.wrap(name, fmt.Errorf("failed to finalize %s: %w", kind, err))
	}
	return out, true, nil
}

func (f *Factory[D, T]) wrap(name string, err error) error {
	if name == "" {
		return fmt.Errorf("%s: %w", f.family, err)
	}
	return fmt.Errorf("%s %q: %w", f.family, name, err)
}

func (v variant[D]) decode(raw json.RawMessage) (D, error) {
	var zero D

	if v.schema != nil {
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return zero, err
		}
		if err := v.schema.Validate(doc); err != nil {
			return zero, schemaError(err)
		}
	}

	instance := v.newFn()
	if err := json.Unmarshal(raw, instance); err != nil {
		return zero, err
	}
	if val, ok := any(instance).(Validator); ok {
		if err := val.Validate(); err != nil {
			return zero, err
		}
	}
	return instance, nil
}

// isEmptyValue reports whether raw is null or an object without keys.
func isEmptyValue(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return true
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return false
	}
	return len(obj) == 0
}

func compileSchema(kind, schema string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	url := kind + ".json"
	if err := compiler.AddResource(url, strings.NewReader(schema)); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}

// schemaError flattens a jsonschema validation error into one line per leaf cause.
func schemaError(err error) error {
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	var msgs []string
	collectCauses(verr, &msgs)
	if len(msgs) == 0 {
		return err
	}
	return errors.New(strings.Join(msgs, "; "))
}

func collectCauses(err *jsonschema.ValidationError, msgs *[]string) {
	if len(err.Causes) == 0 {
		loc := err.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		*msgs = append(*msgs, loc+": "+err.Message)
		return
	}
	for _, cause := range err.Causes {
		collectCauses(cause, msgs)
	}
}
