// Package registry holds every named processor, step, policy and client of
// a node. It is populated once by Load and read-only afterwards.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/containerd/errdefs"

	"github.com/getmockd/mockmesh/pkg/client"
	"github.com/getmockd/mockmesh/pkg/factory"
	"github.com/getmockd/mockmesh/pkg/logging"
	"github.com/getmockd/mockmesh/pkg/policy"
	"github.com/getmockd/mockmesh/pkg/processor"
	"github.com/getmockd/mockmesh/pkg/step"
)

// Section names, in load order.
const (
	SectionPolicies   = "Policies"
	SectionClients    = "Clients"
	SectionSteps      = "Steps"
	SectionProcessors = "Processors"
)

// Sections lists the sections in the order Load reads them.
var Sections = []string{SectionPolicies, SectionClients, SectionSteps, SectionProcessors}

var (
	// ErrNotFound is returned for a name with no registration.
	ErrNotFound = fmt.Errorf("%w: no registration", errdefs.ErrNotFound)

	// ErrInvalidState is returned for a name registered to nothing.
	ErrInvalidState = fmt.Errorf("%w: registration is empty", errdefs.ErrFailedPrecondition)

	// ErrUnresolvedReference is returned by Load when an entry refers to a
	// name that is not registered.
	ErrUnresolvedReference = fmt.Errorf("%w: unresolved reference", errdefs.ErrInvalidArgument)

	// ErrCycle is returned by Load when group steps contain themselves.
	ErrCycle = fmt.Errorf("%w: step cycle", errdefs.ErrInvalidArgument)
)

// Source supplies raw configuration entries by section.
type Source interface {
	Section(name string) map[string]string
}

// MapSource is a Source backed by nested maps keyed by section name.
type MapSource map[string]map[string]string

// Section implements Source.
func (m MapSource) Section(name string) map[string]string {
	return m[name]
}

// Observer receives everything the registry's components report.
// *metrics.Collector implements it.
type Observer interface {
	step.Observer
	policy.Observer
	SetRegistryEntries(section string, n int)
}

// Option configures Load.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	observer  Observer
	transport http.RoundTripper
}

// WithLogger sets the logger handed to every component.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.logger = log }
}

// WithObserver reports step executions, policy events and entry counts.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithTransport sets the transport every client's policy chain wraps.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// Registry maps names to live components.
type Registry struct {
	log        *slog.Logger
	background *step.Background

	policies      map[string]policy.Policy
	clientConfigs map[string]*client.Config
	clients       map[string]*client.Client
	steps         map[string]step.Step
	processors    map[string]processor.Processor
}

// Load reads policies, clients, steps and processors from src, in that
// order, and returns the populated registry.
//
// Skipped entries are logged and left out. Any factory error, unresolved
// reference or step cycle aborts the load.
func Load(ctx context.Context, src Source, opts ...Option) (*Registry, error) {
	o := options{transport: http.DefaultTransport}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Registry{
		log:           logging.Component(o.logger, "registry"),
		background:    &step.Background{},
		policies:      make(map[string]policy.Policy),
		clientConfigs: make(map[string]*client.Config),
		clients:       make(map[string]*client.Client),
		steps:         make(map[string]step.Step),
		processors:    make(map[string]processor.Processor),
	}

	var policyObs policy.Observer
	var stepObs step.Observer
	if o.observer != nil {
		policyObs, stepObs = o.observer, o.observer
	}

	policies, err := policy.NewFactory(policy.Env{Logger: o.logger, Observer: policyObs})
	if err != nil {
		return nil, err
	}
	if err := load(ctx, r.log, src, SectionPolicies, policies, r.policies); err != nil {
		return nil, err
	}

	clients := factory.New("clients", o.logger, factory.Identity[*client.Config])
	if err := clients.Register(client.Kind, func() *client.Config { return &client.Config{} }, client.Schema); err != nil {
		return nil, err
	}
	if err := load(ctx, r.log, src, SectionClients, clients, r.clientConfigs); err != nil {
		return nil, err
	}
	if err := r.buildClients(o); err != nil {
		return nil, err
	}

	steps, err := step.NewFactory(step.Env{
		Logger:     o.logger,
		Steps:      r,
		Clients:    r,
		Observer:   stepObs,
		Background: r.background,
	})
	if err != nil {
		return nil, err
	}
	if err := load(ctx, r.log, src, SectionSteps, steps, r.steps); err != nil {
		return nil, err
	}

	processors, err := processor.NewFactory(o.logger)
	if err != nil {
		return nil, err
	}
	if err := load(ctx, r.log, src, SectionProcessors, processors, r.processors); err != nil {
		return nil, err
	}

	if err := r.verify(); err != nil {
		return nil, err
	}

	summary := r.Summary()
	if o.observer != nil {
		for section, n := range summary {
			o.observer.SetRegistryEntries(section, n)
		}
	}
	r.log.Info("registry loaded",
		"policies", summary[SectionPolicies],
		"clients", summary[SectionClients],
		"steps", summary[SectionSteps],
		"processors", summary[SectionProcessors],
	)
	return r, nil
}

func load[D, T any](ctx context.Context, log *slog.Logger, src Source, section string, f *factory.Factory[D, T], into map[string]T) error {
	entries := lookupSection(src, section)
	for _, name := range sortedKeys(entries) {
		if err := ctx.Err(); err != nil {
			return err
		}
		v, ok, err := f.CreateNamed(name, entries[name])
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", strings.ToLower(section), err)
		}
		if !ok {
			log.Warn("skipped configuration entry", "section", section, "name", name)
			continue
		}
		into[name] = v
	}
	return nil
}

// lookupSection tries the canonical name, then lower case.
func lookupSection(src Source, section string) map[string]string {
	if entries := src.Section(section); entries != nil {
		return entries
	}
	return src.Section(strings.ToLower(section))
}

func (r *Registry) buildClients(o options) error {
	for _, name := range sortedKeys(r.clientConfigs) {
		cfg := r.clientConfigs[name]
		chain := make([]policy.Policy, 0, len(cfg.Policies))
		for _, pn := range cfg.Policies {
			p, ok := r.policies[pn]
			if !ok {
				return fmt.Errorf("%w: client %q uses policy %q", ErrUnresolvedReference, name, pn)
			}
			chain = append(chain, p)
		}
		c, err := client.New(name, cfg, chain,
			client.WithTransport(o.transport),
			client.WithLogger(o.logger),
		)
		if err != nil {
			return err
		}
		r.clients[name] = c
	}
	return nil
}

// verify checks that every referenced name exists and that group steps do
// not reach themselves.
func (r *Registry) verify() error {
	var errs []error
	for _, name := range sortedKeys(r.processors) {
		for _, sn := range r.processors[name].StepNames() {
			if _, ok := r.steps[sn]; !ok {
				errs = append(errs, fmt.Errorf("%w: processor %q uses step %q", ErrUnresolvedReference, name, sn))
			}
		}
	}
	for _, name := range sortedKeys(r.steps) {
		s := r.steps[name]
		if ref, ok := s.(step.StepReferrer); ok {
			for _, sn := range ref.StepRefs() {
				if _, ok := r.steps[sn]; !ok {
					errs = append(errs, fmt.Errorf("%w: step %q uses step %q", ErrUnresolvedReference, name, sn))
				}
			}
		}
		if ref, ok := s.(step.ClientReferrer); ok {
			for _, cn := range ref.ClientRefs() {
				if _, ok := r.clients[cn]; !ok {
					errs = append(errs, fmt.Errorf("%w: step %q uses client %q", ErrUnresolvedReference, name, cn))
				}
			}
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return r.checkCycles()
}

func (r *Registry) checkCycles() error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(r.steps))

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch state[name] {
		case visiting:
			return fmt.Errorf("%w: %s", ErrCycle, strings.Join(append(path, name), " -> "))
		case done:
			return nil
		}
		state[name] = visiting
		if ref, ok := r.steps[name].(step.StepReferrer); ok {
			for _, next := range ref.StepRefs() {
				if err := visit(next, append(path, name)); err != nil {
					return err
				}
			}
		}
		state[name] = done
		return nil
	}

	for _, name := range sortedKeys(r.steps) {
		if err := visit(name, nil); err != nil {
			return err
		}
	}
	return nil
}

func lookup[T comparable](kind string, m map[string]T, name string) (T, error) {
	var zero T
	v, ok := m[name]
	if !ok {
		return zero, fmt.Errorf("%w: %s %q", ErrNotFound, kind, name)
	}
	if v == zero {
		return zero, fmt.Errorf("%w: %s %q", ErrInvalidState, kind, name)
	}
	return v, nil
}

// GetProcessor returns the named processor.
func (r *Registry) GetProcessor(name string) (processor.Processor, error) {
	return lookup("processor", r.processors, name)
}

// GetStep returns the named step. It implements step.Resolver.
func (r *Registry) GetStep(name string) (step.Step, error) {
	return lookup("step", r.steps, name)
}

// GetPolicy returns the named compiled policy.
func (r *Registry) GetPolicy(name string) (policy.Policy, error) {
	return lookup("policy", r.policies, name)
}

// GetClientConfig returns the named client configuration.
func (r *Registry) GetClientConfig(name string) (*client.Config, error) {
	return lookup("client", r.clientConfigs, name)
}

// GetClient returns the named client. It implements step.ClientResolver.
func (r *Registry) GetClient(name string) (*client.Client, error) {
	return lookup("client", r.clients, name)
}

// Background tracks the goroutines started by asynchronous steps.
func (r *Registry) Background() *step.Background {
	return r.background
}

// StartupProcessors returns the names of every startup processor, sorted.
func (r *Registry) StartupProcessors() []string {
	var names []string
	for _, name := range sortedKeys(r.processors) {
		if _, ok := r.processors[name].(*processor.Startup); ok {
			names = append(names, name)
		}
	}
	return names
}

// Names returns the registered names in a section, sorted. Unknown
// sections return nil.
func (r *Registry) Names(section string) []string {
	switch {
	case strings.EqualFold(section, SectionPolicies):
		return sortedKeys(r.policies)
	case strings.EqualFold(section, SectionClients):
		return sortedKeys(r.clientConfigs)
	case strings.EqualFold(section, SectionSteps):
		return sortedKeys(r.steps)
	case strings.EqualFold(section, SectionProcessors):
		return sortedKeys(r.processors)
	}
	return nil
}

// Summary returns the number of entries per section.
func (r *Registry) Summary() map[string]int {
	return map[string]int{
		SectionPolicies:   len(r.policies),
		SectionClients:    len(r.clientConfigs),
		SectionSteps:      len(r.steps),
		SectionProcessors: len(r.processors),
	}
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
