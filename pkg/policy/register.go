package policy

import "github.com/getmockd/mockmesh/pkg/factory"

// Register adds every policy kind to f.
func Register[T any](f *factory.Factory[Definition, T]) error {
	variants := []struct {
		kind   string
		newFn  func() Definition
		schema string
	}{
		{KindFallback, func() Definition { return &FallbackDefinition{} }, fallbackSchema},
		{KindRetry, func() Definition { return &RetryDefinition{} }, retrySchema},
		{KindCircuitBreaker, func() Definition { return &CircuitBreakerDefinition{} }, circuitBreakerSchema},
		{KindTimeout, func() Definition { return &TimeoutDefinition{} }, timeoutSchema},
		{KindRateLimit, func() Definition { return &RateLimitDefinition{} }, rateLimitSchema},
	}
	for _, v := range variants {
		if err := f.Register(v.kind, v.newFn, v.schema); err != nil {
			return err
		}
	}
	return nil
}

// NewFactory returns a factory that decodes policy entries and compiles them.
func NewFactory(env Env) (*factory.Factory[Definition, Policy], error) {
	f := factory.New("policies", env.Logger, func(name string, d Definition) (Policy, error) {
		compileEnv := env
		compileEnv.Name = name
		return d.Compile(compileEnv)
	})
	if err := Register(f); err != nil {
		return nil, err
	}
	return f, nil
}
