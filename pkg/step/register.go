package step

import "github.com/getmockd/mockmesh/pkg/factory"

// Register adds every step kind to f.
func Register(f *factory.Factory[Step, Step]) error {
	variants := []struct {
		kind   string
		newFn  func() Step
		schema string
	}{
		{KindDelay, func() Step { return &Delay{} }, delaySchema},
		{KindError, func() Step { return &Fault{} }, faultSchema},
		{KindLoad, func() Step { return &Load{} }, loadSchema},
		{KindRequest, func() Step { return &Request{} }, requestSchema},
		{KindGroup, func() Step { return &Group{} }, groupSchema},
	}
	for _, v := range variants {
		if err := f.Register(v.kind, v.newFn, v.schema); err != nil {
			return err
		}
	}
	return nil
}

// NewFactory returns a step factory that binds every created step to env,
// with the entry name attached.
func NewFactory(env Env) (*factory.Factory[Step, Step], error) {
	f := factory.New("steps", env.Logger, func(name string, s Step) (Step, error) {
		named := env
		named.Name = name
		return s.Bind(named), nil
	})
	if err := Register(f); err != nil {
		return nil, err
	}
	return f, nil
}
