package step

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/containerd/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/mockmesh/pkg/client"
	"github.com/getmockd/mockmesh/pkg/factory"
	"github.com/getmockd/mockmesh/pkg/logging"
)

func ptr[T any](v T) *T { return &v }

// steps is a map-backed Resolver and ClientResolver.
type steps struct {
	byName  map[string]Step
	clients map[string]*client.Client
}

func (s *steps) GetStep(name string) (Step, error) {
	st, ok := s.byName[name]
	if !ok {
		return nil, errdefs.ErrNotFound
	}
	return st, nil
}

func (s *steps) GetClient(name string) (*client.Client, error) {
	c, ok := s.clients[name]
	if !ok {
		return nil, errdefs.ErrNotFound
	}
	return c, nil
}

// fixed returns a preset status and counts executions.
type fixed struct {
	status Status
	err    error
	runs   atomic.Int32
}

func (f *fixed) Kind() string  { return "Fixed" }
func (f *fixed) Bind(Env) Step { return f }
func (f *fixed) Execute(context.Context) (Status, error) {
	f.runs.Add(1)
	return f.status, f.err
}

type stepObserver struct {
	mu    sync.Mutex
	calls []string
}

func (o *stepObserver) ObserveStep(kind, status string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, kind+":"+status)
}

func TestClauseAggregate(t *testing.T) {
	tests := []struct {
		name     string
		clause   Clause
		statuses []Status
		want     Status
	}{
		{"any with one success", Any, []Status{Fail, Fail, Success}, Success},
		{"any without success", Any, []Status{SimulatedFail, Fail}, Fail},
		{"any simulated only", Any, []Status{SimulatedFail, SimulatedFail}, SimulatedFail},
		{"undefined all success", Undefined, []Status{Success, Success}, Success},
		{"undefined one failure", Undefined, []Status{Success, Success, Fail}, Fail},
		{"undefined simulated becomes fail", Undefined, []Status{Success, SimulatedFail}, Fail},
		{"all success", All, []Status{Success, Success, Success}, Success},
		{"all with simulated", All, []Status{Success, SimulatedFail, Success}, SimulatedFail},
		{"all with fail", All, []Status{Success, SimulatedFail, Fail}, Fail},
		{"majority wins", Majority, []Status{Success, Success, Fail}, Success},
		{"majority tie fails", Majority, []Status{Success, SimulatedFail}, SimulatedFail},
		{"majority minority", Majority, []Status{Success, Fail, Fail}, Fail},
		{"empty", All, nil, Success},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.clause.Aggregate(tt.statuses))
		})
	}
}

func TestClauseUnmarshal(t *testing.T) {
	tests := []struct {
		input   string
		want    Clause
		wantErr bool
	}{
		{`"Any"`, Any, false},
		{`"majority"`, Majority, false},
		{`"ALL"`, All, false},
		{`"Undefined"`, Undefined, false},
		{`"Sometimes"`, Undefined, false},
		{`2`, All, false},
		{`99`, Undefined, false},
		{`null`, Undefined, false},
		{`""`, Undefined, true},
		{`"   "`, Undefined, true},
		{`true`, Undefined, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var c Clause
			err := json.Unmarshal([]byte(tt.input), &c)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c)
		})
	}
}

func TestStatus(t *testing.T) {
	assert.True(t, Success < SimulatedFail && SimulatedFail < Fail)
	assert.Equal(t, Fail, Worst(Success, Fail, SimulatedFail))
	assert.Equal(t, Success, Worst())

	data, err := json.Marshal(SimulatedFail)
	require.NoError(t, err)
	assert.Equal(t, `"SimulatedFail"`, string(data))

	var s Status
	require.NoError(t, json.Unmarshal([]byte(`"fail"`), &s))
	assert.Equal(t, Fail, s)
	assert.Error(t, json.Unmarshal([]byte(`"maybe"`), &s))
}

func TestDelay(t *testing.T) {
	t.Run("negative time is an invalid operation", func(t *testing.T) {
		var logs bytes.Buffer
		d := (&Delay{Time: -2.0}).Bind(Env{
			Logger: logging.New(logging.Config{Level: logging.LevelDebug, Output: &logs}),
		})

		status, err := d.Execute(context.Background())
		require.Error(t, err)
		assert.Equal(t, Fail, status)
		assert.ErrorIs(t, err, ErrInvalidStep)
		assert.True(t, errdefs.IsFailedPrecondition(err))
		assert.Contains(t, logs.String(), "level=CRITICAL")
	})

	t.Run("zero time", func(t *testing.T) {
		status, err := (&Delay{Time: 0}).Bind(Env{}).Execute(context.Background())
		require.NoError(t, err)
		assert.Equal(t, Success, status)
	})

	t.Run("fractional seconds", func(t *testing.T) {
		if testing.Short() {
			t.Skip("sleeps for 1.5s")
		}
		start := time.Now()
		status, err := (&Delay{Time: 1.5}).Bind(Env{}).Execute(context.Background())
		require.NoError(t, err)
		assert.Equal(t, Success, status)
		assert.GreaterOrEqual(t, time.Since(start), 1500*time.Millisecond)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		status, err := (&Delay{Time: 30}).Bind(Env{}).Execute(ctx)
		assert.Equal(t, Fail, status)
		assert.ErrorIs(t, err, ErrCancelled)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestExecuteUnbound(t *testing.T) {
	for _, s := range []Step{&Delay{}, &Fault{}, &Load{Percentage: 1}, &Request{ClientName: "x"}, &Group{Steps: []string{"a"}}} {
		t.Run(s.Kind(), func(t *testing.T) {
			status, err := s.Execute(context.Background())
			assert.Equal(t, Fail, status)
			assert.ErrorIs(t, err, ErrUnbound)
			assert.True(t, errdefs.IsFailedPrecondition(err))
		})
	}
}

func TestBindIsIdempotent(t *testing.T) {
	var first, second bytes.Buffer
	d := &Delay{Time: -1}
	d.Bind(Env{Logger: logging.New(logging.Config{Output: &first})})
	d.Bind(Env{Logger: logging.New(logging.Config{Output: &second})})

	_, err := d.Execute(context.Background())
	require.Error(t, err)
	assert.NotEmpty(t, first.String())
	assert.Empty(t, second.String())
	assert.True(t, d.Bound())
}

func TestFault(t *testing.T) {
	f := &Fault{Probability: 0.5, roll: func() float64 { return 0.49 }}
	status, err := f.Bind(Env{}).Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SimulatedFail, status)

	f = &Fault{Probability: 0.5, roll: func() float64 { return 0.5 }}
	status, err = f.Bind(Env{}).Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Success, status)

	never := (&Fault{Probability: 0}).Bind(Env{})
	always := (&Fault{Probability: 1}).Bind(Env{})
	for range 50 {
		s, _ := never.Execute(context.Background())
		assert.Equal(t, Success, s)
		s, _ = always.Execute(context.Background())
		assert.Equal(t, SimulatedFail, s)
	}
}

func TestReplication(t *testing.T) {
	t.Run("any clause over mixed replicas", func(t *testing.T) {
		var n atomic.Int32
		outcomes := []Status{Fail, Fail, Success}
		f := &Fault{
			Replication: Replication{ParallelCount: ptr(uint(3)), FailOnParallelFailures: Any},
			Probability: 0.5,
		}
		f.roll = func() float64 {
			if outcomes[n.Add(1)-1] == Success {
				return 0.9
			}
			return 0.1
		}
		status, err := f.Bind(Env{}).Execute(context.Background())
		require.NoError(t, err)
		assert.Equal(t, Success, status)
		assert.Equal(t, int32(3), n.Load())
	})

	t.Run("undefined clause with one failing replica", func(t *testing.T) {
		var n atomic.Int32
		f := &Fault{
			Replication: Replication{ParallelCount: ptr(uint(3))},
			Probability: 0.5,
		}
		f.roll = func() float64 {
			if n.Add(1) == 3 {
				return 0.1
			}
			return 0.9
		}
		status, err := f.Bind(Env{}).Execute(context.Background())
		require.NoError(t, err)
		assert.Equal(t, Fail, status)
	})

	t.Run("zero parallel count runs once", func(t *testing.T) {
		var n atomic.Int32
		f := &Fault{Replication: Replication{ParallelCount: ptr(uint(0))}}
		f.roll = func() float64 { n.Add(1); return 0.9 }
		_, err := f.Bind(Env{}).Execute(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int32(1), n.Load())
	})

	t.Run("replicas run concurrently", func(t *testing.T) {
		d := (&Delay{Time: 0.2, Replication: Replication{ParallelCount: ptr(uint(5)), FailOnParallelFailures: All}}).Bind(Env{})
		start := time.Now()
		status, err := d.Execute(context.Background())
		require.NoError(t, err)
		assert.Equal(t, Success, status)
		assert.Less(t, time.Since(start), 900*time.Millisecond)
	})

	t.Run("replica error is returned", func(t *testing.T) {
		boom := errors.New("boom")
		r := Replication{ParallelCount: ptr(uint(4))}
		status, err := r.run(context.Background(), logging.Nop(), func(ctx context.Context) (Status, error) {
			return Fail, boom
		})
		assert.Equal(t, Fail, status)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("replica count above the limit is refused", func(t *testing.T) {
		var runs atomic.Int32
		r := Replication{ParallelCount: ptr(uint(MaxReplicas + 1))}
		status, err := r.run(context.Background(), logging.Nop(), func(ctx context.Context) (Status, error) {
			runs.Add(1)
			return Success, nil
		})
		assert.Equal(t, Fail, status)
		assert.ErrorIs(t, err, ErrInvalidStep)
		assert.Zero(t, runs.Load())
	})
}

func TestLoad(t *testing.T) {
	l := (&Load{Time: 0.05, Percentage: 50, ProcessorCount: 2}).Bind(Env{})
	start := time.Now()
	status, err := l.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Success, status)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	status, err = (&Load{Time: 10, Percentage: 10, ProcessorCount: 1}).Bind(Env{}).Execute(ctx)
	assert.Equal(t, Fail, status)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 2, (&Load{ProcessorCount: 2}).Workers())
	assert.Positive(t, (&Load{}).Workers())
}

func TestRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.WriteHeader(http.StatusNoContent)
		case "/teapot":
			w.WriteHeader(http.StatusTeapot)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	peer, err := client.New("peer", &client.Config{BaseAddress: srv.URL}, nil)
	require.NoError(t, err)
	dead, err := client.New("dead", &client.Config{BaseAddress: "http://127.0.0.1:1"}, nil)
	require.NoError(t, err)
	env := Env{Clients: &steps{clients: map[string]*client.Client{"peer": peer, "dead": dead}}}

	tests := []struct {
		name string
		step *Request
		want Status
	}{
		{"2xx", &Request{ClientName: "peer", Path: "/ok", Method: "post", PayloadSize: 40}, Success},
		{"4xx", &Request{ClientName: "peer", Path: "/teapot"}, SimulatedFail},
		{"5xx", &Request{ClientName: "peer", Path: "/broken"}, SimulatedFail},
		{"transport error", &Request{ClientName: "dead", Path: "/"}, Fail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, err := tt.step.Bind(env).Execute(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
		})
	}
	assert.Equal(t, []string{"peer"}, (&Request{ClientName: "peer"}).ClientRefs())

	_, err = (&Request{ClientName: "missing"}).Bind(env).Execute(context.Background())
	assert.True(t, errdefs.IsNotFound(err))
}

func TestRequest_PayloadIsHalved(t *testing.T) {
	var length atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		length.Store(r.ContentLength)
	}))
	defer srv.Close()

	peer, err := client.New("peer", &client.Config{BaseAddress: srv.URL}, nil)
	require.NoError(t, err)
	env := Env{Clients: &steps{clients: map[string]*client.Client{"peer": peer}}}

	status, err := (&Request{ClientName: "peer", Method: http.MethodPut, PayloadSize: 40}).Bind(env).Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Success, status)
	assert.Equal(t, int64(20), length.Load())
}

func TestGroup(t *testing.T) {
	a := &fixed{status: Success}
	b := &fixed{status: SimulatedFail}
	c := &fixed{status: Success}
	res := &steps{byName: map[string]Step{"a": a, "b": b, "c": c}}

	status, err := (&Group{Steps: []string{"a", "b", "c"}}).Bind(Env{Steps: res}).Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SimulatedFail, status)
	assert.Equal(t, int32(1), a.runs.Load())
	assert.Equal(t, int32(1), b.runs.Load())
	assert.Equal(t, int32(0), c.runs.Load(), "steps after a failure never run")

	_, err = (&Group{Steps: []string{"a", "missing"}}).Bind(Env{Steps: res}).Execute(context.Background())
	assert.True(t, errdefs.IsNotFound(err))

	assert.Equal(t, []string{"a", "b"}, (&Group{Steps: []string{"a", "b"}}).StepRefs())
}

func TestGroup_Asynchronous(t *testing.T) {
	done := make(chan struct{})
	slow := &signal{done: done}
	res := &steps{byName: map[string]Step{"slow": slow}}

	status, err := (&Group{Steps: []string{"slow"}, Asynchronous: true}).Bind(Env{Steps: res}).Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Success, status)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("asynchronous group never ran")
	}
}

func TestGroup_AsynchronousIsTracked(t *testing.T) {
	release := make(chan struct{})
	res := &steps{byName: map[string]Step{"held": &gate{release: release}}}
	bg := &Background{}

	status, err := (&Group{Steps: []string{"held"}, Asynchronous: true}).
		Bind(Env{Steps: res, Background: bg}).
		Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Success, status)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, bg.Wait(ctx), context.DeadlineExceeded, "group is still running")

	close(release)
	ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, bg.Wait(ctx))
}

func TestBackground_Nil(t *testing.T) {
	var bg *Background
	done := make(chan struct{})
	bg.Go(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("untracked goroutine never ran")
	}
	assert.NoError(t, bg.Wait(context.Background()))
}

// gate blocks until release is closed.
type gate struct{ release chan struct{} }

func (g *gate) Kind() string  { return "Gate" }
func (g *gate) Bind(Env) Step { return g }
func (g *gate) Execute(ctx context.Context) (Status, error) {
	select {
	case <-g.release:
		return Success, nil
	case <-ctx.Done():
		return Fail, ctx.Err()
	}
}

type signal struct{ done chan struct{} }

func (s *signal) Kind() string  { return "Signal" }
func (s *signal) Bind(Env) Step { return s }
func (s *signal) Execute(context.Context) (Status, error) {
	close(s.done)
	return Success, nil
}

func TestRunSequence(t *testing.T) {
	a := &fixed{status: SimulatedFail}
	b := &fixed{status: Success}
	res := &steps{byName: map[string]Step{"A": a, "B": b}}

	status, err := RunSequence(context.Background(), res, []string{"A", "B"}, nil)
	require.NoError(t, err)
	assert.Equal(t, SimulatedFail, status)
	assert.Equal(t, int32(0), b.runs.Load())

	boom := &fixed{status: Fail, err: errors.New("boom")}
	res.byName["boom"] = boom
	_, err = RunSequence(context.Background(), res, []string{"boom"}, nil)
	assert.ErrorContains(t, err, `step "boom"`)

	status, err = RunSequence(context.Background(), res, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Success, status)
}

func TestObserver(t *testing.T) {
	obs := &stepObserver{}
	_, err := (&Delay{}).Bind(Env{Observer: obs}).Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"DelayStep:Success"}, obs.calls)
}

func TestNewFactory(t *testing.T) {
	var logs bytes.Buffer
	f, err := NewFactory(Env{Logger: logging.New(logging.Config{Level: logging.LevelDebug, Output: &logs})})
	require.NoError(t, err)
	assert.Equal(t, []string{KindDelay, KindError, KindGroup, KindLoad, KindRequest}, f.Types())

	s, ok, err := f.CreateNamed("nap", `{"type":"DelayStep","value":{"time":-2}}`)
	require.Error(t, err, "negative time is rejected at load")
	assert.False(t, ok)
	assert.Nil(t, s)

	s, ok, err = f.CreateNamed("nap", `{"type":"DelayStep","value":{"time":0,"parallelCount":2,"failOnParallelFailures":"Majority"}}`)
	require.NoError(t, err)
	require.True(t, ok)
	d := s.(*Delay)
	assert.True(t, d.Bound())
	assert.Equal(t, 2, d.Replicas())
	assert.Equal(t, Majority, d.FailOnParallelFailures)

	_, _, err = f.CreateNamed("blank", `{"type":"DelayStep","value":{"time":1,"failOnParallelFailures":""}}`)
	assert.Error(t, err)

	_, _, err = f.CreateNamed("negative", `{"type":"DelayStep","value":{"time":1,"parallelCount":-1}}`)
	assert.Error(t, err)

	_, _, err = f.CreateNamed("huge", `{"type":"DelayStep","value":{"time":1,"parallelCount":100000000}}`)
	assert.ErrorIs(t, err, factory.ErrInvalidConfig)

	_, ok, err = f.CreateNamed("widest", `{"type":"DelayStep","value":{"time":1,"parallelCount":1024}}`)
	require.NoError(t, err)
	assert.True(t, ok)

	_, _, err = f.CreateNamed("odds", `{"type":"ErrorStep","value":{"probability":1.5}}`)
	assert.Error(t, err)

	_, _, err = f.CreateNamed("cpu", `{"type":"LoadStep","value":{"time":1,"percentage":0}}`)
	assert.Error(t, err)

	_, ok, err = f.CreateNamed("empty", `{"type":"GroupStep","value":{}}`)
	require.NoError(t, err)
	assert.False(t, ok)

	status, err := s.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Success, status)
	assert.Contains(t, logs.String(), "step=nap")
}
