// Package metrics exports mockmesh activity as Prometheus metrics.
//
// A Collector holds a private registry so several engines (or tests) can run
// in one process without colliding on metric names. It implements the
// observer interfaces of the step, policy, registry and engine packages and
// is wired in through their options.
//
// # Metrics
//
//   - mockmesh_processor_requests_total: processor executions (labels: processor, status)
//   - mockmesh_processor_duration_seconds: processor time (labels: processor)
//   - mockmesh_step_executions_total: step executions (labels: kind, status)
//   - mockmesh_step_duration_seconds: step time (labels: kind)
//   - mockmesh_policy_events_total: policy activity (labels: policy, kind, event)
//   - mockmesh_registry_entries: loaded entries (labels: section)
//
// Status labels use the execution status names (Success, SimulatedFail,
// Fail) plus Error for requests that ended in an error before a status was
// produced.
//
// # Usage
//
//	collector := metrics.NewCollector(metrics.WithRuntimeMetrics())
//	reg, err := registry.Load(ctx, settings, registry.WithObserver(collector))
//	eng := engine.New(reg, engine.WithObserver(collector))
//	mux.Handle("/metrics", collector.Handler())
package metrics
