// Package step defines the units of simulated work a processor runs.
//
// Each step kind is configured as a discriminated entry:
//
//	{"type": "DelayStep", "value": {"time": 1.5, "parallelCount": 4, "failOnParallelFailures": "Majority"}}
//
// Every kind embeds Replication. With a parallel count the step's work runs
// as that many concurrent replicas and their statuses are combined by the
// configured Clause.
//
// Steps decoded from configuration are unbound. Execute returns ErrUnbound
// until Bind attaches an Env carrying the logger and the resolvers used by
// request and group steps.
package step
