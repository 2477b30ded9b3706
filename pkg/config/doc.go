// Package config loads node settings from YAML or JSON files.
//
// A node file carries listener, logging and metrics settings plus the four
// entry sections the registry reads:
//
//	server:
//	  port: 8080
//	logging:
//	  level: info
//	steps:
//	  nap:
//	    type: DelayStep
//	    value: { time: 0.25 }
//	  jitter: '{"type":"ErrorStep","value":{"probability":0.1}}'
//	processors:
//	  checkout:
//	    type: RequestProcessor
//	    value: { steps: [nap, jitter], latency: 20, successSize: 2048 }
//
// Entries may be inline mappings or JSON strings; both decode to the same
// JSON text. Several files can be combined with Load and glob patterns
// (** is supported). An entry name defined twice is an error.
package config
