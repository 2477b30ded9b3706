// Package cli provides the command-line interface for mockmesh.
//
// Commands:
//   - serve: load configuration, run startup processors and serve HTTP
//   - validate: build the registry from configuration without serving
//   - run: execute one request processor in-process and print the response
//   - version: show build information
//
// Every command reads the same configuration: files from --config (paths or
// globs, repeatable), else MOCKMESH_CONFIG, else mockmesh.yaml. MOCKMESH_*
// environment variables override file settings and flags override both.
//
// Usage:
//
//	mockmesh serve -c node.yaml --port 9000
//	mockmesh validate -c 'mesh/**/*.yaml' --json
//	mockmesh run checkout
package cli
