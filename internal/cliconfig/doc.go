// Package cliconfig layers environment variables and command-line flags
// over the settings read from configuration files.
//
// Precedence, highest first:
//
//  1. Command-line flags
//  2. Environment variables (MOCKMESH_* prefix)
//  3. Configuration files
//  4. Default values
//
// Overrides records the source of every value it applies so the validate
// command can report where a setting came from.
package cliconfig
