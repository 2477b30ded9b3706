// Package id provides identifier generation for mockmesh.
//
//   - UUID: random version 4 UUIDs from github.com/google/uuid
//   - Short: 16 hex characters for log correlation
//   - Request: accepts a caller's X-Request-ID or generates one
package id
