package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Common errors for configuration loading.
var (
	ErrFileNotFound     = errors.New("configuration file not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidJSON      = errors.New("invalid JSON syntax")
	ErrInvalidYAML      = errors.New("invalid YAML syntax")
	ErrEmptyFile        = errors.New("configuration file is empty")
	ErrNoFiles          = errors.New("no configuration files matched")
	ErrDuplicateEntry   = errors.New("duplicate configuration entry")
)

// Load reads every file matched by patterns and merges them over the
// defaults. Patterns may be plain paths or globs; ** matches across
// directories. Files are read in sorted order. Later files override server,
// logging and metrics settings; an entry name defined in two files is an
// error.
func Load(patterns ...string) (*Settings, error) {
	files, err := ExpandPatterns(patterns...)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFiles, strings.Join(patterns, ", "))
	}

	merged := DefaultSettings()
	owners := make(map[string]string)
	for _, path := range files {
		data, err := readFile(path)
		if err != nil {
			return nil, err
		}

		next := *merged
		next.Processors, next.Steps, next.Policies, next.Clients = nil, nil, nil, nil
		if err := decode(path, data, &next); err != nil {
			return nil, err
		}

		if err := merged.mergeEntries(&next, path, owners); err != nil {
			return nil, err
		}
		merged.Server = next.Server
		merged.Logging = next.Logging
		merged.Metrics = next.Metrics
		merged.Sources = append(merged.Sources, path)
	}

	if err := merged.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return merged, nil
}

// LoadFile reads a single file over the defaults.
func LoadFile(path string) (*Settings, error) {
	return Load(path)
}

// ParseYAML parses YAML bytes over the defaults and validates the result.
func ParseYAML(data []byte) (*Settings, error) {
	s := DefaultSettings()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return s, nil
}

// ParseJSON parses JSON bytes over the defaults and validates the result.
func ParseJSON(data []byte) (*Settings, error) {
	s := DefaultSettings()
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return s, nil
}

// ExpandPatterns resolves paths and glob patterns to a sorted, de-duplicated
// list of files. A plain path must exist; a glob may match nothing.
func ExpandPatterns(patterns ...string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}

		var matches []string
		if isGlob(pattern) {
			m, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("expanding glob pattern %q: %w", pattern, err)
			}
			matches = m
		} else {
			matches = []string{pattern}
		}

		for _, m := range matches {
			if !isConfigFile(m) && isGlob(pattern) {
				continue
			}
			clean := filepath.Clean(m)
			if !seen[clean] {
				seen[clean] = true
				files = append(files, clean)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

func isGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

func isConfigFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

func readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}
	return data, nil
}

// decode picks the format from the extension; anything but .json is YAML.
func decode(path string, data []byte, into *Settings) error {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if !json.Valid(data) {
			return fmt.Errorf("%w in file: %s", ErrInvalidJSON, path)
		}
		if err := json.Unmarshal(data, into); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, into); err != nil {
		return fmt.Errorf("%w in file %s: %v", ErrInvalidYAML, path, err)
	}
	return nil
}

func (s *Settings) mergeEntries(from *Settings, path string, owners map[string]string) error {
	sections := []struct {
		name string
		dst  *Section
		src  Section
	}{
		{"processors", &s.Processors, from.Processors},
		{"steps", &s.Steps, from.Steps},
		{"policies", &s.Policies, from.Policies},
		{"clients", &s.Clients, from.Clients},
	}
	for _, sec := range sections {
		for _, name := range sortedNames(sec.src) {
			key := sec.name + "/" + name
			if prev, dup := owners[key]; dup {
				return fmt.Errorf("%w: %s %q defined in %s and %s", ErrDuplicateEntry, sec.name, name, prev, path)
			}
			owners[key] = path
			if *sec.dst == nil {
				*sec.dst = make(Section)
			}
			(*sec.dst)[name] = sec.src[name]
		}
	}
	return nil
}

func sortedNames(s Section) []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
