// Package filler produces deterministic padding text for simulated payloads.
package filler

import "strings"

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// block is reused for every request up to its length.
var block = strings.Repeat(alphabet, 1024)

// Length returns the number of characters used to pad a payload of the
// requested size. Characters are counted as two bytes, so the result is
// half the size, rounded down.
func Length(size uint) int {
	return int(size / 2)
}

// String returns n characters of filler text.
func String(n int) string {
	if n <= 0 {
		return ""
	}
	if n <= len(block) {
		return block[:n]
	}
	var b strings.Builder
	b.Grow(n)
	for b.Len() < n {
		rest := n - b.Len()
		if rest > len(block) {
			rest = len(block)
		}
		b.WriteString(block[:rest])
	}
	return b.String()
}

// Chunks returns n characters of filler text split into pieces of at most
// size characters. It returns an empty, non-nil slice when n is zero.
func Chunks(n, size int) []string {
	if size <= 0 {
		size = n
	}
	out := make([]string, 0, chunkCount(n, size))
	for n > 0 {
		c := min(n, size)
		out = append(out, String(c))
		n -= c
	}
	return out
}

func chunkCount(n, size int) int {
	if n <= 0 || size <= 0 {
		return 0
	}
	return (n + size - 1) / size
}
