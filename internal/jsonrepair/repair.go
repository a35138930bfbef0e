// Package jsonrepair closes truncated JSON produced by language models so it can be parsed.
package jsonrepair

import "strings"

// Repair returns text with any unterminated string, array and object closed.
//
// It is a heuristic, not a parser: nesting is assumed well formed up to the point of
// truncation, and malformed keys, trailing commas or interior corruption are left alone.
// Text that already ends with '}' is returned unchanged, as is text that needs no closing.
func Repair(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || strings.HasSuffix(trimmed, "}") {
		return text
	}

	var (
		open     []byte // unclosed '[' and '{' in nesting order
		inString bool
		escaped  bool
	)
	for i := 0; i < len(trimmed); i++ {
		c := trimmed[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[', '{':
			open = append(open, c)
		case ']', '}':
			if n := len(open); n > 0 {
				open = open[:n-1]
			}
		}
	}

	if !inString && len(open) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(trimmed) + len(open) + 1)
	if escaped {
		// A dangling backslash would escape the closing quote.
		trimmed = trimmed[:len(trimmed)-1]
	}
	b.WriteString(trimmed)
	if inString {
		b.WriteByte('"')
	}
	for i := len(open) - 1; i >= 0; i-- {
		if open[i] == '[' {
			b.WriteByte(']')
		} else {
			b.WriteByte('}')
		}
	}
	return b.String()
}
