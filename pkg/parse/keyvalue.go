// Package parse turns the raw text fields of a benchmark submission into
// structured records. Parsers are pure functions: malformed input produces a
// partially populated result, never an error, so one bad submission cannot
// block its siblings.
package parse

import (
	"strings"
)

// nullLiteral is recorded as an absent value.
const nullLiteral = "null"

// fields holds the outcome of scanning a raw "key: value" text field against
// a fixed key set.
type fields struct {
	values      map[string]*string
	unknownKeys []string
}

// get returns the accumulated value for key, or nil if the key was absent or
// carried the null literal.
func (f *fields) get(key string) *string {
	return f.values[key]
}

// isKeyCandidate reports whether token starts with a lowercase identifier
// followed by a colon. Tokens like "https://example.com" qualify here and are
// filtered by the recognized-key check in scanKeyValues.
func isKeyCandidate(token string) (key, inline string, ok bool) {
	idx := strings.IndexByte(token, ':')
	if idx <= 0 {
		return "", "", false
	}

	key = token[:idx]
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c >= 'a' && c <= 'z' || c == '_' || (i > 0 && c >= '0' && c <= '9') {
			continue
		}

		return "", "", false
	}

	return key, token[idx+1:], true
}

// scanKeyValues splits raw into space-separated tokens and assigns them to the
// recognized keys. A value extends until the next recognized key token or end
// of input. Two token shapes open a field: "key:" with the value in following
// tokens, and the inline "key:value" form. An unrecognized bare "key:" token
// closes the current value and is reported, leaving earlier keys intact. Empty
// or blank input yields all keys absent.
func scanKeyValues(raw string, keys []string) *fields {
	recognized := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		recognized[k] = struct{}{}
	}

	out := &fields{values: make(map[string]*string, len(keys))}

	var (
		current string
		parts   []string
	)

	flush := func() {
		if current == "" {
			return
		}

		value := strings.Join(parts, " ")
		if value == "" || value == nullLiteral {
			out.values[current] = nil
		} else {
			out.values[current] = &value
		}

		current = ""
		parts = nil
	}

	for _, token := range strings.Fields(raw) {
		key, inline, ok := isKeyCandidate(token)
		if ok {
			if _, known := recognized[key]; known {
				flush()

				current = key
				if inline != "" {
					parts = append(parts, inline)
				}

				continue
			}

			// A bare unknown "key:" token ends the current value. Inline
			// colons ("https://...") stay part of the value.
			if inline == "" {
				flush()

				out.unknownKeys = append(out.unknownKeys, key)

				continue
			}
		}

		if current != "" {
			parts = append(parts, token)
		}
	}

	flush()

	return out
}
