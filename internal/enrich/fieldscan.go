package enrich

import (
	"encoding/json"
	"strings"
)

// fieldScanner watches a streaming JSON object and reports each top-level
// field as soon as its value is complete, so fields reach the caller
// before the terminal result does. Re-scanning the accumulated buffer on
// every delta keeps the scanner stateless across chunk boundaries; the
// emitted set deduplicates across rescans (and across a mid-stream retry).
type fieldScanner struct {
	buf     strings.Builder
	emitted map[string]bool
	emit    func(name string, value json.RawMessage)
}

func newFieldScanner(emit func(string, json.RawMessage)) *fieldScanner {
	return &fieldScanner{emitted: make(map[string]bool), emit: emit}
}

// feed appends a text delta and emits any newly completed fields.
func (fs *fieldScanner) feed(delta string) {
	fs.buf.WriteString(delta)
	for _, f := range scanTopLevelFields(fs.buf.String()) {
		if !fs.emitted[f.name] {
			fs.emitted[f.name] = true
			fs.emit(f.name, f.value)
		}
	}
}

// reset clears the buffer for a retried call while keeping the emitted set.
func (fs *fieldScanner) reset() {
	fs.buf.Reset()
}

type scannedField struct {
	name  string
	value json.RawMessage
}

// scanTopLevelFields extracts the complete top-level key/value pairs from a
// possibly truncated JSON object. Scanning stops at the first incomplete
// or malformed element.
func scanTopLevelFields(s string) []scannedField {
	var fields []scannedField

	i := strings.IndexByte(s, '{')
	if i < 0 {
		return nil
	}
	i++

	n := len(s)
	for i < n {
		i = skipSpace(s, i)
		if i < n && s[i] == ',' {
			i = skipSpace(s, i+1)
		}
		if i >= n || s[i] == '}' {
			return fields
		}
		if s[i] != '"' {
			return fields
		}

		key, next, ok := readJSONString(s, i)
		if !ok {
			return fields
		}
		i = skipSpace(s, next)
		if i >= n || s[i] != ':' {
			return fields
		}
		i = skipSpace(s, i+1)
		if i >= n {
			return fields
		}

		end, ok := scanValue(s, i)
		if !ok {
			return fields
		}
		fields = append(fields, scannedField{name: key, value: json.RawMessage(s[i:end])})
		i = end
	}
	return fields
}

func skipSpace(s string, i int) int {
	for i < len(s) {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
			i++
		default:
			return i
		}
	}
	return i
}

// readJSONString decodes the string literal starting at s[i] == '"'.
// Returns the decoded value and the index past the closing quote.
func readJSONString(s string, i int) (string, int, bool) {
	end, ok := scanString(s, i)
	if !ok {
		return "", 0, false
	}
	var out string
	if err := json.Unmarshal([]byte(s[i:end]), &out); err != nil {
		return "", 0, false
	}
	return out, end, true
}

// scanString returns the index past the closing quote of the string
// literal starting at s[i] == '"'.
func scanString(s string, i int) (int, bool) {
	i++ // opening quote
	for i < len(s) {
		switch s[i] {
		case '\\':
			i += 2
		case '"':
			return i + 1, true
		default:
			i++
		}
	}
	return 0, false
}

// scanValue returns the index past the complete JSON value starting at
// s[i], or false if the value is still truncated.
func scanValue(s string, i int) (int, bool) {
	switch s[i] {
	case '"':
		return scanString(s, i)
	case '{', '[':
		return scanContainer(s, i)
	default:
		// Number, bool, or null: complete only once a terminator is seen
		// (a trailing digit could still be mid-number).
		for j := i; j < len(s); j++ {
			switch s[j] {
			case ',', '}', ']', ' ', '\t', '\n', '\r':
				return j, j > i
			}
		}
		return 0, false
	}
}

// scanContainer returns the index past the matching close bracket of the
// object or array starting at s[i].
func scanContainer(s string, i int) (int, bool) {
	depth := 0
	for i < len(s) {
		switch s[i] {
		case '"':
			end, ok := scanString(s, i)
			if !ok {
				return 0, false
			}
			i = end
			continue
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
		i++
	}
	return 0, false
}
