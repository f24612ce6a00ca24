// Package report decodes raw feedback payloads uploaded by database
// servers: tab-separated key/value rows, one field pair per line.
package report

import (
	"bytes"
	"strings"
)

// Well-known report keys consumed by the ingest pipeline.
const (
	KeyServerUID = "FEEDBACK_SERVER_UID"
	KeyUserInfo  = "FEEDBACK_USER_INFO"

	// OptOutMarker flags reports produced by test runs; they are discarded.
	OptOutMarker = "mysql-test"
)

// Field is one key/value row of a report, in upload order.
type Field struct {
	Key   string
	Value string
}

// Report is a decoded payload. Fields preserves row order; lookups by key
// return the last value when a key repeats.
type Report struct {
	Fields []Field

	values map[string][]string
}

// Parse decodes a payload. Embedded NUL bytes are stripped first; rows
// that do not split into exactly two tab-separated fields are dropped.
// Parse never fails: a fully malformed payload yields an empty report.
func Parse(payload []byte) *Report {
	clean := bytes.ReplaceAll(payload, []byte{0}, nil)

	r := &Report{values: make(map[string][]string)}
	for _, line := range strings.Split(string(clean), "\n") {
		line = strings.TrimSuffix(line, "\r")
		parts := strings.Split(line, "\t")
		if len(parts) != 2 {
			continue
		}
		r.Fields = append(r.Fields, Field{Key: parts[0], Value: parts[1]})
		r.values[parts[0]] = append(r.values[parts[0]], parts[1])
	}
	return r
}

// Get returns the last value recorded for key.
func (r *Report) Get(key string) (string, bool) {
	vals := r.values[key]
	if len(vals) == 0 {
		return "", false
	}
	return vals[len(vals)-1], true
}

// Values returns every value recorded for key, in row order.
func (r *Report) Values(key string) []string {
	return r.values[key]
}

// Has reports whether the key appeared in the payload.
func (r *Report) Has(key string) bool {
	return len(r.values[key]) > 0
}

// Len returns the number of well-formed rows.
func (r *Report) Len() int {
	return len(r.Fields)
}
