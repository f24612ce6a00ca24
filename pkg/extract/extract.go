// Package extract derives server- and upload-scoped facts from raw
// feedback fields. Extractors are pure functions over an in-memory
// grouping of data points; they never touch storage.
package extract

import "sort"

// UploadData maps lowercased data keys to their values in fetch order.
// Consumers take the last value unless they need the full list.
type UploadData map[string][]string

// Last returns the most recent value for key, or "" when absent.
func (u UploadData) Last(key string) (string, bool) {
	vals := u[key]
	if len(vals) == 0 {
		return "", false
	}
	return vals[len(vals)-1], true
}

// ServerData groups fetched data points by server and upload:
// server id → upload id → lowercased key → ordered values.
type ServerData map[int64]map[int64]UploadData

// Add appends one data point. Keys must already be lowercased by the
// caller; normalization happens once at construction, not per consumer.
func (s ServerData) Add(serverID, uploadID int64, key, value string) {
	uploads, ok := s[serverID]
	if !ok {
		uploads = make(map[int64]UploadData)
		s[serverID] = uploads
	}
	data, ok := uploads[uploadID]
	if !ok {
		data = make(UploadData)
		uploads[uploadID] = data
	}
	data[key] = append(data[key], value)
}

// Facts is a set of derived key/value annotations.
type Facts map[string]string

// ServerFacts maps server id to its derived facts.
type ServerFacts map[int64]Facts

// UploadFacts maps server id → upload id → derived facts.
type UploadFacts map[int64]map[int64]Facts

// Extractor declares the data keys a fact transform needs. Keys are
// matched case-insensitively when gathering data.
type Extractor interface {
	RequiredKeys() []string
}

// ServerFactExtractor derives facts keyed by server only.
type ServerFactExtractor interface {
	Extractor
	ExtractFacts(data ServerData) ServerFacts
}

// UploadFactExtractor derives facts keyed by server and upload.
type UploadFactExtractor interface {
	Extractor
	ExtractFacts(data ServerData) UploadFacts
}

// Registry holds the extractors of each capability in registration order.
// It is populated explicitly at process start; there is no runtime
// discovery.
type Registry struct {
	server []ServerFactExtractor
	upload []UploadFactExtractor
}

func NewRegistry() *Registry {
	return &Registry{}
}

// DefaultRegistry returns a registry with every built-in extractor.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.RegisterServer(&ArchitectureExtractor{})
	r.RegisterUpload(&ServerVersionExtractor{})
	r.RegisterUpload(&ServerFeatureExtractor{})
	return r
}

func (r *Registry) RegisterServer(extractors ...ServerFactExtractor) {
	r.server = append(r.server, extractors...)
}

func (r *Registry) RegisterUpload(extractors ...UploadFactExtractor) {
	r.upload = append(r.upload, extractors...)
}

// ServerExtractors returns the registered server-fact extractors in
// registration order.
func (r *Registry) ServerExtractors() []ServerFactExtractor {
	return r.server
}

// UploadExtractors returns the registered upload-fact extractors in
// registration order.
func (r *Registry) UploadExtractors() []UploadFactExtractor {
	return r.upload
}

// RequiredKeys unions the required keys of the given extractors, sorted
// for deterministic queries.
func RequiredKeys[E Extractor](extractors []E) []string {
	seen := make(map[string]struct{})
	for _, e := range extractors {
		for _, key := range e.RequiredKeys() {
			seen[key] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MergeServerFacts runs every extractor and merges the results.
// Extractors run in slice order; on fact key collision the later
// extractor wins.
func MergeServerFacts(extractors []ServerFactExtractor, data ServerData) ServerFacts {
	merged := make(ServerFacts)
	for _, e := range extractors {
		for serverID, facts := range e.ExtractFacts(data) {
			if merged[serverID] == nil {
				merged[serverID] = make(Facts)
			}
			for key, value := range facts {
				merged[serverID][key] = value
			}
		}
	}
	return merged
}

// MergeUploadFacts runs every extractor and merges the results, with the
// same last-writer-wins rule as MergeServerFacts.
func MergeUploadFacts(extractors []UploadFactExtractor, data ServerData) UploadFacts {
	merged := make(UploadFacts)
	for _, e := range extractors {
		for serverID, uploads := range e.ExtractFacts(data) {
			if merged[serverID] == nil {
				merged[serverID] = make(map[int64]Facts)
			}
			for uploadID, facts := range uploads {
				if merged[serverID][uploadID] == nil {
					merged[serverID][uploadID] = make(Facts)
				}
				for key, value := range facts {
					merged[serverID][uploadID][key] = value
				}
			}
		}
	}
	return merged
}

// sortedUploadIDs returns the upload ids of one server in ascending
// order, so "latest upload wins" derivations are deterministic.
func sortedUploadIDs(uploads map[int64]UploadData) []int64 {
	ids := make([]int64, 0, len(uploads))
	for id := range uploads {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
