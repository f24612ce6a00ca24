package extract

import "encoding/json"

// featureCatalogue lists the server feature flags reported as
// feature_<name> counters. A feature is considered used when any of its
// reported values is not "0".
var featureCatalogue = []string{
	"check_constraint",
	"delay_key_write",
	"dynamic_columns",
	"fulltext",
	"gis",
	"invisible_columns",
	"json",
	"locale",
	"subquery",
	"system_versioning",
	"timezone",
	"trigger",
	"window_functions",
	"xml",
}

// ServerFeatureExtractor emits one "features" fact per upload: a JSON
// object mapping each used feature name to true. Unused and unreported
// features are omitted entirely.
type ServerFeatureExtractor struct{}

func (e *ServerFeatureExtractor) RequiredKeys() []string {
	keys := make([]string, len(featureCatalogue))
	for i, name := range featureCatalogue {
		keys[i] = "feature_" + name
	}
	return keys
}

func (e *ServerFeatureExtractor) ExtractFacts(data ServerData) UploadFacts {
	result := make(UploadFacts)
	for serverID, uploads := range data {
		facts := make(map[int64]Facts)
		for uploadID, upload := range uploads {
			used := make(map[string]bool)
			for _, name := range featureCatalogue {
				for _, value := range upload["feature_"+name] {
					if value != "0" {
						used[name] = true
						break
					}
				}
			}
			if len(used) == 0 {
				continue
			}
			encoded, err := json.Marshal(used)
			if err != nil {
				continue
			}
			facts[uploadID] = Facts{"features": string(encoded)}
		}
		result[serverID] = facts
	}
	return result
}
