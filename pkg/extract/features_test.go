package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServerFeatureExtractor(t *testing.T) {
	data := make(ServerData)
	data.Add(1, 10, "feature_json", "5")
	data.Add(1, 10, "feature_subquery", "0")
	data.Add(1, 10, "feature_gis", "2")

	facts := (&ServerFeatureExtractor{}).ExtractFacts(data)

	var used map[string]bool
	err := json.Unmarshal([]byte(facts[1][10]["features"]), &used)
	assert.NoError(t, err)
	assert.Equal(t, map[string]bool{"json": true, "gis": true}, used)
}

func TestServerFeatureExtractor_AnyNonZeroValueCounts(t *testing.T) {
	data := make(ServerData)
	data.Add(1, 10, "feature_trigger", "0")
	data.Add(1, 10, "feature_trigger", "3")

	facts := (&ServerFeatureExtractor{}).ExtractFacts(data)

	var used map[string]bool
	err := json.Unmarshal([]byte(facts[1][10]["features"]), &used)
	assert.NoError(t, err)
	assert.True(t, used["trigger"])
}

func TestServerFeatureExtractor_NoUsedFeatures(t *testing.T) {
	data := make(ServerData)
	data.Add(1, 10, "feature_xml", "0")
	data.Add(1, 10, "version", "10.6.12")

	facts := (&ServerFeatureExtractor{}).ExtractFacts(data)

	_, ok := facts[1][10]
	assert.False(t, ok)
}

func TestServerFeatureExtractor_RequiredKeys(t *testing.T) {
	keys := (&ServerFeatureExtractor{}).RequiredKeys()

	assert.Len(t, keys, len(featureCatalogue))
	assert.Contains(t, keys, "feature_json")
	assert.Contains(t, keys, "feature_window_functions")
}
