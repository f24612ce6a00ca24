package extract

import "regexp"

var versionPattern = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)`)

// ServerVersionExtractor parses the dotted major.minor.point server
// version out of the last reported "version" value. A value that does
// not match yields no facts for that upload.
type ServerVersionExtractor struct{}

func (e *ServerVersionExtractor) RequiredKeys() []string {
	return []string{"version"}
}

func (e *ServerVersionExtractor) ExtractFacts(data ServerData) UploadFacts {
	result := make(UploadFacts)
	for serverID, uploads := range data {
		facts := make(map[int64]Facts)
		for uploadID, upload := range uploads {
			version, ok := upload.Last("version")
			if !ok {
				continue
			}
			matches := versionPattern.FindStringSubmatch(version)
			if matches == nil {
				continue
			}
			facts[uploadID] = Facts{
				"server_version_major": matches[1],
				"server_version_minor": matches[2],
				"server_version_point": matches[3],
			}
		}
		result[serverID] = facts
	}
	return result
}
