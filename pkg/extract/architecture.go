package extract

import (
	"regexp"
	"strings"
)

// archPattern pairs an ordered match pattern with its canonical bucket.
// Ordering matters: the x86_64 pattern must be tested before the broader
// x86 pattern so "x86_64" is never misclassified as "x86".
type archPattern struct {
	re     *regexp.Regexp
	bucket string
}

var archPatterns = []archPattern{
	{regexp.MustCompile(`^(x(86_)?64|amd64)$`), "x86_64"},
	{regexp.MustCompile(`^[ix][3-6]*86$`), "x86"},
	{regexp.MustCompile(`^armv[5-7]`), "arm"},
	{regexp.MustCompile(`^(aarch64|arm64)$`), "armv8"},
	{regexp.MustCompile(`^hp_`), "HP Itanium"},
	{regexp.MustCompile(`^alpha`), "Alpha"},
	{regexp.MustCompile(`^mips$`), "MIPS"},
}

// distroKeywords maps substrings of the reported distribution string to a
// pretty form. First match wins.
var distroKeywords = []struct {
	patterns []string
	pretty   string
}{
	{[]string{"archlinux"}, "ArchLinux"},
	{[]string{"centos", "rhel"}, "CentOS"},
	{[]string{"fedora"}, "Fedora"},
	{[]string{"gentoo"}, "Gentoo"},
	{[]string{"mint"}, "Linux Mint"},
	{[]string{"redhat", "rhel"}, "Red Hat Enterprise Linux"},
	{[]string{"ubuntu"}, "Ubuntu"},
	{[]string{"debian"}, "Debian"},
}

var firstDigit = regexp.MustCompile(`[0-9]`)

// ArchitectureExtractor derives operating system, hardware architecture,
// distribution and OS version facts from uname fields. Each fact is
// emitted only when its source key is present; a server's most recent
// upload in the window wins.
type ArchitectureExtractor struct{}

func (e *ArchitectureExtractor) RequiredKeys() []string {
	return []string{
		"uname_machine", "uname_sysname", "uname_version",
		"uname_distribution", "uname_release",
	}
}

func (e *ArchitectureExtractor) ExtractFacts(data ServerData) ServerFacts {
	result := make(ServerFacts)
	for serverID, uploads := range data {
		facts := make(Facts)
		for _, uploadID := range sortedUploadIDs(uploads) {
			upload := uploads[uploadID]
			if os, ok := extractOperatingSystem(upload); ok {
				facts["operating_system"] = os
			}
			if arch, ok := extractMachineArchitecture(upload); ok {
				facts["hardware_architecture"] = arch
			}
			if distro, ok := extractDistribution(upload); ok {
				facts["distribution"] = distro
			}
			if version, ok := extractOSVersion(upload); ok {
				facts["operating_system_version"] = version
			}
		}
		result[serverID] = facts
	}
	return result
}

func extractOperatingSystem(upload UploadData) (string, bool) {
	sysname, ok := upload.Last("uname_sysname")
	if !ok {
		return "", false
	}
	sysname = strings.ToLower(sysname)
	switch {
	case strings.Contains(sysname, "linux"):
		return "Linux", true
	case strings.Contains(sysname, "windows"):
		return "Windows", true
	case strings.Contains(sysname, "freebsd"):
		return "FreeBSD", true
	case strings.Contains(sysname, "darwin"):
		return "OSX", true
	}
	return "unknown", true
}

func extractMachineArchitecture(upload UploadData) (string, bool) {
	machine, ok := upload.Last("uname_machine")
	if !ok {
		return "", false
	}
	machine = strings.ToLower(machine)
	for _, p := range archPatterns {
		if p.re.MatchString(machine) {
			return p.bucket, true
		}
	}
	return machine, true
}

func extractDistribution(upload UploadData) (string, bool) {
	distro, ok := upload.Last("uname_distribution")
	if !ok {
		return "", false
	}
	distro = strings.ToLower(distro)
	for _, kw := range distroKeywords {
		for _, pattern := range kw.patterns {
			if strings.Contains(distro, pattern) {
				return kw.pretty, true
			}
		}
	}
	return distro, true
}

// extractOSVersion reports the raw uname_version, collapsed to "unknown"
// for kernel build strings (anything mentioning smp). For distributions
// reporting a "<name> linux release N.N" string, the release number is
// recovered instead.
func extractOSVersion(upload UploadData) (string, bool) {
	version, ok := upload.Last("uname_version")
	if !ok {
		return "", false
	}
	version = strings.ToLower(version)
	if !strings.Contains(version, "smp") {
		return version, true
	}

	distro, ok := upload.Last("uname_distribution")
	if !ok {
		return "unknown", true
	}
	distro = strings.ToLower(distro)
	if !strings.Contains(distro, "linux release") {
		return "unknown", true
	}
	loc := firstDigit.FindStringIndex(distro)
	if loc == nil {
		return "unknown", true
	}
	return distro[loc[0]:], true
}
