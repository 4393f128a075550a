package version

import (
	"fmt"
	"runtime"
	"time"
)

// Version information - using semantic versioning
const (
	Major         = 0
	Minor         = 4
	Patch         = 0
	PreRelease    = "" // e.g., "alpha", "beta", "rc1"
	BuildMetadata = ""
)

// Set at link time with -ldflags "-X .../pkg/version.GitCommit=...".
var (
	GitCommit = ""
	BuildDate = ""
)

const productName = "Dashboard Core"

// Version returns the semantic version string
func Version() string {
	version := fmt.Sprintf("%d.%d.%d", Major, Minor, Patch)

	if PreRelease != "" {
		version += "-" + PreRelease
	}

	if BuildMetadata != "" {
		version += "+" + BuildMetadata
	}

	return version
}

// BuildInfo contains build information reported at startup.
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	Product   string `json:"product"`
}

// GetBuildInfo returns complete build information
func GetBuildInfo() *BuildInfo {
	buildDate := BuildDate
	if buildDate == "" {
		buildDate = time.Now().UTC().Format(time.RFC3339)
	}

	return &BuildInfo{
		Version:   Version(),
		GitCommit: GitCommit,
		BuildDate: buildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		Product:   productName,
	}
}

// GetVersionString returns the version with a short commit when known.
func GetVersionString() string {
	if len(GitCommit) >= 7 {
		return fmt.Sprintf("%s (%s)", Version(), GitCommit[:7])
	}
	return Version()
}

// GetBanner returns a one-block startup banner.
func GetBanner() string {
	info := GetBuildInfo()
	banner := fmt.Sprintf("%s v%s\n  go: %s  platform: %s  built: %s",
		info.Product, info.Version, info.GoVersion, info.Platform, info.BuildDate)
	if len(info.GitCommit) >= 7 {
		banner += "\n  commit: " + info.GitCommit[:7]
	}
	return banner
}

// CompareVersions compares two semantic versions
// Returns: -1 if v1 < v2, 0 if v1 == v2, 1 if v1 > v2
func CompareVersions(v1Major, v1Minor, v1Patch, v2Major, v2Minor, v2Patch int) int {
	for _, d := range [][2]int{{v1Major, v2Major}, {v1Minor, v2Minor}, {v1Patch, v2Patch}} {
		if d[0] < d[1] {
			return -1
		}
		if d[0] > d[1] {
			return 1
		}
	}
	return 0
}
