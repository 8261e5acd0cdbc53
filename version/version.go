/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package version

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"time"
)

var (
	// These are populated at build time via -ldflags.
	Version    = "dev"
	CommitHash = "unknown"
	BuildDate  = "unknown"
)

// GetBuildInfoImpl is the injectable implementation backing GetBuildInfo,
// overridable in tests.
var GetBuildInfoImpl = func() (string, string, string) {
	version := Version
	commitHash := CommitHash
	buildDate := BuildDate

	if version == "dev" || version == "unknown" ||
		commitHash == "unknown" || buildDate == "unknown" {

		if info, ok := debug.ReadBuildInfo(); ok {
			if (version == "dev" || version == "unknown") && info.Main.Version != "" && info.Main.Version != "(devel)" {
				version = strings.TrimPrefix(info.Main.Version, "v")
			}
			if (commitHash == "unknown" || len(commitHash) < 7) && info.Main.Version != "" {
				parts := strings.Split(info.Main.Version, "-")
				if len(parts) >= 3 {
					possibleCommit := parts[len(parts)-1]
					if len(possibleCommit) >= 7 {
						commitHash = possibleCommit
					}
				}
			}
			if buildDate == "unknown" {
				for _, setting := range info.Settings {
					if setting.Key == "vcs.time" {
						if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
							buildDate = t.Format("2006-01-02 15:04:05")
						} else {
							buildDate = setting.Value
						}
					}
				}
			}
		}
	}
	if buildDate == "unknown" {
		if execPath, err := os.Executable(); err == nil {
			if info, err := os.Stat(execPath); err == nil {
				buildDate = fmt.Sprintf("%s (approximated from binary mtime)", info.ModTime().Format("2006-01-02 15:04:05"))
			}
		}
	}
	return version, commitHash, buildDate
}

// GetBuildInfo returns the resolved version, commit hash, and build date.
func GetBuildInfo() (string, string, string) {
	return GetBuildInfoImpl()
}

// Info is the structured descriptor printed by `substrate --version-json`.
type Info struct {
	Version    string `json:"version"`
	CommitHash string `json:"commit_hash"`
	BuildDate  string `json:"build_date"`
	GoVersion  string `json:"go_version"`
	OS         string `json:"os"`
	Arch       string `json:"arch"`
}

// GetCurrentVersion returns the current version descriptor.
func GetCurrentVersion() Info {
	v, c, b := GetBuildInfo()
	return Info{
		Version:    v,
		CommitHash: c,
		BuildDate:  b,
	}
}

// MarshalJSONString renders Info as the payload for --version-json.
func (i Info) MarshalJSONString() (string, error) {
	b, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ExtractBaseVersion strips a leading 'v' and any pre-release/build suffix
// from a version string. Example: "v1.9.0-5-g1b6ecaa-dirty" -> "1.9.0".
func ExtractBaseVersion(version string) string {
	version = strings.TrimPrefix(version, "v")
	if strings.Contains(version, "-") {
		version = strings.Split(version, "-")[0]
	}
	return version
}

// FormatVersionInfo renders a human-readable summary of the build
// descriptor for `substrate --version`.
func FormatVersionInfo(info Info) string {
	var result strings.Builder
	result.WriteString("Substrate build information\n")
	result.WriteString(fmt.Sprintf("  Version:     %s\n", info.Version))
	result.WriteString(fmt.Sprintf("  Commit:      %s\n", info.CommitHash))
	result.WriteString(fmt.Sprintf("  Build date:  %s\n", info.BuildDate))
	if info.GoVersion != "" {
		result.WriteString(fmt.Sprintf("  Go version:  %s\n", info.GoVersion))
	}
	if info.OS != "" || info.Arch != "" {
		result.WriteString(fmt.Sprintf("  Platform:    %s/%s\n", info.OS, info.Arch))
	}
	return result.String()
}
