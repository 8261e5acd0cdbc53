package version

import (
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBaseVersion(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain version", "1.2.3", "1.2.3"},
		{"v prefix", "v1.2.3", "1.2.3"},
		{"pseudo-version suffix", "v1.9.0-5-g1b6ecaa-dirty", "1.9.0"},
		{"dev", "dev", "dev"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ExtractBaseVersion(tc.input))
		})
	}
}

func TestGetCurrentVersion(t *testing.T) {
	original := GetBuildInfoImpl
	t.Cleanup(func() { GetBuildInfoImpl = original })

	GetBuildInfoImpl = func() (string, string, string) {
		return "1.25.0", "abc1234", "2024-09-15"
	}

	info := GetCurrentVersion()
	assert.Equal(t, "1.25.0", info.Version)
	assert.Equal(t, "abc1234", info.CommitHash)
	assert.Equal(t, "2024-09-15", info.BuildDate)
}

func TestInfo_MarshalJSONString(t *testing.T) {
	info := Info{
		Version:    "1.25.0",
		CommitHash: "abc1234",
		BuildDate:  "2024-09-15",
		GoVersion:  runtime.Version(),
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
	}

	out, err := info.MarshalJSONString()
	require.NoError(t, err)

	var decoded Info
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, info, decoded)
}

func TestFormatVersionInfo(t *testing.T) {
	info := Info{
		Version:    "1.25.0",
		CommitHash: "abc1234",
		BuildDate:  "2024-09-15",
		GoVersion:  "go1.26.2",
		OS:         "linux",
		Arch:       "amd64",
	}

	out := FormatVersionInfo(info)
	assert.Contains(t, out, "1.25.0")
	assert.Contains(t, out, "abc1234")
	assert.Contains(t, out, "linux/amd64")
}
