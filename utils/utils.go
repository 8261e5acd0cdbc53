/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package utils

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/substrate-run/substrate/version"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// GetEnvOrDefault returns the value of an environment variable, or a default
// if it is unset.
func GetEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// CheckAndNotifyEnv reports whether the default value had to be used for an
// environment variable, logging when it was.
func CheckAndNotifyEnv(key, defaultValue string, logger *zap.Logger) (string, bool) {
	value := os.Getenv(key)
	if value == "" {
		logger.Info(fmt.Sprintf("%s not set, assuming default: %s", key, defaultValue))
		return defaultValue, true
	}
	return value, false
}

// GetEnvVariables returns all environment variables as a formatted string.
func GetEnvVariables() string {
	envVars := os.Environ()
	return strings.Join(envVars, "\n")
}

// GetEnvVariablesSanitized returns environment variables with sensitive
// values redacted, for inclusion in diagnostic output or trace spans.
func GetEnvVariablesSanitized() string {
	env := os.Environ()
	var b strings.Builder
	for _, kv := range env {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		k := parts[0]
		v := parts[1]

		if isSensitiveEnvKey(k) {
			b.WriteString(k)
			b.WriteString("=[REDACTED]\n")
			continue
		}
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(maskSensitiveInText(v))
		b.WriteString("\n")
	}
	return b.String()
}

func isSensitiveEnvKey(key string) bool {
	k := strings.ToUpper(key)
	sensitiveSubstr := []string{
		"KEY", "TOKEN", "SECRET", "PASSWORD", "API_KEY", "ACCESS_TOKEN", "REFRESH_TOKEN", "CLIENT_SECRET", "AUTH",
	}
	for _, s := range sensitiveSubstr {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

// SanitizeSensitiveText masks common secret patterns in free-form text
// before it reaches a log, trace span, or other persisted sink. This is a
// best-effort fallback layer; the trace package's Redact and RedactArgv
// are the authoritative, spec-mandated redaction path (see internal/trace).
func SanitizeSensitiveText(s string) string {
	return maskSensitiveInText(s)
}

func maskSensitiveInText(s string) string {
	patterns := []struct {
		re   *regexp.Regexp
		repl string
	}{
		{regexp.MustCompile(`(?i)(sk|pk)_(test|live)_[a-zA-Z0-9]{20,}`), "[REDACTED_API_KEY]"},
		{regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`), "sk-[REDACTED]"},
		{regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]{20,}`), "sk-ant-[REDACTED]"},
		{regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`), "[REDACTED_GOOGLE_API_KEY]"},
		{regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9\.\-_]+`), "Bearer [REDACTED]"},
		{regexp.MustCompile(`ey[A-Za-z0-9-_=]+\.ey[A-Za-z0-9-_=]+\.[A-Za-z0-9-_.+/=]+`), "[REDACTED_JWT]"},
		{regexp.MustCompile(`("access_token"|"refresh_token"|"client_secret"|"api_key"|"password"|"token")\s*:\s*"[^"]+"`), `${1}:"[REDACTED]"`},
		{regexp.MustCompile(`(?im)^(API_KEY|ACCESS_TOKEN|CLIENT_SECRET|SECRET|PASSWORD)\s*=\s*.*$`), "$1=[REDACTED]"},
	}
	out := s
	for _, p := range patterns {
		out = p.re.ReplaceAllString(out, p.repl)
	}
	return out
}

// GenerateUUID returns a random UUID, used for opaque identifiers (e.g.
// WorldHandle.ID) that have no sortability requirement.
func GenerateUUID() string {
	return uuid.New().String()
}

// NewJSONReader wraps a byte slice as an io.Reader for HTTP request bodies.
func NewJSONReader(data []byte) io.Reader {
	return bytes.NewReader(data)
}

// GetTerminalSize returns the current terminal width and height.
func GetTerminalSize() (width int, height int, err error) {
	return term.GetSize(int(os.Stdout.Fd()))
}

// LogStartupInfo logs version and platform metadata at process start.
func LogStartupInfo(logger *zap.Logger) {
	logger.Info("substrate starting",
		zap.String("version", version.Version),
		zap.String("commit", version.CommitHash),
		zap.String("buildDate", version.BuildDate),
		zap.String("goVersion", runtime.Version()),
		zap.String("os", runtime.GOOS),
		zap.String("arch", runtime.GOARCH),
	)
}

// ParseSize converts a human-readable size string ("50MB", "100KB", "1GB")
// into bytes.
func ParseSize(sizeStr string) (int64, error) {
	sizeStr = strings.TrimSpace(strings.ToUpper(sizeStr))
	var multiplier int64 = 1

	unit := ""
	if strings.HasSuffix(sizeStr, "KB") {
		unit = "KB"
		multiplier = 1024
	} else if strings.HasSuffix(sizeStr, "MB") {
		unit = "MB"
		multiplier = 1024 * 1024
	} else if strings.HasSuffix(sizeStr, "GB") {
		unit = "GB"
		multiplier = 1024 * 1024 * 1024
	}

	if unit != "" {
		sizeStr = strings.TrimSuffix(sizeStr, unit)
	}

	size, err := strconv.ParseInt(strings.TrimSpace(sizeStr), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size: %s", sizeStr)
	}

	return size * multiplier, nil
}
