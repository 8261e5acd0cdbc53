/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package trace

import (
	"regexp"
	"strings"
)

const redactedValue = "***"

// sensitiveKeyValueRe matches `key=value` pairs (case-insensitive) where
// the key is one of the names spec §4.1 lists. It is intentionally
// conservative about what counts as "value": anything up to the next
// whitespace or end of string.
var sensitiveKeyValueRe = regexp.MustCompile(
	`(?i)\b(token|password|secret|key|apikey|access-key|secret-key|api_key)=([^\s]+)`,
)

// flagsWithValue is the closed set of flags spec §4.1 names as consuming
// their adjacent argument as a sensitive value.
var flagsWithValue = map[string]bool{
	"--token": true, "--password": true, "--secret": true, "-p": true,
	"--apikey": true, "--access-key": true, "--secret-key": true,
	"--auth-token": true, "--bearer-token": true, "--api-token": true,
	"-H": true, "--header": true, "-u": true, "--user": true,
	"--data-raw": true, "--data-binary": true, "--form": true,
}

// sensitiveHeaderPrefixes are header names (case-insensitive, matched by
// prefix once tokenized) that are always redacted in their entirety.
var sensitiveHeaderPrefixes = []string{
	"authorization", "x-api-key", "x-auth-token", "x-access-token",
	"cookie", "set-cookie", "x-csrf-token", "x-session-token",
}

// Redact masks the value of every sensitive key=value pair in free text
// (e.g. a human-readable command line before it's logged). Flag-value
// pairs and header values are not redacted here; RedactArgv handles those
// for an argv slice. It is idempotent: Redact(Redact(x)) == Redact(x).
func Redact(s string) string {
	s = sensitiveKeyValueRe.ReplaceAllString(s, "$1="+redactedValue)
	return s
}

// RedactArgv applies the spec §4.1 redaction rules to an argv slice,
// returning a new slice. Flag-value pairs are redacted together (both the
// flag token and its adjacent argument become "***"); -H/--header's value
// preserves the header key when it is not itself sensitive ("Authorization:
// ***"); -u/--user always collapses "user:pass" to "***".
func RedactArgv(argv []string) []string {
	out := make([]string, len(argv))
	copy(out, argv)

	for i := 0; i < len(out); i++ {
		arg := out[i]

		if eq := strings.IndexByte(arg, '='); eq > 0 {
			out[i] = sensitiveKeyValueRe.ReplaceAllString(arg, "$1="+redactedValue)
			continue
		}

		if flagsWithValue[arg] && i+1 < len(out) {
			switch arg {
			case "-H", "--header":
				out[i+1] = redactHeaderValue(out[i+1])
			case "-u", "--user":
				out[i+1] = redactedValue
			default:
				out[i+1] = redactedValue
			}
			out[i] = redactedValue
			i++
			continue
		}
	}
	return out
}

// redactHeaderValue redacts the value half of a "Name: value" header
// string, preserving the header name unless the name itself is sensitive.
func redactHeaderValue(header string) string {
	parts := strings.SplitN(header, ":", 2)
	if len(parts) != 2 {
		return redactedValue
	}
	name := strings.TrimSpace(parts[0])
	lower := strings.ToLower(name)
	for _, prefix := range sensitiveHeaderPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return name + ": " + redactedValue
		}
	}
	return header
}

// IsSensitiveHeader reports whether a header name matches one of the known
// sensitive prefixes (spec §4.1).
func IsSensitiveHeader(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	for _, prefix := range sensitiveHeaderPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
