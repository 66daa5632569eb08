// Package redact implements the deterministic text-scrubbing pipeline: a
// pure function from raw tool output to reporter-safe text. The orchestrator
// never emits any outward text without passing it through Redact; audit
// records are written before redaction, from the same raw text.
package redact

import "regexp"

// substitution is one ordered pattern → replacement rule. Order matters: more
// specific patterns (the resource-identifier triple) must run before the
// broader bare-account-number pattern would otherwise also match its account
// segment.
type substitution struct {
	pattern     *regexp.Regexp
	replacement string
}

var substitutions = []substitution{
	// Cloud resource identifier triple, e.g.
	// arn:aws:kms:us-east-1:123456789012:key/abcd1234-...
	{
		pattern:     regexp.MustCompile(`(?i)([a-z0-9][a-z0-9.\-]*:[a-z0-9][a-z0-9.\-]*:[a-z0-9][a-z0-9.\-]*:)\d{12}(:[^\s]+)`),
		replacement: `${1}***ID***:***RES***`,
	},
	// 36-hex-with-dashes key handle: key/<uuid>
	{
		pattern:     regexp.MustCompile(`(?i)\bkey/[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`),
		replacement: `key/***KEY***`,
	},
	// Bare 12-digit numeric account, not already consumed by the triple above.
	{
		pattern:     regexp.MustCompile(`\b\d{12}\b`),
		replacement: `***ID***`,
	},
	// IPv4 address.
	{
		pattern:     regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|1?\d?\d)\.){3}(?:25[0-5]|2[0-4]\d|1?\d?\d)\b`),
		replacement: `***IP***`,
	},
	// Static-credential identifier: AKIA + 16 uppercase alphanumeric.
	{
		pattern:     regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`),
		replacement: `***AK***`,
	},
	// Opaque 40-char base64 token.
	{
		pattern:     regexp.MustCompile(`\b[A-Za-z0-9/+=]{40}\b`),
		replacement: `***SEC***`,
	},
}

// Redact applies every substitution in order and returns reporter-safe text.
// Redact is idempotent: Redact(Redact(x)) == Redact(x), because every
// replacement token (***ID***, ***KEY***, etc.) never itself matches any of
// the patterns above.
func Redact(text string) string {
	for _, s := range substitutions {
		text = s.pattern.ReplaceAllString(text, s.replacement)
	}
	return text
}
