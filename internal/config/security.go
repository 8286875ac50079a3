package config

import (
	"bufio"
	"regexp"
	"strings"
)

// secretRule matches a credential shape. The value submatch, when the
// pattern has one, is what gets redacted.
type secretRule struct {
	kind string
	re   *regexp.Regexp
	hint string
}

var secretRules = []secretRule{
	{
		kind: "org token",
		re:   regexp.MustCompile(`(?i)\b(?:org[_-]?)?token\s*=\s*["']([\w.-]{15,})["']`),
		hint: "organization token in config file; pass it through SHADOW_ORG_TOKEN instead",
	},
	{
		kind: "enroll secret",
		re:   regexp.MustCompile(`(?i)\b(?:enroll[_-]?)?secret\s*=\s*["']([\w.+/=-]{8,})["']`),
		hint: "enrollment secret in config file; the server issues it at startup",
	},
	{
		kind: "password",
		re:   regexp.MustCompile(`(?i)\b(?:password|passwd|pwd)\s*=\s*["']([^"']+)["']`),
		hint: "password in config file",
	},
	{
		kind: "private key",
		re:   regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----`),
		hint: "private key material in config file",
	},
}

const maxPreview = 60

// Finding is a credential-looking line in a config file. Commented lines
// count, since the value is on disk either way.
type Finding struct {
	Kind    string
	Hint    string
	Line    int
	Preview string
}

// ScanSecrets reports every rule match in content, line by line.
func ScanSecrets(content string) []Finding {
	var findings []Finding

	sc := bufio.NewScanner(strings.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), MaxConfigFileSize)
	for n := 1; sc.Scan(); n++ {
		line := sc.Text()
		for _, rule := range secretRules {
			loc := rule.re.FindStringSubmatchIndex(line)
			if loc == nil {
				continue
			}
			findings = append(findings, Finding{
				Kind:    rule.kind,
				Hint:    rule.hint,
				Line:    n,
				Preview: redact(line, loc),
			})
		}
	}
	return findings
}

// redact blanks the value submatch in loc, or the whole match when the
// rule has no value group, and shortens the result.
func redact(line string, loc []int) string {
	start, end := loc[0], loc[1]
	if len(loc) >= 4 && loc[2] >= 0 {
		start, end = loc[2], loc[3]
	}
	out := strings.TrimSpace(line[:start] + "[REDACTED]" + line[end:])
	if len(out) > maxPreview {
		out = out[:maxPreview] + "..."
	}
	return out
}
