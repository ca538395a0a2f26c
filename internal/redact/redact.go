// Package redact masks credentials in collaborator output before it is
// copied into evidence records, which are usually committed.
package redact

import "regexp"

type Applied struct {
	Names []string
}

type rule struct {
	name string
	re   *regexp.Regexp
	repl string
}

var rules = []rule{
	{"private_key", regexp.MustCompile(`(?s)-----BEGIN [A-Z ]*PRIVATE KEY(?: BLOCK)?-----.*?-----END [A-Z ]*PRIVATE KEY(?: BLOCK)?-----`), "[REDACTED:PRIVATE_KEY]"},
	{"github_token", regexp.MustCompile(`\b(?:gh[pousr]_[A-Za-z0-9]{10,}|github_pat_[A-Za-z0-9_]{10,})\b`), "[REDACTED:GITHUB_TOKEN]"},
	{"openai_key", regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{10,}\b`), "[REDACTED:OPENAI_KEY]"},
	{"slack_token", regexp.MustCompile(`\bxox[abprs]-[A-Za-z0-9-]{10,}\b`), "[REDACTED:SLACK_TOKEN]"},
	{"aws_access_key_id", regexp.MustCompile(`\b(?:AKIA|ASIA)[A-Z0-9]{16}\b`), "[REDACTED:AWS_ACCESS_KEY_ID]"},
	{"jwt", regexp.MustCompile(`\beyJ[A-Za-z0-9_-]{5,}\.eyJ[A-Za-z0-9_-]{5,}\.[A-Za-z0-9_-]{10,}\b`), "[REDACTED:JWT]"},
	{"passphrase", regexp.MustCompile(`(?i)\b(passphrase|password)(\s*[=:]\s*)\S+`), "${1}${2}[REDACTED]"},
}

// Text applies every rule in order and reports which ones matched.
func Text(s string) (string, Applied) {
	applied := Applied{}
	out := s
	for _, r := range rules {
		if r.re.MatchString(out) {
			out = r.re.ReplaceAllString(out, r.repl)
			applied.Names = append(applied.Names, r.name)
		}
	}
	return out, applied
}
