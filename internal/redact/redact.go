// Package redact scrubs secrets from text before it reaches logs or errors
package redact

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Placeholder replaces every secret value
const Placeholder = "<redacted>"

var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"access_token":  {},
	"refresh_token": {},
	"id_token":      {},
	"client_secret": {},
	"code_verifier": {},
	"code":          {},
	"authorization": {},
}

var (
	jsonTokenPattern = regexp.MustCompile(`(?i)("(?:access_token|refresh_token|id_token)"\s*:\s*")[^"]*`)
	formTokenPattern = regexp.MustCompile(`(?i)\b((?:access_token|refresh_token|id_token)=)[^&\s"]+`)
	codePattern      = regexp.MustCompile(`(?i)(code=)[^&"\s]+`)
	bearerPattern    = regexp.MustCompile(`(?i)\b(bearer\s+)[A-Za-z0-9\-._~+/]+=*`)
)

// IsSensitive reports whether a parameter or header name carries a secret
func IsSensitive(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(key)]
	return ok
}

// Text removes token, code and bearer values from free text
func Text(s string) string {
	s = jsonTokenPattern.ReplaceAllString(s, "${1}"+Placeholder)
	s = formTokenPattern.ReplaceAllString(s, "${1}"+Placeholder)
	s = codePattern.ReplaceAllString(s, "${1}"+Placeholder)
	return bearerPattern.ReplaceAllString(s, "${1}"+Placeholder)
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

// Body prepares a response body for inclusion in an error
func Body(b []byte, n int) string {
	return Text(Truncate(string(b), n))
}

// URL redacts sensitive query parameters and drops userinfo
func URL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return Text(raw)
	}
	u.User = nil
	if u.RawQuery == "" {
		return u.String()
	}
	q := u.Query()
	for key := range q {
		if IsSensitive(key) {
			q.Set(key, Placeholder)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Values returns a loggable copy of form or query values
func Values(v url.Values) map[string]string {
	out := make(map[string]string, len(v))
	for key := range v {
		if IsSensitive(key) {
			out[key] = Placeholder
			continue
		}
		out[key] = v.Get(key)
	}
	return out
}

// Partial keeps the first and last few characters of an identifier such as
// a client id so log lines stay correlatable.
func Partial(s string) string {
	if len(s) <= 8 {
		return Placeholder
	}
	return s[:3] + "..." + s[len(s)-3:]
}
