package oauth

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/ustrahlendorf/web-form-datacollection/internal/apierr"
)

// CodeSource names the part of the authorize response a code was found in
type CodeSource string

const (
	SourceLocation CodeSource = "location"
	SourceFinalURL CodeSource = "final_url"
	SourceBody     CodeSource = "body"
)

var bodyCodeRegex = regexp.MustCompile(`code=([^"&\s]+)`)

// AuthorizeResponse is the part of an authorize response the code is extracted from
type AuthorizeResponse struct {
	Header http.Header
	URL    string
	Body   string
}

// ExtractAuthorizationCode looks for the code in the Location header, then
// the final response URL, then the body.
func ExtractAuthorizationCode(resp AuthorizeResponse) (string, CodeSource, error) {
	if loc := headerValue(resp.Header, "Location"); loc != "" {
		if code := codeFromURL(loc); code != "" {
			return code, SourceLocation, nil
		}
	}

	if code := codeFromURL(resp.URL); code != "" {
		return code, SourceFinalURL, nil
	}

	if m := bodyCodeRegex.FindStringSubmatch(resp.Body); m != nil {
		return m[1], SourceBody, nil
	}

	return "", "", fmt.Errorf("%w: no code in Location header, final URL or body; check credentials and redirect URI",
		apierr.ErrAuthorizationCodeNotFound)
}

// headerValue matches the header name case-insensitively, including
// non-canonical keys set directly on the map.
func headerValue(h http.Header, name string) string {
	if v := h.Get(name); v != "" {
		return v
	}
	for key, values := range h {
		if strings.EqualFold(key, name) && len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

func codeFromURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Query().Get("code")
}
