package oauth

import (
	"errors"
	"net/http"
	"testing"

	"github.com/ustrahlendorf/web-form-datacollection/internal/apierr"
)

func TestExtractAuthorizationCode(t *testing.T) {
	tests := []struct {
		name       string
		resp       AuthorizeResponse
		wantCode   string
		wantSource CodeSource
		wantErr    bool
	}{
		{
			name: "location header wins over url and body",
			resp: AuthorizeResponse{
				Header: http.Header{"Location": {"http://localhost:4200/?code=from-location"}},
				URL:    "http://localhost:4200/?code=from-url",
				Body:   `<a href="?code=from-body">`,
			},
			wantCode:   "from-location",
			wantSource: SourceLocation,
		},
		{
			name: "lowercase header key",
			resp: AuthorizeResponse{
				Header: http.Header{"location": {"http://localhost:4200/?state=x&code=lower"}},
			},
			wantCode:   "lower",
			wantSource: SourceLocation,
		},
		{
			name: "location without code falls through to url",
			resp: AuthorizeResponse{
				Header: http.Header{"Location": {"http://localhost:4200/login"}},
				URL:    "http://localhost:4200/?code=from-url",
			},
			wantCode:   "from-url",
			wantSource: SourceFinalURL,
		},
		{
			name: "body fallback",
			resp: AuthorizeResponse{
				Header: http.Header{},
				URL:    "https://iam.example/authorize?client_id=c&code_challenge=abc",
				Body:   `<form action="http://localhost:4200/?code=from-body&state=1">`,
			},
			wantCode:   "from-body",
			wantSource: SourceBody,
		},
		{
			name: "body code stops at quote",
			resp: AuthorizeResponse{
				Body: `window.location="cb?code=abc123"`,
			},
			wantCode:   "abc123",
			wantSource: SourceBody,
		},
		{
			name: "nothing found",
			resp: AuthorizeResponse{
				Header: http.Header{"Content-Type": {"text/html"}},
				URL:    "https://iam.example/authorize",
				Body:   "<html>Login failed</html>",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, source, err := ExtractAuthorizationCode(tt.resp)
			if tt.wantErr {
				if !errors.Is(err, apierr.ErrAuthorizationCodeNotFound) {
					t.Fatalf("error = %v, want ErrAuthorizationCodeNotFound", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if code != tt.wantCode || source != tt.wantSource {
				t.Errorf("got (%q, %q), want (%q, %q)", code, source, tt.wantCode, tt.wantSource)
			}
		})
	}
}
