package pkce

import (
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/ustrahlendorf/web-form-datacollection/internal/apierr"
)

const (
	rfcVerifier  = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	rfcChallenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
)

var urlSafe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func TestGenerateVerifier(t *testing.T) {
	tests := []struct {
		name    string
		length  int
		wantErr bool
	}{
		{name: "minimum", length: 43},
		{name: "default", length: DefaultVerifierLength},
		{name: "maximum", length: 128},
		{name: "below minimum", length: 42, wantErr: true},
		{name: "above maximum", length: 129, wantErr: true},
		{name: "zero", length: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GenerateVerifier(tt.length)
			if tt.wantErr {
				if !errors.Is(err, apierr.ErrInvalidArgument) {
					t.Fatalf("GenerateVerifier(%d) error = %v, want ErrInvalidArgument", tt.length, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("GenerateVerifier(%d) unexpected error: %v", tt.length, err)
			}
			if len(got) != tt.length {
				t.Errorf("len = %d, want %d", len(got), tt.length)
			}
			if !urlSafe.MatchString(got) {
				t.Errorf("verifier %q has characters outside the URL-safe alphabet", got)
			}
		})
	}
}

func TestGenerateVerifierIsRandom(t *testing.T) {
	a, err := GenerateVerifier(DefaultVerifierLength)
	if err != nil {
		t.Fatal(err)
	}
	b, err := GenerateVerifier(DefaultVerifierLength)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("two generated verifiers are identical")
	}
}

func TestChallenge(t *testing.T) {
	tests := []struct {
		name     string
		verifier string
		method   Method
		want     string
		wantErr  bool
	}{
		{name: "rfc 7636 appendix b", verifier: rfcVerifier, method: MethodS256, want: rfcChallenge},
		{name: "plain is identity", verifier: rfcVerifier, method: MethodPlain, want: rfcVerifier},
		{name: "unknown method", verifier: rfcVerifier, method: "S512", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Challenge(tt.verifier, tt.method)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Challenge() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Challenge() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseMethod(t *testing.T) {
	tests := map[string]Method{
		"":      MethodS256,
		"S256":  MethodS256,
		"s256":  MethodS256,
		"plain": MethodPlain,
		"PLAIN": MethodPlain,
	}
	for in, want := range tests {
		got, err := ParseMethod(in)
		if err != nil || got != want {
			t.Errorf("ParseMethod(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseMethod("md5"); !errors.Is(err, apierr.ErrInvalidArgument) {
		t.Errorf("ParseMethod(md5) error = %v", err)
	}
}

func TestNewPair(t *testing.T) {
	t.Run("supplied verifier", func(t *testing.T) {
		pair, err := NewPair(rfcVerifier, MethodS256)
		if err != nil {
			t.Fatal(err)
		}
		if pair.Verifier != rfcVerifier || pair.Challenge != rfcChallenge || pair.Method != MethodS256 {
			t.Errorf("NewPair() = %+v", pair)
		}
	})

	t.Run("generated verifier", func(t *testing.T) {
		pair, err := NewPair("", MethodS256)
		if err != nil {
			t.Fatal(err)
		}
		if len(pair.Verifier) != DefaultVerifierLength {
			t.Errorf("verifier length = %d", len(pair.Verifier))
		}
		want, _ := Challenge(pair.Verifier, MethodS256)
		if pair.Challenge != want {
			t.Errorf("challenge %q does not match verifier", pair.Challenge)
		}
	})

	t.Run("repetitive supplied verifier", func(t *testing.T) {
		verifier := strings.Repeat("ab", 22)
		pair, err := NewPair(verifier, MethodS256)
		if err != nil {
			t.Fatalf("NewPair() error: %v", err)
		}
		if pair.Verifier != verifier {
			t.Errorf("Verifier = %q, want %q", pair.Verifier, verifier)
		}
		want, _ := Challenge(verifier, MethodS256)
		if pair.Challenge != want {
			t.Errorf("Challenge = %q, want %q", pair.Challenge, want)
		}
	})

	t.Run("invalid supplied verifier", func(t *testing.T) {
		if _, err := NewPair("too-short", MethodS256); !errors.Is(err, apierr.ErrInvalidArgument) {
			t.Errorf("NewPair() error = %v, want ErrInvalidArgument", err)
		}
	})
}
