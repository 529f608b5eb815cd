package domainname

import (
	"testing"

	perr "seochecker/internal/platform/errors"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Example.COM", "example.com"},
		{"https://www.example.co.uk/path?x=1", "example.co.uk"},
		{"http://example.com:8080", "example.com"},
		{"  sub.example.org. ", "sub.example.org"},
		{"bücher.de", "xn--bcher-kva.de"},
		{"foo.blogspot.com", "foo.blogspot.com"},
	}
	for _, tc := range tests {
		got, err := Normalize(tc.in)
		if err != nil {
			t.Fatalf("Normalize(%q) error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalize_Rejects(t *testing.T) {
	for _, in := range []string{"", "   ", "localhost", "com", "127.0.0.1", "example.invalidtld", "exa mple.com"} {
		_, err := Normalize(in)
		if err == nil {
			t.Fatalf("Normalize(%q) expected error", in)
		}
		if !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
			t.Fatalf("Normalize(%q) error code = %v", in, perr.CodeOf(err))
		}
	}
}

func TestFromURL(t *testing.T) {
	if got := FromURL("https://www.site.es/"); got != "site.es" {
		t.Fatalf("FromURL = %q", got)
	}
	if got := FromURL("not a domain"); got != "not a domain" {
		t.Fatalf("FromURL should pass through, got %q", got)
	}
}
