package avatar

import (
	"net/url"
	"strings"
	"testing"
)

func params(t *testing.T, raw string) url.Values {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	if u.Host != "ui-avatars.com" {
		t.Fatalf("unexpected host %q", u.Host)
	}
	return u.Query()
}

func TestResolve(t *testing.T) {
	if got := Resolve("https://cdn.example.com/me.png", "Jane", "dark"); got != "https://cdn.example.com/me.png" {
		t.Fatalf("provided URL should be kept, got %q", got)
	}
	q := params(t, Resolve("", "  Jane Doe ", "dark"))
	if q.Get("name") != "Jane Doe" || q.Get("background") != "2c3e50" || q.Get("color") != "ecf0f1" {
		t.Fatalf("unexpected params %v", q)
	}
	q = params(t, Resolve("not-a-url", "Jane", "neon"))
	if q.Get("background") != "3498db" {
		t.Fatalf("unknown theme should fall back to light: %v", q)
	}
}

func TestForRole(t *testing.T) {
	if q := params(t, ForRole("Admin", true)); q.Get("background") != "e74c3c" {
		t.Fatalf("admin colour: %v", q)
	}
	if q := params(t, ForRole("User", false)); q.Get("background") != "27ae60" {
		t.Fatalf("user colour: %v", q)
	}
}

func TestVariations(t *testing.T) {
	vs := Variations("John Doe")
	if len(vs) != 6 {
		t.Fatalf("expected 6 variations, got %d", len(vs))
	}
	for i, v := range vs {
		if v.ID != i+1 || !strings.HasPrefix(v.BackgroundColor, "#") {
			t.Fatalf("bad variation %+v", v)
		}
		if q := params(t, v.URL); "#"+q.Get("background") != v.BackgroundColor || q.Get("rounded") != "true" {
			t.Fatalf("url/background mismatch for %+v", v)
		}
	}
}
