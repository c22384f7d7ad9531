package upgrade

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.0", "1.0.1", -1},
		{"1.2.0", "1.1.9", 1},
		{"v2.0.0", "1.9.9", 1},
		{"1.0.0-beta.1", "1.0.0", 0},
		{"1.0", "1.0.0", 0},
		{"garbage", "0.0.1", -1},
		{"1.10.0", "1.9.0", 1},
	}
	for _, tt := range tests {
		if got := CompareVersions(tt.a, tt.b); got != tt.want {
			t.Errorf("CompareVersions(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func releaseServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s", r.Method)
		}
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "hakichain/") {
			t.Errorf("User-Agent = %q", ua)
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const release = `{"tag_name":"v1.3.0","body":"Escrow refunds","html_url":"https://github.com/hakichain/hakichain/releases/tag/v1.3.0","published_at":"2026-09-01T12:00:00Z"}`

func TestCheck(t *testing.T) {
	srv := releaseServer(t, http.StatusOK, release)

	tests := []struct {
		current string
		update  bool
	}{
		{"1.2.4", true},
		{"v1.3.0", false},
		{"1.4.0", false},
		{"dev", false},
	}
	for _, tt := range tests {
		c := NewChecker(tt.current, nil)
		c.SetReleaseURL(srv.URL)

		info, err := c.Check(context.Background())
		if err != nil {
			t.Fatalf("%s: Check: %v", tt.current, err)
		}
		if info.Latest != "1.3.0" || info.ReleaseNotes != "Escrow refunds" {
			t.Errorf("%s: unexpected info %+v", tt.current, info)
		}
		if info.UpdateAvailable != tt.update {
			t.Errorf("%s: UpdateAvailable = %v, want %v", tt.current, info.UpdateAvailable, tt.update)
		}
		if info.PublishedAt.Year() != 2026 {
			t.Errorf("%s: PublishedAt = %v", tt.current, info.PublishedAt)
		}
	}
}

func TestCheck_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"not found", http.StatusNotFound, `{"message":"Not Found"}`},
		{"empty body", http.StatusOK, ""},
		{"no tag", http.StatusOK, `{"body":"x"}`},
		{"invalid json", http.StatusOK, `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker("1.0.0", nil)
			c.SetReleaseURL(releaseServer(t, tt.status, tt.body).URL)
			if _, err := c.Check(context.Background()); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestCheck_ContextCancelled(t *testing.T) {
	c := NewChecker("1.0.0", nil)
	c.SetReleaseURL(releaseServer(t, http.StatusOK, release).URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Check(ctx); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
