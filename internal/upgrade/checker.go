// Package upgrade compares the running build against the latest published
// hakichain release.
package upgrade

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hakichain/hakichain/internal/httpclient"
	"github.com/hakichain/hakichain/internal/logging"
)

const (
	// DefaultReleaseURL is the GitHub "latest release" endpoint.
	DefaultReleaseURL = "https://api.github.com/repos/hakichain/hakichain/releases/latest"

	checkTimeout = 10 * time.Second
)

// VersionInfo describes the running and latest versions.
type VersionInfo struct {
	Current         string    `json:"current"`
	Latest          string    `json:"latest"`
	UpdateAvailable bool      `json:"update_available"`
	PublishedAt     time.Time `json:"published_at,omitempty"`
	ReleaseNotes    string    `json:"release_notes,omitempty"`
	DownloadURL     string    `json:"download_url,omitempty"`
}

type githubRelease struct {
	TagName     string    `json:"tag_name"`
	Body        string    `json:"body"`
	HTMLURL     string    `json:"html_url"`
	PublishedAt time.Time `json:"published_at"`
}

// Checker queries the release endpoint.
type Checker struct {
	current string
	url     string
	client  *httpclient.Client
}

// NewChecker creates a Checker for the running version. A nil client uses
// direct connections.
func NewChecker(current string, client *httpclient.Client) *Checker {
	if client == nil {
		client = httpclient.New(nil)
	}
	return &Checker{current: current, url: DefaultReleaseURL, client: client}
}

// SetReleaseURL overrides DefaultReleaseURL.
func (c *Checker) SetReleaseURL(url string) {
	c.url = url
}

// Check fetches the latest release. Development builds ("dev" or any
// version without a numeric major) never report an update.
func (c *Checker) Check(ctx context.Context) (*VersionInfo, error) {
	var rel githubRelease
	ok, err := c.client.RequestJSON(ctx, c.url, httpclient.Options{
		Method: "GET",
		Headers: map[string]string{
			"Accept":     "application/vnd.github+json",
			"User-Agent": "hakichain/" + c.current,
		},
		Timeout: checkTimeout,
	}, &rel)
	if err != nil {
		return nil, fmt.Errorf("failed to check for updates: %w", err)
	}
	if !ok || rel.TagName == "" {
		return nil, fmt.Errorf("failed to check for updates: no release published")
	}

	info := &VersionInfo{
		Current:      c.current,
		Latest:       strings.TrimPrefix(rel.TagName, "v"),
		PublishedAt:  rel.PublishedAt,
		ReleaseNotes: rel.Body,
		DownloadURL:  rel.HTMLURL,
	}
	if isRelease(c.current) {
		info.UpdateAvailable = CompareVersions(c.current, rel.TagName) < 0
	}

	if info.UpdateAvailable {
		logging.Info("update available",
			"current_version", c.current,
			"latest_version", info.Latest,
			logging.Component("upgrade"))
	}
	return info, nil
}

func isRelease(v string) bool {
	v = strings.TrimPrefix(v, "v")
	major, _, _ := strings.Cut(v, ".")
	_, err := strconv.Atoi(major)
	return err == nil
}

// CompareVersions compares two semver strings and returns -1, 0 or 1.
// A leading "v" and any pre-release or build suffix are ignored; missing
// or unparseable components count as 0.
func CompareVersions(a, b string) int {
	ap, bp := parseVersion(a), parseVersion(b)
	for i := range ap {
		switch {
		case ap[i] < bp[i]:
			return -1
		case ap[i] > bp[i]:
			return 1
		}
	}
	return 0
}

func parseVersion(v string) [3]int {
	var out [3]int
	v = strings.TrimPrefix(v, "v")
	if idx := strings.IndexAny(v, "-+"); idx >= 0 {
		v = v[:idx]
	}
	for i, part := range strings.SplitN(v, ".", 3) {
		if n, err := strconv.Atoi(part); err == nil && n >= 0 {
			out[i] = n
		}
	}
	return out
}
