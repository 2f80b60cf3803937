package pager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// FallbackChannel writes a page as a durable local record: a timestamped,
// uniquely named markdown document in the scroll directory.
type FallbackChannel struct {
	dir string
}

// NewFallbackChannel creates the fallback writer targeting dir.
func NewFallbackChannel(dir string) *FallbackChannel {
	return &FallbackChannel{dir: dir}
}

// Name implements Channel.
func (c *FallbackChannel) Name() string { return "scroll" }

var unsafeTitleChars = regexp.MustCompile(`[^a-z0-9]+`)

// Deliver implements Channel. The reference is the path of the written
// record; each call produces a fresh timestamped name.
func (c *FallbackChannel) Deliver(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating fallback dir %s: %w", c.dir, err)
	}

	stamp := req.Timestamp.Format("01-02-1504")
	name := fmt.Sprintf("%s-page-%s-%s.md", stamp, slugify(req.Title), uuid.NewString()[:8])
	path := filepath.Join(c.dir, name)

	content := fmt.Sprintf("# %s\n\n%s\n\n**Priority: %d**\n\n*Escalation recorded by shihand; primary paging channel was unavailable.*\n",
		req.Title, req.Body, req.Priority)

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("writing fallback record: %w", err)
	}

	return path, nil
}

// slugify reduces a title to a filesystem-safe fragment.
func slugify(title string) string {
	slug := unsafeTitleChars.ReplaceAllString(strings.ToLower(title), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 40 {
		slug = slug[:40]
	}
	if slug == "" {
		slug = "alert"
	}
	return slug
}
