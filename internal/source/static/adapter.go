// Package static provides a fixture-backed source adapter. It reads
// normalized posts and comments from JSON files on disk and is used by the
// pipeline CLI in dev mode and by tests; real platform fetchers implement the
// same interface behind the API layer.
package static

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vinialveslopesanjos/sentimenta/internal/source"
)

// Adapter serves posts and comments from a fixture directory. Layout:
//
//	<dir>/posts.json            []source.PostItem
//	<dir>/comments/<postID>.json []source.CommentItem
type Adapter struct {
	dir      string
	platform string
}

// NewAdapter creates a static adapter rooted at dir.
func NewAdapter(dir, platform string) *Adapter {
	if platform == "" {
		platform = "static"
	}
	return &Adapter{dir: dir, platform: platform}
}

// Platform returns the configured platform identifier.
func (a *Adapter) Platform() string {
	return a.platform
}

// FetchPosts reads posts.json, applying the maxPosts and since limits.
func (a *Adapter) FetchPosts(ctx context.Context, profile string, maxPosts int, since *time.Time) ([]source.PostItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(a.dir, "posts.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read posts fixture: %w", err)
	}

	var posts []source.PostItem
	if err := json.Unmarshal(data, &posts); err != nil {
		return nil, fmt.Errorf("failed to decode posts fixture: %w", err)
	}

	out := make([]source.PostItem, 0, len(posts))
	for _, p := range posts {
		if since != nil && p.PublishedAt != nil && p.PublishedAt.Before(*since) {
			continue
		}
		out = append(out, p)
		if maxPosts > 0 && len(out) >= maxPosts {
			break
		}
	}
	return out, nil
}

// FetchComments reads comments/<postID>.json. A missing file means the post
// simply has no comments.
func (a *Adapter) FetchComments(ctx context.Context, platformPostID string, maxComments int) ([]source.CommentItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(a.dir, "comments", platformPostID+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read comments fixture: %w", err)
	}

	var comments []source.CommentItem
	if err := json.Unmarshal(data, &comments); err != nil {
		return nil, fmt.Errorf("failed to decode comments fixture: %w", err)
	}

	if maxComments > 0 && len(comments) > maxComments {
		comments = comments[:maxComments]
	}
	return comments, nil
}
