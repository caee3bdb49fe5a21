package source

import (
	"context"
	"time"
)

// PostItem represents a normalized post fetched from a platform.
type PostItem struct {
	PlatformPostID string
	PostType       string
	Caption        string
	MediaURL       string
	PostURL        string
	LikeCount      int
	CommentCount   int
	ShareCount     int
	ViewCount      int
	PublishedAt    *time.Time
	Raw            map[string]interface{}
}

// CommentItem represents a normalized comment fetched from a platform.
type CommentItem struct {
	PlatformCommentID string
	AuthorName        string
	AuthorUsername    string
	Text              string
	LikeCount         int
	ReplyCount        int
	PublishedAt       *time.Time
	Raw               map[string]interface{}
}

// Adapter defines the interface for platform fetchers. Implementations must
// return already-deduplicated results per call; the ingestion merger only
// deduplicates against stored state via identity-key upsert.
type Adapter interface {
	// Platform returns the stable platform identifier (instagram, youtube, ...).
	// Parameters: none.
	// Returns:
	//   - string: platform identifier.
	Platform() string

	// FetchPosts fetches recent posts for a profile.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - profile: platform profile identifier (username or channel id).
	//   - maxPosts: maximum number of posts to fetch.
	//   - since: only posts published after this time; nil means no lower bound.
	// Returns:
	//   - []PostItem: normalized posts.
	//   - error: non-nil if fetching fails.
	FetchPosts(ctx context.Context, profile string, maxPosts int, since *time.Time) ([]PostItem, error)

	// FetchComments fetches comments for one post.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - platformPostID: platform-assigned post ID.
	//   - maxComments: maximum number of comments to fetch.
	// Returns:
	//   - []CommentItem: normalized comments.
	//   - error: non-nil if fetching fails.
	FetchComments(ctx context.Context, platformPostID string, maxComments int) ([]CommentItem, error)
}
