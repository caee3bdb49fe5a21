package domain

import "time"

// Post represents one platform content item under a connection.
// Identity is (connection_id, platform_post_id); engagement counts, caption
// and media fields are refreshed on every re-ingest.
type Post struct {
	ID             string     `gorm:"type:text;primaryKey" json:"id"`
	ConnectionID   string     `gorm:"type:text;not null;index:idx_posts_connection;uniqueIndex:idx_posts_identity" json:"connection_id"`
	Platform       string     `gorm:"type:text;not null" json:"platform"`
	PlatformPostID string     `gorm:"type:text;not null;uniqueIndex:idx_posts_identity" json:"platform_post_id"`
	PostType       string     `gorm:"type:text" json:"post_type,omitempty"`
	ContentText    string     `gorm:"type:text" json:"content_text,omitempty"`
	MediaURL       string     `gorm:"type:text" json:"media_url,omitempty"`
	CachedMediaURL string     `gorm:"type:text" json:"cached_media_url,omitempty"`
	LikeCount      int        `gorm:"default:0" json:"like_count"`
	CommentCount   int        `gorm:"default:0" json:"comment_count"`
	ShareCount     int        `gorm:"default:0" json:"share_count"`
	ViewCount      int        `gorm:"default:0" json:"view_count"`
	PostURL        string     `gorm:"type:text" json:"post_url,omitempty"`
	RawPayload     JSONMap    `gorm:"type:text" json:"raw_payload,omitempty"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	FetchedAt      time.Time  `json:"fetched_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Post.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Post) TableName() string {
	return "posts"
}
