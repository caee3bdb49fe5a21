package domain

import "time"

// CommentStatus represents the analysis state of a comment.
// A comment only leaves pending through the analysis batcher; re-ingests
// never reset an already processed or errored comment.
type CommentStatus string

const (
	CommentStatusPending   CommentStatus = "pending"
	CommentStatusProcessed CommentStatus = "processed"
	CommentStatusError     CommentStatus = "error"
)

// Comment represents one platform comment or reply under a post.
// Identity is (post_id, platform_comment_id). TextHash is a content
// fingerprint kept for dedup heuristics, not identity.
type Comment struct {
	ID                string        `gorm:"type:text;primaryKey" json:"id"`
	PostID            string        `gorm:"type:text;not null;index:idx_comments_post;uniqueIndex:idx_comments_identity" json:"post_id"`
	ConnectionID      string        `gorm:"type:text;not null;index:idx_comments_connection" json:"connection_id"`
	Platform          string        `gorm:"type:text;not null" json:"platform"`
	PlatformCommentID string        `gorm:"type:text;not null;uniqueIndex:idx_comments_identity" json:"platform_comment_id"`
	AuthorName        string        `gorm:"type:text" json:"author_name,omitempty"`
	AuthorUsername    string        `gorm:"type:text" json:"author_username,omitempty"`
	LikeCount         int           `gorm:"default:0" json:"like_count"`
	ReplyCount        int           `gorm:"default:0" json:"reply_count"`
	TextOriginal      string        `gorm:"type:text;not null" json:"text_original"`
	TextClean         string        `gorm:"type:text;not null" json:"text_clean"`
	TextHash          string        `gorm:"type:text;index:idx_comments_hash" json:"text_hash,omitempty"`
	RawPayload        JSONMap       `gorm:"type:text" json:"raw_payload,omitempty"`
	Status            CommentStatus `gorm:"type:text;default:pending;index:idx_comments_status" json:"status"`
	LastError         string        `gorm:"type:text" json:"last_error,omitempty"`
	PublishedAt       *time.Time    `json:"published_at,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// TableName returns the database table name for Comment.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Comment) TableName() string {
	return "comments"
}
