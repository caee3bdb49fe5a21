package domain

import "time"

// PostSummary is the derived per-post aggregate over all comment analyses.
// It is always regenerated wholesale from the current analysis and comment
// state, never patched incrementally.
type PostSummary struct {
	ID            string    `gorm:"type:text;primaryKey" json:"id"`
	PostID        string    `gorm:"type:text;not null;uniqueIndex:idx_summaries_post" json:"post_id"`
	TotalComments int       `gorm:"default:0" json:"total_comments"`
	TotalAnalyzed int       `gorm:"default:0" json:"total_analyzed"`
	AvgScore      *float64  `json:"avg_score,omitempty"`
	AvgPolarity   *float64  `json:"avg_polarity,omitempty"`
	AvgIntensity  *float64  `json:"avg_intensity,omitempty"`
	AvgConfidence *float64  `json:"avg_confidence,omitempty"`
	WeightedScore *float64  `json:"weighted_score,omitempty"`
	Emotions      IntMap    `gorm:"column:emotions_distribution;type:text" json:"emotions_distribution"`
	Topics        IntMap    `gorm:"column:topics_frequency;type:text" json:"topics_frequency"`
	Sentiment     IntMap    `gorm:"column:sentiment_distribution;type:text" json:"sentiment_distribution"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// TableName returns the database table name for PostSummary.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (PostSummary) TableName() string {
	return "post_summaries"
}
