package domain

import "time"

// CommentAnalysis represents one classifier result for one comment under a
// specific (model, prompt_version) pair. The unique index enforces at most
// one analysis row per comment per version; re-analysis upserts in place.
//
// Numeric classifier fields are pointers because the model may legitimately
// omit them; a nil or zero Confidence marks the result as an error.
type CommentAnalysis struct {
	ID            string      `gorm:"type:text;primaryKey" json:"id"`
	CommentID     string      `gorm:"type:text;not null;index:idx_analyses_comment;uniqueIndex:idx_analyses_version" json:"comment_id"`
	Model         string      `gorm:"type:text;not null;uniqueIndex:idx_analyses_version" json:"model"`
	PromptVersion string      `gorm:"type:text;not null;uniqueIndex:idx_analyses_version" json:"prompt_version"`
	Score         *float64    `gorm:"column:score_0_10" json:"score_0_10,omitempty"`
	Polarity      *float64    `json:"polarity,omitempty"`
	Intensity     *float64    `json:"intensity,omitempty"`
	Emotions      StringArray `gorm:"type:text" json:"emotions"`
	Topics        StringArray `gorm:"type:text" json:"topics"`
	Sarcasm       bool        `gorm:"default:false" json:"sarcasm"`
	Summary       string      `gorm:"type:text" json:"summary,omitempty"`
	Confidence    *float64    `json:"confidence,omitempty"`
	TokensIn      int         `gorm:"default:0" json:"tokens_in"`
	TokensOut     int         `gorm:"default:0" json:"tokens_out"`
	CostUSD       float64     `gorm:"column:cost_estimate_usd;default:0" json:"cost_estimate_usd"`
	RawResponse   string      `gorm:"type:text" json:"raw_response,omitempty"`
	AnalyzedAt    time.Time   `json:"analyzed_at"`
}

// TableName returns the database table name for CommentAnalysis.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (CommentAnalysis) TableName() string {
	return "comment_analyses"
}

// IsError reports whether this analysis should mark its comment as errored.
// A missing or zero confidence means the classifier could not produce a
// usable result for the comment.
func (a *CommentAnalysis) IsError() bool {
	return a.Confidence == nil || *a.Confidence == 0
}
