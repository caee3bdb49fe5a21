package domain

import "time"

// RunType identifies what an orchestrated pipeline invocation covers.
type RunType string

const (
	RunTypeIngest  RunType = "ingest"
	RunTypeAnalyze RunType = "analyze"
	RunTypeFull    RunType = "full"
)

// RunStatus represents the state of a pipeline run. A run starts running and
// moves to exactly one terminal state; it is never reopened.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
)

// Terminal reports whether the status is a terminal state.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusPartial || s == RunStatusFailed
}

// PipelineRun records one orchestrated ingest and/or analyze invocation for a
// connection. Counters are mutated only by the orchestrator; a row may be
// read mid-update by a concurrent poller.
type PipelineRun struct {
	ID               string     `gorm:"type:text;primaryKey" json:"id"`
	UserID           string     `gorm:"type:text;not null;index:idx_runs_user" json:"user_id"`
	ConnectionID     string     `gorm:"type:text;index:idx_runs_connection" json:"connection_id"`
	RunType          RunType    `gorm:"type:text;not null" json:"run_type"`
	Status           RunStatus  `gorm:"type:text;default:running" json:"status"`
	PostsFetched     int        `gorm:"default:0" json:"posts_fetched"`
	CommentsFetched  int        `gorm:"default:0" json:"comments_fetched"`
	CommentsAnalyzed int        `gorm:"default:0" json:"comments_analyzed"`
	LLMCalls         int        `gorm:"column:llm_calls;default:0" json:"llm_calls"`
	ErrorsCount      int        `gorm:"default:0" json:"errors_count"`
	TotalCostUSD     float64    `gorm:"column:total_cost_usd;default:0" json:"total_cost_usd"`
	Notes            string     `gorm:"type:text" json:"notes,omitempty"`
	StartedAt        time.Time  `json:"started_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
}

// TableName returns the database table name for PipelineRun.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (PipelineRun) TableName() string {
	return "pipeline_runs"
}

// RunProgress is the small progress payload written to PipelineRun.Notes
// while the orchestrator walks posts, consumable by a polling reader.
type RunProgress struct {
	Step        string `json:"step"`
	Current     int    `json:"current,omitempty"`
	Total       int    `json:"total,omitempty"`
	CurrentPost string `json:"current_post,omitempty"`
}
