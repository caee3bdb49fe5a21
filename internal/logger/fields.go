package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// ============================================
// Standard Tracing Fields (Context level)
// These fields are propagated through the call chain
// ============================================

const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldRunID is the pipeline run ID
	FieldRunID = "run_id"

	// FieldConnectionID is the social connection ID
	FieldConnectionID = "connection_id"

	// FieldPostID is the post ID being processed
	FieldPostID = "post_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldPlatform is the social platform identifier
	FieldPlatform = "platform"

	// FieldUserID is the owning user ID
	FieldUserID = "user_id"
)

// ============================================
// Standard Metric Fields (Entry level)
// These fields are used for aggregation and alerting
// ============================================

const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldStatus is the operation status
	FieldStatus = "status"
)
