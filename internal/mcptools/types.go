package mcptools

// --- MCP tool types for serve-mcp mode ---
// These tools let an MCP client drive the pipeline and inspect past runs.

// RunPipelineInput is the input for the run_pipeline MCP tool.
type RunPipelineInput struct {
	VideoID    string `json:"videoId,omitempty" jsonschema:"YouTube video ID whose transcript drives the run"`
	Transcript string `json:"transcript,omitempty" jsonschema:"transcript text to use instead of fetching one"`
}

// RunPipelineOutput is the result of the run_pipeline MCP tool.
type RunPipelineOutput struct {
	RunID         string       `json:"runId"`
	VideoID       string       `json:"videoId,omitempty"`
	Status        string       `json:"status"` // "published", "rejected" or "failed"
	Score         int          `json:"score,omitempty"`
	Feedback      string       `json:"feedback,omitempty"`
	Content       string       `json:"content,omitempty"`
	Stored        []StoredPost `json:"stored,omitempty"`
	ScheduledLink string       `json:"scheduledLink,omitempty"`
	ErrorStage    string       `json:"errorStage,omitempty"`
	ErrorKind     string       `json:"errorKind,omitempty"`
	Message       string       `json:"message,omitempty"`
}

// StoredPost is one persisted post in a tool result.
type StoredPost struct {
	Platform string `json:"platform"`
	Filename string `json:"filename"`
	Link     string `json:"link"`
}

// GetRunInput is the input for the get_run MCP tool.
type GetRunInput struct {
	ID string `json:"id" jsonschema:"run ID returned by run_pipeline"`
}

// ListRunsInput is the input for the list_runs MCP tool.
type ListRunsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of runs to return, newest first (default 20)"`
}

// ListRunsOutput is the result of the list_runs MCP tool.
type ListRunsOutput struct {
	Runs []RunSummary `json:"runs"`
}

// RunSummary is a brief overview of one recorded run.
type RunSummary struct {
	RunID      string `json:"runId"`
	VideoID    string `json:"videoId,omitempty"`
	Status     string `json:"status"`
	Score      int    `json:"score,omitempty"`
	ErrorKind  string `json:"errorKind,omitempty"`
	StartedAt  string `json:"startedAt"`
	FinishedAt string `json:"finishedAt,omitempty"`
}
