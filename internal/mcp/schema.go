package mcp

// InferTagsInput defines the input for the playbook_infer_tags tool.
type InferTagsInput struct {
	Prompt  string   `json:"prompt" jsonschema:"The user prompt to infer tags from"`
	History []string `json:"history,omitempty" jsonschema:"Recent transcript turns as plain text, oldest first"`
	MaxTags int      `json:"max_tags,omitempty" jsonschema:"Maximum number of tags to return (default 8)"`
}

// InferTagsOutput defines the output for the playbook_infer_tags tool.
type InferTagsOutput struct {
	Tags        []string `json:"tags" jsonschema:"Inferred hyphen-delimited tag hierarchy strings"`
	Temperature float64  `json:"temperature" jsonschema:"Estimated novelty/uncertainty of the prompt, in [0,1]"`
	Complexity  string   `json:"complexity" jsonschema:"Coarse complexity label (e.g. simple, moderate, complex)"`
}

// ReflectInput defines the input for the playbook_reflect tool.
type ReflectInput struct {
	Transcript []TranscriptTurn `json:"transcript" jsonschema:"The session transcript to reflect over"`
	SessionID  string           `json:"session_id" jsonschema:"Identifier of the session being reflected on"`
}

// TranscriptTurn mirrors models.TranscriptTurn for the MCP wire schema, so
// this package doesn't leak an internal model type into tool contracts.
type TranscriptTurn struct {
	Role string `json:"role" jsonschema:"Either 'user' or 'assistant'"`
	Text string `json:"text" jsonschema:"The turn's text"`
}

// ReflectOutput defines the output for the playbook_reflect tool.
type ReflectOutput struct {
	NewKPTs    int  `json:"new_kpts" jsonschema:"Number of newly admitted pending KPTs"`
	Deltas     int  `json:"deltas" jsonschema:"Number of score/tag/text deltas the reflection proposed"`
	Merges     int  `json:"merges" jsonschema:"Number of merge groups the reflection proposed"`
	Promotions int  `json:"promotions" jsonschema:"Number of KPTs promoted from pending to stable"`
	TotalCount int  `json:"total_count" jsonschema:"Total KPT count in the playbook after the update"`
	Applied    bool `json:"applied" jsonschema:"Whether the reflection produced a stored update"`
}
