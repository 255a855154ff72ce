package types

import "time"

type ResultMessage struct {
	SessionID   string        `json:"session_id"`
	Test        string        `json:"test"`
	Case        string        `json:"case"`
	RunMode     string        `json:"run_mode"`
	Passed      bool          `json:"passed"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
	ReplayInput string        `json:"replay_input,omitempty"`

	TraceContext string `json:"trace_context,omitempty"` // exported span of the case
}

type FindingMessage struct {
	SessionID string `json:"session_id"`
	Test      string `json:"test"`
	InputPath string `json:"input_path"` // path to the crashing input on local filesystem
	Digest    string `json:"digest"`     // md5 of the input contents
	Reproduce string `json:"reproduce"`  // flags that replay the input

	TraceContext string `json:"trace_context,omitempty"` // exported span of the finding
}
