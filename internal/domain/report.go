package domain

import "time"

// OrgReport records the outcome of a single organization within a pass
type OrgReport struct {
	Name        string `json:"name"`
	MemberCount int    `json:"member_count"`
	Changed     bool   `json:"changed"`
	Skipped     bool   `json:"skipped"`
	Error       string `json:"error,omitempty"`
}

// CommitReport records the outcome of one batch commit to a target repository
type CommitReport struct {
	Target    string `json:"target"`
	FileCount int    `json:"file_count"`
	Error     string `json:"error,omitempty"`
}

// PassReport summarizes one full sync pass for logs and the status endpoint
type PassReport struct {
	PassID     string         `json:"pass_id"`
	DryRun     bool           `json:"dry_run"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Orgs       []OrgReport    `json:"organizations"`
	Commits    []CommitReport `json:"commits,omitempty"`
}
