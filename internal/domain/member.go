package domain

// Member represents one roster entry for an organization
type Member struct {
	Callsign string  // canonical uppercase callsign
	MemberID string  // organization-assigned number, may carry a suffix like "2C"
	Nickname *string // filled in by enrichment, nil when unknown
}

// GitHubTarget identifies the repository and branch a notes file is published to
type GitHubTarget struct {
	Owner  string
	Repo   string
	Branch string
}

// String returns the target in owner/repo@branch form
func (t GitHubTarget) String() string {
	return t.Owner + "/" + t.Repo + "@" + t.Branch
}

// PendingFile is a rendered notes file waiting for the batch commit step
type PendingFile struct {
	Path        string
	Content     string
	OrgLabel    string
	MemberCount int
	Target      GitHubTarget
}
