// Package publisher commits rendered notes files to GitHub. Files for
// one target repository are published as a single commit through the
// Git data API so the branch moves at most once per pass.
package publisher

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v55/github"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/qrqcrew/callsign-notes/internal/domain"
	apperrors "github.com/qrqcrew/callsign-notes/internal/errors"
)

// Client publishes files to one target repository
type Client struct {
	gh          *github.Client
	target      domain.GitHubTarget
	authorName  string
	authorEmail string
	logger      zerolog.Logger
}

// NewClient creates a publisher for a target using a personal token
func NewClient(token string, target domain.GitHubTarget, authorName, authorEmail string, logger zerolog.Logger) *Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)
	return NewClientWithGitHub(github.NewClient(tc), target, authorName, authorEmail, logger)
}

// NewClientWithGitHub creates a publisher around an existing GitHub client
func NewClientWithGitHub(gh *github.Client, target domain.GitHubTarget, authorName, authorEmail string, logger zerolog.Logger) *Client {
	return &Client{
		gh:          gh,
		target:      target,
		authorName:  authorName,
		authorEmail: authorEmail,
		logger:      logger,
	}
}

// ReadFile returns the current content of a file on the target branch,
// or nil when the file does not exist
func (c *Client) ReadFile(ctx context.Context, path string) (*string, error) {
	fc, _, resp, err := c.gh.Repositories.GetContents(ctx, c.target.Owner, c.target.Repo, path, &github.RepositoryContentGetOptions{
		Ref: c.target.Branch,
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, apperrors.NewPublishError(fmt.Sprintf("failed to read %s from %s", path, c.target), err)
	}
	if fc == nil {
		return nil, nil
	}

	content, err := fc.GetContent()
	if err != nil {
		return nil, apperrors.NewPublishError(fmt.Sprintf("failed to decode %s from %s", path, c.target), err)
	}
	return &content, nil
}

// BatchCommit publishes all files in one commit: resolve the branch
// head, create a blob per file, build a tree on the head's base tree,
// create the commit and move the branch reference. A failure at any
// step aborts the whole batch and leaves the branch pointer unchanged;
// blobs or trees created before the failure are unreferenced and
// harmless.
func (c *Client) BatchCommit(ctx context.Context, files []domain.PendingFile, message string) error {
	owner, repo := c.target.Owner, c.target.Repo

	ref, _, err := c.gh.Git.GetRef(ctx, owner, repo, "refs/heads/"+c.target.Branch)
	if err != nil {
		return apperrors.NewPublishError(fmt.Sprintf("failed to resolve branch head for %s", c.target), err)
	}

	baseCommit, _, err := c.gh.Git.GetCommit(ctx, owner, repo, ref.Object.GetSHA())
	if err != nil {
		return apperrors.NewPublishError(fmt.Sprintf("failed to read base commit for %s", c.target), err)
	}

	entries := make([]*github.TreeEntry, 0, len(files))
	for _, f := range files {
		blob, _, err := c.gh.Git.CreateBlob(ctx, owner, repo, &github.Blob{
			Content:  github.String(f.Content),
			Encoding: github.String("utf-8"),
		})
		if err != nil {
			return apperrors.NewPublishError(fmt.Sprintf("failed to create blob for %s", f.Path), err)
		}
		entries = append(entries, &github.TreeEntry{
			Path: github.String(f.Path),
			Mode: github.String("100644"),
			Type: github.String("blob"),
			SHA:  blob.SHA,
		})
	}

	tree, _, err := c.gh.Git.CreateTree(ctx, owner, repo, baseCommit.Tree.GetSHA(), entries)
	if err != nil {
		return apperrors.NewPublishError(fmt.Sprintf("failed to create tree for %s", c.target), err)
	}

	author := &github.CommitAuthor{
		Name:  github.String(c.authorName),
		Email: github.String(c.authorEmail),
		Date:  &github.Timestamp{Time: time.Now()},
	}
	newCommit, _, err := c.gh.Git.CreateCommit(ctx, owner, repo, &github.Commit{
		Message:   github.String(message),
		Tree:      tree,
		Parents:   []*github.Commit{{SHA: baseCommit.SHA}},
		Author:    author,
		Committer: author,
	})
	if err != nil {
		return apperrors.NewPublishError(fmt.Sprintf("failed to create commit for %s", c.target), err)
	}

	ref.Object.SHA = newCommit.SHA
	if _, _, err := c.gh.Git.UpdateRef(ctx, owner, repo, ref, false); err != nil {
		return apperrors.NewPublishError(fmt.Sprintf("failed to update branch reference for %s", c.target), err)
	}

	c.logger.Info().
		Str("target", c.target.String()).
		Int("files", len(files)).
		Str("sha", newCommit.GetSHA()).
		Msg("Batch commit published")

	return nil
}

// BuildCommitMessage builds the commit message for a batch of files
func BuildCommitMessage(files []domain.PendingFile) string {
	const trailer = "Generated by callsign-notes-daemon"

	if len(files) == 1 {
		f := files[0]
		return fmt.Sprintf("Update %s callsign notes (%d members)\n\n%s", f.OrgLabel, f.MemberCount, trailer)
	}

	var b strings.Builder
	b.WriteString("Update callsign notes\n\n")
	for _, f := range files {
		fmt.Fprintf(&b, "- %s: %d members\n", f.OrgLabel, f.MemberCount)
	}
	b.WriteString("\n" + trailer)
	return b.String()
}
