// Package syncer drives the roster sync pipeline: fetch each enabled
// organization's roster, enrich it with nicknames, render the notes
// file, diff it against the committed copy and batch-commit everything
// that changed, grouped by target repository.
package syncer

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/qrqcrew/callsign-notes/internal/cache"
	"github.com/qrqcrew/callsign-notes/internal/config"
	"github.com/qrqcrew/callsign-notes/internal/domain"
	"github.com/qrqcrew/callsign-notes/internal/notes"
	"github.com/qrqcrew/callsign-notes/internal/publisher"
	"github.com/qrqcrew/callsign-notes/internal/qrz"
	"github.com/qrqcrew/callsign-notes/internal/roster"
)

// lookupDelay is the fixed pause before each enrichment request so a
// full-concurrency batch does not burst the lookup service
const lookupDelay = 50 * time.Millisecond

// Lookup resolves a callsign to a nickname
type Lookup interface {
	LookupNickname(ctx context.Context, callsign string) (*string, error)
}

// Publisher reads and batch-writes files at one target repository
type Publisher interface {
	ReadFile(ctx context.Context, path string) (*string, error)
	BatchCommit(ctx context.Context, files []domain.PendingFile, message string) error
}

// Orchestrator runs sync passes over all enabled organizations
type Orchestrator struct {
	cfg           *config.Config
	dryRun        bool
	runOnce       bool
	lookup        Lookup // nil when QRZ is not configured
	cache         *cache.Nickname
	maxConcurrent int
	newSource     func(config.Organization) roster.Source
	newPublisher  func(domain.GitHubTarget) Publisher
	logger        zerolog.Logger

	mu         sync.RWMutex
	lastReport *domain.PassReport
}

// New creates an orchestrator from the loaded configuration
func New(cfg *config.Config, dryRun, runOnce bool, logger zerolog.Logger) *Orchestrator {
	o := &Orchestrator{
		cfg:           cfg,
		dryRun:        dryRun,
		runOnce:       runOnce || cfg.Daemon.RunOnce,
		maxConcurrent: config.DefaultMaxConcurrentLookups,
		logger:        logger,
	}

	if cfg.QRZ != nil && cfg.QRZ.Enabled {
		logger.Info().Msg("QRZ lookups enabled")
		o.lookup = qrz.NewClient(cfg.QRZ.Username, cfg.QRZ.Password, logger)
		o.maxConcurrent = cfg.QRZ.MaxConcurrentLookups
		o.cache = cache.Load(cfg.QRZ.CachePath, logger)
	} else {
		logger.Info().Msg("QRZ not configured, nicknames will not be fetched")
	}

	o.newSource = func(org config.Organization) roster.Source {
		return SourceForOrganization(org, logger)
	}
	o.newPublisher = func(target domain.GitHubTarget) Publisher {
		return publisher.NewClient(cfg.GitHub.Token, target, cfg.GitHub.CommitAuthorName, cfg.GitHub.CommitAuthorEmail, logger)
	}

	return o
}

// SourceForOrganization builds the roster source matching an
// organization's source type and column selectors
func SourceForOrganization(org config.Organization, logger zerolog.Logger) roster.Source {
	orgLogger := logger.With().Str("org", org.Name).Logger()
	switch org.SourceType {
	case "html_table":
		return roster.NewHTMLSource(org.RosterURL, *org.CallsignColumnIndex, *org.NumberColumnIndex, orgLogger)
	default:
		return roster.NewCSVSource(org.RosterURL, org.CallsignColumn, org.NumberColumn, org.SkipRows, orgLogger)
	}
}

// Run executes sync passes until the context is cancelled, or exactly
// one pass in run-once mode
func (o *Orchestrator) Run(ctx context.Context) error {
	interval := time.Duration(o.cfg.Daemon.SyncIntervalSecs) * time.Second

	for {
		o.connectivityCheck(ctx)

		report := o.RunPass(ctx)
		o.logger.Info().
			Str("pass_id", report.PassID).
			Int("organizations", len(report.Orgs)).
			Int("commits", len(report.Commits)).
			Dur("duration", report.FinishedAt.Sub(report.StartedAt)).
			Msg("Sync pass complete")

		if o.runOnce {
			o.logger.Info().Msg("Run-once mode, exiting")
			return nil
		}

		o.logger.Info().Dur("interval", interval).Msg("Sleeping until next pass")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// RunPass executes one full pass over all enabled organizations.
// Failures of a single organization or a single target never abort
// the pass.
func (o *Orchestrator) RunPass(ctx context.Context) *domain.PassReport {
	report := &domain.PassReport{
		PassID:    uuid.New().String(),
		DryRun:    o.dryRun,
		StartedAt: time.Now(),
	}

	var pending []domain.PendingFile
	for _, org := range o.cfg.EnabledOrganizations() {
		o.logger.Info().Str("org", org.Name).Msg("Starting sync")

		orgReport, file := o.syncOrg(ctx, org)
		report.Orgs = append(report.Orgs, orgReport)
		if file != nil {
			o.logger.Info().
				Str("org", org.Name).
				Str("path", file.Path).
				Int("members", file.MemberCount).
				Str("target", file.Target.String()).
				Msg("Prepared update")
			pending = append(pending, *file)
		}
	}

	report.Commits = o.publishPending(ctx, pending)
	report.FinishedAt = time.Now()

	o.mu.Lock()
	o.lastReport = report
	o.mu.Unlock()

	return report
}

// syncOrg runs the fetch -> enrich -> render -> diff pipeline for one
// organization and returns the pending file when the content changed
func (o *Orchestrator) syncOrg(ctx context.Context, org config.Organization) (domain.OrgReport, *domain.PendingFile) {
	orgReport := domain.OrgReport{Name: org.Name}

	members, err := o.newSource(org).FetchMembers(ctx)
	if err != nil {
		o.logger.Error().Str("org", org.Name).Err(err).Msg("Sync failed")
		orgReport.Error = err.Error()
		return orgReport, nil
	}
	orgReport.MemberCount = len(members)
	o.logger.Info().Str("org", org.Name).Int("members", len(members)).Msg("Fetched roster")

	if len(members) == 0 {
		o.logger.Warn().Str("org", org.Name).Msg("No members found in roster, skipping")
		orgReport.Skipped = true
		return orgReport, nil
	}

	if o.lookup != nil {
		o.enrich(ctx, org.Name, members)
	}

	content := notes.NewGenerator(org.Emoji, org.Label, org.URL).Generate(members)
	target := o.cfg.ResolveTarget(org.GitHub)

	existing, err := o.newPublisher(target).ReadFile(ctx, org.OutputFile)
	if err != nil {
		o.logger.Error().Str("org", org.Name).Err(err).Msg("Failed to read committed notes file")
		orgReport.Error = err.Error()
		return orgReport, nil
	}

	if !notes.ContentChanged(existing, content) {
		o.logger.Info().Str("org", org.Name).Msg("Notes unchanged, no commit needed")
		return orgReport, nil
	}
	orgReport.Changed = true

	return orgReport, &domain.PendingFile{
		Path:        org.OutputFile,
		Content:     content,
		OrgLabel:    org.Label,
		MemberCount: len(members),
		Target:      target,
	}
}

// publishPending groups pending files by target and issues one batch
// commit per target. Dry-run suppresses only the commit step.
func (o *Orchestrator) publishPending(ctx context.Context, pending []domain.PendingFile) []domain.CommitReport {
	if len(pending) == 0 {
		return nil
	}
	if o.dryRun {
		for _, f := range pending {
			o.logger.Info().
				Str("path", f.Path).
				Str("target", f.Target.String()).
				Msg("Dry run - would commit")
		}
		return nil
	}

	byTarget := make(map[domain.GitHubTarget][]domain.PendingFile)
	var targets []domain.GitHubTarget
	for _, f := range pending {
		if _, seen := byTarget[f.Target]; !seen {
			targets = append(targets, f.Target)
		}
		byTarget[f.Target] = append(byTarget[f.Target], f)
	}

	var reports []domain.CommitReport
	for _, target := range targets {
		files := byTarget[target]
		commitReport := domain.CommitReport{Target: target.String(), FileCount: len(files)}

		message := publisher.BuildCommitMessage(files)
		if err := o.newPublisher(target).BatchCommit(ctx, files, message); err != nil {
			o.logger.Error().Str("target", target.String()).Err(err).Msg("Batch commit failed")
			commitReport.Error = err.Error()
		}
		reports = append(reports, commitReport)
	}
	return reports
}

// LastReport returns the most recent pass report, or nil before the
// first pass completes
func (o *Orchestrator) LastReport() *domain.PassReport {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastReport
}

// Close flushes any unsaved cache state. Save failures are logged,
// never fatal.
func (o *Orchestrator) Close() {
	if o.cache == nil {
		return
	}
	if err := o.cache.Save(); err != nil {
		o.logger.Warn().Err(err).Msg("Failed to save nickname cache on shutdown")
	}
}

// connectivityCheck dials the services the pipeline depends on and logs
// the outcome; it never blocks a pass
func (o *Orchestrator) connectivityCheck(ctx context.Context) {
	targets := []struct{ name, addr string }{
		{"Google (DNS)", "google.com:443"},
		{"Google Sheets", "docs.google.com:443"},
		{"GitHub API", "api.github.com:443"},
	}

	dialer := &net.Dialer{Timeout: 10 * time.Second}
	for _, t := range targets {
		conn, err := dialer.DialContext(ctx, "tcp", t.addr)
		if err != nil {
			o.logger.Warn().Str("service", t.name).Str("addr", t.addr).Err(err).Msg("Connectivity check failed")
			continue
		}
		conn.Close()
		o.logger.Debug().Str("service", t.name).Str("addr", t.addr).Msg("Connectivity check OK")
	}
}
