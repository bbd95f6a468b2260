package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"BulletinDispatch/internal/domain"
	"BulletinDispatch/internal/grouping"
	"BulletinDispatch/internal/logging"
	"BulletinDispatch/internal/ports"
	"BulletinDispatch/internal/report"
)

const (
	generateJob     = "generate"
	maxNameAttempts = 8
	defaultWorkers  = 1
)

// GenerateMessage tags the overall outcome of a generation run.
type GenerateMessage string

const (
	MessageNothingPending    GenerateMessage = "nothing_pending"
	MessageCompleted         GenerateMessage = "completed"
	MessageBlockedAllPending GenerateMessage = "blocked_all_pending"
	MessageError             GenerateMessage = "error"
)

// GenerateCounts summarizes a generation run. Generated counts bulletins,
// Artifacts counts groups, Errors counts failed groups and Skipped counts
// groups never started because the run was stopped.
type GenerateCounts struct {
	Generated       int `json:"generated"`
	Artifacts       int `json:"artifacts"`
	ExcludedPending int `json:"excluded_pending"`
	Errors          int `json:"errors"`
	Skipped         int `json:"skipped"`
}

// GeneratedArtifact describes one produced report.
type GeneratedArtifact struct {
	Key       domain.GroupKey
	Artifact  domain.Artifact
	Bulletins []string
}

// GenerateResult is returned by Generator.Generate.
type GenerateResult struct {
	Success   bool
	Message   GenerateMessage
	Counts    GenerateCounts
	Artifacts []GeneratedArtifact
	Failures  []error
}

// GeneratorDeps wires the driven adapters used by report generation.
type GeneratorDeps struct {
	Repository ports.BulletinRepository
	Clients    ports.ClientDirectory
	Artifacts  ports.ArtifactStore
	Renderer   ports.ReportRenderer
	Locker     ports.JobLocker
	Alerter    ports.Alerter
	Logger     *slog.Logger
	Locale     report.Locale
	Workers    int
	Now        func() time.Time
	Code       func() (string, error)
}

// Generator batches classified, ungenerated bulletins into one report per
// (client, importance) group and flags the members generated.
type Generator struct {
	repository ports.BulletinRepository
	clients    ports.ClientDirectory
	artifacts  ports.ArtifactStore
	renderer   ports.ReportRenderer
	locker     ports.JobLocker
	alerter    ports.Alerter
	logger     *slog.Logger
	locale     report.Locale
	workers    int
	now        func() time.Time
	code       func() (string, error)
}

// NewGenerator constructs the report generation use case.
func NewGenerator(deps GeneratorDeps) *Generator {
	g := &Generator{
		repository: deps.Repository,
		clients:    deps.Clients,
		artifacts:  deps.Artifacts,
		renderer:   deps.Renderer,
		locker:     deps.Locker,
		alerter:    deps.Alerter,
		logger:     deps.Logger,
		locale:     deps.Locale,
		workers:    deps.Workers,
		now:        deps.Now,
		code:       deps.Code,
	}
	if g.logger == nil {
		g.logger = logging.Discard()
	}
	if g.workers < 1 {
		g.workers = defaultWorkers
	}
	if g.now == nil {
		g.now = time.Now
	}
	if g.code == nil {
		g.code = report.RandomCode
	}
	if g.locale.Code == "" {
		g.locale = report.LookupLocale("")
	}
	return g
}

// Generate runs one generation batch. Per-group failures are folded into the
// result; the returned error is non-nil only when the run could not start or
// a group's state could not be persisted after its artifact was written.
func (g *Generator) Generate(ctx context.Context) (GenerateResult, error) {
	if g.repository == nil || g.artifacts == nil || g.renderer == nil {
		return GenerateResult{Message: MessageError}, fmt.Errorf("generator is not configured")
	}

	release, err := acquire(ctx, g.locker, generateJob)
	if err != nil {
		return GenerateResult{Message: MessageError}, err
	}
	defer release()

	unsent, ungenerated := false, false
	rows, err := g.repository.ListBulletins(ctx, ports.BulletinFilter{Generated: &ungenerated, Sent: &unsent})
	if err != nil {
		return GenerateResult{Message: MessageError}, fmt.Errorf("list ungenerated: %w", err)
	}

	var result GenerateResult
	eligible := make([]domain.Bulletin, 0, len(rows))
	for _, b := range rows {
		if b.Importance.Classified() {
			eligible = append(eligible, b)
			continue
		}
		result.Counts.ExcludedPending++
	}

	switch {
	case len(rows) == 0:
		result.Success = true
		result.Message = MessageNothingPending
		g.logger.Info("nothing to generate")
		return result, nil
	case len(eligible) == 0:
		result.Message = MessageBlockedAllPending
		g.logger.Warn("all ungenerated bulletins are pending classification", "pending", result.Counts.ExcludedPending)
		return result, nil
	}

	groups := grouping.Group(eligible)
	g.logger.Info("generation started", "groups", len(groups), "bulletins", len(eligible), "excluded_pending", result.Counts.ExcludedPending)

	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for _, group := range groups {
		group := group
		eg.Go(func() error {
			if egCtx.Err() != nil {
				mu.Lock()
				result.Counts.Skipped++
				mu.Unlock()
				return nil
			}
			produced, err := g.generateGroup(egCtx, group)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				result.Artifacts = append(result.Artifacts, produced)
				result.Counts.Artifacts++
				result.Counts.Generated += len(group.Members)
			case errors.Is(err, domain.ErrPersistenceFailure):
				result.Counts.Errors++
				result.Failures = append(result.Failures, err)
				return err
			default:
				result.Counts.Errors++
				result.Failures = append(result.Failures, err)
			}
			return nil
		})
	}
	runErr := eg.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil && runErr == nil {
		runErr = fmt.Errorf("generation interrupted with %d group(s) not started: %w", result.Counts.Skipped, ctxErr)
	}

	switch {
	case runErr != nil, result.Counts.Artifacts == 0 && result.Counts.Errors > 0:
		result.Message = MessageError
	default:
		result.Message = MessageCompleted
		result.Success = true
	}

	g.logger.Info("generation finished",
		"message", result.Message,
		"generated", result.Counts.Generated,
		"artifacts", result.Counts.Artifacts,
		"errors", result.Counts.Errors,
		"skipped", result.Counts.Skipped,
	)
	return result, runErr
}

func (g *Generator) generateGroup(ctx context.Context, group domain.Group) (GeneratedArtifact, error) {
	log := g.logger.With("client", group.Key.ClientKey, "importance", group.Key.Importance, "members", len(group.Members))
	at := g.now()

	if err := group.CheckAdvance(domain.StageGenerated); err != nil {
		log.Error("group cannot be generated", "error", err)
		return GeneratedArtifact{}, domain.NewGroupError(domain.ErrGenerationFailure, group.Key, err)
	}

	client := domain.Client{Key: group.Key.ClientKey}
	if g.clients != nil {
		found, ok, err := g.clients.LookupClient(ctx, group.Key.ClientKey)
		if err != nil {
			log.Error("client lookup failed", "error", err)
			return GeneratedArtifact{}, domain.NewGroupError(domain.ErrGenerationFailure, group.Key, fmt.Errorf("lookup client: %w", err))
		}
		if ok {
			client = found
		}
	}

	artifact, err := g.writeArtifact(ctx, client, group, at)
	if err != nil {
		log.Error("artifact generation failed", "error", err)
		return GeneratedArtifact{}, domain.NewGroupError(domain.ErrGenerationFailure, group.Key, err)
	}

	// Once the artifact exists the flag write runs to completion even if
	// the batch is being cancelled.
	err = g.repository.MarkGenerated(context.WithoutCancel(ctx), group.Key, group.IDs(), artifact, at)
	if errors.Is(err, domain.ErrStaleGroup) {
		log.Warn("group changed during generation, discarding artifact", "artifact", artifact.Name, "error", err)
		if rmErr := g.artifacts.Remove(context.WithoutCancel(ctx), artifact); rmErr != nil {
			log.Error("remove discarded artifact", "artifact", artifact.Name, "error", rmErr)
		}
		return GeneratedArtifact{}, domain.NewGroupError(domain.ErrGenerationFailure, group.Key, err)
	}
	if err != nil {
		msg := fmt.Sprintf("artifact %q written for %s but generated flag not persisted: %v", artifact.Name, group.Key, err)
		log.Error("persistence failure after generation", "artifact", artifact.Name, "error", err)
		raise(ctx, g.alerter, log, msg)
		return GeneratedArtifact{}, domain.NewGroupError(domain.ErrPersistenceFailure, group.Key, err)
	}

	log.Info("group generated", "artifact", artifact.Name)
	return GeneratedArtifact{Key: group.Key, Artifact: artifact, Bulletins: group.Numbers()}, nil
}

// writeArtifact draws filename codes until a free name is found and writes
// the rendered report under it.
func (g *Generator) writeArtifact(ctx context.Context, client domain.Client, group domain.Group, at time.Time) (domain.Artifact, error) {
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		code, err := g.code()
		if err != nil {
			return domain.Artifact{}, err
		}
		name := report.NewFilename(g.locale, group.Key, at, code).String()

		taken, err := g.artifacts.Exists(ctx, name)
		if err != nil {
			return domain.Artifact{}, fmt.Errorf("check artifact %q: %w", name, err)
		}
		if taken {
			continue
		}

		artifact, err := g.artifacts.Create(ctx, name, func(w io.Writer) error {
			return g.renderer.Render(w, client, group, at)
		})
		if errors.Is(err, ports.ErrArtifactExists) {
			continue
		}
		if err != nil {
			return domain.Artifact{}, fmt.Errorf("create artifact %q: %w", name, err)
		}
		return artifact, nil
	}
	return domain.Artifact{}, fmt.Errorf("no free artifact name after %d attempts", maxNameAttempts)
}
