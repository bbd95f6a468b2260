package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"BulletinDispatch/internal/domain"
	"BulletinDispatch/internal/grouping"
	"BulletinDispatch/internal/logging"
	"BulletinDispatch/internal/ports"
	"BulletinDispatch/internal/report"
)

const dispatchJob = "dispatch"

// DispatchOptions controls one dispatch call. Confirm=false only plans.
type DispatchOptions struct {
	Confirm bool
}

// GroupOutcome is the per-unit result of a dispatch run or plan. Status is
// set only for attempted units; a plan leaves it empty and fills Expected
// with the outcome a confirmed run would try for.
type GroupOutcome struct {
	ClientKey  string
	Importance domain.Importance
	Email      string
	Artifact   string
	Bulletins  []string
	Status     domain.OutcomeStatus
	Expected   domain.OutcomeStatus
	Error      string
}

// DispatchResult aggregates outcomes. Planned is filled only when the call
// was not confirmed; no sends or log rows happen in that case. Skipped
// holds units not attempted because the run was stopped.
type DispatchResult struct {
	Confirmed   bool
	Planned     []GroupOutcome
	Sent        []GroupOutcome
	Failed      []GroupOutcome
	NoRecipient []GroupOutcome
	NoArtifact  []GroupOutcome
	Skipped     []GroupOutcome
}

// Total returns the number of units that reached a terminal outcome.
func (r DispatchResult) Total() int {
	return len(r.Sent) + len(r.Failed) + len(r.NoRecipient) + len(r.NoArtifact)
}

func (r *DispatchResult) add(o GroupOutcome) {
	switch o.Status {
	case domain.OutcomeSent:
		r.Sent = append(r.Sent, o)
	case domain.OutcomeFailed:
		r.Failed = append(r.Failed, o)
	case domain.OutcomeNoRecipient:
		r.NoRecipient = append(r.NoRecipient, o)
	case domain.OutcomeNoArtifact:
		r.NoArtifact = append(r.NoArtifact, o)
	}
}

// DispatcherDeps wires the driven adapters used by email dispatch.
type DispatcherDeps struct {
	Repository  ports.BulletinRepository
	Clients     ports.ClientDirectory
	Artifacts   ports.ArtifactStore
	Mailer      ports.Mailer
	OutcomeLog  ports.OutcomeLog
	Locker      ports.JobLocker
	Alerter     ports.Alerter
	Logger      *slog.Logger
	Locale      report.Locale
	Workers     int
	SendTimeout time.Duration
	Now         func() time.Time
}

// Dispatcher emails generated reports to clients and flags members sent.
type Dispatcher struct {
	repository  ports.BulletinRepository
	clients     ports.ClientDirectory
	artifacts   ports.ArtifactStore
	mailer      ports.Mailer
	outcomes    ports.OutcomeLog
	locker      ports.JobLocker
	alerter     ports.Alerter
	logger      *slog.Logger
	gate        *Gate
	composer    *Composer
	workers     int
	sendTimeout time.Duration
	now         func() time.Time
}

// NewDispatcher constructs the dispatch use case.
func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	d := &Dispatcher{
		repository:  deps.Repository,
		clients:     deps.Clients,
		artifacts:   deps.Artifacts,
		mailer:      deps.Mailer,
		outcomes:    deps.OutcomeLog,
		locker:      deps.Locker,
		alerter:     deps.Alerter,
		logger:      deps.Logger,
		gate:        NewGate(deps.Repository),
		workers:     deps.Workers,
		sendTimeout: deps.SendTimeout,
		now:         deps.Now,
	}
	locale := deps.Locale
	if locale.Code == "" {
		locale = report.LookupLocale("")
	}
	d.composer = NewComposer(locale)
	if d.logger == nil {
		d.logger = logging.Discard()
	}
	if d.workers < 1 {
		d.workers = defaultWorkers
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

// Dispatch runs the gate and then sends one email per dispatch unit. A
// *domain.BlockedError is returned before any side effect when a
// generated-unsent bulletin is still Pending. The returned error is
// otherwise non-nil only for lock contention, a failed pre-read, or a
// persistence failure after a successful send.
func (d *Dispatcher) Dispatch(ctx context.Context, opts DispatchOptions) (DispatchResult, error) {
	if d.repository == nil || d.outcomes == nil || d.artifacts == nil {
		return DispatchResult{}, fmt.Errorf("dispatcher is not configured")
	}
	if opts.Confirm && d.mailer == nil {
		return DispatchResult{}, fmt.Errorf("dispatcher has no mail transport")
	}

	release, err := acquire(ctx, d.locker, dispatchJob)
	if err != nil {
		return DispatchResult{}, err
	}
	defer release()

	groups, err := d.gate.Check(ctx)
	if err != nil {
		var blocked *domain.BlockedError
		if errors.As(err, &blocked) {
			d.logger.Warn("dispatch blocked by pending classification", "clients", blocked.ClientKeys(), "records", blocked.Total())
		}
		return DispatchResult{}, err
	}

	units := grouping.SplitByArtifact(groups)
	result := DispatchResult{Confirmed: opts.Confirm}
	if len(units) == 0 {
		d.logger.Info("nothing to dispatch")
		return result, nil
	}

	if !opts.Confirm {
		result.Planned, err = d.plan(ctx, units)
		return result, err
	}

	d.logger.Info("dispatch started", "units", len(units))

	outcomes := make([]*GroupOutcome, len(units))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(d.workers)
	for i, unit := range units {
		i, unit := i, unit
		eg.Go(func() error {
			if egCtx.Err() != nil {
				return nil
			}
			outcome, err := d.dispatchUnit(egCtx, unit)
			outcomes[i] = &outcome
			return err
		})
	}
	runErr := eg.Wait()

	for i, o := range outcomes {
		if o == nil {
			result.Skipped = append(result.Skipped, newOutcome(units[i]))
			continue
		}
		result.add(*o)
	}
	if ctxErr := ctx.Err(); ctxErr != nil && runErr == nil {
		runErr = fmt.Errorf("dispatch interrupted with %d unit(s) not attempted: %w", len(result.Skipped), ctxErr)
	}

	d.logger.Info("dispatch finished",
		"sent", len(result.Sent),
		"failed", len(result.Failed),
		"no_recipient", len(result.NoRecipient),
		"no_artifact", len(result.NoArtifact),
		"skipped", len(result.Skipped),
	)
	return result, runErr
}

// plan resolves recipients and artifacts without sending or logging.
func (d *Dispatcher) plan(ctx context.Context, units []domain.Group) ([]GroupOutcome, error) {
	planned := make([]GroupOutcome, 0, len(units))
	for _, unit := range units {
		outcome := newOutcome(unit)
		email, err := d.resolveEmail(ctx, unit.Key.ClientKey)
		if err != nil {
			return nil, err
		}
		outcome.Email = email

		switch {
		case email == "":
			outcome.Expected = domain.OutcomeNoRecipient
		case !d.artifactPresent(ctx, unit.Artifact()):
			outcome.Expected = domain.OutcomeNoArtifact
		default:
			outcome.Expected = domain.OutcomeSent
		}
		planned = append(planned, outcome)
	}
	return planned, nil
}

// dispatchUnit handles one unit and always appends exactly one log entry.
// It returns a non-nil error only for persistence failures.
func (d *Dispatcher) dispatchUnit(ctx context.Context, unit domain.Group) (GroupOutcome, error) {
	log := d.logger.With("client", unit.Key.ClientKey, "importance", unit.Key.Importance, "members", len(unit.Members))
	outcome := newOutcome(unit)

	var persistErr error
	outcome.Status, persistErr = d.attempt(ctx, log, unit, &outcome)

	// Recording is part of the outcome and must complete even if the batch
	// is being cancelled.
	entry := domain.OutcomeLogEntry{
		ID:             uuid.NewString(),
		ClientKey:      unit.Key.ClientKey,
		Email:          outcome.Email,
		Timestamp:      d.now(),
		Status:         outcome.Status,
		Error:          outcome.Error,
		BulletinNumber: unit.Representative(),
		Importance:     unit.Key.Importance,
	}
	if err := d.outcomes.Append(context.WithoutCancel(ctx), entry); err != nil {
		log.Error("outcome log append failed", "status", outcome.Status, "error", err)
		raise(ctx, d.alerter, log, fmt.Sprintf("dispatch outcome %s for %s not logged: %v", outcome.Status, unit.Key, err))
		persistErr = errors.Join(persistErr, domain.NewGroupError(domain.ErrPersistenceFailure, unit.Key, fmt.Errorf("append outcome log: %w", err)))
	}

	return outcome, persistErr
}

// attempt decides the unit's outcome and performs the send. The error return
// is reserved for a send whose sent flag could not be written.
func (d *Dispatcher) attempt(ctx context.Context, log *slog.Logger, unit domain.Group, outcome *GroupOutcome) (domain.OutcomeStatus, error) {
	if err := unit.CheckAdvance(domain.StageSent); err != nil {
		outcome.Error = err.Error()
		log.Error("unit cannot be sent", "error", err)
		return domain.OutcomeFailed, nil
	}

	email, err := d.resolveEmail(ctx, unit.Key.ClientKey)
	if err != nil {
		outcome.Error = err.Error()
		log.Error("client lookup failed", "error", err)
		return domain.OutcomeFailed, nil
	}
	if email == "" {
		outcome.Error = domain.ErrNoRecipient.Error()
		log.Warn("client has no email on file")
		return domain.OutcomeNoRecipient, nil
	}
	outcome.Email = email

	artifact := unit.Artifact()
	data, err := d.readArtifact(ctx, artifact)
	if errors.Is(err, domain.ErrNoArtifact) {
		outcome.Error = err.Error()
		log.Warn("artifact missing", "artifact", outcome.Artifact)
		return domain.OutcomeNoArtifact, nil
	}
	if err != nil {
		outcome.Error = err.Error()
		log.Error("artifact read failed", "artifact", outcome.Artifact, "error", err)
		return domain.OutcomeFailed, nil
	}

	msg, err := d.composer.Compose(email, unit, *artifact, data, d.now())
	if err != nil {
		outcome.Error = err.Error()
		log.Error("compose message failed", "error", err)
		return domain.OutcomeFailed, nil
	}

	if err := d.send(ctx, msg); err != nil {
		outcome.Error = domain.NewGroupError(domain.ErrTransportFailure, unit.Key, err).Error()
		log.Warn("send failed", "email", email, "error", err)
		return domain.OutcomeFailed, nil
	}

	if err := d.repository.MarkSent(context.WithoutCancel(ctx), unit.IDs(), d.now()); err != nil {
		outcome.Error = fmt.Sprintf("sent but flags not persisted: %v", err)
		log.Error("persistence failure after send", "email", email, "error", err)
		raise(ctx, d.alerter, log, fmt.Sprintf("report for %s sent to %s but sent flag not persisted (duplicate send risk): %v", unit.Key, email, err))
		return domain.OutcomeSent, domain.NewGroupError(domain.ErrPersistenceFailure, unit.Key, err)
	}

	log.Info("report sent", "email", email, "artifact", outcome.Artifact)
	return domain.OutcomeSent, nil
}

func (d *Dispatcher) send(ctx context.Context, msg ports.Message) error {
	if d.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.sendTimeout)
		defer cancel()
	}
	return d.mailer.Send(ctx, msg)
}

func (d *Dispatcher) resolveEmail(ctx context.Context, key string) (string, error) {
	if d.clients == nil {
		return "", nil
	}
	client, ok, err := d.clients.LookupClient(ctx, key)
	if err != nil {
		return "", fmt.Errorf("lookup client %q: %w", key, err)
	}
	if !ok || !client.HasEmail() {
		return "", nil
	}
	return client.Email, nil
}

func (d *Dispatcher) readArtifact(ctx context.Context, artifact *domain.Artifact) ([]byte, error) {
	if artifact == nil || artifact.Name == "" {
		return nil, domain.ErrNoArtifact
	}
	rc, err := d.artifacts.Open(ctx, *artifact)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoArtifact, artifact.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("open artifact %q: %w", artifact.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read artifact %q: %w", artifact.Name, err)
	}
	return data, nil
}

func (d *Dispatcher) artifactPresent(ctx context.Context, artifact *domain.Artifact) bool {
	if artifact == nil || artifact.Name == "" {
		return false
	}
	ok, err := d.artifacts.Exists(ctx, artifact.Name)
	return err == nil && ok
}

func newOutcome(unit domain.Group) GroupOutcome {
	o := GroupOutcome{
		ClientKey:  unit.Key.ClientKey,
		Importance: unit.Key.Importance,
		Bulletins:  unit.Numbers(),
	}
	if a := unit.Artifact(); a != nil {
		o.Artifact = a.Name
	}
	return o
}
