// -----------------------------------------------------------------------
// Pipeline Executor - Ordered stage sequence against the capture portal
// -----------------------------------------------------------------------

package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/forms"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
)

// Stage names, in execution order. The portal itself refuses interaction
// with a downstream tab until upstream tabs are filed, but the executor
// fails fast on its own view of state rather than relying on that.
const (
	StageAuthenticate  = "authenticate"
	StageOpenIntake    = "open intake form"
	StageFillPolicy    = "fill policy holder tab"
	StageFilePolicy    = "file policy holder tab"
	StageFillBanking   = "fill premium and banking tab"
	StageFileBanking   = "file premium and banking tab"
	StageFillMembers   = "fill members tab"
	StageFileMembers   = "file members tab"
	StageReport        = "report capture result"
)

type stageFunc func(ctx context.Context, session *models.Session, job *models.Job) models.StageOutcome

type stage struct {
	name string
	run  stageFunc
}

// Executor drives one job through the portal's fixed stage sequence.
// Stateless across jobs: all per-job state lives on the session's page.
type Executor struct {
	cfg    *common.Config
	defs   *forms.Definitions
	events interfaces.EventService
	logger arbor.ILogger
	stages []stage

	// Sessions already carrying a native-dialog listener. Keyed by
	// session pointer; entries die with the session.
	listeners sync.Map
}

// NewExecutor creates the pipeline executor.
func NewExecutor(cfg *common.Config, defs *forms.Definitions, eventService interfaces.EventService, logger arbor.ILogger) *Executor {
	e := &Executor{
		cfg:    cfg,
		defs:   defs,
		events: eventService,
		logger: logger,
	}

	e.stages = []stage{
		{StageAuthenticate, e.stageAuthenticate},
		{StageOpenIntake, e.stageOpenIntake},
		{StageFillPolicy, e.stageFillPolicy},
		{StageFilePolicy, e.stageFilePolicy},
		{StageFillBanking, e.stageFillBanking},
		{StageFileBanking, e.stageFileBanking},
		{StageFillMembers, e.stageFillMembers},
		{StageFileMembers, e.stageFileMembers},
		{StageReport, e.stageReport},
	}

	return e
}

// StageNames returns the ordered stage sequence.
func (e *Executor) StageNames() []string {
	names := make([]string, len(e.stages))
	for i, s := range e.stages {
		names[i] = s.name
	}
	return names
}

// RunJob runs the full sequence in strict order. The first failed stage
// halts the remainder and its outcome (annotated with the stage name in
// Data) is returned. Stage panics never escape.
func (e *Executor) RunJob(ctx context.Context, session *models.Session, job *models.Job, observer interfaces.StageObserver) models.StageOutcome {
	var last models.StageOutcome

	for _, s := range e.stages {
		if err := ctx.Err(); err != nil {
			return models.OutcomeFailf("job cancelled before stage %q: %v", s.name, err)
		}

		outcome := e.runStage(ctx, s, session, job)
		if observer != nil {
			observer(s.name, outcome)
		}

		if !outcome.Success {
			e.logger.Warn().
				Str("job", job.Name).
				Int("row", job.Row).
				Str("stage", s.name).
				Str("message", outcome.Message).
				Msg("Stage failed, halting pipeline")
			return withStage(outcome, s.name)
		}

		last = outcome
	}

	return withStage(last, StageReport)
}

// RunStage runs a single named stage for manual stepwise invocation.
func (e *Executor) RunStage(ctx context.Context, session *models.Session, job *models.Job, name string) (models.StageOutcome, error) {
	for _, s := range e.stages {
		if s.name == name {
			return withStage(e.runStage(ctx, s, session, job), s.name), nil
		}
	}
	return models.StageOutcome{}, fmt.Errorf("unknown stage %q", name)
}

// runStage executes one stage with panic recovery and telemetry. Stages
// never leak panics across the stage boundary by contract.
func (e *Executor) runStage(ctx context.Context, s stage, session *models.Session, job *models.Job) (outcome models.StageOutcome) {
	started := time.Now()
	e.ensureDialogListener(session)

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().
				Str("stage", s.name).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Stage panicked, converting to failed outcome")
			outcome = models.OutcomeFailf("stage %q panicked: %v", s.name, r)
		}
		outcome.Duration = time.Since(started)
		e.publishProgress(session, job, s.name, outcome)
	}()

	e.logger.Info().
		Str("job", job.Name).
		Int("row", job.Row).
		Str("stage", s.name).
		Msg("Stage starting")

	outcome = s.run(ctx, session, job)

	e.logger.Info().
		Str("stage", s.name).
		Bool("success", outcome.Success).
		Dur("duration", time.Since(started)).
		Msg("Stage finished")

	return outcome
}

func (e *Executor) publishProgress(session *models.Session, job *models.Job, stageName string, outcome models.StageOutcome) {
	if e.events == nil {
		return
	}
	e.events.Publish(context.Background(), interfaces.Event{
		Type: interfaces.EventStageProgress,
		Payload: models.StageProgress{
			JobRow:    job.Row,
			JobName:   job.Name,
			WorkerKey: session.WorkerKey,
			Stage:     stageName,
			Success:   outcome.Success,
			Message:   outcome.Message,
			Timestamp: time.Now(),
		},
	})
}

// withStage annotates an outcome with the stage it came from.
func withStage(outcome models.StageOutcome, name string) models.StageOutcome {
	if outcome.Data == nil {
		outcome.Data = map[string]interface{}{}
	}
	outcome.Data["stage"] = name
	return outcome
}

// navContext bounds a navigation-level interaction. Exceeding the bound
// surfaces as a normal stage failure, not a crash.
func (e *Executor) navContext(session *models.Session) (context.Context, context.CancelFunc) {
	timeout := e.cfg.Portal.NavigationTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return context.WithTimeout(session.Ctx, timeout)
}

// actContext bounds an action-level interaction (clicks, field entry).
func (e *Executor) actContext(session *models.Session) (context.Context, context.CancelFunc) {
	timeout := e.cfg.Portal.ActionTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return context.WithTimeout(session.Ctx, timeout)
}
