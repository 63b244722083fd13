package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/forms"
	"github.com/ternarybob/scriba/internal/models"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	defs, err := forms.Load()
	require.NoError(t, err)
	return NewExecutor(common.NewDefaultConfig(), defs, nil, arbor.NewLogger())
}

func testSession() *models.Session {
	return models.NewSession("w1", "/tmp/profile-w1", context.Background())
}

func testJob() *models.Job {
	return models.NewJob(5, map[string]string{"name": "Thandi", "surname": "Mokoena"})
}

func TestStageNamesOrdered(t *testing.T) {
	e := newTestExecutor(t)
	names := e.StageNames()

	require.Len(t, names, 9)
	assert.Equal(t, StageAuthenticate, names[0])
	assert.Equal(t, StageOpenIntake, names[1])
	assert.Equal(t, StageReport, names[len(names)-1])
}

func TestRunJobExecutesStagesInOrder(t *testing.T) {
	e := newTestExecutor(t)

	var order []string
	e.stages = []stage{
		{"first", func(ctx context.Context, s *models.Session, j *models.Job) models.StageOutcome {
			order = append(order, "first")
			return models.OutcomeOK("ok")
		}},
		{"second", func(ctx context.Context, s *models.Session, j *models.Job) models.StageOutcome {
			order = append(order, "second")
			return models.OutcomeOK("ok")
		}},
		{"third", func(ctx context.Context, s *models.Session, j *models.Job) models.StageOutcome {
			order = append(order, "third")
			return models.OutcomeOKData("done", map[string]interface{}{"reference": "POL-1"})
		}},
	}

	outcome := e.RunJob(context.Background(), testSession(), testJob(), nil)

	require.True(t, outcome.Success)
	assert.Equal(t, []string{"first", "second", "third"}, order)
	assert.Equal(t, "POL-1", outcome.Data["reference"])
}

func TestRunJobHaltsOnFirstFailure(t *testing.T) {
	e := newTestExecutor(t)

	var order []string
	e.stages = []stage{
		{"first", func(ctx context.Context, s *models.Session, j *models.Job) models.StageOutcome {
			order = append(order, "first")
			return models.OutcomeOK("ok")
		}},
		{"second", func(ctx context.Context, s *models.Session, j *models.Job) models.StageOutcome {
			order = append(order, "second")
			return models.OutcomeFail("portal rejected the tab")
		}},
		{"third", func(ctx context.Context, s *models.Session, j *models.Job) models.StageOutcome {
			order = append(order, "third")
			return models.OutcomeOK("ok")
		}},
	}

	var observed []string
	outcome := e.RunJob(context.Background(), testSession(), testJob(), func(stage string, o models.StageOutcome) {
		observed = append(observed, stage)
	})

	require.False(t, outcome.Success)
	assert.Equal(t, []string{"first", "second"}, order, "downstream stages must not run after a failure")
	assert.Equal(t, []string{"first", "second"}, observed)
	assert.Equal(t, "second", outcome.Data["stage"])
	assert.Equal(t, "portal rejected the tab", outcome.Message)
}

func TestRunJobRecoversStagePanic(t *testing.T) {
	e := newTestExecutor(t)

	thirdRan := false
	e.stages = []stage{
		{"explode", func(ctx context.Context, s *models.Session, j *models.Job) models.StageOutcome {
			panic("selector gone")
		}},
		{"after", func(ctx context.Context, s *models.Session, j *models.Job) models.StageOutcome {
			thirdRan = true
			return models.OutcomeOK("ok")
		}},
	}

	outcome := e.RunJob(context.Background(), testSession(), testJob(), nil)

	require.False(t, outcome.Success)
	assert.Contains(t, outcome.Message, "panicked")
	assert.Contains(t, outcome.Message, "selector gone")
	assert.False(t, thirdRan)
}

func TestRunJobCancelledContext(t *testing.T) {
	e := newTestExecutor(t)
	e.stages = []stage{
		{"never", func(ctx context.Context, s *models.Session, j *models.Job) models.StageOutcome {
			t.Fatal("stage must not run on a cancelled context")
			return models.StageOutcome{}
		}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := e.RunJob(ctx, testSession(), testJob(), nil)
	require.False(t, outcome.Success)
	assert.Contains(t, outcome.Message, "cancelled")
}

func TestRunStageStampsDuration(t *testing.T) {
	e := newTestExecutor(t)
	e.stages = []stage{
		{"slow", func(ctx context.Context, s *models.Session, j *models.Job) models.StageOutcome {
			time.Sleep(5 * time.Millisecond)
			return models.OutcomeOK("ok")
		}},
		{"explode", func(ctx context.Context, s *models.Session, j *models.Job) models.StageOutcome {
			panic("selector gone")
		}},
	}

	outcome, err := e.RunStage(context.Background(), testSession(), testJob(), "slow")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, outcome.Duration, 5*time.Millisecond)

	outcome, err = e.RunStage(context.Background(), testSession(), testJob(), "explode")
	require.NoError(t, err)
	require.False(t, outcome.Success)
	assert.Greater(t, outcome.Duration, time.Duration(0), "panicked stages are timed too")
}

func TestDialogListenerStateDiesWithSession(t *testing.T) {
	e := newTestExecutor(t)

	ctx, cancel := context.WithCancel(context.Background())
	session := models.NewSession("w1", t.TempDir(), ctx)

	e.ensureDialogListener(session)
	_, tracked := e.listeners.Load(session)
	require.True(t, tracked)

	// Re-entry must not double-register.
	e.ensureDialogListener(session)

	cancel()
	require.Eventually(t, func() bool {
		_, tracked := e.listeners.Load(session)
		return !tracked
	}, time.Second, 10*time.Millisecond, "a closed session must not leave listener state behind")
}

func TestRunStageUnknownName(t *testing.T) {
	e := newTestExecutor(t)
	_, err := e.RunStage(context.Background(), testSession(), testJob(), "no such stage")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown stage")
}

func TestRunStageByName(t *testing.T) {
	e := newTestExecutor(t)
	e.stages = []stage{
		{"only", func(ctx context.Context, s *models.Session, j *models.Job) models.StageOutcome {
			return models.OutcomeOK("ran")
		}},
	}

	outcome, err := e.RunStage(context.Background(), testSession(), testJob(), "only")
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, "only", outcome.Data["stage"])
}
