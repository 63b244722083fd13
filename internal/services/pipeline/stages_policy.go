package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/models"
)

// -----------------------------------------------------------------------
// Policy holder tab - plain field entry, first tab of the capture form
// -----------------------------------------------------------------------

// policyHolderFields are entered in definition-agnostic order; the portal
// has no cross-field hooks on this tab.
var policyHolderFields = []string{"name", "surname", "id_number", "phone"}

func (e *Executor) stageFillPolicy(ctx context.Context, session *models.Session, job *models.Job) models.StageOutcome {
	tab, err := e.defs.Tab("client")
	if err != nil {
		return models.OutcomeFromError(err)
	}
	if err := e.activateTab(session, tab); err != nil {
		return models.OutcomeFromError(err)
	}

	actx, cancel := e.actContext(session)
	defer cancel()

	var missing []string
	for _, field := range policyHolderFields {
		value := strings.TrimSpace(job.Field(field))
		if value == "" {
			missing = append(missing, field)
			continue
		}
		selector, ok := tab.Fields[field]
		if !ok {
			return models.OutcomeFailf("no selector defined for field %q", field)
		}
		if err := setTextField(actx, selector, value); err != nil {
			return models.OutcomeFromError(err)
		}
	}

	if len(missing) > 0 {
		return models.OutcomeFailf("row is missing required fields: %s", strings.Join(missing, ", "))
	}

	return models.OutcomeOK("policy holder details entered")
}

func (e *Executor) stageFilePolicy(ctx context.Context, session *models.Session, job *models.Job) models.StageOutcome {
	return e.fileTab(session, "client")
}

// normalizedInceptionDate returns the job's inception date in portal form.
// An empty cell is an error here; only NormalizeDate's explicit default
// path is allowed to invent a date, and filing wants the row's own value.
func normalizedInceptionDate(job *models.Job) (string, error) {
	raw := strings.TrimSpace(job.Field("inception_date"))
	if raw == "" {
		return "", fmt.Errorf("row has no inception date")
	}
	return common.NormalizeDate(raw), nil
}
