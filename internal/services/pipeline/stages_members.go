package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/models"
)

// -----------------------------------------------------------------------
// Members tab - repeated row entry, third tab of the capture form
// -----------------------------------------------------------------------

// member is one covered person parsed from the row's members cell.
type member struct {
	Name     string
	Surname  string
	DOB      string
	Relation string
}

// parseMembers splits the sheet's members cell. Entries are separated by
// semicolons, fields within an entry by commas: "Name,Surname,DOB,Relation".
// An empty cell is valid; the principal member alone is a complete policy.
func parseMembers(raw string) ([]member, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var members []member
	for i, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ",")
		if len(parts) != 4 {
			return nil, fmt.Errorf("member entry %d has %d fields, want 4 (name,surname,dob,relation)", i+1, len(parts))
		}
		m := member{
			Name:     strings.TrimSpace(parts[0]),
			Surname:  strings.TrimSpace(parts[1]),
			DOB:      common.NormalizeDate(strings.TrimSpace(parts[2])),
			Relation: strings.TrimSpace(parts[3]),
		}
		if m.Name == "" || m.Surname == "" {
			return nil, fmt.Errorf("member entry %d is missing a name", i+1)
		}
		members = append(members, m)
	}
	return members, nil
}

func (e *Executor) stageFillMembers(ctx context.Context, session *models.Session, job *models.Job) models.StageOutcome {
	tab, err := e.defs.Tab("members")
	if err != nil {
		return models.OutcomeFromError(err)
	}
	if err := e.activateTab(session, tab); err != nil {
		return models.OutcomeFromError(err)
	}

	members, err := parseMembers(job.Field("members"))
	if err != nil {
		return models.OutcomeFromError(err)
	}
	if len(members) == 0 {
		return models.OutcomeOK("no additional members on this policy")
	}

	actx, cancel := e.actContext(session)
	defer cancel()

	for i, m := range members {
		if err := clickControl(actx, tab.AddRow); err != nil {
			return models.OutcomeFailf("add member control unreachable: %v", err)
		}
		if err := sleepCtx(actx, 250*time.Millisecond); err != nil {
			return models.OutcomeFromError(err)
		}
		if err := fillMemberRow(actx, tab.RowTemplate, tab.Fields, i, m); err != nil {
			return models.OutcomeFailf("member %d (%s %s): %v", i+1, m.Name, m.Surname, err)
		}
	}

	return models.OutcomeOK(fmt.Sprintf("%d member(s) entered", len(members)))
}

// fillMemberRow writes one member into the index-th repeated row. Rows are
// addressed positionally since the portal assigns them no stable ids.
func fillMemberRow(ctx context.Context, rowTemplate string, fields map[string]string, index int, m member) error {
	script := fmt.Sprintf(`(function() {
		var rows = document.querySelectorAll(%q);
		if (rows.length <= %d) { return "missing-row"; }
		var row = rows[%d];
		var entries = [[%q, %q], [%q, %q], [%q, %q], [%q, %q]];
		for (var i = 0; i < entries.length; i++) {
			var el = row.querySelector(entries[i][0]);
			if (!el) { return "missing-field:" + entries[i][0]; }
			el.value = entries[i][1];
		}
		return "ok";
	})()`, rowTemplate, index, index,
		fields["member_name"], m.Name,
		fields["member_surname"], m.Surname,
		fields["member_dob"], m.DOB,
		fields["member_relation"], m.Relation)

	var result string
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &result)); err != nil {
		return fmt.Errorf("failed to fill member row: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("member row %d: %s", index+1, result)
	}
	return nil
}

func (e *Executor) stageFileMembers(ctx context.Context, session *models.Session, job *models.Job) models.StageOutcome {
	return e.fileTab(session, "members")
}
