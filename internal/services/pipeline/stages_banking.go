package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/scriba/internal/banks"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/forms"
	"github.com/ternarybob/scriba/internal/models"
)

// -----------------------------------------------------------------------
// Premium and banking tab - second tab, two sections with awkward controls
// -----------------------------------------------------------------------

// bankingSelection is the resolved, portal-ready view of a row's banking
// fields. Pure derivation; no browser interaction.
type bankingSelection struct {
	BankName     string
	BranchCode   string
	BankStrategy string
	Account      string
	AccountType  string
	DebitDay     string
}

// bankingSelections resolves the row's free-text banking fields into the
// values the portal's controls accept. Resolution failures abort before
// any field is touched: a wrong branch code files cleanly and debits the
// wrong account, so guessing is worse than failing.
func bankingSelections(defs *forms.Definitions, job *models.Job) (bankingSelection, error) {
	var sel bankingSelection

	sel.BankName = strings.TrimSpace(job.Field("bank_name"))
	if sel.BankName == "" {
		return sel, fmt.Errorf("row has no bank name")
	}
	resolution := banks.Resolve(sel.BankName)
	if !resolution.Matched {
		return sel, fmt.Errorf("unrecognized bank %q", sel.BankName)
	}
	sel.BranchCode = resolution.Code
	sel.BankStrategy = resolution.Strategy

	sel.Account = strings.TrimSpace(job.Field("account_number"))
	if sel.Account == "" {
		return sel, fmt.Errorf("row has no account number")
	}

	label := strings.TrimSpace(job.Field("account_type"))
	if label == "" {
		return sel, fmt.Errorf("row has no account type")
	}
	value, ok := defs.AccountTypeValue(label)
	if !ok {
		return sel, fmt.Errorf("unrecognized account type %q", label)
	}
	sel.AccountType = value

	day := strings.TrimSpace(job.Field("debit_day"))
	if day == "" {
		return sel, fmt.Errorf("row has no debit day")
	}
	n, err := strconv.Atoi(day)
	if err != nil || n < 1 || n > 31 {
		return sel, fmt.Errorf("debit day %q is not a day of month", day)
	}
	sel.DebitDay = strconv.Itoa(n)

	return sel, nil
}

// successorMonth returns the 1-based month after the given portal-form
// date, wrapping December to January. First collection always lands the
// month after inception.
func successorMonth(inceptionDate string) (int, error) {
	t, err := time.Parse(common.DateLayout, inceptionDate)
	if err != nil {
		return 0, fmt.Errorf("invalid inception date %q: %w", inceptionDate, err)
	}
	month := int(t.Month()) + 1
	if month > 12 {
		month = 1
	}
	return month, nil
}

func (e *Executor) stageFillBanking(ctx context.Context, session *models.Session, job *models.Job) models.StageOutcome {
	tab, err := e.defs.Tab("policy")
	if err != nil {
		return models.OutcomeFromError(err)
	}
	if err := e.activateTab(session, tab); err != nil {
		return models.OutcomeFromError(err)
	}

	premium, ok := tab.Sections["premium"]
	if !ok {
		return models.OutcomeFail("policy tab has no premium section defined")
	}
	banking, ok := tab.Sections["banking"]
	if !ok {
		return models.OutcomeFail("policy tab has no banking section defined")
	}

	sel, err := bankingSelections(e.defs, job)
	if err != nil {
		return models.OutcomeFromError(err)
	}

	actx, cancel := e.actContext(session)
	defer cancel()

	if outcome := e.fillPremiumSection(actx, premium, job); !outcome.Success {
		return outcome
	}
	if outcome := e.fillBankingSection(actx, banking, sel); !outcome.Success {
		return outcome
	}

	e.logger.Info().
		Str("job", job.Name).
		Str("bank", sel.BankName).
		Str("branch_code", sel.BranchCode).
		Str("strategy", sel.BankStrategy).
		Msg("Banking details entered")

	return models.OutcomeOKData("premium and banking details entered", map[string]interface{}{
		"branch_code":   sel.BranchCode,
		"bank_strategy": sel.BankStrategy,
	})
}

func (e *Executor) fillPremiumSection(ctx context.Context, section forms.Section, job *models.Job) models.StageOutcome {
	inception, err := normalizedInceptionDate(job)
	if err != nil {
		return models.OutcomeFromError(err)
	}

	if err := setTextField(ctx, section.Fields["inception_date"], inception); err != nil {
		return models.OutcomeFromError(err)
	}

	if plan := strings.TrimSpace(job.Field("plan")); plan != "" {
		if err := setSelectByValue(ctx, section.Fields["plan"], plan); err != nil {
			return models.OutcomeFromError(err)
		}
	}

	premium := strings.TrimSpace(job.Field("premium"))
	if premium == "" {
		return models.OutcomeFail("row has no premium amount")
	}
	if err := setTextField(ctx, section.Fields["premium"], premium); err != nil {
		return models.OutcomeFromError(err)
	}

	// The mirror field is populated by a client-side hook that scripted
	// entry never fires; write it directly through its read-only guard.
	if err := setReadOnlyField(ctx, section.Fields["premium_mirror"], premium); err != nil {
		return models.OutcomeFromError(err)
	}

	month, err := successorMonth(inception)
	if err != nil {
		return models.OutcomeFromError(err)
	}
	label, err := e.defs.MonthLabel(month)
	if err != nil {
		return models.OutcomeFromError(err)
	}
	if err := setDisabledSelect(ctx, section.Fields["first_collection_month"], label, strconv.Itoa(month)); err != nil {
		return models.OutcomeFromError(err)
	}

	return models.OutcomeOK("premium section entered")
}

func (e *Executor) fillBankingSection(ctx context.Context, section forms.Section, sel bankingSelection) models.StageOutcome {
	if err := setTextField(ctx, section.Fields["bank_name"], sel.BankName); err != nil {
		return models.OutcomeFromError(err)
	}
	if err := setTextField(ctx, section.Fields["branch_code"], sel.BranchCode); err != nil {
		return models.OutcomeFromError(err)
	}
	if err := setTextField(ctx, section.Fields["account_number"], sel.Account); err != nil {
		return models.OutcomeFromError(err)
	}

	// The account type control clobbers scripted assignments inside its
	// change hook; its value must land without firing hooks.
	if err := setSelectNoHooks(ctx, section.Fields["account_type"], sel.AccountType); err != nil {
		return models.OutcomeFromError(err)
	}

	if err := setSelectByValue(ctx, section.Fields["debit_day"], sel.DebitDay); err != nil {
		return models.OutcomeFromError(err)
	}

	return models.OutcomeOK("banking section entered")
}

func (e *Executor) stageFileBanking(ctx context.Context, session *models.Session, job *models.Job) models.StageOutcome {
	return e.fileTab(session, "policy")
}
