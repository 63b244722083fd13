package forms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	defs, err := Load()
	require.NoError(t, err)
	require.NotNil(t, defs)

	// Same instance on repeat loads.
	again, err := Load()
	require.NoError(t, err)
	assert.Same(t, defs, again)
}

func TestTabs(t *testing.T) {
	defs, err := Load()
	require.NoError(t, err)

	for _, name := range []string{"client", "policy", "members"} {
		tab, err := defs.Tab(name)
		require.NoError(t, err, "tab %q", name)
		assert.NotEmpty(t, tab.Link)
		assert.NotEmpty(t, tab.Container)
		assert.NotEmpty(t, tab.FileButton)
	}

	_, err = defs.Tab("nonexistent")
	assert.Error(t, err)
}

func TestPolicyTabSections(t *testing.T) {
	defs, err := Load()
	require.NoError(t, err)

	policy, err := defs.Tab("policy")
	require.NoError(t, err)
	require.Len(t, policy.Sections, 2)

	banking, ok := policy.Sections["banking"]
	require.True(t, ok)
	assert.NotEmpty(t, banking.Fields["branch_code"])
	assert.NotEmpty(t, banking.Fields["account_type"])
	assert.NotEmpty(t, banking.Fields["debit_day"])

	premium, ok := policy.Sections["premium"]
	require.True(t, ok)
	assert.NotEmpty(t, premium.Fields["premium_mirror"])
	assert.NotEmpty(t, premium.Fields["first_collection_month"])
}

func TestAccountTypeValue(t *testing.T) {
	defs, err := Load()
	require.NoError(t, err)

	tests := []struct {
		label string
		value string
	}{
		{"savings", "2"},
		{"Savings", "2"},
		{"  SAVINGS  ", "2"},
		{"current", "1"},
		{"cheque", "1"},
		{"transmission", "3"},
	}
	for _, tt := range tests {
		v, ok := defs.AccountTypeValue(tt.label)
		require.True(t, ok, "label %q", tt.label)
		assert.Equal(t, tt.value, v)
	}

	_, ok := defs.AccountTypeValue("bitcoin")
	assert.False(t, ok)
}

func TestMonthLabel(t *testing.T) {
	defs, err := Load()
	require.NoError(t, err)

	jan, err := defs.MonthLabel(1)
	require.NoError(t, err)
	assert.Equal(t, "January", jan)

	dec, err := defs.MonthLabel(12)
	require.NoError(t, err)
	assert.Equal(t, "December", dec)

	_, err = defs.MonthLabel(0)
	assert.Error(t, err)
	_, err = defs.MonthLabel(13)
	assert.Error(t, err)
}
