// Package forms holds the declarative description of the portal's capture
// form: selectors, tab wiring, dialog containers, and label maps. The
// definitions are embedded at build time and parsed once at startup.
package forms

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed definitions.yaml
var definitionsYAML []byte

// Login selectors for the portal's authentication page.
type Login struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Submit   string `yaml:"submit"`
	Landing  string `yaml:"landing"`
}

// Intake selectors for the policy-capture entry screen.
type Intake struct {
	MenuItem     string `yaml:"menu_item"`
	Container    string `yaml:"container"`
	SearchInput  string `yaml:"search_input"`
	SearchButton string `yaml:"search_button"`
	NewButton    string `yaml:"new_button"`
}

// Dialogs describes the portal's interstitial dialog variants.
type Dialogs struct {
	InfoContainer   string `yaml:"info_container"`
	InfoMessage     string `yaml:"info_message"`
	InfoDismiss     string `yaml:"info_dismiss"`
	LookupContainer string `yaml:"lookup_container"`
	LookupDismiss   string `yaml:"lookup_dismiss"`
}

// Section is one sub-section of a tab with its own field selectors.
type Section struct {
	Container string            `yaml:"container"`
	Fields    map[string]string `yaml:"fields"`
}

// Tab describes one capture tab: its link, container, filing control, and
// field selectors (flat or grouped into sections).
type Tab struct {
	Link        string             `yaml:"link"`
	Container   string             `yaml:"container"`
	FileButton  string             `yaml:"file_button"`
	AddRow      string             `yaml:"add_row"`
	RowTemplate string             `yaml:"row_template"`
	Fields      map[string]string  `yaml:"fields"`
	Sections    map[string]Section `yaml:"sections"`
}

// Confirmation selectors for the terminal result fragment.
type Confirmation struct {
	Container string `yaml:"container"`
	Reference string `yaml:"reference"`
	Status    string `yaml:"status"`
}

// Definitions is the parsed form catalog.
type Definitions struct {
	Login        Login             `yaml:"login"`
	Intake       Intake            `yaml:"intake"`
	Dialogs      Dialogs           `yaml:"dialogs"`
	Tabs         map[string]Tab    `yaml:"tabs"`
	Confirmation Confirmation      `yaml:"confirmation"`
	AccountTypes map[string]string `yaml:"account_types"`
	Months       []string          `yaml:"months"`
}

var (
	loadOnce sync.Once
	loaded   *Definitions
	loadErr  error
)

// Load parses the embedded definitions. Subsequent calls return the same
// instance.
func Load() (*Definitions, error) {
	loadOnce.Do(func() {
		var defs Definitions
		if err := yaml.Unmarshal(definitionsYAML, &defs); err != nil {
			loadErr = fmt.Errorf("failed to parse form definitions: %w", err)
			return
		}
		if err := defs.validate(); err != nil {
			loadErr = err
			return
		}
		loaded = &defs
	})
	return loaded, loadErr
}

func (d *Definitions) validate() error {
	for _, name := range []string{"client", "policy", "members"} {
		if _, ok := d.Tabs[name]; !ok {
			return fmt.Errorf("form definitions missing tab %q", name)
		}
	}
	for name, tab := range d.Tabs {
		if tab.FileButton == "" {
			return fmt.Errorf("tab %q has no file_button selector", name)
		}
		if tab.Container == "" {
			return fmt.Errorf("tab %q has no container selector", name)
		}
	}
	if len(d.Months) != 12 {
		return fmt.Errorf("expected 12 month labels, got %d", len(d.Months))
	}
	return nil
}

// Tab returns the named tab definition.
func (d *Definitions) Tab(name string) (Tab, error) {
	tab, ok := d.Tabs[name]
	if !ok {
		return Tab{}, fmt.Errorf("unknown tab %q", name)
	}
	return tab, nil
}

// AccountTypeValue maps a free-text account type label to the portal's
// option value. Matching is case-insensitive.
func (d *Definitions) AccountTypeValue(label string) (string, bool) {
	v, ok := d.AccountTypes[strings.ToLower(strings.TrimSpace(label))]
	return v, ok
}

// MonthLabel returns the label for a 1-based month number.
func (d *Definitions) MonthLabel(month int) (string, error) {
	if month < 1 || month > 12 {
		return "", fmt.Errorf("month out of range: %d", month)
	}
	return d.Months[month-1], nil
}
