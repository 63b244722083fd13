// -----------------------------------------------------------------------
// Job - One sheet row to be pushed through the capture pipeline
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"strings"
)

// Job identifies one unit of work: a row in the source sheet plus the field
// values already normalized for the portal (dates as DD/MM/YYYY strings,
// amounts as decimal strings, enumerations as free-text labels).
//
// A Job is created when the poller discovers an eligible row and is not
// modified after dispatch; runtime progress lives on the RunRecord, never
// here.
type Job struct {
	Row    int               `json:"row"`    // 1-based sheet row reference
	Name   string            `json:"name"`   // Display name for logs and the dashboard
	Fields map[string]string `json:"fields"` // Logical field name -> normalized value
}

// NewJob builds a Job from a sheet row using the configured column mapping.
func NewJob(row int, fields map[string]string) *Job {
	job := &Job{
		Row:    row,
		Fields: fields,
	}
	job.Name = job.displayName()
	return job
}

// Field returns the named field value, or "" when absent.
func (j *Job) Field(name string) string {
	if j.Fields == nil {
		return ""
	}
	return j.Fields[name]
}

// HasField reports whether the named field carries a non-empty value.
func (j *Job) HasField(name string) bool {
	return strings.TrimSpace(j.Field(name)) != ""
}

func (j *Job) displayName() string {
	surname := strings.TrimSpace(j.Field("surname"))
	name := strings.TrimSpace(j.Field("name"))
	switch {
	case surname != "" && name != "":
		return fmt.Sprintf("%s, %s", surname, name)
	case surname != "":
		return surname
	case name != "":
		return name
	default:
		return fmt.Sprintf("row %d", j.Row)
	}
}
