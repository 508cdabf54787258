package entities

import (
	"encoding/json"
	"strconv"
)

// JiraIssue is the part of a Jira issue the tracker reads back.
type JiraIssue struct {
	Key         string
	Project     string
	Status      string
	Summary     string
	Description string
	Labels      []string
	// Fields holds every raw field keyed by field id (customfield_NNNNN for custom ones).
	Fields map[string]json.RawMessage
}

// FieldString decodes a raw field as text. Option fields ({"value": ...}) yield
// their value, numbers are formatted, anything else is empty.
func (i JiraIssue) FieldString(id string) string {
	raw, ok := i.Fields[id]
	if !ok || len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var opt struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &opt); err == nil && opt.Value != "" {
		return opt.Value
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}

// JiraTransition is one workflow transition available on an issue.
type JiraTransition struct {
	ID   string
	Name string
	To   string
}

// ExtraField is a Jira field set by name on a tracking issue. Value is sent as is,
// so raw JSON copied from another issue keeps its shape.
type ExtraField struct {
	Name  string
	Value any
}
