package models

// WorkflowRuleType distinguishes status transition rows from field rule rows.
type WorkflowRuleType string

const (
	WorkflowTransition WorkflowRuleType = "transition"
	WorkflowField      WorkflowRuleType = "field"
)

// FieldRule constrains an issue field in a given status.
type FieldRule string

const (
	FieldRuleRequired FieldRule = "required"
	FieldRuleReadonly FieldRule = "readonly"
	FieldRuleHidden   FieldRule = "hidden"
)

// Wildcard is the tracker/status/role value meaning "applies to all".
const Wildcard = 0

func (r FieldRule) Valid() bool {
	return r.weight() > 0
}

func (r FieldRule) weight() int {
	switch r {
	case FieldRuleRequired:
		return 1
	case FieldRuleReadonly:
		return 2
	case FieldRuleHidden:
		return 3
	}
	return 0
}

// MoreRestrictive returns whichever of a and b constrains the field more:
// hidden > readonly > required.
func MoreRestrictive(a, b FieldRule) FieldRule {
	if b.weight() > a.weight() {
		return b
	}
	return a
}

// WorkflowRule is one row of the workflows table. For transition rows
// NewStatusID is the target status; for field rows OldStatusID is the status
// the rule applies in and FieldName/Rule describe the constraint.
type WorkflowRule struct {
	ID          int              `json:"id" db:"id"`
	Type        WorkflowRuleType `json:"type" db:"type"`
	TrackerID   int              `json:"tracker_id" db:"tracker_id"`
	OldStatusID int              `json:"old_status_id" db:"old_status_id"`
	NewStatusID int              `json:"new_status_id" db:"new_status_id"`
	RoleID      int              `json:"role_id" db:"role_id"`
	Assignee    bool             `json:"assignee" db:"assignee"`
	Author      bool             `json:"author" db:"author"`
	FieldName   string           `json:"field_name,omitempty" db:"field_name"`
	Rule        FieldRule        `json:"rule,omitempty" db:"rule"`
}

// Matches reports whether the row applies to the tracker, status and any of
// the given roles, honouring wildcards.
func (w *WorkflowRule) Matches(trackerID, statusID int, roleIDs map[int]struct{}) bool {
	if w.TrackerID != Wildcard && w.TrackerID != trackerID {
		return false
	}
	if w.OldStatusID != Wildcard && w.OldStatusID != statusID {
		return false
	}
	if w.RoleID == Wildcard {
		return true
	}
	_, ok := roleIDs[w.RoleID]
	return ok
}
