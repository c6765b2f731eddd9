package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redtrack-io/redtrack/internal/core"
)

// Issue attribute names accepted by workflow field rules and transition requests.
// Custom fields are addressed by their numeric id.
const (
	FieldSubject        = "subject"
	FieldDescription    = "description"
	FieldAssignedTo     = "assigned_to_id"
	FieldPriority       = "priority_id"
	FieldCategory       = "category_id"
	FieldFixedVersion   = "fixed_version_id"
	FieldParentIssue    = "parent_issue_id"
	FieldStartDate      = "start_date"
	FieldDueDate        = "due_date"
	FieldEstimatedHours = "estimated_hours"
	FieldDoneRatio      = "done_ratio"
	FieldIsPrivate      = "is_private"
	FieldStatus         = "status_id"
)

const dateLayout = "2006-01-02"

// CoreFields lists the built-in attributes in display order.
var CoreFields = []string{
	FieldSubject, FieldDescription, FieldAssignedTo, FieldPriority, FieldCategory,
	FieldFixedVersion, FieldParentIssue, FieldStartDate, FieldDueDate,
	FieldEstimatedHours, FieldDoneRatio, FieldIsPrivate,
}

type Issue struct {
	ID             int               `json:"id" db:"id"`
	TrackerID      int               `json:"tracker_id" db:"tracker_id"`
	ProjectID      int               `json:"project_id" db:"project_id"`
	StatusID       int               `json:"status_id" db:"status_id"`
	AssignedToID   *int              `json:"assigned_to_id,omitempty" db:"assigned_to_id"`
	AuthorID       int               `json:"author_id" db:"author_id"`
	ParentID       *int              `json:"parent_id,omitempty" db:"parent_id"`
	Subject        string            `json:"subject" db:"subject"`
	Description    string            `json:"description" db:"description"`
	PriorityID     int               `json:"priority_id" db:"priority_id"`
	CategoryID     *int              `json:"category_id,omitempty" db:"category_id"`
	FixedVersionID *int              `json:"fixed_version_id,omitempty" db:"fixed_version_id"`
	StartDate      *time.Time        `json:"start_date,omitempty" db:"start_date"`
	DueDate        *time.Time        `json:"due_date,omitempty" db:"due_date"`
	EstimatedHours *float64          `json:"estimated_hours,omitempty" db:"estimated_hours"`
	DoneRatio      int               `json:"done_ratio" db:"done_ratio"`
	IsPrivate      bool              `json:"is_private" db:"is_private"`
	LockVersion    int               `json:"lock_version" db:"lock_version"`
	UpdatedOn      time.Time         `json:"updated_on" db:"updated_on"`
	CustomFields   map[string]string `json:"custom_fields,omitempty" db:"-"`
}

// IsCustomField reports whether name addresses a custom field by id.
func IsCustomField(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// IsKnownField reports whether name is a core attribute or a custom field id.
func IsKnownField(name string) bool {
	if IsCustomField(name) {
		return true
	}
	for _, f := range CoreFields {
		if f == name {
			return true
		}
	}
	return false
}

// IsAssignedTo reports whether userID is the issue's assignee.
func (i *Issue) IsAssignedTo(userID int) bool {
	return i.AssignedToID != nil && *i.AssignedToID == userID
}

// IsAuthoredBy reports whether userID created the issue.
func (i *Issue) IsAuthoredBy(userID int) bool {
	return i.AuthorID == userID
}

// Attribute returns the string form of a field. Unset values are "".
func (i *Issue) Attribute(name string) (string, error) {
	if IsCustomField(name) {
		return i.CustomFields[name], nil
	}
	switch name {
	case FieldSubject:
		return i.Subject, nil
	case FieldDescription:
		return i.Description, nil
	case FieldAssignedTo:
		return formatIntPtr(i.AssignedToID), nil
	case FieldPriority:
		return strconv.Itoa(i.PriorityID), nil
	case FieldCategory:
		return formatIntPtr(i.CategoryID), nil
	case FieldFixedVersion:
		return formatIntPtr(i.FixedVersionID), nil
	case FieldParentIssue:
		return formatIntPtr(i.ParentID), nil
	case FieldStartDate:
		return formatDate(i.StartDate), nil
	case FieldDueDate:
		return formatDate(i.DueDate), nil
	case FieldEstimatedHours:
		if i.EstimatedHours == nil {
			return "", nil
		}
		return strconv.FormatFloat(*i.EstimatedHours, 'f', -1, 64), nil
	case FieldDoneRatio:
		return strconv.Itoa(i.DoneRatio), nil
	case FieldIsPrivate:
		return strconv.FormatBool(i.IsPrivate), nil
	case FieldStatus:
		return strconv.Itoa(i.StatusID), nil
	}
	return "", core.NewFieldError(name, core.ErrUnknownField)
}

// SetAttribute parses value and assigns it to the named field. An empty value
// clears optional fields.
func (i *Issue) SetAttribute(name, value string) error {
	value = strings.TrimSpace(value)
	if IsCustomField(name) {
		if i.CustomFields == nil {
			i.CustomFields = make(map[string]string)
		}
		i.CustomFields[name] = value
		return nil
	}

	var err error
	switch name {
	case FieldSubject:
		if value == "" {
			return core.NewFieldError(name, core.ErrInvalidFieldValue)
		}
		i.Subject = value
	case FieldDescription:
		i.Description = value
	case FieldAssignedTo:
		i.AssignedToID, err = parseIntPtr(value)
	case FieldPriority:
		i.PriorityID, err = strconv.Atoi(value)
	case FieldCategory:
		i.CategoryID, err = parseIntPtr(value)
	case FieldFixedVersion:
		i.FixedVersionID, err = parseIntPtr(value)
	case FieldParentIssue:
		i.ParentID, err = parseIntPtr(value)
	case FieldStartDate:
		i.StartDate, err = parseDate(value)
	case FieldDueDate:
		i.DueDate, err = parseDate(value)
	case FieldEstimatedHours:
		if value == "" {
			i.EstimatedHours = nil
			break
		}
		var h float64
		h, err = strconv.ParseFloat(value, 64)
		if err == nil && h < 0 {
			err = fmt.Errorf("negative hours")
		}
		i.EstimatedHours = &h
	case FieldDoneRatio:
		var ratio int
		ratio, err = strconv.Atoi(value)
		if err == nil && (ratio < 0 || ratio > 100) {
			err = fmt.Errorf("ratio out of range")
		}
		i.DoneRatio = ratio
	case FieldIsPrivate:
		i.IsPrivate, err = strconv.ParseBool(value)
	default:
		return core.NewFieldError(name, core.ErrUnknownField)
	}
	if err != nil {
		return core.NewFieldError(name, fmt.Errorf("%w: %v", core.ErrInvalidFieldValue, err))
	}
	return nil
}

// Clone returns a deep copy so callers can mutate without touching the original.
func (i *Issue) Clone() *Issue {
	c := *i
	c.AssignedToID = cloneInt(i.AssignedToID)
	c.ParentID = cloneInt(i.ParentID)
	c.CategoryID = cloneInt(i.CategoryID)
	c.FixedVersionID = cloneInt(i.FixedVersionID)
	if i.StartDate != nil {
		d := *i.StartDate
		c.StartDate = &d
	}
	if i.DueDate != nil {
		d := *i.DueDate
		c.DueDate = &d
	}
	if i.EstimatedHours != nil {
		h := *i.EstimatedHours
		c.EstimatedHours = &h
	}
	if i.CustomFields != nil {
		c.CustomFields = make(map[string]string, len(i.CustomFields))
		for k, v := range i.CustomFields {
			c.CustomFields[k] = v
		}
	}
	return &c
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func formatIntPtr(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

func parseIntPtr(value string) (*int, error) {
	if value == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
