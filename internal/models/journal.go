package models

import "time"

// Journal detail property kinds.
const (
	JournalPropertyAttr     = "attr"
	JournalPropertyCustom   = "cf"
	JournalPropertyRelation = "relation"
)

// Journal records a change made to an issue.
type Journal struct {
	ID        int             `json:"id" db:"id"`
	IssueID   int             `json:"issue_id" db:"journalized_id"`
	UserID    int             `json:"user_id" db:"user_id"`
	Notes     string          `json:"notes" db:"notes"`
	CreatedOn time.Time       `json:"created_on" db:"created_on"`
	Details   []JournalDetail `json:"details" db:"-"`
}

type JournalDetail struct {
	ID        int    `json:"id" db:"id"`
	JournalID int    `json:"-" db:"journal_id"`
	Property  string `json:"property" db:"property"`
	PropKey   string `json:"name" db:"prop_key"`
	OldValue  string `json:"old_value" db:"old_value"`
	Value     string `json:"new_value" db:"value"`
}
