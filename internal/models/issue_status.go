package models

type IssueStatus struct {
	ID               int    `json:"id" db:"id"`
	Name             string `json:"name" db:"name"`
	IsClosed         bool   `json:"is_closed" db:"is_closed"`
	Position         int    `json:"position" db:"position"`
	DefaultDoneRatio *int   `json:"default_done_ratio,omitempty" db:"default_done_ratio"`
}
