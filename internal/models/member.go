package models

import "time"

// Member associates a user with a project. A user has at most one member row per project.
type Member struct {
	ID        int       `json:"id" db:"id"`
	UserID    int       `json:"user_id" db:"user_id"`
	ProjectID int       `json:"project_id" db:"project_id"`
	CreatedOn time.Time `json:"created_on" db:"created_on"`
}

// MemberRole links a member to one of its roles. InheritedFrom points at the
// member_roles row of a parent project when the role was inherited.
type MemberRole struct {
	ID            int  `json:"id" db:"id"`
	MemberID      int  `json:"member_id" db:"member_id"`
	RoleID        int  `json:"role_id" db:"role_id"`
	InheritedFrom *int `json:"inherited_from,omitempty" db:"inherited_from"`
}
