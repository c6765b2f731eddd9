package models

// Builtin role kinds. Givable roles are the ones admins create and assign to members.
const (
	BuiltinGivable   = 0
	BuiltinNonMember = 1
	BuiltinAnonymous = 2
)

// Visibility settings carried by a role.
const (
	IssuesVisibilityAll     = "all"
	IssuesVisibilityDefault = "default"
	IssuesVisibilityOwn     = "own"

	UsersVisibilityAll            = "all"
	UsersVisibilityMembersVisible = "members_of_visible_projects"

	TimeEntriesVisibilityAll = "all"
	TimeEntriesVisibilityOwn = "own"
)

// Role represents a project role. PermissionsText holds the permission list as
// stored, which may be a JSON array, a legacy YAML-ish list, or comma separated.
type Role struct {
	ID                    int    `json:"id" db:"id"`
	Name                  string `json:"name" db:"name"`
	Position              int    `json:"position" db:"position"`
	Assignable            bool   `json:"assignable" db:"assignable"`
	Builtin               int    `json:"builtin" db:"builtin"`
	PermissionsText       string `json:"-" db:"permissions"`
	IssuesVisibility      string `json:"issues_visibility" db:"issues_visibility"`
	UsersVisibility       string `json:"users_visibility" db:"users_visibility"`
	TimeEntriesVisibility string `json:"time_entries_visibility" db:"time_entries_visibility"`
	AllRolesManaged       bool   `json:"all_roles_managed" db:"all_roles_managed"`
	ManagedRoleIDs        []int  `json:"managed_role_ids" db:"-"`
}

func (r *Role) IsBuiltin() bool {
	return r.Builtin != BuiltinGivable
}

// Manages reports whether members holding r may grant roleID to others.
func (r *Role) Manages(roleID int) bool {
	if r.AllRolesManaged {
		return true
	}
	for _, id := range r.ManagedRoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// ApplyDefaults fills blank visibility settings.
func (r *Role) ApplyDefaults() {
	if r.IssuesVisibility == "" {
		r.IssuesVisibility = IssuesVisibilityDefault
	}
	if r.UsersVisibility == "" {
		r.UsersVisibility = UsersVisibilityAll
	}
	if r.TimeEntriesVisibility == "" {
		r.TimeEntriesVisibility = TimeEntriesVisibilityAll
	}
}
