package auth

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

// Permission is a stable key gating one category of project actions.
type Permission string

// PermissionSet is the effective permission set of a user in a project.
type PermissionSet = mapset.Set[Permission]

// NewPermissionSet returns a set suitable for single-goroutine accumulation.
func NewPermissionSet(perms ...Permission) PermissionSet {
	return mapset.NewThreadUnsafeSet(perms...)
}

// PermissionInfo describes a catalog entry.
type PermissionInfo struct {
	Key      Permission `json:"key"`
	Name     string     `json:"name"`
	Category string     `json:"category"`
}

const (
	// Project
	PermissionAddProject           Permission = "add_project"
	PermissionEditProject          Permission = "edit_project"
	PermissionCloseProject         Permission = "close_project"
	PermissionSelectProjectModules Permission = "select_project_modules"
	PermissionManageMembers        Permission = "manage_members"
	PermissionManageVersions       Permission = "manage_versions"
	PermissionAddSubprojects       Permission = "add_subprojects"
	PermissionManagePublicQueries  Permission = "manage_public_queries"
	PermissionSaveQueries          Permission = "save_queries"

	// Issue tracking
	PermissionViewIssues           Permission = "view_issues"
	PermissionAddIssues            Permission = "add_issues"
	PermissionEditIssues           Permission = "edit_issues"
	PermissionEditOwnIssues        Permission = "edit_own_issues"
	PermissionCopyIssues           Permission = "copy_issues"
	PermissionManageIssueRelations Permission = "manage_issue_relations"
	PermissionManageSubtasks       Permission = "manage_subtasks"
	PermissionSetIssuesPrivate     Permission = "set_issues_private"
	PermissionSetOwnIssuesPrivate  Permission = "set_own_issues_private"
	PermissionAddIssueNotes        Permission = "add_issue_notes"
	PermissionEditIssueNotes       Permission = "edit_issue_notes"
	PermissionEditOwnIssueNotes    Permission = "edit_own_issue_notes"
	PermissionViewPrivateNotes     Permission = "view_private_notes"
	PermissionSetNotesPrivate      Permission = "set_notes_private"
	PermissionDeleteIssues         Permission = "delete_issues"
	PermissionViewIssueWatchers    Permission = "view_issue_watchers"
	PermissionAddIssueWatchers     Permission = "add_issue_watchers"
	PermissionDeleteIssueWatchers  Permission = "delete_issue_watchers"
	PermissionImportIssues         Permission = "import_issues"
	PermissionManageCategories     Permission = "manage_categories"

	// Time tracking
	PermissionViewTimeEntries      Permission = "view_time_entries"
	PermissionLogTime              Permission = "log_time"
	PermissionEditTimeEntries      Permission = "edit_time_entries"
	PermissionEditOwnTimeEntries   Permission = "edit_own_time_entries"
	PermissionManageActivities     Permission = "manage_project_activities"
	PermissionLogTimeForOtherUsers Permission = "log_time_for_other_users"

	// News
	PermissionViewNews    Permission = "view_news"
	PermissionManageNews  Permission = "manage_news"
	PermissionCommentNews Permission = "comment_news"

	// Documents and files
	PermissionViewDocuments   Permission = "view_documents"
	PermissionAddDocuments    Permission = "add_documents"
	PermissionEditDocuments   Permission = "edit_documents"
	PermissionDeleteDocuments Permission = "delete_documents"
	PermissionViewFiles       Permission = "view_files"
	PermissionManageFiles     Permission = "manage_files"

	// Wiki
	PermissionViewWikiPages    Permission = "view_wiki_pages"
	PermissionViewWikiEdits    Permission = "view_wiki_edits"
	PermissionExportWikiPages  Permission = "export_wiki_pages"
	PermissionEditWikiPages    Permission = "edit_wiki_pages"
	PermissionRenameWikiPages  Permission = "rename_wiki_pages"
	PermissionDeleteWikiPages  Permission = "delete_wiki_pages"
	PermissionProtectWikiPages Permission = "protect_wiki_pages"
	PermissionManageWiki       Permission = "manage_wiki"

	// Repository
	PermissionViewChangesets      Permission = "view_changesets"
	PermissionBrowseRepository    Permission = "browse_repository"
	PermissionCommitAccess        Permission = "commit_access"
	PermissionManageRelatedIssues Permission = "manage_related_issues"
	PermissionManageRepository    Permission = "manage_repository"

	// Boards
	PermissionViewMessages      Permission = "view_messages"
	PermissionAddMessages       Permission = "add_messages"
	PermissionEditMessages      Permission = "edit_messages"
	PermissionEditOwnMessages   Permission = "edit_own_messages"
	PermissionDeleteMessages    Permission = "delete_messages"
	PermissionDeleteOwnMessages Permission = "delete_own_messages"
	PermissionManageBoards      Permission = "manage_boards"

	// Calendar and gantt
	PermissionViewCalendar Permission = "view_calendar"
	PermissionViewGantt    Permission = "view_gantt"
)

var catalog = func() map[Permission]PermissionInfo {
	entries := map[string][]struct {
		key  Permission
		name string
	}{
		"project": {
			{PermissionAddProject, "Create project"},
			{PermissionEditProject, "Edit project"},
			{PermissionCloseProject, "Close / reopen the project"},
			{PermissionSelectProjectModules, "Select project modules"},
			{PermissionManageMembers, "Manage members"},
			{PermissionManageVersions, "Manage versions"},
			{PermissionAddSubprojects, "Create subprojects"},
			{PermissionManagePublicQueries, "Manage public queries"},
			{PermissionSaveQueries, "Save queries"},
		},
		"issue_tracking": {
			{PermissionViewIssues, "View Issues"},
			{PermissionAddIssues, "Add issues"},
			{PermissionEditIssues, "Edit issues"},
			{PermissionEditOwnIssues, "Edit own issues"},
			{PermissionCopyIssues, "Copy issues"},
			{PermissionManageIssueRelations, "Manage issue relations"},
			{PermissionManageSubtasks, "Manage subtasks"},
			{PermissionSetIssuesPrivate, "Set issues public or private"},
			{PermissionSetOwnIssuesPrivate, "Set own issues public or private"},
			{PermissionAddIssueNotes, "Add notes"},
			{PermissionEditIssueNotes, "Edit notes"},
			{PermissionEditOwnIssueNotes, "Edit own notes"},
			{PermissionViewPrivateNotes, "View private notes"},
			{PermissionSetNotesPrivate, "Set notes as private"},
			{PermissionDeleteIssues, "Delete issues"},
			{PermissionViewIssueWatchers, "View watchers list"},
			{PermissionAddIssueWatchers, "Add watchers"},
			{PermissionDeleteIssueWatchers, "Delete watchers"},
			{PermissionImportIssues, "Import issues"},
			{PermissionManageCategories, "Manage issue categories"},
		},
		"time_tracking": {
			{PermissionViewTimeEntries, "View spent time"},
			{PermissionLogTime, "Log spent time"},
			{PermissionEditTimeEntries, "Edit time logs"},
			{PermissionEditOwnTimeEntries, "Edit own time logs"},
			{PermissionManageActivities, "Manage project activities"},
			{PermissionLogTimeForOtherUsers, "Log spent time for other users"},
		},
		"news": {
			{PermissionViewNews, "View news"},
			{PermissionManageNews, "Manage news"},
			{PermissionCommentNews, "Comment news"},
		},
		"documents": {
			{PermissionViewDocuments, "View documents"},
			{PermissionAddDocuments, "Add documents"},
			{PermissionEditDocuments, "Edit documents"},
			{PermissionDeleteDocuments, "Delete documents"},
		},
		"files": {
			{PermissionViewFiles, "View files"},
			{PermissionManageFiles, "Manage files"},
		},
		"wiki": {
			{PermissionViewWikiPages, "View wiki"},
			{PermissionViewWikiEdits, "View wiki history"},
			{PermissionExportWikiPages, "Export wiki pages"},
			{PermissionEditWikiPages, "Edit wiki pages"},
			{PermissionRenameWikiPages, "Rename wiki pages"},
			{PermissionDeleteWikiPages, "Delete wiki pages"},
			{PermissionProtectWikiPages, "Protect wiki pages"},
			{PermissionManageWiki, "Manage wiki"},
		},
		"repository": {
			{PermissionViewChangesets, "View changesets"},
			{PermissionBrowseRepository, "Browse repository"},
			{PermissionCommitAccess, "Commit access"},
			{PermissionManageRelatedIssues, "Manage related issues"},
			{PermissionManageRepository, "Manage repository"},
		},
		"boards": {
			{PermissionViewMessages, "View messages"},
			{PermissionAddMessages, "Post messages"},
			{PermissionEditMessages, "Edit messages"},
			{PermissionEditOwnMessages, "Edit own messages"},
			{PermissionDeleteMessages, "Delete messages"},
			{PermissionDeleteOwnMessages, "Delete own messages"},
			{PermissionManageBoards, "Manage forums"},
		},
		"calendar": {
			{PermissionViewCalendar, "View calendar"},
		},
		"gantt": {
			{PermissionViewGantt, "View gantt chart"},
		},
	}

	m := make(map[Permission]PermissionInfo)
	for category, perms := range entries {
		for _, p := range perms {
			m[p.key] = PermissionInfo{Key: p.key, Name: p.name, Category: category}
		}
	}
	return m
}()

// IsKnown reports whether p is in the permission catalog.
func IsKnown(p Permission) bool {
	_, ok := catalog[p]
	return ok
}

// Lookup returns the catalog entry for p.
func Lookup(p Permission) (PermissionInfo, bool) {
	info, ok := catalog[p]
	return info, ok
}

// Catalog returns every catalog entry ordered by category then key.
func Catalog() []PermissionInfo {
	out := make([]PermissionInfo, 0, len(catalog))
	for _, info := range catalog {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// SortedKeys returns the members of set as sorted strings.
func SortedKeys(set PermissionSet) []string {
	out := make([]string, 0, set.Cardinality())
	set.Each(func(p Permission) bool {
		out = append(out, string(p))
		return false
	})
	sort.Strings(out)
	return out
}
