package repository

import (
	"context"

	"github.com/redtrack-io/redtrack/internal/models"
)

// UserRepository reads accounts. GetByID returns core.ErrNotFound for unknown ids.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (*models.User, error)
	GetByLogin(ctx context.Context, login string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

// MemberRepository reads and writes project memberships.
type MemberRepository interface {
	// FindMember returns nil, nil when the user is not a member of the project.
	FindMember(ctx context.Context, userID, projectID int) (*models.Member, error)
	ListByUser(ctx context.Context, userID int) ([]models.Member, error)
	RoleIDs(ctx context.Context, memberID int) ([]int, error)
	// SetRoles creates the member row when missing and replaces its roles.
	SetRoles(ctx context.Context, userID, projectID int, roleIDs []int) (*models.Member, error)
	Delete(ctx context.Context, userID, projectID int) error
	// CountByRole returns how many members hold roleID.
	CountByRole(ctx context.Context, roleID int) (int, error)
}

// RoleRepository reads and writes roles.
type RoleRepository interface {
	GetByID(ctx context.Context, id int) (*models.Role, error)
	// GetByIDs returns the roles that exist; missing ids are silently absent.
	GetByIDs(ctx context.Context, ids []int) ([]models.Role, error)
	List(ctx context.Context) ([]models.Role, error)
	Create(ctx context.Context, role *models.Role) error
	Update(ctx context.Context, role *models.Role) error
	Delete(ctx context.Context, id int) error
}

// WorkflowRuleRepository reads the workflow matrix. Implementations return every
// row that could match, wildcard rows included; the engine does the final filtering.
type WorkflowRuleRepository interface {
	TransitionRules(ctx context.Context, trackerID, oldStatusID int, roleIDs []int) ([]models.WorkflowRule, error)
	FieldRules(ctx context.Context, trackerID, statusID int, roleIDs []int) ([]models.WorkflowRule, error)
	// ReplaceRules swaps every rule of the given type for (tracker, role).
	ReplaceRules(ctx context.Context, ruleType models.WorkflowRuleType, trackerID, roleID int, rules []models.WorkflowRule) error
}

// IssueStatusRepository reads issue statuses.
type IssueStatusRepository interface {
	GetByID(ctx context.Context, id int) (*models.IssueStatus, error)
	GetByIDs(ctx context.Context, ids []int) ([]models.IssueStatus, error)
	List(ctx context.Context) ([]models.IssueStatus, error)
}

// IssueRepository reads issues and scopes writes to a transaction.
type IssueRepository interface {
	GetByID(ctx context.Context, id int) (*models.Issue, error)
	Relations(ctx context.Context, issueID int) ([]models.IssueRelation, error)
	GetRelation(ctx context.Context, id int) (*models.IssueRelation, error)
	Journals(ctx context.Context, issueID int) ([]models.Journal, error)
	// RunInTx executes fn inside one transaction. The transaction commits when
	// fn returns nil and rolls back otherwise.
	RunInTx(ctx context.Context, fn func(tx IssueTx) error) error
}

// IssueTx is the set of reads and writes available inside an issue transaction.
type IssueTx interface {
	// LockIssue reads the issue, taking a row lock where the database supports it.
	LockIssue(ctx context.Context, id int) (*models.Issue, error)
	// UpdateIssue persists issue when its stored lock_version still equals
	// expectedLockVersion and bumps issue.LockVersion. Otherwise it returns
	// core.ErrConcurrentModification.
	UpdateIssue(ctx context.Context, issue *models.Issue, expectedLockVersion int) error
	AddJournal(ctx context.Context, journal *models.Journal) error

	GetRelation(ctx context.Context, id int) (*models.IssueRelation, error)
	// RelationsBetween returns rows linking a and b in either direction.
	RelationsBetween(ctx context.Context, a, b int) ([]models.IssueRelation, error)
	// PrecedenceEdges returns every precedes/follows row touching any of issueIDs.
	PrecedenceEdges(ctx context.Context, issueIDs []int) ([]models.IssueRelation, error)
	InsertRelation(ctx context.Context, rel *models.IssueRelation) error
	SetReverse(ctx context.Context, relationID, reverseID int) error
	DeleteRelation(ctx context.Context, id int) error
}

var (
	_ UserRepository         = (*SQLUserRepository)(nil)
	_ RoleRepository         = (*SQLRoleRepository)(nil)
	_ MemberRepository       = (*SQLMemberRepository)(nil)
	_ WorkflowRuleRepository = (*SQLWorkflowRuleRepository)(nil)
	_ IssueStatusRepository  = (*SQLIssueStatusRepository)(nil)
	_ IssueRepository        = (*SQLIssueRepository)(nil)
	_ IssueTx                = (*sqlIssueTx)(nil)
)
