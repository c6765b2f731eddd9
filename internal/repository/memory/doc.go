// Package memory holds in-memory repositories used by tests and by the
// server when no database is configured.
package memory

import "github.com/redtrack-io/redtrack/internal/repository"

var (
	_ repository.UserRepository         = (*UserRepository)(nil)
	_ repository.RoleRepository         = (*RoleRepository)(nil)
	_ repository.MemberRepository       = (*MemberRepository)(nil)
	_ repository.WorkflowRuleRepository = (*WorkflowRuleRepository)(nil)
	_ repository.IssueStatusRepository  = (*IssueStatusRepository)(nil)
	_ repository.IssueRepository        = (*IssueRepository)(nil)
)
