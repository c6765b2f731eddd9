package service

import (
	"context"

	"github.com/redtrack-io/redtrack/internal/auth"
)

// PermissionService reports what a caller may do.
type PermissionService struct {
	gate *auth.Gate
}

func NewPermissionService(gate *auth.Gate) *PermissionService {
	return &PermissionService{gate: gate}
}

// Catalog lists every permission known to the system.
func (s *PermissionService) Catalog() []auth.PermissionInfo {
	return auth.Catalog()
}

// ProjectPermissions returns the sorted permission keys the user holds in the project.
func (s *PermissionService) ProjectPermissions(ctx context.Context, userID, projectID int) ([]string, error) {
	set, err := s.gate.AllowedActions(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	return auth.SortedKeys(set), nil
}
