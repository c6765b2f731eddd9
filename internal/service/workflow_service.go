package service

import (
	"context"
	"fmt"
	"log"

	"github.com/redtrack-io/redtrack/internal/auth"
	"github.com/redtrack-io/redtrack/internal/core"
	"github.com/redtrack-io/redtrack/internal/models"
	"github.com/redtrack-io/redtrack/internal/repository"
	"github.com/redtrack-io/redtrack/internal/workflow"
)

// WorkflowInput replaces every rule of one type for a tracker and role.
type WorkflowInput struct {
	Type      models.WorkflowRuleType `json:"type" binding:"required"`
	TrackerID int                     `json:"tracker_id"`
	RoleID    int                     `json:"role_id"`
	Rules     []WorkflowRuleInput     `json:"rules"`
}

type WorkflowRuleInput struct {
	OldStatusID int              `json:"old_status_id"`
	NewStatusID int              `json:"new_status_id"`
	Assignee    bool             `json:"assignee"`
	Author      bool             `json:"author"`
	FieldName   string           `json:"field_name"`
	Rule        models.FieldRule `json:"rule"`
}

type WorkflowService struct {
	rules repository.WorkflowRuleRepository
	gate  *auth.Gate
}

func NewWorkflowService(rules repository.WorkflowRuleRepository, gate *auth.Gate) *WorkflowService {
	return &WorkflowService{rules: rules, gate: gate}
}

// Replace swaps the rules of in.Type for (tracker, role) and returns what was stored.
func (s *WorkflowService) Replace(ctx context.Context, actorID int, in WorkflowInput) ([]models.WorkflowRule, error) {
	if err := s.gate.RequireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	if in.Type != models.WorkflowTransition && in.Type != models.WorkflowField {
		return nil, core.NewFieldError("type", core.ErrInvalidFieldValue)
	}
	if in.TrackerID < 0 || in.RoleID < 0 {
		return nil, core.NewFieldError("tracker_id", core.ErrInvalidFieldValue)
	}

	rules := make([]models.WorkflowRule, 0, len(in.Rules))
	for i, r := range in.Rules {
		rule := models.WorkflowRule{Type: in.Type, TrackerID: in.TrackerID, RoleID: in.RoleID, OldStatusID: r.OldStatusID}
		if r.OldStatusID < 0 {
			return nil, core.NewFieldError(fmt.Sprintf("rules[%d].old_status_id", i), core.ErrInvalidFieldValue)
		}
		switch in.Type {
		case models.WorkflowTransition:
			if r.NewStatusID <= 0 {
				return nil, core.NewFieldError(fmt.Sprintf("rules[%d].new_status_id", i), core.ErrInvalidFieldValue)
			}
			rule.NewStatusID = r.NewStatusID
			rule.Assignee = r.Assignee
			rule.Author = r.Author
		case models.WorkflowField:
			if !models.IsKnownField(r.FieldName) {
				return nil, core.NewFieldError(r.FieldName, core.ErrUnknownField)
			}
			if !r.Rule.Valid() {
				return nil, core.NewFieldError(fmt.Sprintf("rules[%d].rule", i), core.ErrInvalidFieldValue)
			}
			rule.FieldName = r.FieldName
			rule.Rule = r.Rule
		}
		rules = append(rules, rule)
	}

	if err := s.rules.ReplaceRules(ctx, in.Type, in.TrackerID, in.RoleID, rules); err != nil {
		return nil, err
	}
	log.Printf("workflow: user %d replaced %s rules tracker=%d role=%d count=%d",
		actorID, in.Type, in.TrackerID, in.RoleID, len(rules))
	return rules, nil
}

// Import applies a parsed workflow document on behalf of an administrator.
func (s *WorkflowService) Import(ctx context.Context, actorID int, doc *workflow.Document) (workflow.ImportSummary, error) {
	if err := s.gate.RequireAdmin(ctx, actorID); err != nil {
		return workflow.ImportSummary{}, err
	}
	return workflow.Import(ctx, s.rules, doc)
}
