package memory

import (
	"context"
	"sync"

	"github.com/redtrack-io/redtrack/internal/models"
)

// WorkflowRuleRepository keeps workflow rows in insertion order.
type WorkflowRuleRepository struct {
	rules  []models.WorkflowRule
	nextID int
	mu     sync.RWMutex
}

func NewWorkflowRuleRepository() *WorkflowRuleRepository {
	return &WorkflowRuleRepository{nextID: 1}
}

// Add appends rules as-is, assigning ids.
func (r *WorkflowRuleRepository) Add(rules ...models.WorkflowRule) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rule := range rules {
		rule.ID = r.nextID
		r.nextID++
		r.rules = append(r.rules, rule)
	}
}

func (r *WorkflowRuleRepository) TransitionRules(ctx context.Context, trackerID, oldStatusID int, roleIDs []int) ([]models.WorkflowRule, error) {
	return r.match(models.WorkflowTransition, trackerID, oldStatusID, roleIDs), nil
}

func (r *WorkflowRuleRepository) FieldRules(ctx context.Context, trackerID, statusID int, roleIDs []int) ([]models.WorkflowRule, error) {
	return r.match(models.WorkflowField, trackerID, statusID, roleIDs), nil
}

func (r *WorkflowRuleRepository) ReplaceRules(ctx context.Context, ruleType models.WorkflowRuleType, trackerID, roleID int, rules []models.WorkflowRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.rules[:0:0]
	for _, rule := range r.rules {
		if rule.Type == ruleType && rule.TrackerID == trackerID && rule.RoleID == roleID {
			continue
		}
		kept = append(kept, rule)
	}
	for _, rule := range rules {
		rule.ID = r.nextID
		r.nextID++
		rule.Type = ruleType
		rule.TrackerID = trackerID
		rule.RoleID = roleID
		kept = append(kept, rule)
	}
	r.rules = kept
	return nil
}

func (r *WorkflowRuleRepository) match(ruleType models.WorkflowRuleType, trackerID, statusID int, roleIDs []int) []models.WorkflowRule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roles := make(map[int]struct{}, len(roleIDs))
	for _, id := range roleIDs {
		roles[id] = struct{}{}
	}
	var out []models.WorkflowRule
	for i := range r.rules {
		if r.rules[i].Type == ruleType && r.rules[i].Matches(trackerID, statusID, roles) {
			out = append(out, r.rules[i])
		}
	}
	return out
}
