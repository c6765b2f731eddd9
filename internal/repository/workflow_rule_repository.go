package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/redtrack-io/redtrack/internal/database"
	"github.com/redtrack-io/redtrack/internal/models"
)

const workflowColumns = "id, type, tracker_id, old_status_id, new_status_id, role_id, assignee, author, field_name, rule"

// SQLWorkflowRuleRepository reads the workflows table.
type SQLWorkflowRuleRepository struct {
	db *database.DB
}

func NewWorkflowRuleRepository(db *database.DB) *SQLWorkflowRuleRepository {
	return &SQLWorkflowRuleRepository{db: db}
}

func (r *SQLWorkflowRuleRepository) TransitionRules(ctx context.Context, trackerID, oldStatusID int, roleIDs []int) ([]models.WorkflowRule, error) {
	return r.match(ctx, models.WorkflowTransition, trackerID, oldStatusID, roleIDs)
}

func (r *SQLWorkflowRuleRepository) FieldRules(ctx context.Context, trackerID, statusID int, roleIDs []int) ([]models.WorkflowRule, error) {
	return r.match(ctx, models.WorkflowField, trackerID, statusID, roleIDs)
}

// match loads rows for the tracker and status, wildcard rows included.
func (r *SQLWorkflowRuleRepository) match(ctx context.Context, ruleType models.WorkflowRuleType, trackerID, statusID int, roleIDs []int) ([]models.WorkflowRule, error) {
	roles := append([]int{models.Wildcard}, roleIDs...)
	query, args, err := sqlx.In(`SELECT `+workflowColumns+` FROM workflows
		WHERE type = ? AND tracker_id IN (?, ?) AND old_status_id IN (?, ?) AND role_id IN (?)
		ORDER BY id`,
		string(ruleType), models.Wildcard, trackerID, models.Wildcard, statusID, roles)
	if err != nil {
		return nil, err
	}

	var rules []models.WorkflowRule
	if err := r.db.SelectContext(ctx, &rules, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("select %s rules: %w", ruleType, err)
	}
	return rules, nil
}

func (r *SQLWorkflowRuleRepository) ReplaceRules(ctx context.Context, ruleType models.WorkflowRuleType, trackerID, roleID int, rules []models.WorkflowRule) error {
	return r.db.RunInTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM workflows WHERE type = ? AND tracker_id = ? AND role_id = ?"),
			string(ruleType), trackerID, roleID); err != nil {
			return fmt.Errorf("clear %s rules: %w", ruleType, err)
		}
		for i := range rules {
			rule := &rules[i]
			rule.Type = ruleType
			rule.TrackerID = trackerID
			rule.RoleID = roleID
			id, err := database.InsertID(ctx, tx, r.db.Driver,
				`INSERT INTO workflows (type, tracker_id, old_status_id, new_status_id, role_id, assignee, author, field_name, rule)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				string(rule.Type), rule.TrackerID, rule.OldStatusID, rule.NewStatusID, rule.RoleID,
				rule.Assignee, rule.Author, rule.FieldName, string(rule.Rule))
			if err != nil {
				return fmt.Errorf("insert %s rule: %w", ruleType, err)
			}
			rule.ID = id
		}
		return nil
	})
}
