// Package workflow evaluates the status transition matrix and field rules of
// issues and applies transitions transactionally.
package workflow

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/redtrack-io/redtrack/internal/core"
	"github.com/redtrack-io/redtrack/internal/metrics"
	"github.com/redtrack-io/redtrack/internal/models"
	"github.com/redtrack-io/redtrack/internal/repository"
)

var tracer = otel.Tracer("github.com/redtrack-io/redtrack/workflow")

// Transition is a target status offered to an actor.
type Transition struct {
	StatusID   int    `json:"status_id"`
	StatusName string `json:"status_name"`
	IsClosed   bool   `json:"is_closed"`
	// AssigneeOnly is set when every rule permitting the transition requires
	// the actor to be the assignee.
	AssigneeOnly bool `json:"assignee_only"`
	AuthorOnly   bool `json:"author_only"`
}

// TransitionRequest moves an issue to StatusID. LockVersion is the version the
// caller last read; Fields holds attribute changes keyed by field name.
type TransitionRequest struct {
	IssueID      int
	StatusID     int
	LockVersion  int
	ActorID      int
	ActorRoleIDs []int
	Fields       map[string]string
	Notes        string
}

type TransitionResult struct {
	Issue   *models.Issue   `json:"issue"`
	Journal *models.Journal `json:"journal"`
}

// Engine is stateless; every call reads current rules and statuses.
type Engine struct {
	rules    repository.WorkflowRuleRepository
	statuses repository.IssueStatusRepository
	issues   repository.IssueRepository
}

func NewEngine(rules repository.WorkflowRuleRepository, statuses repository.IssueStatusRepository, issues repository.IssueRepository) *Engine {
	return &Engine{rules: rules, statuses: statuses, issues: issues}
}

type target struct {
	assigneeOnly bool
	authorOnly   bool
}

// AvailableTransitions lists the statuses the actor may move issue to, ordered
// by status position then id. The current status is never offered.
func (e *Engine) AvailableTransitions(ctx context.Context, issue *models.Issue, actorID int, roleIDs []int) ([]Transition, error) {
	rows, err := e.rules.TransitionRules(ctx, issue.TrackerID, issue.StatusID, roleIDs)
	if err != nil {
		return nil, fmt.Errorf("load transition rules: %w", err)
	}

	roles := roleSet(roleIDs)
	targets := make(map[int]*target)
	for i := range rows {
		row := &rows[i]
		if row.Type != models.WorkflowTransition || !row.Matches(issue.TrackerID, issue.StatusID, roles) {
			continue
		}
		if row.NewStatusID == models.Wildcard || row.NewStatusID == issue.StatusID {
			continue
		}
		if row.Assignee && !issue.IsAssignedTo(actorID) {
			continue
		}
		if row.Author && !issue.IsAuthoredBy(actorID) {
			continue
		}
		t, ok := targets[row.NewStatusID]
		if !ok {
			targets[row.NewStatusID] = &target{assigneeOnly: row.Assignee, authorOnly: row.Author}
			continue
		}
		t.assigneeOnly = t.assigneeOnly && row.Assignee
		t.authorOnly = t.authorOnly && row.Author
	}
	if len(targets) == 0 {
		return nil, nil
	}

	ids := make([]int, 0, len(targets))
	for id := range targets {
		ids = append(ids, id)
	}
	statuses, err := e.statuses.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load statuses: %w", err)
	}
	if len(statuses) != len(ids) {
		log.Printf("workflow: transition rules reference %d missing statuses tracker=%d status=%d",
			len(ids)-len(statuses), issue.TrackerID, issue.StatusID)
		return nil, fmt.Errorf("transition rules tracker=%d status=%d: %w: missing status rows",
			issue.TrackerID, issue.StatusID, core.ErrDataIntegrity)
	}
	sort.Slice(statuses, func(i, j int) bool {
		if statuses[i].Position != statuses[j].Position {
			return statuses[i].Position < statuses[j].Position
		}
		return statuses[i].ID < statuses[j].ID
	})

	out := make([]Transition, 0, len(statuses))
	for _, s := range statuses {
		t := targets[s.ID]
		out = append(out, Transition{
			StatusID:     s.ID,
			StatusName:   s.Name,
			IsClosed:     s.IsClosed,
			AssigneeOnly: t.assigneeOnly,
			AuthorOnly:   t.authorOnly,
		})
	}
	return out, nil
}

// FieldRules merges the field rows matching tracker, status and roles.
// Conflicting rows resolve to the most restrictive rule.
func (e *Engine) FieldRules(ctx context.Context, trackerID, statusID int, roleIDs []int) (map[string]models.FieldRule, error) {
	rows, err := e.rules.FieldRules(ctx, trackerID, statusID, roleIDs)
	if err != nil {
		return nil, fmt.Errorf("load field rules: %w", err)
	}

	roles := roleSet(roleIDs)
	out := make(map[string]models.FieldRule)
	for i := range rows {
		row := &rows[i]
		if row.Type != models.WorkflowField || !row.Matches(trackerID, statusID, roles) {
			continue
		}
		if !row.Rule.Valid() || row.FieldName == "" {
			log.Printf("workflow: ignoring malformed field rule id=%d field=%q rule=%q", row.ID, row.FieldName, row.Rule)
			continue
		}
		out[row.FieldName] = models.MoreRestrictive(out[row.FieldName], row.Rule)
	}
	return out, nil
}

// ApplyTransition validates and persists a status change in one transaction.
// A stale LockVersion fails with core.ErrConcurrentModification and leaves the
// issue untouched.
func (e *Engine) ApplyTransition(ctx context.Context, req TransitionRequest) (result *TransitionResult, err error) {
	ctx, span := tracer.Start(ctx, "workflow.apply_transition")
	span.SetAttributes(
		attribute.Int("redtrack.issue.id", req.IssueID),
		attribute.Int("redtrack.status.to", req.StatusID),
		attribute.Int("redtrack.actor.id", req.ActorID),
	)
	defer func() {
		metrics.Transitions.WithLabelValues(metrics.Outcome(err)).Inc()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	for name := range req.Fields {
		if !models.IsKnownField(name) {
			return nil, core.NewFieldError(name, core.ErrUnknownField)
		}
	}

	err = e.issues.RunInTx(ctx, func(tx repository.IssueTx) error {
		issue, err := tx.LockIssue(ctx, req.IssueID)
		if err != nil {
			return err
		}
		if issue.LockVersion != req.LockVersion {
			return fmt.Errorf("issue %d at version %d, request based on %d: %w",
				issue.ID, issue.LockVersion, req.LockVersion, core.ErrConcurrentModification)
		}
		span.SetAttributes(attribute.Int("redtrack.status.from", issue.StatusID))

		available, err := e.AvailableTransitions(ctx, issue, req.ActorID, req.ActorRoleIDs)
		if err != nil {
			return err
		}
		if !offers(available, req.StatusID) {
			return fmt.Errorf("issue %d from status %d to %d: %w", issue.ID, issue.StatusID, req.StatusID, core.ErrInvalidTransition)
		}

		rules, err := e.FieldRules(ctx, issue.TrackerID, req.StatusID, req.ActorRoleIDs)
		if err != nil {
			return err
		}
		updated, err := applyFields(issue, req.Fields, rules)
		if err != nil {
			return err
		}
		updated.StatusID = req.StatusID

		details := diff(issue, updated)
		if err := tx.UpdateIssue(ctx, updated, issue.LockVersion); err != nil {
			return err
		}
		journal := &models.Journal{
			IssueID: issue.ID,
			UserID:  req.ActorID,
			Notes:   req.Notes,
			Details: details,
		}
		if err := tx.AddJournal(ctx, journal); err != nil {
			return err
		}
		result = &TransitionResult{Issue: updated, Journal: journal}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// applyFields checks values against rules and returns a modified copy of issue.
func applyFields(issue *models.Issue, values map[string]string, rules map[string]models.FieldRule) (*models.Issue, error) {
	required := make([]string, 0, len(rules))
	for name, rule := range rules {
		if rule == models.FieldRuleRequired {
			required = append(required, name)
		}
	}
	sort.Strings(required)
	for _, name := range required {
		if v, ok := values[name]; !ok || strings.TrimSpace(v) == "" {
			return nil, core.NewFieldError(name, core.ErrMissingRequiredField)
		}
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	updated := issue.Clone()
	for _, name := range names {
		before, err := updated.Attribute(name)
		if err != nil {
			return nil, err
		}
		if err := updated.SetAttribute(name, values[name]); err != nil {
			return nil, err
		}
		after, _ := updated.Attribute(name)
		switch rules[name] {
		case models.FieldRuleReadonly, models.FieldRuleHidden:
			if after != before {
				return nil, core.NewFieldError(name, core.ErrReadonlyFieldViolation)
			}
		}
	}
	return updated, nil
}

// diff lists the attribute and custom field changes between two issue states.
func diff(before, after *models.Issue) []models.JournalDetail {
	var details []models.JournalDetail
	for _, name := range append([]string{models.FieldStatus}, models.CoreFields...) {
		old, _ := before.Attribute(name)
		cur, _ := after.Attribute(name)
		if old != cur {
			details = append(details, models.JournalDetail{
				Property: models.JournalPropertyAttr,
				PropKey:  name,
				OldValue: old,
				Value:    cur,
			})
		}
	}

	keys := make(map[string]struct{}, len(before.CustomFields)+len(after.CustomFields))
	for k := range before.CustomFields {
		keys[k] = struct{}{}
	}
	for k := range after.CustomFields {
		keys[k] = struct{}{}
	}
	custom := make([]string, 0, len(keys))
	for k := range keys {
		custom = append(custom, k)
	}
	sort.Strings(custom)
	for _, k := range custom {
		if before.CustomFields[k] != after.CustomFields[k] {
			details = append(details, models.JournalDetail{
				Property: models.JournalPropertyCustom,
				PropKey:  k,
				OldValue: before.CustomFields[k],
				Value:    after.CustomFields[k],
			})
		}
	}
	return details
}

func offers(transitions []Transition, statusID int) bool {
	for _, t := range transitions {
		if t.StatusID == statusID {
			return true
		}
	}
	return false
}

func roleSet(ids []int) map[int]struct{} {
	set := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
