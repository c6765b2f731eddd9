package service

import (
	"context"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/redtrack-io/redtrack/internal/auth"
	"github.com/redtrack-io/redtrack/internal/core"
	"github.com/redtrack-io/redtrack/internal/metrics"
	"github.com/redtrack-io/redtrack/internal/models"
	"github.com/redtrack-io/redtrack/internal/relations"
	"github.com/redtrack-io/redtrack/internal/repository"
)

// RelationInput is the body of a create relation request.
type RelationInput struct {
	IssueToID    int                 `json:"issue_to_id" binding:"required"`
	RelationType models.RelationType `json:"relation_type" binding:"required"`
	Delay        *int                `json:"delay"`
}

// RetryConfig bounds the retries of relation writes that lost a race.
type RetryConfig struct {
	MaxRetries      uint64        `mapstructure:"max_retries"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

// DefaultRetryConfig is used when no retry budget is configured.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:      3,
	InitialInterval: 20 * time.Millisecond,
	MaxElapsedTime:  2 * time.Second,
}

type RelationService struct {
	issues repository.IssueRepository
	gate   *auth.Gate
	graph  *relations.Graph
	retry  RetryConfig
}

func NewRelationService(issues repository.IssueRepository, gate *auth.Gate, graph *relations.Graph, retry RetryConfig) *RelationService {
	if retry.InitialInterval <= 0 {
		retry = DefaultRetryConfig
	}
	return &RelationService{issues: issues, gate: gate, graph: graph, retry: retry}
}

func (s *RelationService) List(ctx context.Context, actorID, issueID int) ([]models.IssueRelation, error) {
	issue, err := s.issues.GetByID(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.RequirePermission(ctx, actorID, issue.ProjectID, auth.PermissionViewIssues); err != nil {
		return nil, err
	}
	rels, err := s.graph.Relations(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if rels == nil {
		rels = []models.IssueRelation{}
	}
	return rels, nil
}

// Add requires manage_issue_relations on the source issue's project and
// view_issues on the target's.
func (s *RelationService) Add(ctx context.Context, actorID, issueID int, in RelationInput) (*models.IssueRelation, error) {
	from, err := s.issues.GetByID(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.RequirePermission(ctx, actorID, from.ProjectID, auth.PermissionManageIssueRelations); err != nil {
		return nil, err
	}
	to, err := s.issues.GetByID(ctx, in.IssueToID)
	if err != nil {
		return nil, err
	}
	if to.ProjectID != from.ProjectID {
		if err := s.gate.RequirePermission(ctx, actorID, to.ProjectID, auth.PermissionViewIssues); err != nil {
			return nil, err
		}
	}

	var rel *models.IssueRelation
	err = s.withRetry(ctx, func() error {
		var err error
		rel, err = s.graph.AddRelation(ctx, relations.AddRequest{
			FromID:  from.ID,
			ToID:    to.ID,
			Type:    in.RelationType,
			Delay:   in.Delay,
			ActorID: actorID,
		})
		return err
	})
	return rel, err
}

func (s *RelationService) Remove(ctx context.Context, actorID, relationID int) (*models.IssueRelation, error) {
	rel, err := s.issues.GetRelation(ctx, relationID)
	if err != nil {
		return nil, err
	}
	issue, err := s.issues.GetByID(ctx, rel.IssueFromID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.RequirePermission(ctx, actorID, issue.ProjectID, auth.PermissionManageIssueRelations); err != nil {
		return nil, err
	}

	var removed *models.IssueRelation
	err = s.withRetry(ctx, func() error {
		var err error
		removed, err = s.graph.RemoveRelation(ctx, actorID, relationID)
		return err
	})
	return removed, err
}

// withRetry repeats op while it fails with a concurrency conflict.
func (s *RelationService) withRetry(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.retry.InitialInterval
	bo.MaxElapsedTime = s.retry.MaxElapsedTime

	attempt := 0
	return backoff.Retry(func() error {
		if attempt > 0 {
			metrics.RelationRetries.Inc()
		}
		attempt++
		err := op()
		if err != nil && core.IsConflict(err) {
			log.Printf("relations: conflict on attempt %d: %v", attempt, err)
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, s.retry.MaxRetries), ctx))
}
