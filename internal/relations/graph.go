// Package relations maintains links between issues. Directional types are
// stored as a pair of rows pointing at each other through reverse_id.
package relations

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/redtrack-io/redtrack/internal/core"
	"github.com/redtrack-io/redtrack/internal/metrics"
	"github.com/redtrack-io/redtrack/internal/models"
	"github.com/redtrack-io/redtrack/internal/repository"
)

var tracer = otel.Tracer("github.com/redtrack-io/redtrack/relations")

// AddRequest links From to To. Delay only applies to precedes and follows.
type AddRequest struct {
	FromID  int
	ToID    int
	Type    models.RelationType
	Delay   *int
	ActorID int
}

type Graph struct {
	issues       repository.IssueRepository
	crossProject atomic.Bool
}

type Option func(*Graph)

// WithCrossProjectRelations allows linking issues of different projects.
func WithCrossProjectRelations(allow bool) Option {
	return func(g *Graph) { g.crossProject.Store(allow) }
}

func NewGraph(issues repository.IssueRepository, opts ...Option) *Graph {
	g := &Graph{issues: issues}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SetCrossProjectRelations changes the cross-project policy of later calls.
func (g *Graph) SetCrossProjectRelations(allow bool) {
	g.crossProject.Store(allow)
}

// Relations lists the rows stored on issueID.
func (g *Graph) Relations(ctx context.Context, issueID int) ([]models.IssueRelation, error) {
	if _, err := g.issues.GetByID(ctx, issueID); err != nil {
		return nil, err
	}
	return g.issues.Relations(ctx, issueID)
}

// AddRelation creates the relation and, for directional types, its inverse
// row in the same transaction. The returned row is the one stored on FromID.
func (g *Graph) AddRelation(ctx context.Context, req AddRequest) (rel *models.IssueRelation, err error) {
	ctx, span := tracer.Start(ctx, "relations.add", trace.WithAttributes(
		attribute.Int("redtrack.issue.from", req.FromID),
		attribute.Int("redtrack.issue.to", req.ToID),
		attribute.String("redtrack.relation.type", string(req.Type)),
	))
	defer finish(span, "add", &err)

	if req.FromID == req.ToID {
		return nil, fmt.Errorf("issue %d: %w", req.FromID, core.ErrSelfRelationNotAllowed)
	}
	if !req.Type.Valid() {
		return nil, fmt.Errorf("%q: %w", req.Type, core.ErrInvalidRelationType)
	}

	err = g.issues.RunInTx(ctx, func(tx repository.IssueTx) error {
		from, to, err := lockPair(ctx, tx, req.FromID, req.ToID)
		if err != nil {
			return err
		}
		if !g.crossProject.Load() && from.ProjectID != to.ProjectID {
			return fmt.Errorf("issues %d and %d: %w", from.ID, to.ID, core.ErrCrossProjectRelation)
		}

		rel = &models.IssueRelation{IssueFromID: from.ID, IssueToID: to.ID, RelationType: req.Type}
		if req.Type.IsPrecedence() {
			rel.Delay = req.Delay
			if err := checkCycle(ctx, tx, rel.Predecessor(), rel.Successor()); err != nil {
				return err
			}
		}

		existing, err := tx.RelationsBetween(ctx, from.ID, to.ID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return fmt.Errorf("issues %d and %d: %w", from.ID, to.ID, core.ErrDuplicateRelation)
		}
		if err := tx.InsertRelation(ctx, rel); err != nil {
			return err
		}

		reverseType := req.Type
		if req.Type.IsSymmetric() {
			reverseType = req.Type.Reverse()
			relID := rel.ID
			reverse := &models.IssueRelation{
				IssueFromID:  to.ID,
				IssueToID:    from.ID,
				RelationType: reverseType,
				Delay:        rel.Delay,
				ReverseID:    &relID,
			}
			if err := tx.InsertRelation(ctx, reverse); err != nil {
				return err
			}
			if err := tx.SetReverse(ctx, rel.ID, reverse.ID); err != nil {
				return err
			}
			reverseID := reverse.ID
			rel.ReverseID = &reverseID
		}

		if err := journal(ctx, tx, req.ActorID, from.ID, req.Type, "", strconv.Itoa(to.ID)); err != nil {
			return err
		}
		return journal(ctx, tx, req.ActorID, to.ID, reverseType, "", strconv.Itoa(from.ID))
	})
	if err != nil {
		return nil, err
	}
	return rel, nil
}

// RemoveRelation deletes the relation and its paired inverse row.
func (g *Graph) RemoveRelation(ctx context.Context, actorID, relationID int) (removed *models.IssueRelation, err error) {
	ctx, span := tracer.Start(ctx, "relations.remove", trace.WithAttributes(
		attribute.Int("redtrack.relation.id", relationID),
	))
	defer finish(span, "remove", &err)

	err = g.issues.RunInTx(ctx, func(tx repository.IssueTx) error {
		rel, err := tx.GetRelation(ctx, relationID)
		if err != nil {
			return err
		}
		if err := tx.DeleteRelation(ctx, rel.ID); err != nil {
			return err
		}
		reverseType := rel.RelationType
		if rel.ReverseID != nil {
			reverse, err := tx.GetRelation(ctx, *rel.ReverseID)
			switch {
			case core.IsNotFound(err):
			case err != nil:
				return err
			default:
				reverseType = reverse.RelationType
				if err := tx.DeleteRelation(ctx, reverse.ID); err != nil {
					return err
				}
			}
		}

		if err := journal(ctx, tx, actorID, rel.IssueFromID, rel.RelationType, strconv.Itoa(rel.IssueToID), ""); err != nil {
			return err
		}
		if err := journal(ctx, tx, actorID, rel.IssueToID, reverseType, strconv.Itoa(rel.IssueFromID), ""); err != nil {
			return err
		}
		removed = rel
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// lockPair locks both issues in id order so concurrent writers on the same
// pair queue instead of deadlocking.
func lockPair(ctx context.Context, tx repository.IssueTx, fromID, toID int) (*models.Issue, *models.Issue, error) {
	first, second := fromID, toID
	if second < first {
		first, second = second, first
	}
	a, err := tx.LockIssue(ctx, first)
	if err != nil {
		return nil, nil, err
	}
	b, err := tx.LockIssue(ctx, second)
	if err != nil {
		return nil, nil, err
	}
	if a.ID == fromID {
		return a, b, nil
	}
	return b, a, nil
}

// checkCycle rejects a new predecessor -> successor edge when predecessor is
// already reachable from successor along stored precedence edges.
func checkCycle(ctx context.Context, tx repository.IssueTx, predecessor, successor int) error {
	visited := map[int]bool{successor: true}
	stack := []int{successor}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		edges, err := tx.PrecedenceEdges(ctx, []int{node})
		if err != nil {
			return err
		}
		for i := range edges {
			if edges[i].Predecessor() != node {
				continue
			}
			next := edges[i].Successor()
			if next == predecessor {
				return fmt.Errorf("issue %d already precedes %d: %w", successor, predecessor, core.ErrCyclicDependency)
			}
			if !visited[next] {
				visited[next] = true
				stack = append(stack, next)
			}
		}
	}
	return nil
}

func journal(ctx context.Context, tx repository.IssueTx, actorID, issueID int, relType models.RelationType, oldValue, value string) error {
	return tx.AddJournal(ctx, &models.Journal{
		IssueID: issueID,
		UserID:  actorID,
		Details: []models.JournalDetail{{
			Property: models.JournalPropertyRelation,
			PropKey:  string(relType),
			OldValue: oldValue,
			Value:    value,
		}},
	})
}

func finish(span trace.Span, op string, err *error) {
	metrics.RelationOps.WithLabelValues(op, metrics.Outcome(*err)).Inc()
	if *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, (*err).Error())
	}
	span.End()
}
