package relations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redtrack-io/redtrack/internal/core"
	"github.com/redtrack-io/redtrack/internal/models"
	"github.com/redtrack-io/redtrack/internal/repository/memory"
)

const actor = 7

func newGraph(t *testing.T, opts ...Option) (*Graph, *memory.IssueRepository) {
	t.Helper()
	repo := memory.NewIssueRepository()
	for id := 1; id <= 4; id++ {
		repo.AddIssue(&models.Issue{ID: id, TrackerID: 1, ProjectID: 1, StatusID: 1, AuthorID: actor, Subject: "issue"})
	}
	repo.AddIssue(&models.Issue{ID: 9, TrackerID: 1, ProjectID: 2, StatusID: 1, AuthorID: actor, Subject: "elsewhere"})
	return NewGraph(repo, opts...), repo
}

func add(t *testing.T, g *Graph, from, to int, typ models.RelationType) *models.IssueRelation {
	t.Helper()
	rel, err := g.AddRelation(context.Background(), AddRequest{FromID: from, ToID: to, Type: typ, ActorID: actor})
	require.NoError(t, err)
	return rel
}

func intPtr(v int) *int { return &v }

func TestAddRelation(t *testing.T) {
	ctx := context.Background()

	t.Run("blocks creates the blocked inverse", func(t *testing.T) {
		g, _ := newGraph(t)
		rel := add(t, g, 1, 2, models.RelationBlocks)

		onB, err := g.Relations(ctx, 2)
		require.NoError(t, err)
		require.Len(t, onB, 1)
		assert.Equal(t, models.RelationBlocked, onB[0].RelationType)
		assert.Equal(t, 1, onB[0].IssueToID)
		require.NotNil(t, onB[0].ReverseID)
		assert.Equal(t, rel.ID, *onB[0].ReverseID)
		require.NotNil(t, rel.ReverseID)
		assert.Equal(t, onB[0].ID, *rel.ReverseID)
	})

	t.Run("relates is a single row", func(t *testing.T) {
		g, _ := newGraph(t)
		rel := add(t, g, 1, 2, models.RelationRelates)
		assert.Nil(t, rel.ReverseID)

		onB, err := g.Relations(ctx, 2)
		require.NoError(t, err)
		assert.Empty(t, onB)
	})

	t.Run("swapped relates is a duplicate", func(t *testing.T) {
		g, _ := newGraph(t)
		add(t, g, 1, 2, models.RelationRelates)

		_, err := g.AddRelation(ctx, AddRequest{FromID: 2, ToID: 1, Type: models.RelationRelates})
		assert.ErrorIs(t, err, core.ErrDuplicateRelation)
	})

	t.Run("any existing link between the pair is a duplicate", func(t *testing.T) {
		g, _ := newGraph(t)
		add(t, g, 1, 2, models.RelationBlocks)

		_, err := g.AddRelation(ctx, AddRequest{FromID: 1, ToID: 2, Type: models.RelationDuplicates})
		assert.ErrorIs(t, err, core.ErrDuplicateRelation)
	})

	t.Run("self relation", func(t *testing.T) {
		g, _ := newGraph(t)
		_, err := g.AddRelation(ctx, AddRequest{FromID: 3, ToID: 3, Type: models.RelationRelates})
		assert.ErrorIs(t, err, core.ErrSelfRelationNotAllowed)
	})

	t.Run("unknown type", func(t *testing.T) {
		g, _ := newGraph(t)
		_, err := g.AddRelation(ctx, AddRequest{FromID: 1, ToID: 2, Type: "parent_of"})
		assert.ErrorIs(t, err, core.ErrInvalidRelationType)
	})

	t.Run("missing issue", func(t *testing.T) {
		g, _ := newGraph(t)
		_, err := g.AddRelation(ctx, AddRequest{FromID: 1, ToID: 50, Type: models.RelationRelates})
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("cross project", func(t *testing.T) {
		g, _ := newGraph(t)
		_, err := g.AddRelation(ctx, AddRequest{FromID: 1, ToID: 9, Type: models.RelationRelates})
		assert.ErrorIs(t, err, core.ErrCrossProjectRelation)

		g, _ = newGraph(t, WithCrossProjectRelations(true))
		add(t, g, 1, 9, models.RelationRelates)

		g.SetCrossProjectRelations(false)
		_, err = g.AddRelation(ctx, AddRequest{FromID: 2, ToID: 9, Type: models.RelationRelates})
		assert.ErrorIs(t, err, core.ErrCrossProjectRelation)
	})

	t.Run("reverse precedes closes a cycle", func(t *testing.T) {
		g, _ := newGraph(t)
		add(t, g, 1, 2, models.RelationPrecedes)

		_, err := g.AddRelation(ctx, AddRequest{FromID: 2, ToID: 1, Type: models.RelationPrecedes})
		assert.ErrorIs(t, err, core.ErrCyclicDependency)
	})

	t.Run("longer cycles through follows rows", func(t *testing.T) {
		g, _ := newGraph(t)
		add(t, g, 1, 2, models.RelationPrecedes)
		add(t, g, 3, 2, models.RelationFollows)

		_, err := g.AddRelation(ctx, AddRequest{FromID: 3, ToID: 1, Type: models.RelationPrecedes})
		assert.ErrorIs(t, err, core.ErrCyclicDependency)
		_, err = g.AddRelation(ctx, AddRequest{FromID: 1, ToID: 3, Type: models.RelationFollows})
		assert.ErrorIs(t, err, core.ErrCyclicDependency)

		add(t, g, 3, 4, models.RelationPrecedes)
	})

	t.Run("delay is kept only for precedence", func(t *testing.T) {
		g, _ := newGraph(t)
		rel, err := g.AddRelation(ctx, AddRequest{FromID: 1, ToID: 2, Type: models.RelationPrecedes, Delay: intPtr(3)})
		require.NoError(t, err)
		require.NotNil(t, rel.Delay)
		assert.Equal(t, 3, *rel.Delay)

		onB, err := g.Relations(ctx, 2)
		require.NoError(t, err)
		require.Len(t, onB, 1)
		assert.Equal(t, models.RelationFollows, onB[0].RelationType)
		assert.Equal(t, 3, *onB[0].Delay)

		rel, err = g.AddRelation(ctx, AddRequest{FromID: 3, ToID: 4, Type: models.RelationBlocks, Delay: intPtr(3)})
		require.NoError(t, err)
		assert.Nil(t, rel.Delay)
	})

	t.Run("journals both issues", func(t *testing.T) {
		g, repo := newGraph(t)
		add(t, g, 1, 2, models.RelationDuplicates)

		j1, err := repo.Journals(ctx, 1)
		require.NoError(t, err)
		require.Len(t, j1, 1)
		assert.Equal(t, models.JournalDetail{ID: 1, JournalID: 1, Property: models.JournalPropertyRelation,
			PropKey: "duplicates", Value: "2"}, j1[0].Details[0])

		j2, err := repo.Journals(ctx, 2)
		require.NoError(t, err)
		require.Len(t, j2, 1)
		assert.Equal(t, "duplicated", j2[0].Details[0].PropKey)
		assert.Equal(t, "1", j2[0].Details[0].Value)
	})
}

func TestRemoveRelation(t *testing.T) {
	ctx := context.Background()

	for name, pick := range map[string]func(rel *models.IssueRelation) int{
		"from the original row": func(rel *models.IssueRelation) int { return rel.ID },
		"from the inverse row":  func(rel *models.IssueRelation) int { return *rel.ReverseID },
	} {
		t.Run(name, func(t *testing.T) {
			g, _ := newGraph(t)
			rel := add(t, g, 1, 2, models.RelationBlocks)

			removed, err := g.RemoveRelation(ctx, actor, pick(rel))
			require.NoError(t, err)
			assert.Equal(t, pick(rel), removed.ID)

			for _, issueID := range []int{1, 2} {
				rels, err := g.Relations(ctx, issueID)
				require.NoError(t, err)
				assert.Empty(t, rels)
			}
			add(t, g, 2, 1, models.RelationBlocks)
		})
	}

	t.Run("unknown relation", func(t *testing.T) {
		g, _ := newGraph(t)
		_, err := g.RemoveRelation(ctx, actor, 404)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("relates has no inverse", func(t *testing.T) {
		g, repo := newGraph(t)
		rel := add(t, g, 3, 4, models.RelationRelates)
		_, err := g.RemoveRelation(ctx, actor, rel.ID)
		require.NoError(t, err)

		journals, err := repo.Journals(ctx, 4)
		require.NoError(t, err)
		require.Len(t, journals, 2)
		assert.Equal(t, "3", journals[1].Details[0].OldValue)
	})
}
