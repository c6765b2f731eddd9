package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redtrack-io/redtrack/internal/core"
)

func TestIssueAttributes(t *testing.T) {
	t.Run("round trips core fields", func(t *testing.T) {
		issue := &Issue{ID: 1, Subject: "Crash on save", PriorityID: 2}

		require.NoError(t, issue.SetAttribute(FieldAssignedTo, "7"))
		require.NoError(t, issue.SetAttribute(FieldDueDate, "2024-05-01"))
		require.NoError(t, issue.SetAttribute(FieldEstimatedHours, "2.5"))
		require.NoError(t, issue.SetAttribute(FieldIsPrivate, "true"))

		v, err := issue.Attribute(FieldAssignedTo)
		require.NoError(t, err)
		assert.Equal(t, "7", v)
		assert.True(t, issue.IsAssignedTo(7))

		v, _ = issue.Attribute(FieldDueDate)
		assert.Equal(t, "2024-05-01", v)
		v, _ = issue.Attribute(FieldEstimatedHours)
		assert.Equal(t, "2.5", v)
		v, _ = issue.Attribute(FieldIsPrivate)
		assert.Equal(t, "true", v)
	})

	t.Run("empty clears optional fields", func(t *testing.T) {
		assignee := 4
		issue := &Issue{AssignedToID: &assignee}
		require.NoError(t, issue.SetAttribute(FieldAssignedTo, ""))
		assert.Nil(t, issue.AssignedToID)
	})

	t.Run("custom fields by id", func(t *testing.T) {
		issue := &Issue{}
		require.NoError(t, issue.SetAttribute("12", "beta"))
		v, err := issue.Attribute("12")
		require.NoError(t, err)
		assert.Equal(t, "beta", v)
		assert.True(t, IsKnownField("12"))
	})

	t.Run("rejects unknown and invalid", func(t *testing.T) {
		issue := &Issue{}
		err := issue.SetAttribute("colour", "red")
		assert.True(t, errors.Is(err, core.ErrUnknownField))

		err = issue.SetAttribute(FieldDoneRatio, "150")
		assert.True(t, errors.Is(err, core.ErrInvalidFieldValue))

		err = issue.SetAttribute(FieldSubject, "  ")
		assert.True(t, errors.Is(err, core.ErrInvalidFieldValue))
	})

	t.Run("clone is independent", func(t *testing.T) {
		assignee := 3
		issue := &Issue{AssignedToID: &assignee, CustomFields: map[string]string{"1": "a"}}
		c := issue.Clone()
		*c.AssignedToID = 9
		c.CustomFields["1"] = "b"
		assert.Equal(t, 3, *issue.AssignedToID)
		assert.Equal(t, "a", issue.CustomFields["1"])
	})
}

func TestRelationTypes(t *testing.T) {
	assert.Equal(t, RelationBlocked, RelationBlocks.Reverse())
	assert.Equal(t, RelationPrecedes, RelationFollows.Reverse())
	assert.True(t, RelationDuplicates.IsSymmetric())
	assert.False(t, RelationRelates.IsSymmetric())
	assert.True(t, RelationRelates.Valid())
	assert.False(t, RelationType("parent").Valid())

	follows := &IssueRelation{IssueFromID: 5, IssueToID: 2, RelationType: RelationFollows}
	assert.Equal(t, 2, follows.Predecessor())
	assert.Equal(t, 5, follows.Successor())
}

func TestFieldRulePrecedence(t *testing.T) {
	assert.Equal(t, FieldRuleHidden, MoreRestrictive(FieldRuleReadonly, FieldRuleHidden))
	assert.Equal(t, FieldRuleHidden, MoreRestrictive(FieldRuleHidden, FieldRuleRequired))
	assert.Equal(t, FieldRuleReadonly, MoreRestrictive(FieldRuleRequired, FieldRuleReadonly))
	assert.False(t, FieldRule("optional").Valid())
}
