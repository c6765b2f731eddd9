package auth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePermissions(t *testing.T) {
	want := NewPermissionSet(PermissionViewIssues, PermissionAddIssues)

	cases := map[string]string{
		"json array":       `["view_issues","add_issues"]`,
		"comma separated":  "view_issues, add_issues",
		"legacy line list": "- :view_issues\n- :add_issues",
		"yaml header":      "---\n- :view_issues\n- :add_issues\n",
		"crlf lines":       "- :view_issues\r\n- :add_issues\r\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := ParsePermissions(raw)
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "got %v", SortedKeys(got))
		})
	}

	t.Run("single key", func(t *testing.T) {
		got, err := ParsePermissions("view_gantt")
		require.NoError(t, err)
		assert.True(t, got.Contains(PermissionViewGantt))
		assert.Equal(t, 1, got.Cardinality())
	})

	t.Run("single legacy line", func(t *testing.T) {
		got, err := ParsePermissions("- :view_issues")
		require.NoError(t, err)
		assert.Equal(t, []string{"view_issues"}, SortedKeys(got))
	})

	t.Run("bracketed text that is not json falls through", func(t *testing.T) {
		got, err := ParsePermissions("[view_issues")
		assert.True(t, errors.Is(err, ErrMalformedPermissions))
		assert.Nil(t, got)

		got, err = ParsePermissions(`["view_issues", "add_issues"]`)
		require.NoError(t, err)
		assert.True(t, want.Equal(got))
	})

	t.Run("empty text", func(t *testing.T) {
		got, err := ParsePermissions("  ")
		require.NoError(t, err)
		assert.Equal(t, 0, got.Cardinality())
	})

	t.Run("unterminated json", func(t *testing.T) {
		_, err := ParsePermissions(`["view_issues"`)
		assert.True(t, errors.Is(err, ErrMalformedPermissions))
	})

	t.Run("garbage key", func(t *testing.T) {
		_, err := ParsePermissions("view issues; drop table")
		assert.True(t, errors.Is(err, ErrMalformedPermissions))
	})
}

func TestFormatPermissions(t *testing.T) {
	out := FormatPermissions([]Permission{PermissionViewIssues, PermissionEditIssues, PermissionViewIssues})
	assert.Equal(t, `["view_issues","edit_issues"]`, out)

	parsed, err := ParsePermissions(out)
	require.NoError(t, err)
	assert.Equal(t, 2, parsed.Cardinality())
}

func TestCatalog(t *testing.T) {
	assert.True(t, IsKnown(PermissionManageIssueRelations))
	assert.False(t, IsKnown("launch_rockets"))

	info, ok := Lookup(PermissionViewGantt)
	require.True(t, ok)
	assert.Equal(t, "gantt", info.Category)

	entries := Catalog()
	require.NotEmpty(t, entries)
	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1], entries[i]
		assert.True(t, prev.Category < cur.Category || (prev.Category == cur.Category && prev.Key < cur.Key))
	}
}
