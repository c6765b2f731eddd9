package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser(t *testing.T) {
	t.Run("SetPassword hashes password", func(t *testing.T) {
		user := &User{}
		plainPassword := "mySecurePassword123"

		require.NoError(t, user.SetPassword(plainPassword))

		assert.NotEqual(t, plainPassword, user.HashedPassword)
		assert.Greater(t, len(user.HashedPassword), len(plainPassword))
	})

	t.Run("CheckPassword validates correct password", func(t *testing.T) {
		user := &User{}
		require.NoError(t, user.SetPassword("correctPassword123"))

		assert.True(t, user.CheckPassword("correctPassword123"))
		assert.False(t, user.CheckPassword("wrongPassword"))
		assert.False(t, user.CheckPassword(""))
		assert.False(t, user.CheckPassword("correctPassword"))
	})

	t.Run("same password hashes differently", func(t *testing.T) {
		a, b := &User{}, &User{}
		require.NoError(t, a.SetPassword("samePassword"))
		require.NoError(t, b.SetPassword("samePassword"))

		assert.NotEqual(t, a.HashedPassword, b.HashedPassword)
		assert.True(t, a.CheckPassword("samePassword"))
		assert.True(t, b.CheckPassword("samePassword"))
	})

	t.Run("hash is not serialized", func(t *testing.T) {
		user := &User{ID: 4, Login: "jsmith", Status: UserStatusActive}
		require.NoError(t, user.SetPassword("secret"))

		data, err := json.Marshal(user)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "secret")
		assert.NotContains(t, string(data), user.HashedPassword)
		assert.Contains(t, string(data), `"login":"jsmith"`)
	})
}

func TestUserStatus(t *testing.T) {
	tests := []struct {
		name   string
		user   *User
		active bool
		locked bool
		admin  bool
	}{
		{"nil user", nil, false, false, false},
		{"active member", &User{Status: UserStatusActive}, true, false, false},
		{"active admin", &User{Status: UserStatusActive, Admin: true}, true, false, true},
		{"locked admin", &User{Status: UserStatusLocked, Admin: true}, false, true, false},
		{"registered admin", &User{Status: UserStatusRegistered, Admin: true}, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.active, tt.user.IsActive())
			assert.Equal(t, tt.locked, tt.user.IsLocked())
			assert.Equal(t, tt.admin, tt.user.IsAdmin())
		})
	}
}
