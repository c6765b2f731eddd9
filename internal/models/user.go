package models

import (
	"golang.org/x/crypto/bcrypt"
)

// UserStatus mirrors the status column of the users table.
type UserStatus int

const (
	UserStatusActive     UserStatus = 1
	UserStatusRegistered UserStatus = 2
	UserStatusLocked     UserStatus = 3
)

type User struct {
	ID             int        `json:"id" db:"id"`
	Login          string     `json:"login" db:"login"`
	HashedPassword string     `json:"-" db:"hashed_password"`
	FirstName      string     `json:"firstname" db:"firstname"`
	LastName       string     `json:"lastname" db:"lastname"`
	Admin          bool       `json:"admin" db:"admin"`
	Status         UserStatus `json:"status" db:"status"`
}

func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.HashedPassword = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(password))
	return err == nil
}

func (u *User) IsActive() bool {
	return u != nil && u.Status == UserStatusActive
}

func (u *User) IsLocked() bool {
	return u != nil && u.Status == UserStatusLocked
}

// IsAdmin reports whether the user bypasses project permissions.
// Locked accounts never do.
func (u *User) IsAdmin() bool {
	return u.IsActive() && u.Admin
}
