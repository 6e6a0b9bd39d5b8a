package models

import "time"

type UserRole string

const (
	UserRoleAdmin    UserRole = "admin"
	UserRoleCreator  UserRole = "creator"
	UserRoleConsumer UserRole = "consumer"
)

func (r UserRole) Valid() bool {
	switch r {
	case UserRoleAdmin, UserRoleCreator, UserRoleConsumer:
		return true
	}
	return false
}

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash []byte
	Role         UserRole
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
