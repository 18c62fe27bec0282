package vhmodel

import (
	"strings"
	"time"
)

const (
	RoleAdmin  = "admin"
	RoleClient = "client"
)

// User mirrors an identity provider account. The ID is the provider's user id.
type User struct {
	ID        string    `json:"id" gorm:"primaryKey;size:191"`
	DiscordID string    `json:"discordId" gorm:"size:191;uniqueIndex"`
	Username  string    `json:"username" gorm:"size:191"`
	Email     *string   `json:"email"`
	Avatar    *string   `json:"avatar"`
	Role      string    `json:"role" gorm:"size:32;default:client"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsAdmin() bool {
	return strings.EqualFold(u.Role, RoleAdmin)
}
