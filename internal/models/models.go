package models

import (
	"time"
)

type Role string

const (
	RoleAdmin Role = "Administrator"
	RoleUser  Role = "User"
)

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string `gorm:"size:20;uniqueIndex;not null" json:"username"`
	Email        string `gorm:"size:120;uniqueIndex;not null" json:"email"`
	Role         Role   `gorm:"size:16;not null" json:"role"`
	PasswordHash string `gorm:"size:162;not null" json:"-"`
}

type Task struct {
	ID          uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Title       string     `gorm:"size:100;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Done        bool       `gorm:"default:false" json:"done"`
	DueDate     *time.Time `json:"due_date"`
	UserID      uint       `gorm:"index;not null" json:"user_id"`
}

// RevokedToken marks a jti as logged out. ExpiresAt is the token's natural
// expiry; once it passes the marker can be pruned.
type RevokedToken struct {
	ID        uint      `gorm:"primaryKey"`
	JTI       string    `gorm:"size:64;uniqueIndex;not null"`
	RevokedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
}

func All() []any {
	return []any{&User{}, &Task{}, &RevokedToken{}}
}
