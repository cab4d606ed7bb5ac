package models

import (
	"time"
)

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Username  string    `gorm:"size:100;not null;unique" json:"username" binding:"required"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	IsActive  *bool     `gorm:"not null" json:"is_active"`
	Role      UserRole  `gorm:"type:enum('A','O');default:O" json:"role"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Username string   `json:"username" binding:"required"`
	Name     string   `json:"name" binding:"required"`
	Password string   `json:"password" binding:"required"`
	IsActive *bool    `json:"is_active"`
	Role     UserRole `json:"role"`
}

type LoginInfo struct {
	Token string `json:"token"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}
