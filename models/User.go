package models

import "time"

type User struct {
	Id           uint32    `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	Email        string    `gorm:"unique;not null" json:"email"`
	Name         string    `gorm:"not null" json:"name"`
	Phone        string    `json:"phone"`
	PasswordHash string    `gorm:"column:passwordHash;not null" json:"-"`
	IsAdmin      bool      `gorm:"column:isAdmin;not null" json:"is_admin"`
	CreatedAt    time.Time `gorm:"column:createdAt" json:"created_at"`
}

func (User) TableName() string {
	return "Users"
}
