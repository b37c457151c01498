package model

import (
	"time"
)

type UserRole string

const (
	Student    UserRole = "student"
	Instructor UserRole = "instructor"
	Admin      UserRole = "admin"
)

// swagger:model User
type User struct {
	BaseModel
	Name         string    `gorm:"size:100;not null" json:"Name"`
	Email        string    `gorm:"size:100;unique;not null" json:"Email"`
	Password     string    `gorm:"size:100;not null" json:"-"`
	Role         UserRole  `gorm:"size:20;default:'student'" json:"Role"`
	GuardianName string    `gorm:"size:100" json:"GuardianName"` // 监护人姓名，证书可选显示
	Language     string    `gorm:"size:10;default:'en'" json:"Language"`
	Avatar       string    `gorm:"size:255" json:"avatar"`
	Disabled     bool      `gorm:"default:false" json:"Disabled"`
	LastLogin    time.Time `json:"LastLogin"`
	LastSeen     time.Time `json:"LastSeen"`
}

func (User) TableName() string {
	return "users"
}
