package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type User struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string         `gorm:"not null;column:name" json:"name"`
	Email     string         `gorm:"uniqueIndex;not null;column:email" json:"email"`
	Password  string         `gorm:"not null;column:password" json:"-"`
	Role      string         `gorm:"not null;default:'user';column:role" json:"role"`
	Address   string         `gorm:"column:address" json:"address"`
	Phone     string         `gorm:"column:phone" json:"phone"`
	Languages datatypes.JSON `gorm:"column:languages;type:jsonb" json:"languages,omitempty"`
	Active    bool           `gorm:"not null;default:true;column:active" json:"active"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (User) TableName() string { return "user" }
