package user

import (
	"time"

	"github.com/google/uuid"
)

// User is the persisted account row. Status flags carry no column default so
// an explicit false is never replaced on insert.
type User struct {
	ID                    int64      `gorm:"primaryKey"`
	Username              string     `gorm:"column:username;uniqueIndex;not null"`
	Email                 string     `gorm:"column:email;uniqueIndex;not null"`
	PasswordHash          string     `gorm:"column:password_hash;not null"`
	EmployeeID            *uuid.UUID `gorm:"column:employee_id;index"`
	FirstName             *string    `gorm:"column:first_name"`
	LastName              *string    `gorm:"column:last_name"`
	Enabled               bool       `gorm:"column:enabled;not null"`
	AccountNonExpired     bool       `gorm:"column:account_non_expired;not null"`
	AccountNonLocked      bool       `gorm:"column:account_non_locked;not null"`
	CredentialsNonExpired bool       `gorm:"column:credentials_non_expired;not null"`
	Roles                 []UserRole `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	CreatedAt             time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}

type UserRole struct {
	UserID int64  `gorm:"column:user_id;primaryKey"`
	Role   string `gorm:"column:role;primaryKey"`
}

func (UserRole) TableName() string {
	return "user_roles"
}
