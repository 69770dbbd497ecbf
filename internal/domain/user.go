package domain

import "time"

// User roles. Role is an authorization attribute only.
const (
	RoleLandlord = "landlord"
	RoleTenant   = "tenant"
	RoleAdmin    = "admin"
)

// User is an identity participating in conversations
type User struct {
	ID           uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Email        string    `gorm:"column:email;size:120;uniqueIndex" json:"email"`
	FirstName    string    `gorm:"column:first_name;size:50" json:"first_name"`
	LastName     string    `gorm:"column:last_name;size:50" json:"last_name"`
	Phone        string    `gorm:"column:phone;size:20" json:"phone,omitempty"`
	ProfileImage string    `gorm:"column:profile_image;size:255" json:"profile_image,omitempty"`
	Role         string    `gorm:"column:role;size:20;default:tenant" json:"role"`
	IsActive     bool      `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (User) TableName() string { return "users" }

// UserSummary is the sender display block embedded in message payloads
type UserSummary struct {
	ID           uint64 `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	ProfileImage string `json:"profile_image"`
	Role         string `json:"role,omitempty"`
}

// Summary returns the display fields of u
func (u *User) Summary() *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{
		ID:           u.ID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		ProfileImage: u.ProfileImage,
		Role:         u.Role,
	}
}
