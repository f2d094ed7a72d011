package models

// User is a local identity created on first successful sign-in through
// the external identity provider. Users are never deleted by this system.
type User struct {
	Base
	Email      string      `gorm:"uniqueIndex;not null" json:"email"`
	Name       string      `json:"name"`
	AvatarURL  string      `json:"avatar_url,omitempty"`
	Portfolios []Portfolio `gorm:"foreignKey:UserID" json:"portfolios,omitempty"`
}
