package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "valuemetrix/internal/errors"
	"valuemetrix/internal/identity"
	"valuemetrix/internal/models"
)

// userService handles user-related business logic.
type userService struct {
	db *gorm.DB
}

// NewUserService creates a new UserServicer.
func NewUserService(db *gorm.DB) UserServicer {
	return &userService{db: db}
}

// ResolveExternalIdentity finds or creates the local user for a
// verified provider identity. The email is the stable key; name and
// avatar are refreshed on every sign-in.
func (s *userService) ResolveExternalIdentity(ext *identity.ExternalIdentity) (*models.User, error) {
	if ext == nil || ext.Email == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidIdentity, "identity has no email")
	}

	email := strings.ToLower(ext.Email)

	var user models.User
	err := s.db.Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{
			Email:     email,
			Name:      ext.Name,
			AvatarURL: ext.AvatarURL,
		}
		if err := s.db.Create(&user).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return &user, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if user.Name != ext.Name || user.AvatarURL != ext.AvatarURL {
		updates := map[string]interface{}{
			"name":       ext.Name,
			"avatar_url": ext.AvatarURL,
		}
		if err := s.db.Model(&user).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	return &user, nil
}

// GetUserByEmail retrieves a user by email
func (s *userService) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("email = ?", strings.ToLower(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID
func (s *userService) GetUserByID(id string) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &user, nil
}
