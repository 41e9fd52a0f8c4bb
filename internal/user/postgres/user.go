package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	userDatamodel "github.com/frahmantamala/hrms-identity/internal/core/datamodel/user"
	"github.com/frahmantamala/hrms-identity/internal/user"
)

type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository expects a *gorm.DB opened with TranslateError so unique
// violations surface as gorm.ErrDuplicatedKey.
func NewUserRepository(db *gorm.DB) user.Repository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*user.Identity, error) {
	var u userDatamodel.User
	err := r.db.WithContext(ctx).Preload("Roles").Where("username = ?", username).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("find user by username: %w", err)
	}
	return user.FromDataModel(&u), nil
}

func (r *UserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return exists(r.db.WithContext(ctx), "username = ?", username)
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return exists(r.db.WithContext(ctx), "email = ?", email)
}

func (r *UserRepository) Create(ctx context.Context, identity *user.Identity) error {
	model := user.ToDataModel(identity)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := exists(tx, "username = ?", model.Username)
		if err != nil {
			return err
		}
		if taken {
			return user.ErrDuplicateUsername
		}
		taken, err = exists(tx, "email = ?", model.Email)
		if err != nil {
			return err
		}
		if taken {
			return user.ErrDuplicateEmail
		}
		return tx.Create(model).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// lost a race with a concurrent insert; report which key collided
		return r.classifyDuplicate(ctx, model)
	}
	if err != nil {
		if errors.Is(err, user.ErrDuplicateUsername) || errors.Is(err, user.ErrDuplicateEmail) {
			return err
		}
		return fmt.Errorf("create user: %w", err)
	}

	created := user.FromDataModel(model)
	*identity = *created
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, username, passwordHash string, credentialsNonExpired bool) error {
	res := r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Where("username = ?", username).
		Updates(map[string]any{
			"password_hash":           passwordHash,
			"credentials_non_expired": credentialsNonExpired,
		})
	if res.Error != nil {
		return fmt.Errorf("update password: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (r *UserRepository) classifyDuplicate(ctx context.Context, model *userDatamodel.User) error {
	if taken, err := r.ExistsByEmail(ctx, model.Email); err == nil && taken {
		if owner, err := r.ExistsByUsername(ctx, model.Username); err == nil && !owner {
			return user.ErrDuplicateEmail
		}
	}
	return user.ErrDuplicateUsername
}

func exists(db *gorm.DB, query string, arg any) (bool, error) {
	var count int64
	if err := db.Model(&userDatamodel.User{}).Where(query, arg).Count(&count).Error; err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	return count > 0, nil
}
