package query

import (
	"context"
	"errors"

	"github.com/morf1ng/105site/dao/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RolesByIDs returns the roles among ids that exist.
func RolesByIDs(ctx context.Context, db *gorm.DB, ids []uint) ([]model.Role, error) {
	var roles []model.Role
	if len(ids) == 0 {
		return roles, nil
	}
	err := db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&roles).Error
	return roles, err
}

// RoleNames resolves a user's role list to role names.
func RoleNames(ctx context.Context, db *gorm.DB, user *model.User) ([]string, error) {
	roles, err := RolesByIDs(ctx, db, user.RoleIDList())
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}
	return names, nil
}

// AdminRole returns the role named "admin", or nil when it does not exist.
func AdminRole(ctx context.Context, db *gorm.DB) (*model.Role, error) {
	return adminRole(db.WithContext(ctx))
}

// LockAdminRole is AdminRole taking a row lock on the role, so admin guard
// checks in concurrent transactions run one after another. It must be
// called inside a transaction.
func LockAdminRole(ctx context.Context, tx *gorm.DB) (*model.Role, error) {
	return adminRole(tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}))
}

func adminRole(db *gorm.DB) (*model.Role, error) {
	var role model.Role
	err := db.Where("name = ?", model.RoleAdmin).First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// RoleHolders returns the users whose role list contains roleID.
// The list is a delimited string, so matching is done on parsed ids.
func RoleHolders(ctx context.Context, db *gorm.DB, roleID uint) ([]model.User, error) {
	var users []model.User
	if err := db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, err
	}
	holders := make([]model.User, 0)
	for _, u := range users {
		if u.HasRole(roleID) {
			holders = append(holders, u)
		}
	}
	return holders, nil
}

// FindUserByEmail returns gorm.ErrRecordNotFound when no user has the email.
func FindUserByEmail(ctx context.Context, db *gorm.DB, email string) (*model.User, error) {
	var user model.User
	if err := db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
