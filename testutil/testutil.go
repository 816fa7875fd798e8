// Package testutil builds in-memory databases and fixtures for package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/morf1ng/105site/dao/migrate"
	"github.com/morf1ng/105site/dao/model"
	"github.com/morf1ng/105site/dao/query"
	"github.com/morf1ng/105site/util"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDB returns a migrated in-memory sqlite database. The pool holds a
// single connection so every query sees the same database.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	db := OpenDB(t)
	require.NoError(t, migrate.Run(db))
	return db
}

// OpenDB is NewDB without migrations.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := query.Open(sqlite.Open(":memory:"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func NewTokens() *util.TokenManager {
	return util.NewTokenManager(&util.TokenConf{
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: time.Hour,
		AccessTokenSecret:  "test-access-secret",
		RefreshTokenSecret: "test-refresh-secret",
	})
}

// AdminRole returns the admin role created by the migrations.
func AdminRole(t testing.TB, db *gorm.DB) *model.Role {
	t.Helper()
	role, err := query.AdminRole(context.Background(), db)
	require.NoError(t, err)
	require.NotNil(t, role)
	return role
}

func CreateRole(t testing.TB, db *gorm.DB, name string) *model.Role {
	t.Helper()
	role := &model.Role{Name: name}
	require.NoError(t, db.Create(role).Error)
	return role
}

// CreateUser inserts a user holding roles. The password is hashed.
func CreateUser(t testing.TB, db *gorm.DB, email, password string, roles ...*model.Role) *model.User {
	t.Helper()
	hash, err := util.HashPassword(password)
	require.NoError(t, err)
	ids := make([]uint, 0, len(roles))
	for _, r := range roles {
		ids = append(ids, r.ID)
	}
	user := &model.User{Email: email, PasswordHash: hash}
	user.SetRoleIDList(ids)
	require.NoError(t, db.Create(user).Error)
	return user
}

// AccessToken signs an access token for user carrying its role names.
func AccessToken(t testing.TB, tokens *util.TokenManager, user *model.User, roles ...string) string {
	t.Helper()
	access, _, err := tokens.CreateTokens(&util.JWTMessage{UserID: user.ID, Roles: roles})
	require.NoError(t, err)
	return access
}
