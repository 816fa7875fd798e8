package migrate_test

import (
	"context"
	"testing"

	"github.com/morf1ng/105site/dao/migrate"
	"github.com/morf1ng/105site/dao/model"
	"github.com/morf1ng/105site/testutil"
	"github.com/morf1ng/105site/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_FreshDatabase(t *testing.T) {
	db := testutil.NewDB(t)

	for _, table := range []string{
		"project", "project_about_company", "project_stage", "project_result",
		"project_result_image", "project_progress", "roles", "users", "operation_logs",
	} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.True(t, db.Migrator().HasColumn(&model.User{}, "role_ids"))

	var admin model.Role
	require.NoError(t, db.Where("name = ?", model.RoleAdmin).First(&admin).Error)

	// running again is a no-op
	require.NoError(t, migrate.Run(db))
	var count int64
	require.NoError(t, db.Model(&model.Role{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRun_ConvertsLegacyRoleID(t *testing.T) {
	db := testutil.OpenDB(t)
	require.NoError(t, db.Exec(`CREATE TABLE roles (id integer PRIMARY KEY AUTOINCREMENT, name varchar(64) NOT NULL)`).Error)
	require.NoError(t, db.Exec(`CREATE TABLE users (
		id integer PRIMARY KEY AUTOINCREMENT,
		email varchar(255) NOT NULL,
		password_hash text NOT NULL,
		fullname varchar(255),
		role_id integer
	)`).Error)
	require.NoError(t, db.Exec(`INSERT INTO roles (name) VALUES ('admin'), ('editor')`).Error)
	require.NoError(t, db.Exec(`INSERT INTO users (email, password_hash, role_id) VALUES
		('a@example.com', 'x', 1), ('b@example.com', 'x', 2), ('c@example.com', 'x', NULL)`).Error)

	require.NoError(t, migrate.Run(db))

	assert.False(t, db.Migrator().HasColumn(&model.User{}, "role_id"))

	var users []model.User
	require.NoError(t, db.Order("id").Find(&users).Error)
	require.Len(t, users, 3)
	assert.Equal(t, "1", users[0].RoleIDs)
	assert.Equal(t, "2", users[1].RoleIDs)
	assert.Equal(t, "", users[2].RoleIDs)
}

func TestSeed(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	// no credentials: nothing happens
	require.NoError(t, migrate.Seed(ctx, db, migrate.Bootstrap{}))
	var count int64
	require.NoError(t, db.Model(&model.User{}).Count(&count).Error)
	assert.Zero(t, count)

	b := migrate.Bootstrap{Email: "root@example.com", Password: "pw", Fullname: "Root"}
	require.NoError(t, migrate.Seed(ctx, db, b))

	var user model.User
	require.NoError(t, db.Where("email = ?", b.Email).First(&user).Error)
	assert.True(t, util.CheckPassword("pw", user.PasswordHash))
	require.NotNil(t, user.Fullname)
	assert.Equal(t, "Root", *user.Fullname)
	assert.True(t, user.HasRole(testutil.AdminRole(t, db).ID))

	// users exist: a second seed adds nobody
	require.NoError(t, migrate.Seed(ctx, db, migrate.Bootstrap{Email: "other@example.com", Password: "pw"}))
	require.NoError(t, db.Model(&model.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
