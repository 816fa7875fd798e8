// Package migrate holds the ordered schema migrations of the site database.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/morf1ng/105site/dao/model"
	"github.com/morf1ng/105site/dao/query"
	"github.com/morf1ng/105site/logutils"
	"github.com/morf1ng/105site/util"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func migrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		{
			// Databases created before multi-role support store a single
			// integer users.role_id. Convert it to the role_ids list.
			ID: "202501150900_users_role_ids",
			Migrate: func(tx *gorm.DB) error {
				type legacyUser struct {
					RoleID  *int
					RoleIDs *string `gorm:"column:role_ids;type:varchar(255)"`
				}
				m := tx.Table("users").Migrator()
				if !m.HasTable("users") {
					return nil
				}
				if !m.HasColumn(&legacyUser{}, "role_id") || m.HasColumn(&legacyUser{}, "role_ids") {
					return nil
				}
				logutils.Log.Warn("users.role_id found, converting to users.role_ids")
				if err := m.AddColumn(&legacyUser{}, "RoleIDs"); err != nil {
					return err
				}
				if err := tx.Exec("UPDATE users SET role_ids = CAST(role_id AS TEXT) WHERE role_id IS NOT NULL").Error; err != nil {
					return err
				}
				if err := tx.Exec("UPDATE users SET role_ids = '' WHERE role_ids IS NULL").Error; err != nil {
					return err
				}
				return m.DropColumn(&legacyUser{}, "RoleID")
			},
			Rollback: func(*gorm.DB) error {
				return errors.New("users.role_ids conversion cannot be rolled back")
			},
		},
		{
			ID: "202501150901_initial_schema",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(
					&model.Project{},
					&model.ProjectAboutCompany{},
					&model.ProjectStage{},
					&model.ProjectResult{},
					&model.ProjectResultImage{},
					&model.ProjectProgress{},
					&model.Role{},
					&model.User{},
				)
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(
					"project_result_image", "project_result", "project_stage",
					"project_progress", "project_about_company", "project",
					"users", "roles",
				)
			},
		},
		{
			ID: "202502030000_operation_logs",
			Migrate: func(tx *gorm.DB) error {
				// schema as of this migration; later model changes must not leak in
				type OperationLog struct {
					ID           uint   `gorm:"primaryKey"`
					UserID       uint   `gorm:"index;not null"`
					Action       string `gorm:"type:varchar(32);not null"`
					ResourceType string `gorm:"type:varchar(32);index;not null"`
					ResourceID   uint
					Detail       datatypes.JSONMap
					IP           string `gorm:"type:varchar(64)"`
					CreatedAt    time.Time
				}
				return tx.Table("operation_logs").AutoMigrate(&OperationLog{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("operation_logs")
			},
		},
		{
			ID: "202502030001_admin_role",
			Migrate: func(tx *gorm.DB) error {
				return tx.Where(model.Role{Name: model.RoleAdmin}).FirstOrCreate(&model.Role{}).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Where("name = ?", model.RoleAdmin).Delete(&model.Role{}).Error
			},
		},
	}
}

// Run applies every pending migration.
func Run(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, migrations())
	if err := m.Migrate(); err != nil {
		return fmt.Errorf("could not migrate: %w", err)
	}
	return nil
}

// Bootstrap describes the account created on an empty users table.
type Bootstrap struct {
	Email    string
	Password string
	Fullname string
}

// Seed creates the bootstrap admin when no user exists yet. Without a
// bootstrap email and password nothing is created, and the admin API stays
// unreachable until a user is inserted by hand.
func Seed(ctx context.Context, db *gorm.DB, b Bootstrap) error {
	var count int64
	if err := db.WithContext(ctx).Model(&model.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	email := strings.TrimSpace(b.Email)
	if email == "" || b.Password == "" {
		logutils.Log.Warn("users table is empty and no bootstrap admin is configured")
		return nil
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		role, err := query.AdminRole(ctx, tx)
		if err != nil {
			return err
		}
		if role == nil {
			role = &model.Role{Name: model.RoleAdmin}
			if err := tx.Create(role).Error; err != nil {
				return err
			}
		}
		hash, err := util.HashPassword(b.Password)
		if err != nil {
			return err
		}
		user := &model.User{Email: email, PasswordHash: hash}
		if b.Fullname != "" {
			user.Fullname = &b.Fullname
		}
		user.SetRoleIDList([]uint{role.ID})
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		logutils.Log.WithField("email", email).Info("bootstrap admin created")
		return nil
	})
}
