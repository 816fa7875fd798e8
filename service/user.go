package service

import (
	"errors"
	"strings"

	"github.com/morf1ng/105site/dao/model"
	"github.com/morf1ng/105site/dao/query"
	"github.com/morf1ng/105site/response"
	"github.com/morf1ng/105site/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type UserHandler struct {
	db *gorm.DB
}

func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{db: db}
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func parseRoleIDs(raw string) ([]uint, error) {
	ids, err := model.ParseRoleIDs(raw)
	if err != nil {
		return nil, badRequest("Invalid role_ids format")
	}
	return ids, nil
}

// checkRoleIDs rejects an empty list and ids without a role row.
func checkRoleIDs(c *gin.Context, tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return badRequest("At least one role is required")
	}
	roles, err := query.RolesByIDs(c, tx, ids)
	if err != nil {
		return err
	}
	if len(roles) != len(ids) {
		return badRequest("One or more roles do not exist")
	}
	return nil
}

func emailTaken(tx *gorm.DB, email string, exceptID uint) (bool, error) {
	var count int64
	err := tx.Model(&model.User{}).Where("email = ? AND id <> ?", email, exceptID).Count(&count).Error
	return count > 0, err
}

// isLastAdmin reports whether user is the only holder of the admin role.
// It is false when no admin role exists. The admin role row stays locked
// until tx ends.
func isLastAdmin(c *gin.Context, tx *gorm.DB, user *model.User) (adminID uint, last bool, err error) {
	admin, err := query.LockAdminRole(c, tx)
	if err != nil || admin == nil {
		return 0, false, err
	}
	if !user.HasRole(admin.ID) {
		return admin.ID, false, nil
	}
	holders, err := query.RoleHolders(c, tx, admin.ID)
	if err != nil {
		return 0, false, err
	}
	return admin.ID, len(holders) == 1, nil
}

func (h *UserHandler) List(c *gin.Context) {
	users := []model.User{}
	if err := h.db.WithContext(c).Order("id").Find(&users).Error; err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, users)
}

func (h *UserHandler) Get(c *gin.Context) {
	id, err := parseIDParam(c, "User not found")
	if err != nil {
		writeError(c, err)
		return
	}
	var user model.User
	if err := h.db.WithContext(c).First(&user, id).Error; err != nil {
		writeError(c, notFoundIf(err, "User not found"))
		return
	}
	response.Success(c, user)
}

func (h *UserHandler) Create(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")
	if email == "" || password == "" {
		response.BadRequestError(c, "email and password are required")
		return
	}

	user := model.User{Email: email, Fullname: optionalString(c.PostForm("fullname"))}
	err := h.db.WithContext(c).Transaction(func(tx *gorm.DB) error {
		taken, err := emailTaken(tx, email, 0)
		if err != nil {
			return err
		}
		if taken {
			return badRequest("User already exists")
		}
		ids, err := parseRoleIDs(c.PostForm("role_ids"))
		if err != nil {
			return err
		}
		if err := checkRoleIDs(c, tx, ids); err != nil {
			return err
		}
		user.SetRoleIDList(ids)
		if user.PasswordHash, err = util.HashPassword(password); err != nil {
			return err
		}
		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return badRequest("User already exists")
			}
			return err
		}
		return recordOperation(tx, c, actionCreate, resourceUser, user.ID, map[string]any{"email": email, "role_ids": user.RoleIDs})
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, user)
}

// Update changes only the fields present in the form. The last holder of
// the admin role cannot lose it.
func (h *UserHandler) Update(c *gin.Context) {
	var user model.User
	err := h.db.WithContext(c).Transaction(func(tx *gorm.DB) error {
		id, err := parseIDParam(c, "User not found")
		if err != nil {
			return err
		}
		if err := tx.First(&user, id).Error; err != nil {
			return notFoundIf(err, "User not found")
		}

		changed := map[string]any{}
		if raw, ok := c.GetPostForm("role_ids"); ok {
			ids, err := parseRoleIDs(raw)
			if err != nil {
				return err
			}
			adminID, last, err := isLastAdmin(c, tx, &user)
			if err != nil {
				return err
			}
			if last && !containsID(ids, adminID) {
				return forbidden(response.LastAdmin, "Cannot remove admin role from the last admin")
			}
			if err := checkRoleIDs(c, tx, ids); err != nil {
				return err
			}
			user.SetRoleIDList(ids)
			changed["role_ids"] = user.RoleIDs
		}
		if email := strings.TrimSpace(c.PostForm("email")); email != "" && email != user.Email {
			taken, err := emailTaken(tx, email, user.ID)
			if err != nil {
				return err
			}
			if taken {
				return badRequest("User already exists")
			}
			user.Email = email
			changed["email"] = email
		}
		if fullname, ok := c.GetPostForm("fullname"); ok {
			user.Fullname = optionalString(fullname)
			changed["fullname"] = user.Fullname
		}
		if password := c.PostForm("password"); password != "" {
			if user.PasswordHash, err = util.HashPassword(password); err != nil {
				return err
			}
			changed["password"] = true
		}

		if err := tx.Save(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return badRequest("User already exists")
			}
			return err
		}
		return recordOperation(tx, c, actionUpdate, resourceUser, user.ID, changed)
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, user)
}

func containsID(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (h *UserHandler) Delete(c *gin.Context) {
	err := h.db.WithContext(c).Transaction(func(tx *gorm.DB) error {
		id, err := parseIDParam(c, "User not found")
		if err != nil {
			return err
		}
		var user model.User
		if err := tx.First(&user, id).Error; err != nil {
			return notFoundIf(err, "User not found")
		}
		_, last, err := isLastAdmin(c, tx, &user)
		if err != nil {
			return err
		}
		if last {
			return forbidden(response.LastAdmin, "Cannot delete last admin")
		}
		if err := tx.Delete(&user).Error; err != nil {
			return err
		}
		return recordOperation(tx, c, actionDelete, resourceUser, user.ID, map[string]any{"email": user.Email})
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Message(c, "Deleted")
}

func (h *UserHandler) Register(group *gin.RouterGroup) {
	group.GET("/users", h.List)
	group.GET("/users/:id", h.Get)
	group.POST("/users", h.Create)
	group.PUT("/users/:id", h.Update)
	group.DELETE("/users/:id", h.Delete)
}
