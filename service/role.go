package service

import (
	"errors"
	"strconv"
	"strings"

	"github.com/morf1ng/105site/dao/model"
	"github.com/morf1ng/105site/dao/query"
	"github.com/morf1ng/105site/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type RoleHandler struct {
	db *gorm.DB
}

func NewRoleHandler(db *gorm.DB) *RoleHandler {
	return &RoleHandler{db: db}
}

func parseIDParam(c *gin.Context, detail string) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, notFound(detail)
	}
	return uint(id), nil
}

// nameTaken reports whether a role other than exceptID is called name.
func nameTaken(tx *gorm.DB, name string, exceptID uint) (bool, error) {
	var count int64
	err := tx.Model(&model.Role{}).Where("name = ? AND id <> ?", name, exceptID).Count(&count).Error
	return count > 0, err
}

func (h *RoleHandler) List(c *gin.Context) {
	roles := []model.Role{}
	if err := h.db.WithContext(c).Order("id").Find(&roles).Error; err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, roles)
}

func (h *RoleHandler) Create(c *gin.Context) {
	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		response.BadRequestError(c, "name is required")
		return
	}

	role := model.Role{Name: name}
	err := h.db.WithContext(c).Transaction(func(tx *gorm.DB) error {
		taken, err := nameTaken(tx, name, 0)
		if err != nil {
			return err
		}
		if taken {
			return badRequest("Role already exists")
		}
		if err := tx.Create(&role).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return badRequest("Role already exists")
			}
			return err
		}
		return recordOperation(tx, c, actionCreate, resourceRole, role.ID, map[string]any{"name": name})
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, role)
}

// Update renames a role. The admin role keeps its name: the admin API is
// gated on it.
func (h *RoleHandler) Update(c *gin.Context) {
	var role model.Role
	err := h.db.WithContext(c).Transaction(func(tx *gorm.DB) error {
		id, err := parseIDParam(c, "Role not found")
		if err != nil {
			return err
		}
		if err := tx.First(&role, id).Error; err != nil {
			return notFoundIf(err, "Role not found")
		}
		name := strings.TrimSpace(c.PostForm("name"))
		if name == "" {
			return badRequest("name is required")
		}
		if name == role.Name {
			return nil
		}
		if role.Name == model.RoleAdmin {
			return forbidden(response.InvalidRole, "Cannot rename the admin role")
		}
		taken, err := nameTaken(tx, name, role.ID)
		if err != nil {
			return err
		}
		if taken {
			return badRequest("Role already exists")
		}
		old := role.Name
		role.Name = name
		if err := tx.Model(&role).Update("name", name).Error; err != nil {
			return err
		}
		return recordOperation(tx, c, actionUpdate, resourceRole, role.ID, map[string]any{"from": old, "to": name})
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, role)
}

// Delete removes a role nobody holds any more.
func (h *RoleHandler) Delete(c *gin.Context) {
	err := h.db.WithContext(c).Transaction(func(tx *gorm.DB) error {
		id, err := parseIDParam(c, "Role not found")
		if err != nil {
			return err
		}
		var role model.Role
		if err := tx.First(&role, id).Error; err != nil {
			return notFoundIf(err, "Role not found")
		}
		holders, err := query.RoleHolders(c, tx, role.ID)
		if err != nil {
			return err
		}
		if len(holders) > 0 {
			return forbidden(response.RoleInUse, "Cannot delete a role that still has users")
		}
		if role.Name == model.RoleAdmin {
			return forbidden(response.InvalidRole, "Cannot delete the admin role")
		}
		if err := tx.Delete(&role).Error; err != nil {
			return err
		}
		return recordOperation(tx, c, actionDelete, resourceRole, role.ID, map[string]any{"name": role.Name})
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Message(c, "Deleted")
}

func (h *RoleHandler) Register(group *gin.RouterGroup) {
	group.GET("/roles", h.List)
	group.POST("/roles", h.Create)
	group.PUT("/roles/:id", h.Update)
	group.DELETE("/roles/:id", h.Delete)
}
