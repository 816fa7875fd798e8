package service

import (
	"strconv"

	"github.com/morf1ng/105site/dao/model"
	"github.com/morf1ng/105site/response"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	actionCreate = "create"
	actionUpdate = "update"
	actionDelete = "delete"

	resourceProject = "project"
	resourceRole    = "role"
	resourceUser    = "user"
)

// recordOperation appends an audit entry inside the caller's transaction, so
// the entry exists exactly when the mutation commits.
func recordOperation(tx *gorm.DB, c *gin.Context, action, resourceType string, resourceID uint, detail map[string]any) error {
	return tx.Create(&model.OperationLog{
		UserID:       CurrentUserID(c),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Detail:       datatypes.JSONMap(detail),
		IP:           c.ClientIP(),
	}).Error
}

type OperationLogHandler struct {
	db *gorm.DB
}

func NewOperationLogHandler(db *gorm.DB) *OperationLogHandler {
	return &OperationLogHandler{db: db}
}

// PagedResp wraps one page of a listing.
type PagedResp[T any] struct {
	List     []T   `json:"list"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

// List returns audit entries newest first, optionally filtered by
// resource_type and user_id.
func (h *OperationLogHandler) List(c *gin.Context) {
	page, pageSize := parsePage(c)
	q := h.db.WithContext(c).Model(&model.OperationLog{})
	if rt := c.Query("resource_type"); rt != "" {
		q = q.Where("resource_type = ?", rt)
	}
	if s := c.Query("user_id"); s != "" {
		uid, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			response.BadRequestError(c, "invalid user_id")
			return
		}
		q = q.Where("user_id = ?", uid)
	}

	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		writeError(c, err)
		return
	}
	logs := []model.OperationLog{}
	err := q.Order("id DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&logs).Error
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, PagedResp[model.OperationLog]{List: logs, Total: total, Page: page, PageSize: pageSize})
}

func (h *OperationLogHandler) Register(group *gin.RouterGroup) {
	group.GET("/operation-logs", h.List)
}

func parsePage(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
