package service

import (
	"net/http"

	"github.com/morf1ng/105site/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type HealthResp struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

type SystemHandler struct {
	db      *gorm.DB
	service string
	version string
}

func NewSystemHandler(db *gorm.DB, service, version string) *SystemHandler {
	return &SystemHandler{db: db, service: service, version: version}
}

// Health pings the database; a failed ping reports 503.
func (h *SystemHandler) Health(c *gin.Context) {
	resp := HealthResp{Status: "ok", Service: h.service, Version: h.version}
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c)
	}
	if err != nil {
		resp.Status = "unavailable"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	response.Success(c, resp)
}

// Tables lists the database tables. Only mounted with debug routes on.
func (h *SystemHandler) Tables(c *gin.Context) {
	tables, err := h.db.WithContext(c).Migrator().GetTables()
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"tables": tables})
}
