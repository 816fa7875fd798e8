package model

import (
	"time"

	"gorm.io/datatypes"
)

// OperationLog records one mutation performed through the admin API.
type OperationLog struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	UserID       uint              `gorm:"index;not null" json:"user_id"`
	Action       string            `gorm:"type:varchar(32);not null;comment:create/update/delete" json:"action"`
	ResourceType string            `gorm:"type:varchar(32);index;not null" json:"resource_type"`
	ResourceID   uint              `json:"resource_id"`
	Detail       datatypes.JSONMap `gorm:"comment:变更内容" json:"detail"`
	IP           string            `gorm:"type:varchar(64)" json:"ip"`
	CreatedAt    time.Time         `json:"created_at"`
}

func (OperationLog) TableName() string { return "operation_logs" }
