package model

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Role is a named permission bucket. Users reference roles by id.
type Role struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"uniqueIndex;type:varchar(64);not null;comment:角色名" json:"name"`
}

func (Role) TableName() string { return "roles" }

// User is an admin-panel account. RoleIDs holds the ids of the user's roles
// joined by commas, e.g. "1,2,3".
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;type:varchar(255);not null;comment:登录邮箱" json:"email"`
	PasswordHash string    `gorm:"type:text;not null" json:"-"`
	Fullname     *string   `gorm:"type:varchar(255)" json:"fullname"`
	RoleIDs      string    `gorm:"column:role_ids;type:varchar(255);not null;comment:角色ID列表" json:"role_ids"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }

// RoleIDList returns the parsed role ids. Entries that are not integers are
// skipped; rows are only ever written through SetRoleIDList.
func (u *User) RoleIDList() []uint {
	var ids []uint
	for _, part := range strings.Split(u.RoleIDs, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, uint(id))
	}
	return ids
}

func (u *User) SetRoleIDList(ids []uint) {
	u.RoleIDs = JoinRoleIDs(ids)
}

func (u *User) HasRole(roleID uint) bool {
	for _, id := range u.RoleIDList() {
		if id == roleID {
			return true
		}
	}
	return false
}

var ErrInvalidRoleIDs = errors.New("invalid role_ids format")

// ParseRoleIDs parses a comma separated id list such as "1, 2,3".
// Blank entries are ignored and repeated ids are kept once, in first-seen order.
func ParseRoleIDs(s string) ([]uint, error) {
	seen := make(map[uint]struct{})
	ids := []uint{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil, ErrInvalidRoleIDs
		}
		if _, ok := seen[uint(id)]; ok {
			continue
		}
		seen[uint(id)] = struct{}{}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

func JoinRoleIDs(ids []uint) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatUint(uint64(id), 10))
	}
	return strings.Join(parts, ",")
}
