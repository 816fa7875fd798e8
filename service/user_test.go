package service

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/morf1ng/105site/dao/model"
	"github.com/morf1ng/105site/response"
	"github.com/morf1ng/105site/testutil"
	"github.com/morf1ng/105site/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsers_Create(t *testing.T) {
	e := newTestEnv(t)
	editor := testutil.CreateRole(t, e.db, "editor")

	w := e.form(http.MethodPost, "/api/admin/users", url.Values{
		"email":    {"new@example.com"},
		"password": {"pw"},
		"fullname": {"New Person"},
		"role_ids": {fmt.Sprintf(" %d, %d,%d ", editor.ID, e.adminRole.ID, editor.ID)},
	}, e.adminToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var raw map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.NotContains(t, raw, "password_hash")
	assert.NotContains(t, raw, "PasswordHash")
	assert.Equal(t, fmt.Sprintf("%d,%d", editor.ID, e.adminRole.ID), raw["role_ids"])
	assert.Equal(t, "New Person", raw["fullname"])

	var stored model.User
	require.NoError(t, e.db.Where("email = ?", "new@example.com").First(&stored).Error)
	assert.True(t, util.CheckPassword("pw", stored.PasswordHash))
	assert.Equal(t, int64(1), e.countLogs(t, resourceUser, actionCreate))
}

func TestUsers_CreateRejects(t *testing.T) {
	e := newTestEnv(t)
	id := fmt.Sprint(e.adminRole.ID)

	cases := []struct {
		values url.Values
		detail string
	}{
		{url.Values{"email": {"x@example.com"}, "role_ids": {id}}, "email and password are required"},
		{url.Values{"email": {"admin@example.com"}, "password": {"pw"}, "role_ids": {id}}, "User already exists"},
		{url.Values{"email": {"x@example.com"}, "password": {"pw"}, "role_ids": {"1,abc"}}, "Invalid role_ids format"},
		{url.Values{"email": {"x@example.com"}, "password": {"pw"}, "role_ids": {" , "}}, "At least one role is required"},
		{url.Values{"email": {"x@example.com"}, "password": {"pw"}, "role_ids": {id + ",999"}}, "One or more roles do not exist"},
	}
	for _, c := range cases {
		w := e.form(http.MethodPost, "/api/admin/users", c.values, e.adminToken)
		requireError(t, w, http.StatusBadRequest, c.detail)
	}

	var count int64
	require.NoError(t, e.db.Model(&model.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUsers_ListAndGet(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(http.MethodGet, "/api/admin/users", nil, "", e.adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
	users := decode[[]model.User](t, w)
	require.Len(t, users, 1)
	assert.Equal(t, "admin@example.com", users[0].Email)

	w = e.do(http.MethodGet, fmt.Sprintf("/api/admin/users/%d", e.admin.ID), nil, "", e.adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, e.admin.ID, decode[model.User](t, w).ID)

	w = e.do(http.MethodGet, "/api/admin/users/999", nil, "", e.adminToken)
	requireError(t, w, http.StatusNotFound, "User not found")
	w = e.do(http.MethodGet, "/api/admin/users/abc", nil, "", e.adminToken)
	requireError(t, w, http.StatusNotFound, "User not found")
}

func TestUsers_Update(t *testing.T) {
	e := newTestEnv(t)
	editor := testutil.CreateRole(t, e.db, "editor")
	user := testutil.CreateUser(t, e.db, "ed@example.com", "pw", editor)
	target := fmt.Sprintf("/api/admin/users/%d", user.ID)

	w := e.form(http.MethodPut, target, url.Values{
		"email":    {"editor@example.com"},
		"password": {"new-pw"},
		"fullname": {""},
		"role_ids": {fmt.Sprintf("%d,%d", editor.ID, e.adminRole.ID)},
	}, e.adminToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var stored model.User
	require.NoError(t, e.db.First(&stored, user.ID).Error)
	assert.Equal(t, "editor@example.com", stored.Email)
	assert.Nil(t, stored.Fullname)
	assert.True(t, util.CheckPassword("new-pw", stored.PasswordHash))
	assert.True(t, stored.HasRole(e.adminRole.ID))

	// a blank password keeps the old one
	w = e.form(http.MethodPut, target, url.Values{"password": {""}}, e.adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, e.db.First(&stored, user.ID).Error)
	assert.True(t, util.CheckPassword("new-pw", stored.PasswordHash))

	w = e.form(http.MethodPut, target, url.Values{"email": {"admin@example.com"}}, e.adminToken)
	requireError(t, w, http.StatusBadRequest, "User already exists")

	w = e.form(http.MethodPut, target, url.Values{"role_ids": {"x"}}, e.adminToken)
	requireError(t, w, http.StatusBadRequest, "Invalid role_ids format")

	w = e.form(http.MethodPut, "/api/admin/users/999", url.Values{"fullname": {"x"}}, e.adminToken)
	requireError(t, w, http.StatusNotFound, "User not found")

	assert.Equal(t, int64(2), e.countLogs(t, resourceUser, actionUpdate))
}

func TestUsers_UpdateRollsBackOnFailure(t *testing.T) {
	e := newTestEnv(t)
	user := testutil.CreateUser(t, e.db, "ed@example.com", "pw")
	failCreates(t, e.db, "operation_logs")

	w := e.form(http.MethodPut, fmt.Sprintf("/api/admin/users/%d", user.ID), url.Values{
		"email":    {"editor@example.com"},
		"password": {"new-pw"},
	}, e.adminToken)
	requireInternalError(t, w)

	var stored model.User
	require.NoError(t, e.db.First(&stored, user.ID).Error)
	assert.Equal(t, "ed@example.com", stored.Email)
	assert.True(t, util.CheckPassword("pw", stored.PasswordHash))
}

func TestUsers_LastAdminGuard(t *testing.T) {
	e := newTestEnv(t)
	editor := testutil.CreateRole(t, e.db, "editor")
	target := fmt.Sprintf("/api/admin/users/%d", e.admin.ID)

	w := e.form(http.MethodPut, target, url.Values{"role_ids": {fmt.Sprint(editor.ID)}}, e.adminToken)
	body := requireError(t, w, http.StatusForbidden, "Cannot remove admin role from the last admin")
	assert.Equal(t, response.LastAdmin, body.Code)

	// the guard runs before the empty-list check
	w = e.form(http.MethodPut, target, url.Values{"role_ids": {""}}, e.adminToken)
	requireError(t, w, http.StatusForbidden, "Cannot remove admin role from the last admin")

	w = e.do(http.MethodDelete, target, nil, "", e.adminToken)
	body = requireError(t, w, http.StatusForbidden, "Cannot delete last admin")
	assert.Equal(t, response.LastAdmin, body.Code)

	var stored model.User
	require.NoError(t, e.db.First(&stored, e.admin.ID).Error)
	assert.True(t, stored.HasRole(e.adminRole.ID))

	// with a second admin both operations go through
	second := testutil.CreateUser(t, e.db, "second@example.com", "pw", e.adminRole)
	w = e.form(http.MethodPut, target, url.Values{"role_ids": {fmt.Sprint(editor.ID)}}, e.adminToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do(http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", second.ID), nil, "", e.adminToken)
	requireError(t, w, http.StatusForbidden, "Cannot delete last admin")

	w = e.do(http.MethodDelete, target, nil, "", e.adminToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Deleted", decode[response.Detail](t, w).Detail)
}

func TestUsers_Delete(t *testing.T) {
	e := newTestEnv(t)
	editor := testutil.CreateRole(t, e.db, "editor")
	user := testutil.CreateUser(t, e.db, "ed@example.com", "pw", editor)

	w := e.do(http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", user.ID), nil, "", e.adminToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do(http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", user.ID), nil, "", e.adminToken)
	requireError(t, w, http.StatusNotFound, "User not found")
	assert.Equal(t, int64(1), e.countLogs(t, resourceUser, actionDelete))
}
