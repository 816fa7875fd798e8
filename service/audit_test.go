package service

import (
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/morf1ng/105site/dao/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationLogs(t *testing.T) {
	e := newTestEnv(t)
	for i := 0; i < 3; i++ {
		w := e.form(http.MethodPost, "/api/admin/roles", url.Values{"name": {fmt.Sprintf("role-%d", i)}}, e.adminToken)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	createProject(t, e)

	w := e.do(http.MethodGet, "/api/admin/operation-logs?page=1&page_size=2", nil, "", e.adminToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	page := decode[PagedResp[model.OperationLog]](t, w)
	assert.Equal(t, int64(4), page.Total)
	assert.Equal(t, 2, page.PageSize)
	require.Len(t, page.List, 2)
	// newest first
	assert.Equal(t, resourceProject, page.List[0].ResourceType)
	assert.Equal(t, e.admin.ID, page.List[0].UserID)
	assert.Equal(t, "Landing", page.List[0].Detail["title"])

	w = e.do(http.MethodGet, "/api/admin/operation-logs?resource_type=role", nil, "", e.adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	page = decode[PagedResp[model.OperationLog]](t, w)
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.List, 3)

	w = e.do(http.MethodGet, "/api/admin/operation-logs?user_id=abc", nil, "", e.adminToken)
	requireError(t, w, http.StatusBadRequest, "invalid user_id")
}
