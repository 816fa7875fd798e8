package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/morf1ng/105site/cache"
	"github.com/morf1ng/105site/config"
	"github.com/morf1ng/105site/dao/model"
	"github.com/morf1ng/105site/response"
	"github.com/morf1ng/105site/storage"
	"github.com/morf1ng/105site/testutil"
	"github.com/morf1ng/105site/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testEnv struct {
	db         *gorm.DB
	tokens     *util.TokenManager
	uploads    *storage.Uploads
	router     *gin.Engine
	adminRole  *model.Role
	admin      *model.User
	adminToken string
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.CORSOrigins = []string{"*"}
	cfg.Server.DebugRoutes = true
	cfg.RateLimit.LoginPerSecond = 1000
	cfg.RateLimit.LoginBurst = 1000
	return cfg
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWith(t, testConfig(), cache.Noop{})
}

func newTestEnvWith(t *testing.T, cfg *config.Config, c cache.Cache) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	uploads, err := storage.NewUploads(t.TempDir())
	require.NoError(t, err)
	tokens := testutil.NewTokens()

	adminRole := testutil.AdminRole(t, db)
	admin := testutil.CreateUser(t, db, "admin@example.com", "admin-pw", adminRole)

	return &testEnv{
		db:      db,
		tokens:  tokens,
		uploads: uploads,
		router: NewRouter(Deps{
			DB:          db,
			Tokens:      tokens,
			Uploads:     uploads,
			Cache:       c,
			Config:      cfg,
			ServiceName: "site-test",
			Version:     "test",
		}),
		adminRole:  adminRole,
		admin:      admin,
		adminToken: testutil.AccessToken(t, tokens, admin, model.RoleAdmin),
	}
}

func (e *testEnv) do(method, target string, body io.Reader, contentType, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// form sends url-encoded values.
func (e *testEnv) form(method, target string, values url.Values, token string) *httptest.ResponseRecorder {
	return e.do(method, target, strings.NewReader(values.Encode()), "application/x-www-form-urlencoded", token)
}

type upload struct {
	field, name, content string
}

// multipartBody encodes fields and files as multipart/form-data.
func multipartBody(t *testing.T, fields map[string]string, files ...upload) (io.Reader, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func (e *testEnv) multipart(t *testing.T, method, target string, fields map[string]string, token string, files ...upload) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, fields, files...)
	return e.do(method, target, body, contentType, token)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func requireError(t *testing.T, w *httptest.ResponseRecorder, status int, detail string) response.ErrorBody {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	body := decode[response.ErrorBody](t, w)
	if detail != "" {
		require.Equal(t, detail, body.Detail)
	}
	return body
}

func (e *testEnv) countLogs(t *testing.T, resourceType, action string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&model.OperationLog{}).
		Where("resource_type = ? AND action = ?", resourceType, action).Count(&n).Error)
	return n
}

// failCreates makes every insert into table fail.
func failCreates(t *testing.T, db *gorm.DB, table string) {
	t.Helper()
	err := db.Callback().Create().Before("gorm:create").Register("test:fail_"+table, func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			_ = tx.AddError(errors.New("boom"))
		}
	})
	require.NoError(t, err)
}

func requireInternalError(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	body := requireError(t, w, http.StatusInternalServerError, "Internal server error")
	require.Equal(t, response.Internal, body.Code)
}
