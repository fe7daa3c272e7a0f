package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"recipe-service/internal/model"
	"recipe-service/internal/router"
	"recipe-service/pkg/config"
	"recipe-service/pkg/database"
	"recipe-service/pkg/logger"
	"recipe-service/pkg/storage"
	"recipe-service/prometheus"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	os.Setenv("LOG_LEVEL", "error")
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger.InitLogger(cfg)
	// Metrics registration must happen exactly once per test binary
	prometheus.InitMetrics(cfg)
	os.Exit(m.Run())
}

// newTestApp wires the full route tree against a private in-memory
// database and a local image store
func newTestApp(t *testing.T) (*echo.Echo, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.AuthToken{},
		&model.Tag{},
		&model.Ingredient{},
		&model.Recipe{},
	))
	database.SetDB(db)

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	return router.New(store, nil), db
}

// doJSON performs a request with an optional JSON body and bearer token
func doJSON(e *echo.Echo, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			panic(err)
		}
		reader = bytes.NewReader(buf)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

// doUpload performs a multipart upload of the given payload as field "image"
func doUpload(e *echo.Echo, path, token, filename string, payload []byte) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		panic(err)
	}
	if _, err := part.Write(payload); err != nil {
		panic(err)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	var body []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// seedUser inserts a user directly into the store
func seedUser(t *testing.T, db *gorm.DB, email, password string) *model.User {
	t.Helper()
	user, err := model.NewUser(email, password, "")
	require.NoError(t, err)
	require.NoError(t, db.Create(user).Error)
	return user
}

// seedStaff inserts a staff user directly into the store
func seedStaff(t *testing.T, db *gorm.DB, email, password string) *model.User {
	t.Helper()
	user, err := model.NewSuperuser(email, password)
	require.NoError(t, err)
	require.NoError(t, db.Create(user).Error)
	return user
}

// issueToken fetches a bearer token through the API
func issueToken(t *testing.T, e *echo.Echo, email, password string) string {
	t.Helper()
	rec := doJSON(e, http.MethodPost, "/api/user/token", "", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

// pngPayload is a minimal payload that sniffs as image/png
func pngPayload() []byte {
	header := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	return append(header, make([]byte, 64)...)
}
