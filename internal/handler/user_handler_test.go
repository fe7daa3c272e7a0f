package handler_test

import (
	"net/http"
	"testing"

	"recipe-service/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUserSuccess(t *testing.T) {
	e, db := newTestApp(t)

	rec := doJSON(e, http.MethodPost, "/api/user/create", "", map[string]string{
		"email":    "test@example.com",
		"password": "testpass",
		"name":     "Test Name",
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "test@example.com", body["email"])
	assert.Equal(t, "Test Name", body["name"])
	assert.NotContains(t, body, "password")
	assert.NotContains(t, rec.Body.String(), "testpass")

	var user model.User
	require.NoError(t, db.Where("email = ?", "test@example.com").First(&user).Error)
	assert.True(t, user.CheckPassword("testpass"))
}

func TestCreateUserNormalizesEmail(t *testing.T) {
	e, _ := newTestApp(t)

	rec := doJSON(e, http.MethodPost, "/api/user/create", "", map[string]string{
		"email":    "test@EXAMPLE.COM",
		"password": "testpass",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "test@example.com", decodeBody(t, rec)["email"])
}

func TestCreateUserShortPassword(t *testing.T) {
	e, db := newTestApp(t)

	rec := doJSON(e, http.MethodPost, "/api/user/create", "", map[string]string{
		"email":    "test@example.com",
		"password": "pw",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body, "password")

	var count int64
	db.Model(&model.User{}).Count(&count)
	assert.Zero(t, count)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	e, db := newTestApp(t)
	seedUser(t, db, "test@example.com", "testpass")

	// The duplicate is caught by the unique index on insert, so this holds
	// even when two registrations race
	rec := doJSON(e, http.MethodPost, "/api/user/create", "", map[string]string{
		"email":    "test@example.com",
		"password": "otherpass",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec), "email")

	var count int64
	db.Model(&model.User{}).Where("email = ?", "test@example.com").Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestMeRequiresAuth(t *testing.T) {
	e, _ := newTestApp(t)

	rec := doJSON(e, http.MethodGet, "/api/user/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetMe(t *testing.T) {
	e, db := newTestApp(t)
	seedUser(t, db, "me@example.com", "testpass")
	token := issueToken(t, e, "me@example.com", "testpass")

	rec := doJSON(e, http.MethodGet, "/api/user/me", token, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "me@example.com", body["email"])
	assert.NotContains(t, body, "password")
}

func TestUpdateMe(t *testing.T) {
	e, db := newTestApp(t)
	user := seedUser(t, db, "me@example.com", "testpass")
	token := issueToken(t, e, "me@example.com", "testpass")

	rec := doJSON(e, http.MethodPatch, "/api/user/me", token, map[string]string{
		"name":     "New Name",
		"password": "newpassword",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "New Name", decodeBody(t, rec)["name"])

	var updated model.User
	require.NoError(t, db.First(&updated, user.ID).Error)
	assert.Equal(t, "New Name", updated.Name)
	assert.True(t, updated.CheckPassword("newpassword"))
	assert.False(t, updated.CheckPassword("testpass"))
}

func TestUpdateMeShortPassword(t *testing.T) {
	e, db := newTestApp(t)
	seedUser(t, db, "me@example.com", "testpass")
	token := issueToken(t, e, "me@example.com", "testpass")

	rec := doJSON(e, http.MethodPatch, "/api/user/me", token, map[string]string{
		"password": "pw",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateMeEmptyPassword(t *testing.T) {
	e, db := newTestApp(t)
	user := seedUser(t, db, "me@example.com", "testpass")
	token := issueToken(t, e, "me@example.com", "testpass")

	rec := doJSON(e, http.MethodPatch, "/api/user/me", token, map[string]string{
		"password": "",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, decodeBody(t, rec), "password")

	// Old password still works, the empty one never took
	var updated model.User
	require.NoError(t, db.First(&updated, user.ID).Error)
	assert.True(t, updated.CheckPassword("testpass"))
	assert.False(t, updated.CheckPassword(""))

	rec = doJSON(e, http.MethodPost, "/api/user/token", "", map[string]string{
		"email":    "me@example.com",
		"password": "",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostMeNotAllowed(t *testing.T) {
	e, db := newTestApp(t)
	seedUser(t, db, "me@example.com", "testpass")
	token := issueToken(t, e, "me@example.com", "testpass")

	rec := doJSON(e, http.MethodPost, "/api/user/me", token, map[string]string{})
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
