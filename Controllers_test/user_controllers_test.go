package Controllers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegisterAndLogin(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouterForTest(t, db)

	// --- Register ---
	w := doJSON(t, r, "POST", "/register", "", map[string]string{
		"name":     "Test Provider",
		"email":    "provider@example.com",
		"password": "password123",
		"role":     "provider",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, true, body["status"])
	data := body["data"].(map[string]interface{})
	assert.NotNil(t, data["user_id"])

	// --- Login ---
	w = doJSON(t, r, "POST", "/login", "", map[string]string{
		"email":    "provider@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	body = decodeBody(t, w)
	assert.Equal(t, true, body["status"])
	data = body["data"].(map[string]interface{})
	token, ok := data["token"].(string)
	assert.True(t, ok)
	assert.NotEmpty(t, token)
	assert.Equal(t, "provider", data["user_role"])

	// --- Bad credentials ---
	w = doJSON(t, r, "POST", "/login", "", map[string]string{
		"email":    "provider@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProfileRequiresAuth(t *testing.T) {
	db := setupTestDB(t)
	r := setupRouterForTest(t, db)

	w := doJSON(t, r, "GET", "/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	_, token := createUser(t, db, "client")
	w = doJSON(t, r, "GET", "/profile", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
