package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediashare/internal/cache"
	"mediashare/internal/config"
	"mediashare/internal/media/optimize"
	"mediashare/internal/models"
	"mediashare/internal/security"
	"mediashare/internal/service/servicetest"
	"mediashare/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var pngBytes = append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, bytes.Repeat([]byte{7}, 64)...)

type fixture struct {
	db     *servicetest.MemDB
	dir    string
	tokens *security.TokenIssuer
	engine *gin.Engine
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	cfg := &config.AppConfig{
		Storage: config.StorageConfig{PublicPrefix: "/uploads"},
		Upload: config.UploadConfig{
			MaxBytes:       1 << 20,
			PlaceholderURL: "/placeholder/missing-media.svg",
		},
		Cache: config.CacheConfig{ListingTTL: 5 * time.Minute, SearchTTL: 2 * time.Minute},
	}

	dir := t.TempDir()
	store, err := storage.NewLocalStore(dir)
	require.NoError(t, err)

	db := servicetest.NewMemDB()
	db.AddUser(models.User{ID: "admin", Username: "root", Email: "root@x.com", Role: models.UserRoleAdmin})
	db.AddUser(models.User{ID: "carol", Username: "carol", Email: "carol@x.com", Role: models.UserRoleCreator})
	db.AddUser(models.User{ID: "dave", Username: "dave", Email: "dave@x.com", Role: models.UserRoleCreator})
	db.AddUser(models.User{ID: "eve", Username: "eve", Email: "eve@x.com", Role: models.UserRoleConsumer})

	tokens := security.NewTokenIssuer("handler-test-secret", time.Hour)
	set := NewHandlerSet(zerolog.Nop(), cfg, Dependencies{
		Users:     db.Users(),
		Photos:    db.Photos(),
		Comments:  db.Comments(),
		Ratings:   db.Ratings(),
		Store:     store,
		Optimizer: optimize.Passthrough{},
		Responses: cache.NewMemoryStore(clock.NewMock(), 100),
		Tokens:    tokens,
	})

	engine := gin.New()
	set.Register(engine.Group("/api"))
	set.RegisterFiles(engine.Group(""))

	return fixture{db: db, dir: dir, tokens: tokens, engine: engine}
}

func (f fixture) token(t *testing.T, userID string) string {
	t.Helper()
	user, err := f.db.Users().GetByID(context.Background(), userID)
	require.NoError(t, err)
	token, err := f.tokens.Issue(user.ID, user.Username, user.Email, string(user.Role))
	require.NoError(t, err)
	return token
}

func (f fixture) do(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func (f fixture) upload(t *testing.T, token string, fields map[string]string, fileName string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if data != nil {
		part, err := mw.CreateFormFile("photo", fileName)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/photos/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	_, err := time.Parse(time.RFC3339, body["timestamp"].(string))
	assert.NoError(t, err)
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": "frank", "email": "frank@x.com", "password": "secret", "role": "consumer",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "User registered successfully", body["message"])
	assert.NotEmpty(t, body["token"])
	assert.Equal(t, "consumer", body["user"].(map[string]any)["role"])

	w = f.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "frank@x.com", "password": "secret"})
	require.Equal(t, http.StatusOK, w.Code)
	token := decode(t, w)["token"].(string)

	w = f.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "frank", decode(t, w)["user"].(map[string]any)["username"])

	w = f.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "frank@x.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid credentials", decode(t, w)["error"])
}

func TestRegisterRejections(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name   string
		body   gin.H
		status int
		msg    string
	}{
		{"missing fields", gin.H{"username": "x"}, http.StatusBadRequest, "All fields are required"},
		{"creator", gin.H{"username": "x", "email": "x@x.com", "password": "p", "role": "creator"}, http.StatusForbidden,
			"Creator accounts cannot be registered publicly. Please contact an administrator."},
		{"second admin", gin.H{"username": "x", "email": "x@x.com", "password": "p", "role": "admin"}, http.StatusForbidden,
			"An admin already exists. Admin registration is only allowed for first-time setup."},
		{"unknown role", gin.H{"username": "x", "email": "x@x.com", "password": "p", "role": "owner"}, http.StatusBadRequest,
			"Invalid role. Allowed roles: admin (first-time only), consumer"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/api/auth/register", "", tc.body)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.msg, decode(t, w)["error"])
		})
	}

	w := f.do(t, http.MethodPost, "/api/auth/register", "", gin.H{"username": "x", "email": "not-an-email", "password": "p", "role": "consumer"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthRequired(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Access token required", decode(t, w)["error"])

	w = f.do(t, http.MethodGet, "/api/auth/me", "garbage", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Invalid or expired token", decode(t, w)["error"])
}

func TestUploadListAndServe(t *testing.T) {
	f := newFixture(t)
	token := f.token(t, "carol")

	w := f.upload(t, token, map[string]string{"title": "Sunset", "location": "Lisbon"}, "sunset.png", pngBytes)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "Photo uploaded and optimized successfully", body["message"])
	photo := body["photo"].(map[string]any)
	assert.Equal(t, "photo", photo["media_type"])
	filePath := photo["file_path"].(string)
	assert.True(t, strings.HasPrefix(filePath, "/uploads/"))

	w = f.do(t, http.MethodGet, filePath, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, pngBytes, w.Body.Bytes())
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = f.do(t, http.MethodGet, "/api/photos?page=1&limit=10", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode(t, w)
	photos := list["photos"].([]any)
	require.Len(t, photos, 1)
	assert.Equal(t, "carol", photos[0].(map[string]any)["creator_username"])
	assert.Equal(t, float64(1), list["pagination"].(map[string]any)["total"])

	w = f.do(t, http.MethodGet, "/api/search?location=lisbon", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	search := decode(t, w)
	assert.Len(t, search["photos"].([]any), 1)
	assert.Equal(t, "lisbon", search["query"].(map[string]any)["location"])
}

func TestUploadRejections(t *testing.T) {
	f := newFixture(t)

	w := f.upload(t, f.token(t, "eve"), map[string]string{"title": "x"}, "a.png", pngBytes)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Creator access required", decode(t, w)["error"])

	creator := f.token(t, "carol")
	w = f.upload(t, creator, map[string]string{"title": "x"}, "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Media file is required", decode(t, w)["error"])

	w = f.upload(t, creator, nil, "a.png", pngBytes)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Title is required", decode(t, w)["error"])

	w = f.upload(t, creator, map[string]string{"title": "x"}, "notes.txt", []byte("plain text, not media"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "Only image")

	w = f.upload(t, creator, map[string]string{"title": "x"}, "huge.png", append(pngBytes, make([]byte, 3<<20)...))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "File size too large. Maximum size is 1MB.", decode(t, w)["error"])

	assert.Equal(t, 0, f.db.PhotoCount())
}

func TestListingCacheInvalidatedByUpload(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/photos", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	w = f.do(t, http.MethodGet, "/api/photos", "", nil)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Empty(t, decode(t, w)["photos"])

	w = f.upload(t, f.token(t, "carol"), map[string]string{"title": "New"}, "n.png", pngBytes)
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(t, http.MethodGet, "/api/photos", "", nil)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Len(t, decode(t, w)["photos"].([]any), 1)
}

func TestDeletePhotoOwnership(t *testing.T) {
	f := newFixture(t)
	w := f.upload(t, f.token(t, "carol"), map[string]string{"title": "Mine"}, "m.png", pngBytes)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["photo"].(map[string]any)["id"].(string)

	w = f.do(t, http.MethodDelete, "/api/photos/"+id, f.token(t, "dave"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "You can only delete your own photos", decode(t, w)["error"])

	w = f.do(t, http.MethodDelete, "/api/photos/"+id, f.token(t, "carol"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Photo deleted successfully", decode(t, w)["message"])

	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	w = f.do(t, http.MethodGet, "/api/photos/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Photo not found", decode(t, w)["error"])
}

func TestMissingFileRendersPlaceholder(t *testing.T) {
	f := newFixture(t)
	w := f.upload(t, f.token(t, "carol"), map[string]string{"title": "Gone"}, "g.png", pngBytes)
	require.Equal(t, http.StatusCreated, w.Code)
	photo := decode(t, w)["photo"].(map[string]any)

	name := strings.TrimPrefix(photo["file_path"].(string), "/uploads/")
	require.NoError(t, os.Remove(filepath.Join(f.dir, name)))

	w = f.do(t, http.MethodGet, "/api/photos/"+photo["id"].(string), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode(t, w)["photo"].(map[string]any)
	assert.Equal(t, true, got["file_missing"])
	assert.Equal(t, "/placeholder/missing-media.svg", got["file_path"])

	w = f.do(t, http.MethodGet, "/placeholder/missing-media.svg", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/svg+xml", w.Header().Get("Content-Type"))

	w = f.do(t, http.MethodGet, "/uploads/"+name, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCommentsFlow(t *testing.T) {
	f := newFixture(t)
	f.db.AddPhoto(models.Photo{ID: "p1", CreatorID: "carol", Title: "A", FilePath: "/uploads/a.png", MediaType: models.MediaTypePhoto})
	eve := f.token(t, "eve")

	w := f.do(t, http.MethodPost, "/api/comments", eve, gin.H{"photo_id": "p1", "content": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Comment content cannot be empty", decode(t, w)["error"])

	w = f.do(t, http.MethodPost, "/api/comments", eve, gin.H{"photo_id": "missing", "content": "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPost, "/api/comments", eve, gin.H{"photo_id": "p1", "content": "lovely"})
	require.Equal(t, http.StatusCreated, w.Code)
	comment := decode(t, w)["comment"].(map[string]any)
	assert.Equal(t, "eve", comment["username"])
	id := comment["id"].(string)

	w = f.do(t, http.MethodPut, "/api/comments/"+id, f.token(t, "carol"), gin.H{"content": "hijack"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "You can only edit your own comments", decode(t, w)["error"])

	w = f.do(t, http.MethodPut, "/api/comments/"+id, eve, gin.H{"content": "really lovely"})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/comments/photo/p1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	comments := decode(t, w)["comments"].([]any)
	require.Len(t, comments, 1)
	assert.Equal(t, "really lovely", comments[0].(map[string]any)["content"])

	w = f.do(t, http.MethodDelete, "/api/comments/"+id, eve, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = f.do(t, http.MethodDelete, "/api/comments/"+id, eve, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRatingsFlow(t *testing.T) {
	f := newFixture(t)
	f.db.AddPhoto(models.Photo{ID: "p1", CreatorID: "carol", Title: "A", FilePath: "/uploads/a.png", MediaType: models.MediaTypePhoto})
	eve := f.token(t, "eve")

	w := f.do(t, http.MethodGet, "/api/ratings/photo/p1/user", eve, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode(t, w)["rating"])

	w = f.do(t, http.MethodPost, "/api/ratings", eve, gin.H{"photo_id": "p1", "rating": 6})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Rating must be a number between 1 and 5", decode(t, w)["error"])

	w = f.do(t, http.MethodPost, "/api/ratings", eve, gin.H{"photo_id": "p1", "rating": "abc"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Rating must be a number between 1 and 5", decode(t, w)["error"])

	w = f.do(t, http.MethodPost, "/api/ratings", eve, gin.H{"photo_id": "p1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Photo ID and rating are required", decode(t, w)["error"])

	w = f.do(t, http.MethodPost, "/api/ratings", eve, gin.H{"photo_id": "p1", "rating": 4})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Rating added successfully", decode(t, w)["message"])

	w = f.do(t, http.MethodPost, "/api/ratings", eve, gin.H{"photo_id": "p1", "rating": "5"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Rating updated successfully", decode(t, w)["message"])

	w = f.do(t, http.MethodPost, "/api/ratings", f.token(t, "dave"), gin.H{"photo_id": "p1", "rating": 2})
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(t, http.MethodGet, "/api/ratings/photo/p1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["ratings"].([]any), 2)
	stats := body["stats"].(map[string]any)
	assert.Equal(t, 3.5, stats["average"])
	assert.Equal(t, float64(2), stats["count"])

	w = f.do(t, http.MethodDelete, "/api/ratings/photo/p1", eve, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = f.do(t, http.MethodDelete, "/api/ratings/photo/p1", eve, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Rating not found", decode(t, w)["error"])
}

func TestAdminRoutes(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/admin/users", f.token(t, "carol"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Admin access required", decode(t, w)["error"])

	admin := f.token(t, "admin")
	w = f.do(t, http.MethodPost, "/api/admin/create-creator", admin, gin.H{"username": "gail", "email": "gail@x.com", "password": "pw"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "creator", decode(t, w)["user"].(map[string]any)["role"])

	w = f.do(t, http.MethodPost, "/api/admin/create-creator", admin, gin.H{"username": "gail", "email": "other@x.com", "password": "pw"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Username or email already exists", decode(t, w)["error"])

	w = f.do(t, http.MethodGet, "/api/admin/users", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["users"].([]any), 5)
}

func TestServeFileRejectsTraversal(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/uploads/..%2Fsecret", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
