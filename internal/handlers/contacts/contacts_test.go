package contacts_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	authhdl "github.com/mkostiuk/contact_service/internal/handlers/auth"
	"github.com/mkostiuk/contact_service/internal/handlers/contacts"
	mw "github.com/mkostiuk/contact_service/internal/middleware/auth"
	"github.com/mkostiuk/contact_service/internal/models"
	"github.com/mkostiuk/contact_service/internal/service/identity"
	"github.com/mkostiuk/contact_service/internal/service/token"
	"github.com/mkostiuk/contact_service/internal/tokencache"
	httpserver "github.com/mkostiuk/contact_service/internal/transport/http"
)

type testEnv struct {
	E      *echo.Echo
	DB     *gorm.DB
	Tokens *token.Service
}

func newTestEnv(t *testing.T) *testEnv {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Contact{}))

	s := miniredis.RunT(t)
	cache := tokencache.New(redis.NewClient(&redis.Options{Addr: s.Addr()}))
	tokenService := token.NewService(cache, []byte("access-secret"), []byte("refresh-secret"))
	resolver := identity.NewResolver(db, cache, tokenService)

	e := echo.New()
	httpserver.Register(e, &httpserver.Deps{
		AuthHandler:    &authhdl.AuthHandler{DB: db, Tokens: tokenService, Resolver: resolver},
		ContactHandler: &contacts.ContactHandler{DB: db},
		AuthMW:         &mw.Middleware{Resolver: resolver},
	})
	return &testEnv{E: e, DB: db, Tokens: tokenService}
}

// newUser seeds an account and returns a bearer token for it.
func (env *testEnv) newUser(t *testing.T, email string) string {
	t.Helper()
	user := models.User{Email: email, PasswordHash: "irrelevant", Role: "user"}
	require.NoError(t, env.DB.Create(&user).Error)

	access, err := env.Tokens.IssueAccess(email)
	require.NoError(t, err)
	return access
}

func (env *testEnv) do(t *testing.T, method, path string, body any, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	env.E.ServeHTTP(rec, req)
	return rec
}

func contactBody(firstName, email string) map[string]string {
	return map[string]string{
		"first_name": firstName,
		"last_name":  "Doe",
		"email":      email,
		"phone":      "+380501234567",
		"birthday":   "1990-06-15",
	}
}

func (env *testEnv) createContact(t *testing.T, bearer string, body map[string]string) models.Contact {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/api/v1/contacts", body, bearer)
	require.Equal(t, http.StatusCreated, rec.Code)

	var contact models.Contact
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &contact))
	return contact
}

func TestCreateContact(t *testing.T) {
	env := newTestEnv(t)
	bearer := env.newUser(t, "owner@x.com")

	contact := env.createContact(t, bearer, contactBody("Jane", "jane@x.com"))
	require.Equal(t, "Jane", contact.FirstName)
	require.NotZero(t, contact.ID)

	rec := env.do(t, http.MethodPost, "/api/v1/contacts", contactBody("Jane", "jane@x.com"), bearer)
	require.Equal(t, http.StatusConflict, rec.Code)

	// A different owner may hold the same contact email.
	other := env.newUser(t, "other@x.com")
	env.createContact(t, other, contactBody("Jane", "jane@x.com"))
}

func TestCreateContactValidation(t *testing.T) {
	env := newTestEnv(t)
	bearer := env.newUser(t, "owner@x.com")

	body := contactBody("Jane", "jane@x.com")
	body["first_name"] = ""
	rec := env.do(t, http.MethodPost, "/api/v1/contacts", body, bearer)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body = contactBody("Jane", "jane@x.com")
	body["birthday"] = "15.06.1990"
	rec = env.do(t, http.MethodPost, "/api/v1/contacts", body, bearer)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/contacts", contactBody("Jane", "jane@x.com"), "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListContactsPagination(t *testing.T) {
	env := newTestEnv(t)
	bearer := env.newUser(t, "owner@x.com")
	for i := 0; i < 5; i++ {
		env.createContact(t, bearer, contactBody("Jane", fmt.Sprintf("c%d@x.com", i)))
	}

	rec := env.do(t, http.MethodGet, "/api/v1/contacts?skip=2&limit=2", nil, bearer)
	require.Equal(t, http.StatusOK, rec.Code)

	var page []models.Contact
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page, 2)
	require.Equal(t, "c2@x.com", page[0].Email)
	require.Equal(t, "c3@x.com", page[1].Email)
}

func TestContactOwnershipScoping(t *testing.T) {
	env := newTestEnv(t)
	owner := env.newUser(t, "owner@x.com")
	intruder := env.newUser(t, "intruder@x.com")

	contact := env.createContact(t, owner, contactBody("Jane", "jane@x.com"))
	path := fmt.Sprintf("/api/v1/contacts/%d", contact.ID)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, path, nil, owner).Code)
	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, path, nil, intruder).Code)
	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodPut, path, contactBody("Janet", "jane@x.com"), intruder).Code)
	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, path, nil, intruder).Code)

	// The intruder's probing must not have touched the record.
	rec := env.do(t, http.MethodGet, path, nil, owner)
	require.Equal(t, http.StatusOK, rec.Code)
	var stored models.Contact
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stored))
	require.Equal(t, "Jane", stored.FirstName)
}

func TestUpdateContact(t *testing.T) {
	env := newTestEnv(t)
	bearer := env.newUser(t, "owner@x.com")
	contact := env.createContact(t, bearer, contactBody("Jane", "jane@x.com"))

	body := contactBody("Janet", "janet@x.com")
	rec := env.do(t, http.MethodPut, fmt.Sprintf("/api/v1/contacts/%d", contact.ID), body, bearer)
	require.Equal(t, http.StatusOK, rec.Code)

	var updated models.Contact
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	require.Equal(t, "Janet", updated.FirstName)
	require.Equal(t, "janet@x.com", updated.Email)
	require.Equal(t, contact.ID, updated.ID)
}

func TestDeleteContact(t *testing.T) {
	env := newTestEnv(t)
	bearer := env.newUser(t, "owner@x.com")
	contact := env.createContact(t, bearer, contactBody("Jane", "jane@x.com"))
	path := fmt.Sprintf("/api/v1/contacts/%d", contact.ID)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, path, nil, bearer).Code)
	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, path, nil, bearer).Code)
	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, path, nil, bearer).Code)
}

func TestSearchContacts(t *testing.T) {
	env := newTestEnv(t)
	owner := env.newUser(t, "owner@x.com")
	other := env.newUser(t, "other@x.com")

	env.createContact(t, owner, contactBody("Alice", "alice@x.com"))
	env.createContact(t, owner, contactBody("Bob", "bob@x.com"))
	env.createContact(t, other, contactBody("Alice", "alice@elsewhere.com"))

	rec := env.do(t, http.MethodGet, "/api/v1/contacts/search?q=Alice", nil, owner)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Total    int64            `json:"total"`
		Contacts []models.Contact `json:"contacts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, int64(1), resp.Total)
	require.Len(t, resp.Contacts, 1)
	require.Equal(t, "alice@x.com", resp.Contacts[0].Email)

	// Matching by email substring works too.
	rec = env.do(t, http.MethodGet, "/api/v1/contacts/search?q=bob%40", nil, owner)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, int64(1), resp.Total)

	rec = env.do(t, http.MethodGet, "/api/v1/contacts/search", nil, owner)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpcomingBirthdaysEndpoint(t *testing.T) {
	env := newTestEnv(t)
	bearer := env.newUser(t, "owner@x.com")

	now := time.Now()
	soon := contactBody("Soon", "soon@x.com")
	soon["birthday"] = "1990-" + now.AddDate(0, 0, 2).Format("01-02")
	far := contactBody("Far", "far@x.com")
	far["birthday"] = "1990-" + now.AddDate(0, 0, 60).Format("01-02")

	env.createContact(t, bearer, soon)
	env.createContact(t, bearer, far)

	rec := env.do(t, http.MethodGet, "/api/v1/contacts/birthdays", nil, bearer)
	require.Equal(t, http.StatusOK, rec.Code)

	var upcoming []models.Contact
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &upcoming))
	require.Len(t, upcoming, 1)
	require.Equal(t, "soon@x.com", upcoming[0].Email)
}
