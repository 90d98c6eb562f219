package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/isdelr/calcapi/internal/auth"
	"github.com/isdelr/calcapi/internal/database"
	"github.com/isdelr/calcapi/internal/models"
	"github.com/isdelr/calcapi/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type tokenBody struct {
	Message     string  `json:"message"`
	AccessToken string  `json:"access_token"`
	TokenType   string  `json:"token_type"`
	ExpiresIn   int64   `json:"expires_in"`
	User        userDTO `json:"user"`
}

type userDTO struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	IsActive  bool   `json:"is_active"`
}

type calcBody struct {
	ID     string    `json:"id"`
	UserID string    `json:"user_id"`
	Type   string    `json:"type"`
	Inputs []float64 `json:"inputs"`
	Result *float64  `json:"result"`
}

type errBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func newTestRouter(t *testing.T, rateLimit string) (http.Handler, *gorm.DB) {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"), database.Options{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	issuer := auth.NewTokenIssuer("test-secret", "calcapi", 30*time.Minute)
	sqlDB, err := db.DB()
	require.NoError(t, err)

	router, err := NewRouter(RouterConfig{
		Users:          services.NewUserService(db, auth.NewPasswordHasher(bcrypt.MinCost), issuer),
		Calculations:   services.NewCalculationService(db),
		Tokens:         issuer,
		DB:             sqlDB,
		AuthRateLimit:  rateLimit,
		MetricsEnabled: true,
		Development:    true,
	})
	require.NoError(t, err)
	return router, db
}

func do(t *testing.T, h http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func registerPayload(username string) map[string]string {
	return map[string]string{
		"first_name":       "Test",
		"last_name":        "User",
		"email":            username + "@example.com",
		"username":         username,
		"password":         "Secret123!",
		"confirm_password": "Secret123!",
	}
}

func register(t *testing.T, h http.Handler, username string) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/auth/register", "", registerPayload(username))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[tokenBody](t, rec).AccessToken
}

func TestScenario(t *testing.T) {
	h, _ := newTestRouter(t, "")

	rec := do(t, h, http.MethodPost, "/auth/register", "", registerPayload("alice"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reg := decode[tokenBody](t, rec)
	assert.NotEmpty(t, reg.AccessToken)
	assert.Equal(t, "bearer", reg.TokenType)
	assert.Equal(t, int64(1800), reg.ExpiresIn)
	assert.Equal(t, "alice", reg.User.Username)
	assert.True(t, reg.User.IsActive)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = do(t, h, http.MethodPost, "/auth/login", "", map[string]string{"identifier": "alice", "password": "Secret123!"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	login := decode[tokenBody](t, rec)
	require.NotEmpty(t, login.AccessToken)
	assert.Equal(t, reg.User.ID, login.User.ID)
	token := login.AccessToken

	rec = do(t, h, http.MethodPost, "/calculations", token, map[string]interface{}{"type": "addition", "inputs": []float64{5, 7}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sum := decode[calcBody](t, rec)
	require.NotNil(t, sum.Result)
	assert.Equal(t, 12.0, *sum.Result)
	assert.Equal(t, reg.User.ID, sum.UserID)

	rec = do(t, h, http.MethodPost, "/calculations", token, map[string]interface{}{"type": "Multiplication", "inputs": []float64{2, 4}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	product := decode[calcBody](t, rec)
	assert.Equal(t, "multiplication", product.Type)

	rec = do(t, h, http.MethodPut, "/calculations/"+product.ID, token, map[string]interface{}{"inputs": []float64{3, 5}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[calcBody](t, rec)
	require.NotNil(t, updated.Result)
	assert.Equal(t, 15.0, *updated.Result)
	assert.Equal(t, []float64{3, 5}, updated.Inputs)

	rec = do(t, h, http.MethodGet, "/calculations", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]calcBody](t, rec), 2)

	rec = do(t, h, http.MethodDelete, "/calculations/"+product.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/calculations/"+product.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[errBody](t, rec).Code)
}

func TestRegister_Rejections(t *testing.T) {
	h, _ := newTestRouter(t, "")
	register(t, h, "alice")

	dupEmail := registerPayload("alice2")
	dupEmail["email"] = "ALICE@example.com"

	mismatch := registerPayload("carol")
	mismatch["confirm_password"] = "Different123!"

	shortPassword := registerPayload("dave")
	shortPassword["password"] = "short"
	shortPassword["confirm_password"] = "short"

	badEmail := registerPayload("erin")
	badEmail["email"] = "not-an-email"

	shortUsername := registerPayload("fx")

	emailUsername := registerPayload("gina")
	emailUsername["username"] = "alice@example.com"

	tests := []struct {
		name string
		body interface{}
		code string
	}{
		{"duplicate username", registerPayload("alice"), "duplicate_identity"},
		{"duplicate email", dupEmail, "duplicate_identity"},
		{"password mismatch", mismatch, "invalid_request"},
		{"short password", shortPassword, "invalid_request"},
		{"bad email", badEmail, "invalid_request"},
		{"short username", shortUsername, "invalid_request"},
		{"username with @", emailUsername, "invalid_request"},
		{"unknown field", `{"username":"zed","is_admin":true}`, "invalid_request"},
		{"malformed json", `{"username":`, "invalid_request"},
		{"empty body", "", "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/auth/register", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[errBody](t, rec).Code)
		})
	}
}

func TestLogin(t *testing.T) {
	h, _ := newTestRouter(t, "")
	register(t, h, "alice")

	t.Run("by email", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/auth/login", "", map[string]string{"identifier": "alice@example.com", "password": "Secret123!"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "alice", decode[tokenBody](t, rec).User.Username)
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/auth/login", "", map[string]string{"identifier": "alice", "password": "nope-nope"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid_credentials", decode[errBody](t, rec).Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/auth/login", "", map[string]string{"identifier": "mallory", "password": "Secret123!"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid_credentials", decode[errBody](t, rec).Code)
	})

	t.Run("malformed", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/auth/login", "", map[string]string{"identifier": "al"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_request", decode[errBody](t, rec).Code)
	})
}

func TestCalculations_RequireToken(t *testing.T) {
	h, _ := newTestRouter(t, "")

	rec := do(t, h, http.MethodGet, "/calculations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decode[errBody](t, rec).Code)

	rec = do(t, h, http.MethodGet, "/calculations", "not.a.jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_token", decode[errBody](t, rec).Code)

	foreign := auth.NewTokenIssuer("other-secret", "calcapi", time.Minute)
	token, _, err := foreign.IssueDefault("someone")
	require.NoError(t, err)
	rec = do(t, h, http.MethodGet, "/calculations", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCalculations_InactiveUser(t *testing.T) {
	h, db := newTestRouter(t, "")
	token := register(t, h, "alice")

	require.NoError(t, db.Model(&models.User{}).Where("username = ?", "alice").Update("is_active", false).Error)

	rec := do(t, h, http.MethodGet, "/calculations", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "inactive_user", decode[errBody](t, rec).Code)
}

func TestCalculations_Isolation(t *testing.T) {
	h, _ := newTestRouter(t, "")
	alice := register(t, h, "alice")
	bob := register(t, h, "bob")

	rec := do(t, h, http.MethodPost, "/calculations", alice, map[string]interface{}{"type": "subtraction", "inputs": []float64{10, 3, 2}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	calc := decode[calcBody](t, rec)
	require.NotNil(t, calc.Result)
	assert.Equal(t, 5.0, *calc.Result)

	rec = do(t, h, http.MethodGet, "/calculations", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rec = do(t, h, method, "/calculations/"+calc.ID, bob, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, method)
	}
	rec = do(t, h, http.MethodPut, "/calculations/"+calc.ID, bob, map[string]interface{}{"inputs": []float64{1, 1}})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/calculations/"+calc.ID, alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []float64{10, 3, 2}, decode[calcBody](t, rec).Inputs)
}

func TestCalculations_InvalidInput(t *testing.T) {
	h, _ := newTestRouter(t, "")
	token := register(t, h, "alice")

	tests := []struct {
		name string
		body interface{}
		code string
	}{
		{"unsupported type", map[string]interface{}{"type": "modulus", "inputs": []float64{1, 2}}, "unsupported_type"},
		{"division by zero", map[string]interface{}{"type": "division", "inputs": []float64{10, 2, 0}}, "division_by_zero"},
		{"one input", map[string]interface{}{"type": "addition", "inputs": []float64{1}}, "invalid_request"},
		{"missing type", map[string]interface{}{"inputs": []float64{1, 2}}, "invalid_request"},
		{"non-numeric input", `{"type":"addition","inputs":[1,"two"]}`, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/calculations", token, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[errBody](t, rec).Code)
		})
	}

	rec := do(t, h, http.MethodPost, "/calculations", token, map[string]interface{}{"type": "division", "inputs": []float64{10, 2}})
	require.Equal(t, http.StatusCreated, rec.Code)
	calc := decode[calcBody](t, rec)

	rec = do(t, h, http.MethodPut, "/calculations/"+calc.ID, token, map[string]interface{}{"inputs": []float64{1, 0}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "division_by_zero", decode[errBody](t, rec).Code)

	rec = do(t, h, http.MethodPut, "/calculations/"+calc.ID, token, map[string]interface{}{"type": "addition", "inputs": []float64{1, 2}})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "type can't be changed")

	rec = do(t, h, http.MethodGet, "/calculations/not-a-uuid", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCalculations_OverflowIsRejected(t *testing.T) {
	h, db := newTestRouter(t, "")
	token := register(t, h, "alice")

	for _, body := range []map[string]interface{}{
		{"type": "multiplication", "inputs": []float64{1e200, 1e200}},
		{"type": "division", "inputs": []float64{1e300, 1e-300}},
	} {
		rec := do(t, h, http.MethodPost, "/calculations", token, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		assert.Equal(t, "result_overflow", decode[errBody](t, rec).Code)
	}

	var stored int64
	require.NoError(t, db.Model(&models.Calculation{}).Count(&stored).Error)
	assert.Zero(t, stored, "nothing is saved")

	rec := do(t, h, http.MethodPost, "/calculations", token, map[string]interface{}{"type": "multiplication", "inputs": []float64{2, 3}})
	require.Equal(t, http.StatusCreated, rec.Code)
	calc := decode[calcBody](t, rec)

	rec = do(t, h, http.MethodPut, "/calculations/"+calc.ID, token, map[string]interface{}{"inputs": []float64{1e200, 1e200}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "result_overflow", decode[errBody](t, rec).Code)

	rec = do(t, h, http.MethodGet, "/calculations", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]calcBody](t, rec)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Result)
	assert.Equal(t, 6.0, *list[0].Result)
}

func TestAuthRateLimit(t *testing.T) {
	h, _ := newTestRouter(t, "2-M")

	for i := 0; i < 2; i++ {
		rec := do(t, h, http.MethodPost, "/auth/login", "", map[string]string{"identifier": "nobody", "password": "x"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := do(t, h, http.MethodPost, "/auth/login", "", map[string]string{"identifier": "nobody", "password": "x"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", decode[errBody](t, rec).Code)
}

func TestInvalidRateLimit(t *testing.T) {
	_, err := NewRouter(RouterConfig{AuthRateLimit: "lots"})
	assert.Error(t, err)
}

func TestHealthAndMetrics(t *testing.T) {
	h, _ := newTestRouter(t, "")

	rec := do(t, h, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"database":"ok"}}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = do(t, h, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "calcapi_http_requests_total"))
}
