package errors

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hivebridge/hivebridge/pkg/models"
	"github.com/hivebridge/hivebridge/pkg/quota"
	"github.com/hivebridge/hivebridge/pkg/referral"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newContext creates an echo.Context backed by an httptest.NewRecorder for the
// given HTTP method and path. It returns both the context and the recorder so
// callers can inspect the written response.
func newContext(method, path string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

// parseBody is a small helper that unmarshals the recorder body into an
// ErrorResponse, failing the test on any JSON error.
func parseBody(t *testing.T, rec *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// captureLog redirects the standard logger to a buffer for the duration of fn
// and returns everything that was logged.
func captureLog(fn func()) string {
	var buf bytes.Buffer
	orig := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(orig)
	fn()
	return buf.String()
}

func TestValidationError_NoInternalDetails(t *testing.T) {
	internalMsg := "pq: duplicate key value violates unique constraint"
	c, rec := newContext(http.MethodPost, "/api/v1/auth/register")
	_ = ValidationError(c, errors.New(internalMsg))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, rec.Body.String(), internalMsg)
	assert.NotContains(t, rec.Body.String(), "pq:")
}

func TestValidationError_LogsInternalError(t *testing.T) {
	internalMsg := "field validation failed: email"
	logged := captureLog(func() {
		c, _ := newContext(http.MethodPost, "/api/v1/auth/register")
		_ = ValidationError(c, errors.New(internalMsg))
	})

	assert.Contains(t, logged, "[VALIDATION ERROR]")
	assert.Contains(t, logged, internalMsg)
	assert.Contains(t, logged, "/api/v1/auth/register")
}

func TestInternalError_NoInternalDetails(t *testing.T) {
	internalMsg := "goroutine 1 [running]: main.go:42 panic: nil pointer"
	c, rec := newContext(http.MethodGet, "/api/v1/referrals/stats")
	_ = InternalError(c, errors.New(internalMsg))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "goroutine")
	assert.NotContains(t, rec.Body.String(), "panic")
}

func TestConflictError_MessagePassedThrough(t *testing.T) {
	c, rec := newContext(http.MethodPost, "/api/v1/auth/register")
	_ = ConflictError(c, "User already exists")

	resp := parseBody(t, rec)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", resp.Error)
	assert.Equal(t, "User already exists", resp.Message)
}

func TestAllErrors_StatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		call       func(echo.Context) error
		wantStatus int
		wantError  string
	}{
		{
			name:       "ValidationError → 400",
			call:       func(c echo.Context) error { return ValidationError(c, errors.New("bad")) },
			wantStatus: http.StatusBadRequest,
			wantError:  "validation_error",
		},
		{
			name:       "DatabaseError → 500",
			call:       func(c echo.Context) error { return DatabaseError(c, errors.New("db")) },
			wantStatus: http.StatusInternalServerError,
			wantError:  "database_error",
		},
		{
			name:       "InternalError → 500",
			call:       func(c echo.Context) error { return InternalError(c, errors.New("oops")) },
			wantStatus: http.StatusInternalServerError,
			wantError:  "internal_error",
		},
		{
			name:       "UnauthorizedError → 401",
			call:       func(c echo.Context) error { return UnauthorizedError(c, "reason") },
			wantStatus: http.StatusUnauthorized,
			wantError:  "unauthorized",
		},
		{
			name:       "ForbiddenError → 403",
			call:       func(c echo.Context) error { return ForbiddenError(c, "reason") },
			wantStatus: http.StatusForbidden,
			wantError:  "forbidden",
		},
		{
			name:       "NotFoundError → 404",
			call:       func(c echo.Context) error { return NotFoundError(c, "referral") },
			wantStatus: http.StatusNotFound,
			wantError:  "not_found",
		},
		{
			name:       "ConflictError → 409",
			call:       func(c echo.Context) error { return ConflictError(c, "exists") },
			wantStatus: http.StatusConflict,
			wantError:  "conflict",
		},
		{
			name:       "GoneError → 410",
			call:       func(c echo.Context) error { return GoneError(c, "expired") },
			wantStatus: http.StatusGone,
			wantError:  "expired",
		},
		{
			name:       "TooManyRequestsError → 429",
			call:       func(c echo.Context) error { return TooManyRequestsError(c, "quota") },
			wantStatus: http.StatusTooManyRequests,
			wantError:  "quota_exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newContext(http.MethodGet, "/test")
			err := tt.call(c)
			assert.NoError(t, err)
			assert.Equal(t, tt.wantStatus, rec.Code)

			resp := parseBody(t, rec)
			assert.Equal(t, tt.wantError, resp.Error)
			assert.NotEmpty(t, resp.Message)
			assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
		})
	}
}

func TestDomainError_Mapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"invalid format", referral.ErrInvalidFormat, http.StatusBadRequest, "invalid_code_format"},
		{"code not found", referral.ErrCodeNotFound, http.StatusNotFound, "code_not_found"},
		{"referrer missing", referral.ErrReferrerMissing, http.StatusNotFound, "referrer_missing"},
		{"already referred", referral.ErrAlreadyReferred, http.StatusConflict, "conflict"},
		{"self referral", referral.ErrSelfReferral, http.StatusUnprocessableEntity, "self_referral"},
		{"not found or completed", referral.ErrNotFoundOrCompleted, http.StatusNotFound, "not_found"},
		{"expired", referral.ErrExpired, http.StatusGone, "expired"},
		{"quota exceeded", quota.ErrQuotaExceeded, http.StatusTooManyRequests, "quota_exceeded"},
		{"unknown", errors.New("surprise"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newContext(http.MethodPost, "/api/v1/referrals/apply")
			require.NoError(t, DomainError(c, tt.err))
			assert.Equal(t, tt.wantStatus, rec.Code)

			resp := parseBody(t, rec)
			assert.Equal(t, tt.wantError, resp.Error)
		})
	}
}

func TestDomainError_WrappedErrors(t *testing.T) {
	c, rec := newContext(http.MethodPost, "/api/v1/referrals/apply")
	wrapped := errors.Join(errors.New("context"), referral.ErrAlreadyReferred)

	require.NoError(t, DomainError(c, wrapped))
	assert.Equal(t, http.StatusConflict, rec.Code)
}
