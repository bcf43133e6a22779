package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHandleHealth_OK(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	HandleHealth(pingerFunc(func(context.Context) error { return nil })).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandleHealth_NoDatabase(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	HandleHealth(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleHealth_DatabaseDown(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	db := pingerFunc(func(context.Context) error { return errors.New("connection refused") })
	HandleHealth(db).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, codeUnavailable, decodeError(t, rec).Code)
}
