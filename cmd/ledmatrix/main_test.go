package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coreman2200/ledmatrix/internal/preview"
)

func TestWithCORS(t *testing.T) {
	called := false
	h := withCORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/control", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.False(t, called)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.True(t, called)
}

func TestNewPreview(t *testing.T) {
	_, ok := newPreview("text", 8).(*preview.Text)
	assert.True(t, ok)
	_, ok = newPreview("strip", 8).(*preview.Strip)
	assert.True(t, ok)
	assert.Nil(t, newPreview("none", 8))
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "GPIO4", firstNonEmpty("GPIO4", "GPIO14"))
	assert.Equal(t, "GPIO14", firstNonEmpty("", "GPIO14"))
}
