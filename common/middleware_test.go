package common

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestConditionalHeadersExtractsAndUnquotes(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/db/doc1", nil)
	req.Header.Set("If-Match", `"1-abc"`)
	req.Header.Set("If-None-Match", "2-def")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var gotMatch, gotNoneMatch string
	handler := ConditionalHeaders(func(c echo.Context) error {
		gotMatch = IfMatch(c)
		gotNoneMatch = IfNoneMatch(c)
		return nil
	})

	assert.NoError(t, handler(c))
	assert.Equal(t, "1-abc", gotMatch)
	assert.Equal(t, "2-def", gotNoneMatch)
}

func TestStandardHeadersAlwaysSet(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := StandardHeaders(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	assert.NoError(t, handler(c))
	assert.Equal(t, "must-revalidate", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "CouchDB to MongoDB Emulator Proxy", rec.Header().Get("Server"))
}
