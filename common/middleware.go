package common

import (
	"github.com/labstack/echo/v4"
)

// context keys used to thread conditional-request headers from
// middleware to handlers without re-parsing them in every op.
const (
	ctxIfMatch     = "gateway_if_match"
	ctxIfNoneMatch = "gateway_if_none_match"
)

// ConditionalHeaders extracts If-Match and If-None-Match once per request
// and stores them on the Echo context, so handlers never touch
// http.Header directly for these.
func ConditionalHeaders(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Set(ctxIfMatch, unquote(c.Request().Header.Get("If-Match")))
		c.Set(ctxIfNoneMatch, unquote(c.Request().Header.Get("If-None-Match")))
		return next(c)
	}
}

// IfMatch returns the request's unquoted If-Match value, or "".
func IfMatch(c echo.Context) string {
	v, _ := c.Get(ctxIfMatch).(string)
	return v
}

// IfNoneMatch returns the request's unquoted If-None-Match value, or "".
func IfNoneMatch(c echo.Context) string {
	v, _ := c.Get(ctxIfNoneMatch).(string)
	return v
}

// unquote strips the double quotes ETag-style conditional headers are
// conventionally wrapped in ("1-abc" -> 1-abc); couch clients send both
// quoted and bare forms, so a value without quotes passes through as-is.
func unquote(v string) string {
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		return v[1 : len(v)-1]
	}
	return v
}

// StandardHeaders sets the two headers every gateway response carries,
// regardless of outcome: Cache-Control: must-revalidate and the server
// banner.
func StandardHeaders(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set("Cache-Control", "must-revalidate")
		c.Response().Header().Set("Server", "CouchDB to MongoDB Emulator Proxy")
		return next(c)
	}
}
