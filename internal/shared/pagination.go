package shared

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Page reads limit and offset query params, falling back to defaults on
// missing or invalid values.
func Page(c echo.Context) (limit, offset int) {
	limit = DefaultPageLimit
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 {
		limit = min(v, MaxPageLimit)
	}
	if v, err := strconv.Atoi(c.QueryParam("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}
