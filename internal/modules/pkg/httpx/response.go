package httpx

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// SendSuccess writes data as the top-level JSON body. The API does not wrap
// successful payloads in an envelope.
func SendSuccess(c echo.Context, code int, data any) error {
	if data == nil {
		return c.NoContent(code)
	}
	return c.JSON(code, data)
}

// SendNoContent answers 204, which is how logout and delete calls succeed
func SendNoContent(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}
