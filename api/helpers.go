package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/jameskwon07/deploymaster/store"
	"github.com/labstack/echo/v4"
)

// storeError maps store errors to HTTP responses.
func (h *Handler) storeError(c echo.Context, err error, internalMsg, notFoundMsg string) error {
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": notFoundMsg})
	}
	log.Printf("ERROR: %s: %v", internalMsg, err)
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": internalMsg})
}
