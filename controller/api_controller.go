package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// apiResponse is the envelope every /api/match endpoint returns, per
// spec §6: {success, message[, stats]}.
type apiResponse struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Stats   []billMatchStatsDTO `json:"stats,omitempty"`
}

func respondOK(c echo.Context, message string, stats []billMatchStatsDTO) error {
	return c.JSON(http.StatusOK, apiResponse{Success: true, Message: message, Stats: stats})
}

func respondFailure(c echo.Context, status int, message string) error {
	return c.JSON(status, apiResponse{Success: false, Message: message})
}
