package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/trainbooking/internal/domain"
	"github.com/Domenick1991/trainbooking/internal/logger"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errorStatuses = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrInvalidRequest, http.StatusBadRequest, "INVALID_REQUEST"},
	{domain.ErrUnknownScheduleDate, http.StatusNotFound, "UNKNOWN_SCHEDULE_DATE"},
	{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{domain.ErrSoldOut, http.StatusConflict, "SOLD_OUT"},
	{domain.ErrSeatTaken, http.StatusConflict, "SEAT_TAKEN"},
	{domain.ErrConflict, http.StatusConflict, "CONFLICT"},
	{domain.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
	{domain.ErrTimeout, http.StatusServiceUnavailable, "TIMEOUT"},
}

// writeError maps a failure kind to its status code. Anything unclassified is
// logged and reported as a 500 without details.
func writeError(c *gin.Context, log *logger.Logger, err error) {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			c.JSON(e.status, errorResponse{Error: err.Error(), Code: e.code})
			return
		}
	}
	log.Error("API", c.Request.Method+" "+c.Request.URL.Path+": "+err.Error())
	c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error", Code: "INTERNAL"})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: msg, Code: "INVALID_REQUEST"})
}
