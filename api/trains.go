package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Domenick1991/trainbooking/internal/domain"
	"github.com/Domenick1991/trainbooking/internal/logger"
	"github.com/Domenick1991/trainbooking/internal/service/trains"
	"github.com/gin-gonic/gin"
)

type TrainHandler struct {
	service trains.TrainUseCase
	log     *logger.Logger
}

func NewTrainHandler(service trains.TrainUseCase, log *logger.Logger) *TrainHandler {
	return &TrainHandler{service: service, log: log}
}

// Register mounts the public catalog reads. admin guards train creation.
func (h *TrainHandler) Register(router *gin.RouterGroup, admin gin.HandlerFunc) {
	router.POST("", admin, h.create)
	router.GET("", h.list)
	router.GET("/search", h.search)
	router.GET("/:id", h.get)
	router.GET("/:id/availability", h.availability)
}

func (h *TrainHandler) create(c *gin.Context) {
	var req trains.CreateTrainInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	created, err := h.service.CreateTrain(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, newTrainScheduleResponse(*created))
}

func (h *TrainHandler) list(c *gin.Context) {
	list, err := h.service.ListTrains(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	resp := make([]trainResponse, 0, len(list))
	for _, t := range list {
		resp = append(resp, newTrainResponse(t))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *TrainHandler) search(c *gin.Context) {
	date, err := domain.ParseDay(c.Query("date"))
	if err != nil {
		badRequest(c, "date must be YYYY-MM-DD")
		return
	}

	found, err := h.service.SearchTrains(c.Request.Context(), c.Query("source"), c.Query("destination"), date)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	resp := make([]trainScheduleResponse, 0, len(found))
	for _, s := range found {
		resp = append(resp, newTrainScheduleResponse(s))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *TrainHandler) get(c *gin.Context) {
	id, ok := trainID(c)
	if !ok {
		return
	}
	schedule, err := h.service.GetTrain(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, newTrainScheduleResponse(*schedule))
}

// availability answers either ?date= with one counter or ?from=&to= with a list.
func (h *TrainHandler) availability(c *gin.Context) {
	id, ok := trainID(c)
	if !ok {
		return
	}

	if raw := c.Query("date"); raw != "" {
		date, err := domain.ParseDay(raw)
		if err != nil {
			badRequest(c, "date must be YYYY-MM-DD")
			return
		}
		a, err := h.service.GetAvailability(c.Request.Context(), id, date)
		if err != nil {
			writeError(c, h.log, err)
			return
		}
		c.JSON(http.StatusOK, newAvailabilityResponse(*a))
		return
	}

	from, ok := optionalDay(c, "from")
	if !ok {
		return
	}
	to, ok := optionalDay(c, "to")
	if !ok {
		return
	}
	list, err := h.service.GetAvailabilityRange(c.Request.Context(), id, from, to)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, newAvailabilityList(list))
}

func trainID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

func optionalDay(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, true
	}
	day, err := domain.ParseDay(raw)
	if err != nil {
		badRequest(c, name+" must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return day, true
}
