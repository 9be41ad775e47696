package api

import (
	"net/http"
	"strconv"

	"github.com/Domenick1991/trainbooking/internal/auth"
	"github.com/Domenick1991/trainbooking/internal/domain"
	"github.com/Domenick1991/trainbooking/internal/logger"
	"github.com/Domenick1991/trainbooking/internal/service/booking"
	"github.com/gin-gonic/gin"
)

const idempotencyHeader = "Idempotency-Key"

type BookingHandler struct {
	service booking.BookingUseCase
	log     *logger.Logger
}

type createBookingRequest struct {
	TrainID     int64  `json:"train_id"`
	BookingDate string `json:"booking_date"`
	SeatNumber  int    `json:"seat_number"`
}

func NewBookingHandler(service booking.BookingUseCase, log *logger.Logger) *BookingHandler {
	return &BookingHandler{service: service, log: log}
}

// Register expects a group already guarded by auth.JWTAuth.
func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.create)
	router.GET("/my-bookings", h.listMine)
	router.GET("/:id", h.get)
	router.DELETE("/:id", h.cancel)
}

func (h *BookingHandler) create(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthenticated", Code: "UNAUTHORIZED"})
		return
	}

	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	date, err := domain.ParseDay(req.BookingDate)
	if err != nil {
		badRequest(c, "booking_date must be YYYY-MM-DD")
		return
	}

	b, err := h.service.CreateBooking(c.Request.Context(), booking.CreateBookingInput{
		UserID:         userID,
		TrainID:        req.TrainID,
		Date:           date,
		SeatNumber:     req.SeatNumber,
		IdempotencyKey: c.GetHeader(idempotencyHeader),
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, newBookingResponse(b))
}

func (h *BookingHandler) listMine(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthenticated", Code: "UNAUTHORIZED"})
		return
	}

	bookings, err := h.service.ListMyBookings(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	resp := make([]bookingResponse, 0, len(bookings))
	for i := range bookings {
		resp = append(resp, newBookingResponse(&bookings[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *BookingHandler) get(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthenticated", Code: "UNAUTHORIZED"})
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid id")
		return
	}

	b, err := h.service.GetBooking(c.Request.Context(), userID, id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, newBookingResponse(b))
}

func (h *BookingHandler) cancel(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthenticated", Code: "UNAUTHORIZED"})
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid id")
		return
	}

	if err := h.service.CancelBooking(c.Request.Context(), userID, id); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "booking cancelled", "id": id})
}
