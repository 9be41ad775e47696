package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Domenick1991/trainbooking/internal/auth"
	"github.com/Domenick1991/trainbooking/internal/domain"
	"github.com/Domenick1991/trainbooking/internal/logger"
	"github.com/Domenick1991/trainbooking/internal/service/booking"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockBookingUseCase is a mock implementation of booking.BookingUseCase
type MockBookingUseCase struct {
	mock.Mock
}

func (m *MockBookingUseCase) CreateBooking(ctx context.Context, input booking.CreateBookingInput) (*domain.Booking, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) CancelBooking(ctx context.Context, userID, bookingID int64) error {
	args := m.Called(ctx, userID, bookingID)
	return args.Error(0)
}

func (m *MockBookingUseCase) ListMyBookings(ctx context.Context, userID int64) ([]domain.Booking, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) GetBooking(ctx context.Context, userID, bookingID int64) (*domain.Booking, error) {
	args := m.Called(ctx, userID, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

var day = time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)

func sampleBooking() *domain.Booking {
	return &domain.Booking{
		ID:          1,
		UserID:      5,
		TrainID:     2,
		BookingDate: day,
		SeatNumber:  10,
		Status:      domain.BookingStatusConfirmed,
		CreatedAt:   time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC),
		Train:       &domain.Train{ID: 2, TrainNumber: "TR002", Name: "Coastal", SourceStation: "Boston", DestinationStation: "New York", TotalSeats: 80},
		User:        &domain.UserSummary{Username: "alice", Email: "alice@railway.test"},
	}
}

func newTestContext(method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func TestBookingHandler_create(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService, logger.Discard())

	body, _ := json.Marshal(createBookingRequest{TrainID: 2, BookingDate: "2026-11-01", SeatNumber: 10})
	c, w := newTestContext(http.MethodPost, "/bookings", body)
	c.Request.Header.Set(idempotencyHeader, "key-1")
	auth.SetUserID(c, 5)

	input := booking.CreateBookingInput{UserID: 5, TrainID: 2, Date: day, SeatNumber: 10, IdempotencyKey: "key-1"}
	mockService.On("CreateBooking", c.Request.Context(), input).Return(sampleBooking(), nil)

	handler.create(c)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response bookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, int64(1), response.ID)
	assert.Equal(t, "2026-11-01", response.BookingDate)
	assert.Equal(t, "confirmed", response.Status)
	require.NotNil(t, response.Train)
	assert.Equal(t, "TR002", response.Train.TrainNumber)
	require.NotNil(t, response.User)
	assert.Equal(t, "alice@railway.test", response.User.Email)

	mockService.AssertExpectations(t)
}

func TestBookingHandler_create_BadDate(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService, logger.Discard())

	c, w := newTestContext(http.MethodPost, "/bookings", []byte(`{"train_id":2,"booking_date":"01/11/2026","seat_number":1}`))
	auth.SetUserID(c, 5)

	handler.create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
}

func TestBookingHandler_create_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: seat 0", domain.ErrInvalidRequest), http.StatusBadRequest, "INVALID_REQUEST"},
		{domain.ErrUnknownScheduleDate, http.StatusNotFound, "UNKNOWN_SCHEDULE_DATE"},
		{domain.ErrSoldOut, http.StatusConflict, "SOLD_OUT"},
		{domain.ErrSeatTaken, http.StatusConflict, "SEAT_TAKEN"},
		{domain.ErrConflict, http.StatusConflict, "CONFLICT"},
		{domain.ErrTimeout, http.StatusServiceUnavailable, "TIMEOUT"},
		{fmt.Errorf("pool closed"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			mockService := &MockBookingUseCase{}
			handler := NewBookingHandler(mockService, logger.Discard())

			c, w := newTestContext(http.MethodPost, "/bookings", []byte(`{"train_id":2,"booking_date":"2026-11-01","seat_number":1}`))
			auth.SetUserID(c, 5)
			mockService.On("CreateBooking", mock.Anything, mock.Anything).Return(nil, tc.err)

			handler.create(c)

			assert.Equal(t, tc.status, w.Code)
			var resp errorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tc.code, resp.Code)
		})
	}
}

func TestBookingHandler_create_Unauthenticated(t *testing.T) {
	handler := NewBookingHandler(&MockBookingUseCase{}, logger.Discard())
	c, w := newTestContext(http.MethodPost, "/bookings", []byte(`{}`))

	handler.create(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBookingHandler_listMine(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService, logger.Discard())

	c, w := newTestContext(http.MethodGet, "/bookings/my-bookings", nil)
	auth.SetUserID(c, 5)
	mockService.On("ListMyBookings", c.Request.Context(), int64(5)).Return([]domain.Booking{*sampleBooking()}, nil)

	handler.listMine(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response []bookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Len(t, response, 1)
}

func TestBookingHandler_get(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService, logger.Discard())

	c, w := newTestContext(http.MethodGet, "/bookings/3", nil)
	c.Params = gin.Params{{Key: "id", Value: "3"}}
	auth.SetUserID(c, 5)
	mockService.On("GetBooking", c.Request.Context(), int64(5), int64(3)).Return(nil, domain.ErrNotFound)

	handler.get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBookingHandler_cancel(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService, logger.Discard())

	c, w := newTestContext(http.MethodDelete, "/bookings/1", nil)
	c.Params = gin.Params{{Key: "id", Value: "1"}}
	auth.SetUserID(c, 5)
	mockService.On("CancelBooking", c.Request.Context(), int64(5), int64(1)).Return(nil)

	handler.cancel(c)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestBookingHandler_cancel_Forbidden(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService, logger.Discard())

	c, w := newTestContext(http.MethodDelete, "/bookings/1", nil)
	c.Params = gin.Params{{Key: "id", Value: "1"}}
	auth.SetUserID(c, 6)
	mockService.On("CancelBooking", c.Request.Context(), int64(6), int64(1)).Return(domain.ErrForbidden)

	handler.cancel(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestBookingHandler_cancel_InvalidID(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService, logger.Discard())

	c, w := newTestContext(http.MethodDelete, "/bookings/abc", nil)
	c.Params = gin.Params{{Key: "id", Value: "abc"}}
	auth.SetUserID(c, 5)

	handler.cancel(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "CancelBooking", mock.Anything, mock.Anything, mock.Anything)
}
