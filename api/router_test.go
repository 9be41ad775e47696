package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Domenick1991/trainbooking/internal/auth"
	"github.com/Domenick1991/trainbooking/internal/domain"
	"github.com/Domenick1991/trainbooking/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "router-secret"
	testAdminKey = "router-admin"
)

func newTestRouter(bookings *MockBookingUseCase, trainsSvc *MockTrainUseCase, checks map[string]HealthCheck) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(RouterConfig{
		Bookings:    bookings,
		Trains:      trainsSvc,
		Log:         logger.Discard(),
		JWTSecret:   testSecret,
		AdminAPIKey: testAdminKey,
		Checks:      checks,
	})
}

func TestRouter_Health(t *testing.T) {
	r := newTestRouter(&MockBookingUseCase{}, &MockTrainUseCase{}, map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	r = newTestRouter(&MockBookingUseCase{}, &MockTrainUseCase{}, map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "degraded")
}

func TestRouter_BookingsRequireToken(t *testing.T) {
	bookings := &MockBookingUseCase{}
	r := newTestRouter(bookings, &MockTrainUseCase{}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bookings/my-bookings", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := auth.IssueToken(5, testSecret, time.Hour)
	require.NoError(t, err)
	bookings.On("ListMyBookings", mock.Anything, int64(5)).Return([]domain.Booking{}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/bookings/my-bookings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(requestIDHeader, "req-42")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-42", w.Header().Get(requestIDHeader))
	bookings.AssertExpectations(t)
}

func TestRouter_CreateTrainRequiresAdminKey(t *testing.T) {
	trainsSvc := &MockTrainUseCase{}
	r := newTestRouter(&MockBookingUseCase{}, trainsSvc, nil)
	body := []byte(`{"train_number":"TR1","train_name":"n","source_station":"A","destination_station":"B","total_seats":1}`)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/trains", bytes.NewReader(body)))
	assert.Equal(t, http.StatusForbidden, w.Code)
	trainsSvc.AssertNotCalled(t, "CreateTrain", mock.Anything, mock.Anything)

	trainsSvc.On("CreateTrain", mock.Anything, mock.Anything).Return(&domain.TrainSchedule{Train: domain.Train{ID: 1}}, nil).Once()
	req := httptest.NewRequest(http.MethodPost, "/trains", bytes.NewReader(body))
	req.Header.Set(auth.AdminKeyHeader, testAdminKey)
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRouter_StaticRoutesWinOverID(t *testing.T) {
	trainsSvc := &MockTrainUseCase{}
	r := newTestRouter(&MockBookingUseCase{}, trainsSvc, nil)
	trainsSvc.On("ListTrains", mock.Anything).Return([]domain.Train{{ID: 1, TrainNumber: "TR001"}}, nil).Once()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/trains", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "TR001")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/trains/search?source=A&destination=B", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
