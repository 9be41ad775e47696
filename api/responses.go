package api

import (
	"time"

	"github.com/Domenick1991/trainbooking/internal/domain"
)

type trainResponse struct {
	ID                 int64  `json:"id"`
	TrainNumber        string `json:"train_number"`
	Name               string `json:"train_name"`
	SourceStation      string `json:"source_station"`
	DestinationStation string `json:"destination_station"`
	TotalSeats         int    `json:"total_seats"`
	CreatedAt          string `json:"created_at,omitempty"`
}

type availabilityResponse struct {
	TrainID        int64  `json:"train_id"`
	TravelDate     string `json:"travel_date"`
	AvailableSeats int    `json:"available_seats"`
}

type trainScheduleResponse struct {
	trainResponse
	Availability []availabilityResponse `json:"availability"`
}

type userResponse struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type bookingResponse struct {
	ID          int64          `json:"id"`
	UserID      int64          `json:"user_id"`
	TrainID     int64          `json:"train_id"`
	BookingDate string         `json:"booking_date"`
	SeatNumber  int            `json:"seat_number"`
	Status      string         `json:"status"`
	CreatedAt   string         `json:"created_at"`
	Train       *trainResponse `json:"train,omitempty"`
	User        *userResponse  `json:"user,omitempty"`
}

func newTrainResponse(t domain.Train) trainResponse {
	resp := trainResponse{
		ID:                 t.ID,
		TrainNumber:        t.TrainNumber,
		Name:               t.Name,
		SourceStation:      t.SourceStation,
		DestinationStation: t.DestinationStation,
		TotalSeats:         t.TotalSeats,
	}
	if !t.CreatedAt.IsZero() {
		resp.CreatedAt = t.CreatedAt.Format(time.RFC3339)
	}
	return resp
}

func newAvailabilityResponse(a domain.SeatAvailability) availabilityResponse {
	return availabilityResponse{
		TrainID:        a.TrainID,
		TravelDate:     a.TravelDate.Format(domain.DateLayout),
		AvailableSeats: a.AvailableSeats,
	}
}

func newAvailabilityList(list []domain.SeatAvailability) []availabilityResponse {
	out := make([]availabilityResponse, 0, len(list))
	for _, a := range list {
		out = append(out, newAvailabilityResponse(a))
	}
	return out
}

func newTrainScheduleResponse(s domain.TrainSchedule) trainScheduleResponse {
	return trainScheduleResponse{
		trainResponse: newTrainResponse(s.Train),
		Availability:  newAvailabilityList(s.Availability),
	}
}

func newBookingResponse(b *domain.Booking) bookingResponse {
	resp := bookingResponse{
		ID:          b.ID,
		UserID:      b.UserID,
		TrainID:     b.TrainID,
		BookingDate: b.BookingDate.Format(domain.DateLayout),
		SeatNumber:  b.SeatNumber,
		Status:      string(b.Status),
		CreatedAt:   b.CreatedAt.Format(time.RFC3339),
	}
	if b.Train != nil {
		t := newTrainResponse(*b.Train)
		resp.Train = &t
	}
	if b.User != nil {
		resp.User = &userResponse{Username: b.User.Username, Email: b.User.Email}
	}
	return resp
}
