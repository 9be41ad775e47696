package domain

import "time"

type Train struct {
	ID                 int64
	TrainNumber        string
	Name               string
	SourceStation      string
	DestinationStation string
	TotalSeats         int
	CreatedAt          time.Time
}

// SeatAvailability is one ledger row: the remaining seats of a train on a date.
type SeatAvailability struct {
	TrainID        int64
	TravelDate     time.Time
	AvailableSeats int
}

// TrainSchedule is a train with its ledger rows.
type TrainSchedule struct {
	Train
	Availability []SeatAvailability
}
