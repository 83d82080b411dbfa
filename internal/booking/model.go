package booking

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusCheckedIn Status = "checked-in"
)

// Booking is one patient's reservation of one time slot on one date.
// VisitDate and VisitTime carry the wire formats (2006-01-02 / 15:04), which
// match the DATE and TIME columns they are stored in.
type Booking struct {
	ID                 uuid.UUID
	PatientName        string
	StudentStaffNumber string
	Email              string
	PhoneNumber        string
	VisitDate          string
	VisitTime          string
	Status             Status
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ClinicVisit is the append-only record written when a booking is checked in.
type ClinicVisit struct {
	ID                 int64
	BookingID          uuid.UUID
	PatientName        string
	StudentStaffNumber string
	Email              string
	VisitDate          string
	TimeSlot           string
	CheckedInAt        time.Time
}

// SlotAvailability is one catalog slot merged with the live booked count.
type SlotAvailability struct {
	Start     string
	End       string
	Capacity  int
	Remaining int
	Past      bool
}

// DayStatusFullyBooked marks a calendar day where every defined slot has
// zero remaining capacity.
const DayStatusFullyBooked = "fully-booked"

// CreateRequest carries the fields a patient submits to book a visit.
type CreateRequest struct {
	PatientName        string `json:"patient_name" validate:"required"`
	StudentStaffNumber string `json:"student_staff_number" validate:"required"`
	Email              string `json:"email" validate:"required,email"`
	PhoneNumber        string `json:"phone_number" validate:"required"`
	VisitDate          string `json:"visit_date" validate:"required"`
	VisitTime          string `json:"visit_time" validate:"required"`
}
