package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/campusclinic/booking-service/internal/booking"
)

type BookingResponse struct {
	ID                 uuid.UUID `json:"id"`
	PatientName        string    `json:"patient_name"`
	StudentStaffNumber string    `json:"student_staff_number"`
	Email              string    `json:"email"`
	PhoneNumber        string    `json:"phone_number"`
	VisitDate          string    `json:"visit_date"`
	VisitTime          string    `json:"visit_time"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
}

func toBookingResponse(b *booking.Booking) BookingResponse {
	return BookingResponse{
		ID:                 b.ID,
		PatientName:        b.PatientName,
		StudentStaffNumber: b.StudentStaffNumber,
		Email:              b.Email,
		PhoneNumber:        b.PhoneNumber,
		VisitDate:          b.VisitDate,
		VisitTime:          b.VisitTime,
		Status:             string(b.Status),
		CreatedAt:          b.CreatedAt,
	}
}

type BookingEnvelope struct {
	Message string          `json:"message,omitempty"`
	Booking BookingResponse `json:"booking"`
}

type ActiveBookingResponse struct {
	Active  bool             `json:"active"`
	Booking *BookingResponse `json:"booking,omitempty"`
}

type SlotResponse struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	Remaining int    `json:"remaining"`
	Past      bool   `json:"past"`
}

type CancelBookingRequest struct {
	ID string `json:"id"`
}

type CheckInRequest struct {
	BookingID string `json:"bookingId"`
}

type VisitResponse struct {
	BookingID          uuid.UUID `json:"booking_id"`
	PatientName        string    `json:"patient_name"`
	StudentStaffNumber string    `json:"student_staff_number"`
	Email              string    `json:"email"`
	VisitDate          string    `json:"visit_date"`
	TimeSlot           string    `json:"time_slot"`
	CheckedInAt        time.Time `json:"checked_in_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
