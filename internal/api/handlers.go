package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/campusclinic/booking-service/internal/booking"
	"github.com/campusclinic/booking-service/internal/identity"
)

func timeSlotsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date == "" {
			writeError(w, http.StatusBadRequest, "missing_date", "date query parameter is required")
			return
		}

		avail, err := svc.AvailabilityForDate(r.Context(), date)
		if err != nil {
			if errors.Is(err, booking.ErrValidation) {
				writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make(map[string]SlotResponse, len(avail))
		for start, s := range avail {
			resp[start] = SlotResponse{
				Start:     s.Start,
				End:       s.End,
				Remaining: s.Remaining,
				Past:      s.Past,
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func monthStatusHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		year, err := strconv.Atoi(r.URL.Query().Get("year"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_year", "year must be an integer")
			return
		}
		month, err := strconv.Atoi(r.URL.Query().Get("month"))
		if err != nil || month < 1 || month > 12 {
			writeError(w, http.StatusBadRequest, "invalid_month", "month must be 1-12")
			return
		}

		status, err := svc.MonthStatus(r.Context(), year, time.Month(month))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func createBookingHandler(svc BookingService, profiles ProfileSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req booking.CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		// The portal normally sends the full profile with the request; when
		// fields are missing we fill them from the identity store so a stale
		// client cannot book with a partial profile.
		if req.Email != "" && missingProfileFields(req) && profiles != nil {
			p, err := profiles.Lookup(r.Context(), req.Email)
			if err != nil {
				handleProfileError(w, err)
				return
			}
			if !p.Complete() {
				writeError(w, http.StatusUnprocessableEntity, "incomplete_profile", "complete your profile before booking")
				return
			}
			fillFromProfile(&req, p)
		}

		b, err := svc.CreateBooking(r.Context(), req)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, BookingEnvelope{
			Message: "Booking confirmed",
			Booking: toBookingResponse(b),
		})
	}
}

func missingProfileFields(req booking.CreateRequest) bool {
	return req.PatientName == "" || req.StudentStaffNumber == "" || req.PhoneNumber == ""
}

func fillFromProfile(req *booking.CreateRequest, p *identity.Profile) {
	if req.PatientName == "" {
		req.PatientName = p.FullName
	}
	if req.StudentStaffNumber == "" {
		req.StudentStaffNumber = p.StudentStaffNumber
	}
	if req.PhoneNumber == "" {
		req.PhoneNumber = p.ContactDetails
	}
}

func cancelBookingHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CancelBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		id, err := uuid.Parse(req.ID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		b, err := svc.CancelBooking(r.Context(), id)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, BookingEnvelope{
			Message: "Booking cancelled",
			Booking: toBookingResponse(b),
		})
	}
}

func activeBookingHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := r.URL.Query().Get("email")
		if email == "" {
			writeError(w, http.StatusBadRequest, "missing_email", "email query parameter is required")
			return
		}

		b, err := svc.ActiveBooking(r.Context(), email)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := ActiveBookingResponse{Active: b != nil}
		if b != nil {
			br := toBookingResponse(b)
			resp.Booking = &br
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func staffBookingsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date == "" {
			writeError(w, http.StatusBadRequest, "missing_date", "date query parameter is required")
			return
		}

		list, err := svc.BookingsForDate(r.Context(), date)
		if err != nil {
			if errors.Is(err, booking.ErrValidation) {
				writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]BookingResponse, 0, len(list))
		for i := range list {
			resp = append(resp, toBookingResponse(&list[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func checkInHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CheckInRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		id, err := uuid.Parse(req.BookingID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "bookingId must be a valid UUID")
			return
		}

		b, err := svc.CheckIn(r.Context(), id)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, BookingEnvelope{
			Message: "Patient checked in successfully",
			Booking: toBookingResponse(b),
		})
	}
}

func recentVisitsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
				return
			}
			limit = n
		}

		visits, err := svc.RecentVisits(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]VisitResponse, 0, len(visits))
		for _, v := range visits {
			resp = append(resp, VisitResponse{
				BookingID:          v.BookingID,
				PatientName:        v.PatientName,
				StudentStaffNumber: v.StudentStaffNumber,
				Email:              v.Email,
				VisitDate:          v.VisitDate,
				TimeSlot:           v.TimeSlot,
				CheckedInAt:        v.CheckedInAt,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrValidation):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, booking.ErrActiveBookingExists):
		writeError(w, http.StatusConflict, "active_booking_exists", err.Error())
	case errors.Is(err, booking.ErrSlotFull):
		writeError(w, http.StatusConflict, "slot_full", err.Error())
	case errors.Is(err, booking.ErrSlotInPast):
		writeError(w, http.StatusConflict, "slot_in_past", err.Error())
	case errors.Is(err, booking.ErrSlotBusy):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, booking.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "booking_not_found", err.Error())
	case errors.Is(err, booking.ErrInvalidState):
		writeError(w, http.StatusConflict, "invalid_state", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleProfileError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, identity.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, "profile_not_found", err.Error())
	case errors.Is(err, identity.ErrUpstreamUnavailable):
		writeError(w, http.StatusBadGateway, "upstream_unavailable", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
