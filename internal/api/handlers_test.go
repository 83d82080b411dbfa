package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusclinic/booking-service/internal/booking"
	"github.com/campusclinic/booking-service/internal/identity"
)

const testSecret = "test-secret"

type stubService struct {
	createFn       func(ctx context.Context, req booking.CreateRequest) (*booking.Booking, error)
	cancelFn       func(ctx context.Context, id uuid.UUID) (*booking.Booking, error)
	checkInFn      func(ctx context.Context, id uuid.UUID) (*booking.Booking, error)
	activeFn       func(ctx context.Context, email string) (*booking.Booking, error)
	forDateFn      func(ctx context.Context, date string) ([]booking.Booking, error)
	availabilityFn func(ctx context.Context, date string) (map[string]booking.SlotAvailability, error)
	monthFn        func(ctx context.Context, year int, month time.Month) (map[string]string, error)
	visitsFn       func(ctx context.Context, limit int) ([]booking.ClinicVisit, error)
}

func (s *stubService) CreateBooking(ctx context.Context, req booking.CreateRequest) (*booking.Booking, error) {
	return s.createFn(ctx, req)
}

func (s *stubService) CancelBooking(ctx context.Context, id uuid.UUID) (*booking.Booking, error) {
	return s.cancelFn(ctx, id)
}

func (s *stubService) CheckIn(ctx context.Context, id uuid.UUID) (*booking.Booking, error) {
	return s.checkInFn(ctx, id)
}

func (s *stubService) ActiveBooking(ctx context.Context, email string) (*booking.Booking, error) {
	return s.activeFn(ctx, email)
}

func (s *stubService) BookingsForDate(ctx context.Context, date string) ([]booking.Booking, error) {
	return s.forDateFn(ctx, date)
}

func (s *stubService) AvailabilityForDate(ctx context.Context, date string) (map[string]booking.SlotAvailability, error) {
	return s.availabilityFn(ctx, date)
}

func (s *stubService) MonthStatus(ctx context.Context, year int, month time.Month) (map[string]string, error) {
	return s.monthFn(ctx, year, month)
}

func (s *stubService) RecentVisits(ctx context.Context, limit int) ([]booking.ClinicVisit, error) {
	return s.visitsFn(ctx, limit)
}

type stubProfiles struct {
	profile *identity.Profile
	err     error
}

func (s *stubProfiles) Lookup(context.Context, string) (*identity.Profile, error) {
	return s.profile, s.err
}

func newTestRouter(svc BookingService, profiles ProfileSource) http.Handler {
	return NewRouter(RouterConfig{
		Service:            svc,
		Profiles:           profiles,
		Logger:             zap.NewNop(),
		Env:                "test",
		Version:            "test",
		CORSAllowedOrigins: []string{"*"},
		BookingRatePerMin:  1000,
		StaffJWTSecret:     testSecret,
	})
}

func staffToken(t *testing.T) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "nurse@clinic.example",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func sampleBooking() *booking.Booking {
	return &booking.Booking{
		ID:                 uuid.New(),
		PatientName:        "Alice Mokoena",
		StudentStaffNumber: "20241234",
		Email:              "alice@example.com",
		PhoneNumber:        "0823334444",
		VisitDate:          "2024-03-01",
		VisitTime:          "08:00",
		Status:             booking.StatusActive,
		CreatedAt:          time.Now(),
	}
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateBookingHandler(t *testing.T) {
	b := sampleBooking()
	svc := &stubService{
		createFn: func(_ context.Context, req booking.CreateRequest) (*booking.Booking, error) {
			assert.Equal(t, "alice@example.com", req.Email)
			return b, nil
		},
	}
	h := newTestRouter(svc, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/bookings", booking.CreateRequest{
		PatientName:        b.PatientName,
		StudentStaffNumber: b.StudentStaffNumber,
		Email:              b.Email,
		PhoneNumber:        b.PhoneNumber,
		VisitDate:          b.VisitDate,
		VisitTime:          b.VisitTime,
	}, "")

	require.Equal(t, http.StatusCreated, rec.Code)

	var envelope BookingEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, b.ID, envelope.Booking.ID)
	assert.Equal(t, "active", envelope.Booking.Status)
}

func TestCreateBookingHandlerErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", booking.ErrValidation, http.StatusBadRequest, "invalid_request"},
		{"active exists", booking.ErrActiveBookingExists, http.StatusConflict, "active_booking_exists"},
		{"slot full", booking.ErrSlotFull, http.StatusConflict, "slot_full"},
		{"slot past", booking.ErrSlotInPast, http.StatusConflict, "slot_in_past"},
		{"slot busy", booking.ErrSlotBusy, http.StatusConflict, "slot_being_booked"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{
				createFn: func(context.Context, booking.CreateRequest) (*booking.Booking, error) {
					return nil, tt.err
				},
			}
			h := newTestRouter(svc, nil)

			rec := doJSON(t, h, http.MethodPost, "/api/bookings", booking.CreateRequest{Email: "a@b.c"}, "")
			require.Equal(t, tt.wantStatus, rec.Code)

			var errResp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
			assert.Equal(t, tt.wantCode, errResp.Error)
		})
	}
}

func TestCreateBookingHandlerFillsProfile(t *testing.T) {
	b := sampleBooking()
	var got booking.CreateRequest
	svc := &stubService{
		createFn: func(_ context.Context, req booking.CreateRequest) (*booking.Booking, error) {
			got = req
			return b, nil
		},
	}
	profiles := &stubProfiles{profile: &identity.Profile{
		FullName:           "Alice Mokoena",
		StudentStaffNumber: "20241234",
		Email:              "alice@example.com",
		ContactDetails:     "0823334444",
	}}
	h := newTestRouter(svc, profiles)

	rec := doJSON(t, h, http.MethodPost, "/api/bookings", map[string]string{
		"email":      "alice@example.com",
		"visit_date": "2024-03-01",
		"visit_time": "08:00",
	}, "")

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Alice Mokoena", got.PatientName)
	assert.Equal(t, "20241234", got.StudentStaffNumber)
	assert.Equal(t, "0823334444", got.PhoneNumber)
}

func TestCreateBookingHandlerIncompleteProfile(t *testing.T) {
	svc := &stubService{
		createFn: func(context.Context, booking.CreateRequest) (*booking.Booking, error) {
			t.Fatal("service must not be called with an incomplete profile")
			return nil, nil
		},
	}
	profiles := &stubProfiles{profile: &identity.Profile{Email: "alice@example.com"}}
	h := newTestRouter(svc, profiles)

	rec := doJSON(t, h, http.MethodPost, "/api/bookings", map[string]string{
		"email":      "alice@example.com",
		"visit_date": "2024-03-01",
		"visit_time": "08:00",
	}, "")

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCreateBookingHandlerIdentityDown(t *testing.T) {
	svc := &stubService{}
	profiles := &stubProfiles{err: identity.ErrUpstreamUnavailable}
	h := newTestRouter(svc, profiles)

	rec := doJSON(t, h, http.MethodPost, "/api/bookings", map[string]string{
		"email":      "alice@example.com",
		"visit_date": "2024-03-01",
		"visit_time": "08:00",
	}, "")

	require.Equal(t, http.StatusBadGateway, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "upstream_unavailable", errResp.Error)
}

func TestCancelBookingHandler(t *testing.T) {
	b := sampleBooking()
	b.Status = booking.StatusCancelled
	svc := &stubService{
		cancelFn: func(_ context.Context, id uuid.UUID) (*booking.Booking, error) {
			assert.Equal(t, b.ID, id)
			return b, nil
		},
	}
	h := newTestRouter(svc, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/cancel_booking", CancelBookingRequest{ID: b.ID.String()}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/cancel_booking", CancelBookingRequest{ID: "not-a-uuid"}, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActiveBookingHandler(t *testing.T) {
	b := sampleBooking()
	svc := &stubService{
		activeFn: func(_ context.Context, email string) (*booking.Booking, error) {
			if email == b.Email {
				return b, nil
			}
			return nil, nil
		},
	}
	h := newTestRouter(svc, nil)

	rec := doJSON(t, h, http.MethodGet, "/api/active_booking?email=alice%40example.com", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ActiveBookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Active)
	require.NotNil(t, resp.Booking)
	assert.Equal(t, b.ID, resp.Booking.ID)

	rec = doJSON(t, h, http.MethodGet, "/api/active_booking?email=other%40example.com", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = ActiveBookingResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Active)
	assert.Nil(t, resp.Booking)

	rec = doJSON(t, h, http.MethodGet, "/api/active_booking", nil, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTimeSlotsHandler(t *testing.T) {
	svc := &stubService{
		availabilityFn: func(_ context.Context, date string) (map[string]booking.SlotAvailability, error) {
			assert.Equal(t, "2024-03-01", date)
			return map[string]booking.SlotAvailability{
				"08:00": {Start: "08:00", End: "08:30", Capacity: 2, Remaining: 1},
			}, nil
		},
	}
	h := newTestRouter(svc, nil)

	rec := doJSON(t, h, http.MethodGet, "/time-slots?date=2024-03-01", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]SlotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp["08:00"].Remaining)
	assert.Equal(t, "08:30", resp["08:00"].End)

	rec = doJSON(t, h, http.MethodGet, "/time-slots", nil, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMonthStatusHandler(t *testing.T) {
	svc := &stubService{
		monthFn: func(_ context.Context, year int, month time.Month) (map[string]string, error) {
			assert.Equal(t, 2024, year)
			assert.Equal(t, time.March, month)
			return map[string]string{"2024-03-04": booking.DayStatusFullyBooked}, nil
		},
	}
	h := newTestRouter(svc, nil)

	rec := doJSON(t, h, http.MethodGet, "/time-slots/month?year=2024&month=3", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, booking.DayStatusFullyBooked, resp["2024-03-04"])

	rec = doJSON(t, h, http.MethodGet, "/time-slots/month?year=2024&month=13", nil, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStaffEndpointsRequireToken(t *testing.T) {
	svc := &stubService{
		forDateFn: func(context.Context, string) ([]booking.Booking, error) {
			return []booking.Booking{*sampleBooking()}, nil
		},
	}
	h := newTestRouter(svc, nil)

	rec := doJSON(t, h, http.MethodGet, "/api/admin/bookings?date=2024-03-01", nil, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/admin/bookings?date=2024-03-01", nil, "garbage-token")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/admin/bookings?date=2024-03-01", nil, staffToken(t))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []BookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
}

func TestCheckInHandler(t *testing.T) {
	b := sampleBooking()
	b.Status = booking.StatusCheckedIn
	svc := &stubService{
		checkInFn: func(_ context.Context, id uuid.UUID) (*booking.Booking, error) {
			if id == b.ID {
				return b, nil
			}
			return nil, booking.ErrInvalidState
		},
	}
	h := newTestRouter(svc, nil)
	token := staffToken(t)

	rec := doJSON(t, h, http.MethodPost, "/api/admin/check_in", CheckInRequest{BookingID: b.ID.String()}, token)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope BookingEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "checked-in", envelope.Booking.Status)

	// Already checked in elsewhere.
	rec = doJSON(t, h, http.MethodPost, "/api/admin/check_in", CheckInRequest{BookingID: uuid.NewString()}, token)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/admin/check_in", CheckInRequest{BookingID: "nope"}, token)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecentVisitsHandler(t *testing.T) {
	visit := booking.ClinicVisit{
		ID:          1,
		BookingID:   uuid.New(),
		PatientName: "Alice Mokoena",
		VisitDate:   "2024-03-01",
		TimeSlot:    "08:00",
		CheckedInAt: time.Now(),
	}
	svc := &stubService{
		visitsFn: func(_ context.Context, limit int) ([]booking.ClinicVisit, error) {
			assert.Equal(t, 5, limit)
			return []booking.ClinicVisit{visit}, nil
		},
	}
	h := newTestRouter(svc, nil)

	rec := doJSON(t, h, http.MethodGet, "/api/patient/checkin/recent?limit=5", nil, staffToken(t))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []VisitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, visit.BookingID, resp[0].BookingID)
	assert.Equal(t, "08:00", resp[0].TimeSlot)
}
