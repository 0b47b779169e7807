package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"campsite/internal/database"
	"campsite/internal/models"
	"campsite/internal/report"
	"campsite/internal/service"
	"campsite/internal/validation"
)

// BookingRequest is the request body for creating or updating a booking.
type BookingRequest struct {
	Email         string `json:"email" validate:"required,email"`
	FullName      string `json:"full_name" validate:"required"`
	ArrivalDate   string `json:"arrival_date" validate:"required,datetime=2006-01-02"`
	DepartureDate string `json:"departure_date" validate:"required,datetime=2006-01-02"`
	// Version is the booking version the caller last observed. Only
	// meaningful on update; when omitted the current version is used.
	Version int64 `json:"version,omitempty"`
}

// BookingResponse mirrors models.Booking with dates as YYYY-MM-DD strings.
type BookingResponse struct {
	ID            int64  `json:"id"`
	Version       int64  `json:"version"`
	Email         string `json:"email"`
	FullName      string `json:"full_name"`
	ArrivalDate   string `json:"arrival_date"`
	DepartureDate string `json:"departure_date"`
}

func toBookingResponse(b *models.Booking) BookingResponse {
	return BookingResponse{
		ID:            b.ID,
		Version:       b.Version,
		Email:         b.Email,
		FullName:      b.FullName,
		ArrivalDate:   b.ArrivalDate.Format(models.DateFormat),
		DepartureDate: b.DepartureDate.Format(models.DateFormat),
	}
}

// handleListBookings returns all bookings ordered by arrival date.
// GET /api/bookings
func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.svc.FindAll(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}

	response := make([]BookingResponse, 0, len(bookings))
	for i := range bookings {
		response = append(response, toBookingResponse(&bookings[i]))
	}
	writeJSON(w, http.StatusOK, response)
}

// handleAddBooking reserves the campsite.
// POST /api/bookings
func (s *HTTPServer) handleAddBooking(w http.ResponseWriter, r *http.Request) {
	candidate, ok := s.decodeBookingRequest(w, r)
	if !ok {
		return
	}

	booking, err := s.svc.Add(r.Context(), candidate)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingResponse(booking))
}

// handleGetBooking returns one booking.
// GET /api/bookings/{id}
func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	booking, err := s.svc.FindByID(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(booking))
}

// handleUpdateBooking updates the reservation with the given id.
// PUT /api/bookings/{id}
func (s *HTTPServer) handleUpdateBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	candidate, ok := s.decodeBookingRequest(w, r)
	if !ok {
		return
	}

	if candidate.Version == 0 {
		// No observed version supplied; use the current one, as the
		// original flow of fetch-then-update does.
		current, err := s.svc.FindByID(r.Context(), id)
		if err != nil {
			s.respondError(w, err)
			return
		}
		candidate.Version = current.Version
	}

	booking, err := s.svc.Update(r.Context(), id, candidate)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(booking))
}

// handleDeleteBooking cancels the reservation with the given id.
// DELETE /api/bookings/{id}
func (s *HTTPServer) handleDeleteBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := s.svc.Delete(r.Context(), id); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExportBookings streams all bookings as an Excel workbook.
// GET /api/bookings/export
func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.svc.FindAll(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}

	filename := fmt.Sprintf("bookings_%s.xlsx", time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	if err := report.WriteBookings(w, bookings); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write bookings export")
	}
}

// decodeBookingRequest parses and validates the request body, returning the
// booking candidate. Writes the error response itself when validation fails.
func (s *HTTPServer) decodeBookingRequest(w http.ResponseWriter, r *http.Request) (*models.Booking, bool) {
	var req BookingRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return nil, false
	}

	if err := s.validate.Struct(&req); err != nil {
		var details []string
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				details = append(details, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
			}
		}
		writeError(w, http.StatusBadRequest, "invalid booking payload", details...)
		return nil, false
	}

	arrival, _ := time.Parse(models.DateFormat, req.ArrivalDate)
	departure, _ := time.Parse(models.DateFormat, req.DepartureDate)

	return &models.Booking{
		Version:       req.Version,
		Email:         req.Email,
		FullName:      req.FullName,
		ArrivalDate:   arrival,
		DepartureDate: departure,
	}, true
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return 0, false
	}
	return id, true
}

// respondError maps engine and store errors onto HTTP statuses.
func (s *HTTPServer) respondError(w http.ResponseWriter, err error) {
	var gerr *validation.GuidelineError
	var conflict *service.ConflictError

	switch {
	case errors.As(err, &gerr):
		writeError(w, http.StatusBadRequest, "booking does not respect the guidelines", gerr.Violations...)
	case errors.As(err, &conflict):
		writeError(w, http.StatusConflict, conflict.Error())
	case errors.Is(err, database.ErrVersionConflict):
		writeError(w, http.StatusConflict, "booking was modified concurrently; fetch it again and retry")
	case errors.Is(err, database.ErrTxConflict):
		writeError(w, http.StatusConflict, "could not complete the reservation; please retry")
	case errors.Is(err, database.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "booking not found")
	default:
		s.logger.Error().Err(err).Msg("Internal error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
