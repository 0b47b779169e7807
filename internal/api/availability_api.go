package api

import (
	"fmt"
	"net/http"
	"time"

	"campsite/internal/models"
)

// AvailabilityResponse is the response for GET /api/availabilities.
type AvailabilityResponse struct {
	StartDate      string   `json:"start_date"`
	EndDate        string   `json:"end_date"`
	AvailableDates []string `json:"available_dates"`
}

// handleAvailabilities returns the free dates in the requested range.
// GET /api/availabilities?start_date=YYYY-MM-DD&end_date=YYYY-MM-DD
// start_date defaults to today, end_date to one month after start_date;
// the end date is excluded.
func (s *HTTPServer) handleAvailabilities(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseAvailabilityRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	available, err := s.svc.GetAvailability(r.Context(), start, end)
	if err != nil {
		s.respondError(w, err)
		return
	}

	dates := make([]string, 0, len(available))
	for _, d := range available {
		dates = append(dates, d.Format(models.DateFormat))
	}

	writeJSON(w, http.StatusOK, AvailabilityResponse{
		StartDate:      start.Format(models.DateFormat),
		EndDate:        end.Format(models.DateFormat),
		AvailableDates: dates,
	})
}

func parseAvailabilityRange(r *http.Request) (start, end time.Time, err error) {
	start = models.Day(time.Now())
	if raw := r.URL.Query().Get("start_date"); raw != "" {
		start, err = time.Parse(models.DateFormat, raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date format; expected YYYY-MM-DD")
		}
	}

	end = start.AddDate(0, 1, 0)
	if raw := r.URL.Query().Get("end_date"); raw != "" {
		end, err = time.Parse(models.DateFormat, raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date format; expected YYYY-MM-DD")
		}
	}

	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date %s is after end_date %s",
			start.Format(models.DateFormat), end.Format(models.DateFormat))
	}
	return start, end, nil
}
