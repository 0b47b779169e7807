package service

import (
	"fmt"
	"strings"
	"time"

	"campsite/internal/models"
)

// ConflictError reports that a requested date range intersects existing
// claims. Dates lists the conflicting days when known.
type ConflictError struct {
	Dates []time.Time
}

func (e *ConflictError) Error() string {
	if len(e.Dates) == 0 {
		return "selected dates are not available to be reserved"
	}
	formatted := make([]string, len(e.Dates))
	for i, d := range e.Dates {
		formatted[i] = d.Format(models.DateFormat)
	}
	return fmt.Sprintf("dates [%s] are not available", strings.Join(formatted, ", "))
}
