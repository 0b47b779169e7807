package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"campsite/internal/models"
)

const sheetName = "Bookings"

var columns = []string{"ID", "Version", "Email", "Full name", "Arrival", "Departure", "Nights", "Created at"}

// WriteBookings renders the bookings as an Excel workbook: a header row,
// one row per booking and a totals row.
func WriteBookings(wr io.Writer, bookings []models.Booking) error {
	file := excelize.NewFile()
	defer file.Close()

	file.SetSheetName("Sheet1", sheetName)

	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := file.SetCellValue(sheetName, cell, col); err != nil {
			return err
		}
	}

	// Apply bold style to header
	if style, err := file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	}); err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, 1)
		endCell, _ := excelize.CoordinatesToCellName(len(columns), 1)
		_ = file.SetCellStyle(sheetName, startCell, endCell, style)
	}

	totalNights := 0
	for i, b := range bookings {
		row := i + 2
		values := []interface{}{
			b.ID,
			b.Version,
			b.Email,
			b.FullName,
			b.ArrivalDate.Format(models.DateFormat),
			b.DepartureDate.Format(models.DateFormat),
			b.StayNights(),
			b.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for j, val := range values {
			cell, err := excelize.CoordinatesToCellName(j+1, row)
			if err != nil {
				return err
			}
			if err := file.SetCellValue(sheetName, cell, val); err != nil {
				return err
			}
		}
		totalNights += b.StayNights()
	}

	totalsRow := len(bookings) + 2
	cell, err := excelize.CoordinatesToCellName(1, totalsRow)
	if err != nil {
		return err
	}
	if err := file.SetCellValue(sheetName, cell,
		fmt.Sprintf("Total: %d bookings, %d nights", len(bookings), totalNights)); err != nil {
		return err
	}

	return file.Write(wr)
}
