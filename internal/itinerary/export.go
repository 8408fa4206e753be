package itinerary

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const expenseSheet = "Expenses"

// WriteExpenseSheet writes the expenses of a trip as an xlsx workbook with a total row
func WriteExpenseSheet(w io.Writer, trip *Trip, expenses []*TripExpense) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", expenseSheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	rows := [][]any{
		{trip.Name, trip.StartDate, trip.EndDate},
		{"Name", "Category", "Amount", "Source"},
	}
	var total float64
	for _, e := range expenses {
		rows = append(rows, []any{e.Name, e.Category, e.Amount, e.Source})
		total += e.Amount
	}
	rows = append(rows, []any{"Total", "", total})

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(expenseSheet, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}

	if err := f.SetColWidth(expenseSheet, "A", "A", 40); err != nil {
		return fmt.Errorf("sizing columns: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
