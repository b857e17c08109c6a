package aggregate

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	contractx "github.com/hyomin-dev/leadscout/agent/contract"
)

var csvHeader = []string{
	"contact_name", "email", "email_confidence", "company", "title",
	"linkedin_url", "fit_score", "fit_reason", "location", "source",
}

// WriteCSV renders contacts in their current order. Column order is part of
// the deliverable format and must not change between runs.
func WriteCSV(w io.Writer, contacts []contractx.Contact) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, c := range contacts {
		row := []string{
			c.ContactName,
			c.Email,
			string(c.EmailConfidence),
			c.Company,
			c.Title,
			c.LinkedinURL,
			strconv.FormatFloat(c.FitScore, 'f', 1, 64),
			c.FitReason,
			c.Location,
			c.Source,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
