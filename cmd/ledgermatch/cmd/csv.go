package cmd

import (
	"encoding/csv"
	"os"

	"ledgermatch/internal/dateparse"
	"ledgermatch/internal/importer"
	"ledgermatch/internal/models"
	apperrors "ledgermatch/pkg/errors"
)

// readCSV loads a CSV file and splits it into header and data rows.
func readCSV(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.CategoryParse, apperrors.CodeInvalidFormat,
			"cannot open "+path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // ragged rows are handled per-cell downstream

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.CategoryParse, apperrors.CodeInvalidFormat,
			"cannot parse "+path)
	}
	if len(records) == 0 {
		return nil, nil, apperrors.New(apperrors.CategoryParse, apperrors.CodeInvalidFormat,
			path+" is empty")
	}
	return records[0], records[1:], nil
}

// readStatementLines parses a bank statement CSV into statement lines using
// the same column auto-detection as import validation.
func readStatementLines(path string) ([]*models.StatementLine, error) {
	header, rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	mapping := importer.DetectColumns(header)
	if mapping.Date < 0 || mapping.Description < 0 || !mapping.HasAmount() {
		return nil, apperrors.New(apperrors.CategoryParse, apperrors.CodeMissingColumn,
			"statement needs date, description and amount columns")
	}

	var lines []*models.StatementLine
	for i, row := range rows {
		date, err := dateparse.Parse(rowCell(row, mapping.Date))
		if err != nil {
			return nil, apperrors.Validationf(apperrors.CodeInvalidDate, "date",
				"row %d: %v", i+1, err)
		}

		var cents int64
		if mapping.Amount >= 0 {
			cents = importer.ParseAmountCents(rowCell(row, mapping.Amount))
		} else {
			credit := importer.ParseAmountCents(rowCell(row, mapping.Credit))
			debit := importer.ParseAmountCents(rowCell(row, mapping.Debit))
			if credit > 0 {
				cents = credit
			} else if debit != 0 {
				if debit < 0 {
					debit = -debit
				}
				cents = -debit
			}
		}

		lines = append(lines, &models.StatementLine{
			Date:        date,
			Description: rowCell(row, mapping.Description),
			AmountCents: cents,
			Reference:   rowCell(row, mapping.Reference),
		})
	}
	return lines, nil
}

func rowCell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
