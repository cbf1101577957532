package importer

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/Linh3694/frappe-erp-sub001/internal/domain"
)

const maxReportCellLen = 200

// BuildErrorReport renders the failed rows of a run as an Excel workbook the
// operator can correct and resubmit. The first two columns carry the source
// row number and the failure message; the rest mirror the schema's fields.
func BuildErrorReport(schema domain.TargetSchema, rowErrors []domain.RowError) ([]byte, error) {
	workbook := excelize.NewFile()
	defer workbook.Close()

	const sheet = "Errors"
	workbook.SetSheetName(workbook.GetSheetName(0), sheet)

	headers := []string{"__row_number", "__error"}
	for _, field := range schema.Fields {
		if schema.IsSystemField(field.Name) {
			continue
		}
		headers = append(headers, field.Name)
	}
	if err := writeRow(workbook, sheet, 1, headers); err != nil {
		return nil, err
	}

	for i, rowErr := range rowErrors {
		cells := make([]any, 0, len(headers))
		cells = append(cells, rowErr.RowNumber, rowErr.Message)
		if rowErr.Data == nil {
			// The row never made it through mapping; its raw text is the best
			// reproduction available.
			cells = append(cells, truncateCell(rowErr.Fallback))
		} else {
			for _, header := range headers[2:] {
				cells = append(cells, truncateCell(formatCell(rowErr.Data[header])))
			}
		}
		if err := writeRow(workbook, sheet, i+2, cells); err != nil {
			return nil, err
		}
	}

	return workbookBytes(workbook)
}

// BuildTemplate renders a blank import template for a schema: labelled
// headers with required fields starred, plus a notes sheet describing each
// column.
func BuildTemplate(schema domain.TargetSchema) ([]byte, error) {
	workbook := excelize.NewFile()
	defer workbook.Close()

	const sheet = "Data"
	workbook.SetSheetName(workbook.GetSheetName(0), sheet)

	headers := make([]any, 0, len(schema.Fields))
	for _, field := range schema.Fields {
		if schema.IsSystemField(field.Name) {
			continue
		}
		label := field.Label
		if label == "" {
			label = field.Name
		}
		if field.Required {
			label += " *"
		}
		headers = append(headers, label)
	}
	if err := writeRow(workbook, sheet, 1, headers); err != nil {
		return nil, err
	}

	sample := make([]any, 0, len(schema.Fields))
	for _, field := range schema.Fields {
		if schema.IsSystemField(field.Name) {
			continue
		}
		sample = append(sample, sampleValue(field.Name))
	}
	if err := writeRow(workbook, sheet, 2, sample); err != nil {
		return nil, err
	}

	if _, err := workbook.NewSheet("Notes"); err != nil {
		return nil, err
	}
	notes := [][]any{{"Column", "Field", "Required"}}
	for _, field := range schema.Fields {
		if schema.IsSystemField(field.Name) {
			continue
		}
		required := "no"
		if field.Required {
			required = "yes"
		}
		notes = append(notes, []any{field.Label, field.Name, required})
	}
	for i, row := range notes {
		if err := writeRow(workbook, "Notes", i+1, row); err != nil {
			return nil, err
		}
	}

	return workbookBytes(workbook)
}

func writeRow[T any](workbook *excelize.File, sheet string, row int, cells []T) error {
	for col, value := range cells {
		name, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("resolve cell coordinates: %w", err)
		}
		if err := workbook.SetCellValue(sheet, name, value); err != nil {
			return fmt.Errorf("write cell %s: %w", name, err)
		}
	}
	return nil
}

func workbookBytes(workbook *excelize.File) ([]byte, error) {
	var buf bytes.Buffer
	if err := workbook.Write(&buf); err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// sampleValue fills the template's example row, one plausible value per
// known field.
func sampleValue(fieldName string) string {
	switch fieldName {
	case "student_name":
		return "Nguyễn Văn An"
	case "student_code":
		return "WS0001"
	case "dob":
		return "2015-09-01"
	case "gender":
		return "Nam"
	case "title":
		return "Toán"
	case "short_title":
		return "1A"
	case "education_stage":
		return "Tiểu học"
	case "curriculum":
		return "Chương trình chuẩn"
	default:
		return ""
	}
}

func formatCell(value any) string {
	if value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}

func truncateCell(value string) string {
	if len(value) > maxReportCellLen {
		return value[:maxReportCellLen]
	}
	return value
}
