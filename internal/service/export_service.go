package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gestao-escolar/escola-api/internal/models"
	"github.com/gestao-escolar/escola-api/pkg/export"
	appErrors "github.com/gestao-escolar/escola-api/pkg/errors"
)

// ExportFormat selects the rendered output type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type gradebookProvider interface {
	Gradebook(ctx context.Context, classID string, scope models.ActingScope) (*models.Gradebook, error)
}

type attendanceSheetProvider interface {
	Sheet(ctx context.Context, classID string, date time.Time, scope models.ActingScope) ([]models.AttendanceSheetRow, error)
}

// ExportPayload is a rendered document with its content type and
// suggested filename.
type ExportPayload struct {
	Data        []byte
	ContentType string
	Filename    string
}

// ExportService renders gradebooks and attendance sheets into CSV or
// PDF documents. Datasets come from the same services the JSON
// endpoints use, so exports carry identical scope rules.
type ExportService struct {
	grades     gradebookProvider
	attendance attendanceSheetProvider
	csv        csvRenderer
	pdf        pdfRenderer
	logger     *zap.Logger
}

// NewExportService constructs the service. Nil renderers fall back to
// the default exporters.
func NewExportService(grades gradebookProvider, attendance attendanceSheetProvider, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{grades: grades, attendance: attendance, csv: csv, pdf: pdf, logger: logger}
}

// ParseExportFormat normalizes a format query value.
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch strings.ToLower(raw) {
	case "", string(ExportFormatCSV):
		return ExportFormatCSV, nil
	case string(ExportFormatPDF):
		return ExportFormatPDF, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", raw))
	}
}

// Gradebook renders the full class gradebook.
func (s *ExportService) Gradebook(ctx context.Context, classID string, format ExportFormat, scope models.ActingScope) (*ExportPayload, error) {
	book, err := s.grades.Gradebook(ctx, classID, scope)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{Headers: []string{"Matricula", "Student", "Subject", "Assessment", "Period", "Date", "Value"}}
	for _, student := range book.Students {
		if len(student.Grades) == 0 {
			dataset.Rows = append(dataset.Rows, map[string]string{
				"Matricula": student.Matricula,
				"Student":   student.StudentName,
			})
			continue
		}
		for _, grade := range student.Grades {
			dataset.Rows = append(dataset.Rows, map[string]string{
				"Matricula":  student.Matricula,
				"Student":    student.StudentName,
				"Subject":    grade.SubjectName,
				"Assessment": string(grade.AssessmentType),
				"Period":     grade.Period,
				"Date":       grade.AssessedOn.Format("2006-01-02"),
				"Value":      fmt.Sprintf("%.2f", grade.Value),
			})
		}
	}

	title := fmt.Sprintf("Gradebook - %s", book.ClassName)
	return s.render(dataset, title, fmt.Sprintf("gradebook-%s", classID), format)
}

// AttendanceSheet renders the attendance sheet of a class for a date.
func (s *ExportService) AttendanceSheet(ctx context.Context, classID string, date time.Time, format ExportFormat, scope models.ActingScope) (*ExportPayload, error) {
	rows, err := s.attendance.Sheet(ctx, classID, date, scope)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{Headers: []string{"Matricula", "Student", "Present", "Recorded"}}
	for _, row := range rows {
		present := "no"
		if row.Present {
			present = "yes"
		}
		recorded := "no"
		if row.Recorded {
			recorded = "yes"
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Matricula": row.Matricula,
			"Student":   row.StudentName,
			"Present":   present,
			"Recorded":  recorded,
		})
	}

	day := date.Format("2006-01-02")
	title := fmt.Sprintf("Attendance - %s", day)
	return s.render(dataset, title, fmt.Sprintf("attendance-%s-%s", classID, day), format)
}

func (s *ExportService) render(dataset export.Dataset, title, basename string, format ExportFormat) (*ExportPayload, error) {
	switch format {
	case ExportFormatCSV:
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportPayload{Data: data, ContentType: "text/csv", Filename: basename + ".csv"}, nil
	case ExportFormatPDF:
		data, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportPayload{Data: data, ContentType: "application/pdf", Filename: basename + ".pdf"}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}
