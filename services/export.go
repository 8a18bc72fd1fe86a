package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"claims-intake-platform/internal/logger"
	"claims-intake-platform/models"

	"github.com/xuri/excelize/v2"
)

const (
	claimsSheetName  = "Claims"
	summarySheetName = "Summary"
	exportPageSize   = 1000

	// XLSXContentType is the media type of the exported workbook
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var claimExportHeaders = []string{
	"Claim ID", "Status", "Submitted At", "Updated At",
	"Provider Type", "Provider Name", "Provider NPI", "Network Status",
	"Patient Name", "Insurance Provider", "Insurance ID",
	"Service Type", "Service Date", "Total Charge", "CPT Code", "Diagnosis Code",
	"Files",
}

// ClaimLister pages through claims
type ClaimLister interface {
	List(ctx context.Context, query models.ClaimListQuery) ([]models.Claim, int64, error)
}

// ClaimExport is a generated workbook
type ClaimExport struct {
	Filename    string
	Content     []byte
	RecordCount int
}

// ExportService writes claims to an XLSX workbook
type ExportService struct {
	claims ClaimLister
	now    func() time.Time
}

func NewExportService(claims ClaimLister) *ExportService {
	return &ExportService{claims: claims, now: time.Now}
}

// ExportClaims exports every claim matching status (all when empty) newest first
func (es *ExportService) ExportClaims(ctx context.Context, status models.ClaimStatus) (*ClaimExport, error) {
	var all []models.Claim
	for offset := int64(0); ; offset += exportPageSize {
		page, total, err := es.claims.List(ctx, models.ClaimListQuery{
			Status: status,
			Limit:  exportPageSize,
			Offset: offset,
		})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) == 0 || int64(len(all)) >= total {
			break
		}
	}

	content, err := es.writeWorkbook(all, status)
	if err != nil {
		return nil, err
	}

	logger.Info("Claims exported", "records", len(all), "status", string(status))
	return &ClaimExport{
		Filename:    fmt.Sprintf("claims_%s.xlsx", es.now().UTC().Format("20060102_150405")),
		Content:     content,
		RecordCount: len(all),
	}, nil
}

func (es *ExportService) writeWorkbook(claims []models.Claim, status models.ClaimStatus) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("Error closing Excel file", "error", err)
		}
	}()

	if err := f.SetSheetName("Sheet1", claimsSheetName); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	if err := setRow(f, claimsSheetName, 1, toCells(claimExportHeaders)); err != nil {
		return nil, err
	}

	counts := make(map[models.ClaimStatus]int)
	for i, c := range claims {
		counts[c.Status]++

		updated := ""
		if c.UpdatedAt != nil {
			updated = c.UpdatedAt.UTC().Format(time.RFC3339)
		}
		row := []interface{}{
			c.ClaimID, string(c.Status), c.SubmittedAt.UTC().Format(time.RFC3339), updated,
			c.Provider.ProviderType, c.Provider.ProviderName, c.Provider.ProviderNPI, c.Provider.NetworkStatus,
			c.Patient.PatientName, c.Patient.PatientInsuranceProvider, c.Patient.PatientInsuranceID,
			c.Service.ServiceType, c.Service.ServiceDate, c.Service.TotalCharge, c.Service.CPTCode, c.Service.DiagnosisCode,
			strings.Join(c.FileReferences(), ", "),
		}
		if err := setRow(f, claimsSheetName, i+2, row); err != nil {
			return nil, err
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(claimExportHeaders))
	if err := f.SetColWidth(claimsSheetName, "A", lastCol, 18); err != nil {
		return nil, fmt.Errorf("failed to size columns: %w", err)
	}

	if _, err := f.NewSheet(summarySheetName); err != nil {
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}

	filter := string(status)
	if filter == "" {
		filter = "all"
	}
	summary := [][]interface{}{
		{"Export Date", es.now().UTC().Format("2006-01-02 15:04:05")},
		{"Status Filter", filter},
		{"Total Records", len(claims)},
		{"", ""},
		{"Status", "Count"},
	}
	for _, s := range models.ClaimStatuses {
		summary = append(summary, []interface{}{string(s), counts[s]})
	}
	for i, row := range summary {
		if err := setRow(f, summarySheetName, i+1, row); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

func toCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}
