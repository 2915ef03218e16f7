package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fintrack/fintrack/internal/config"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

var ErrSheetsNotConfigured = errors.New("spreadsheet id is not configured")

type Exporter interface {
	Export(ctx context.Context, report Report) error
}

// SheetsExporter appends reconciliation reports to a Google spreadsheet.
type SheetsExporter struct {
	service       *sheets.Service
	spreadsheetId string
	sheetName     string
}

// NewSheetsExporter authenticates with the service account in cfg.CredentialsFile, or with the
// application default credentials when no file is configured.
func NewSheetsExporter(ctx context.Context, cfg config.Sheets) (*SheetsExporter, error) {
	if strings.TrimSpace(cfg.SpreadsheetId) == "" {
		return nil, ErrSheetsNotConfigured
	}

	var credentials *google.Credentials
	if cfg.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials file: %w", err)
		}
		credentials, err = google.CredentialsFromJSON(ctx, data, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("parse credentials: %w", err)
		}
	} else {
		var err error
		credentials, err = google.FindDefaultCredentials(ctx, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("find default credentials: %w", err)
		}
	}

	service, err := sheets.NewService(ctx, option.WithCredentials(credentials))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewSheetsExporterWithService(service, cfg.SpreadsheetId, cfg.SheetName), nil
}

func NewSheetsExporterWithService(service *sheets.Service, spreadsheetId string, sheetName string) *SheetsExporter {
	if sheetName == "" {
		sheetName = "Reconciliation"
	}
	return &SheetsExporter{service: service, spreadsheetId: spreadsheetId, sheetName: sheetName}
}

func (e *SheetsExporter) Export(ctx context.Context, report Report) error {
	values := sheetValues(report)
	_, err := e.service.Spreadsheets.Values.
		Append(e.spreadsheetId, e.sheetName+"!A1", &sheets.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		log.Errorf("failed to export reconciliation report of user %d: %v", report.UserId, err)
		return fmt.Errorf("append report rows: %w", err)
	}
	log.Infof("exported reconciliation report of user %d (%d rows)", report.UserId, len(values))
	return nil
}

func sheetValues(report Report) [][]interface{} {
	rows := reportRows(report)
	values := make([][]interface{}, 0, len(rows))
	for _, row := range rows {
		cells := make([]interface{}, len(row))
		for i, cell := range row {
			cells[i] = cell
		}
		values = append(values, cells)
	}
	return values
}
