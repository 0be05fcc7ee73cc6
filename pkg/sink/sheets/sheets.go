// Package sheets appends daily metric rows to a Google Sheets tab.
package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/fitglue/healthsync/pkg/dailymetrics"
)

const (
	valueInputUserEntered = "USER_ENTERED"
	valueInputRaw         = "RAW"
	insertRows            = "INSERT_ROWS"
)

// Sink writes one row per record. Rows are only ever appended; a rerun for
// the same date adds a second row.
type Sink struct {
	Service       *sheets.Service
	SpreadsheetID string
	SheetName     string
	Logger        *slog.Logger

	mu    sync.Mutex
	ready bool
}

// New builds a Sink on an authorized HTTP client. Extra options are passed to
// the Sheets client (tests point it at a local endpoint).
func New(ctx context.Context, client *http.Client, spreadsheetID, sheetName string, logger *slog.Logger, opts ...option.ClientOption) (*Sink, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		Service:       svc,
		SpreadsheetID: spreadsheetID,
		SheetName:     sheetName,
		Logger:        logger.With("component", "sheets"),
	}, nil
}

// AppendRow appends rec after the last row of the sheet's table. The first
// append through a Sink creates the sheet, with its header row, when it is
// missing.
func (s *Sink) AppendRow(ctx context.Context, rec *dailymetrics.Record) error {
	if err := s.prepare(ctx); err != nil {
		return err
	}

	vr := &sheets.ValueRange{Values: [][]interface{}{rec.Values()}}

	resp, err := s.Service.Spreadsheets.Values.Append(s.SpreadsheetID, quoteSheet(s.SheetName), vr).
		ValueInputOption(valueInputUserEntered).
		InsertDataOption(insertRows).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", s.SheetName, err)
	}

	rowNumber := 0
	if resp.Updates != nil {
		rowNumber = RowNumber(resp.Updates.UpdatedRange)
	}
	s.Logger.Info("Appended row", "date", rec.Date, "spreadsheet_id", s.SpreadsheetID, "row_number", rowNumber)
	return nil
}

// Reset clears the sheet and writes the header row, creating the sheet when
// it does not exist. Row 1 is frozen.
func (s *Sink) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sheetID, _, err := s.ensureSheet(ctx)
	if err != nil {
		return err
	}
	s.ready = true

	if _, err := s.Service.Spreadsheets.Values.Clear(s.SpreadsheetID, quoteSheet(s.SheetName), &sheets.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", s.SheetName, err)
	}
	if err := s.writeHeader(ctx, sheetID); err != nil {
		return err
	}

	s.Logger.Info("Reset sheet", "spreadsheet_id", s.SpreadsheetID, "sheet", s.SheetName)
	return nil
}

// prepare runs ensureSheet once per Sink. A failed check is retried on the
// next append.
func (s *Sink) prepare(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}

	sheetID, created, err := s.ensureSheet(ctx)
	if err != nil {
		return err
	}
	if created {
		if err := s.writeHeader(ctx, sheetID); err != nil {
			return err
		}
	}
	s.ready = true
	return nil
}

func (s *Sink) writeHeader(ctx context.Context, sheetID int64) error {
	header := make([]interface{}, len(dailymetrics.Headers))
	for i, h := range dailymetrics.Headers {
		header[i] = h
	}
	if _, err := s.Service.Spreadsheets.Values.Update(s.SpreadsheetID, quoteSheet(s.SheetName)+"!A1", &sheets.ValueRange{
		Values: [][]interface{}{header},
	}).ValueInputOption(valueInputRaw).Context(ctx).Do(); err != nil {
		return fmt.Errorf("write headers: %w", err)
	}

	freeze := &sheets.BatchUpdateSpreadsheetRequest{Requests: []*sheets.Request{{
		UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
			Properties: &sheets.SheetProperties{
				SheetId:         sheetID,
				GridProperties:  &sheets.GridProperties{FrozenRowCount: 1},
				ForceSendFields: []string{"SheetId"},
			},
			Fields: "gridProperties.frozenRowCount",
		},
	}}}
	if _, err := s.Service.Spreadsheets.BatchUpdate(s.SpreadsheetID, freeze).Context(ctx).Do(); err != nil {
		return fmt.Errorf("freeze header row: %w", err)
	}
	return nil
}

// ensureSheet returns the sheet's ID, adding the sheet when the spreadsheet
// has no tab by that name. created reports whether it was added.
func (s *Sink) ensureSheet(ctx context.Context) (sheetID int64, created bool, err error) {
	ss, err := s.Service.Spreadsheets.Get(s.SpreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, false, fmt.Errorf("look up sheet %s: %w", s.SheetName, err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == s.SheetName {
			return sh.Properties.SheetId, false, nil
		}
	}

	add := &sheets.BatchUpdateSpreadsheetRequest{Requests: []*sheets.Request{{
		AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: s.SheetName}},
	}}}
	resp, err := s.Service.Spreadsheets.BatchUpdate(s.SpreadsheetID, add).Context(ctx).Do()
	if err != nil {
		return 0, false, fmt.Errorf("create sheet %s: %w", s.SheetName, err)
	}
	s.Logger.Info("Created sheet", "sheet", s.SheetName)
	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil || resp.Replies[0].AddSheet.Properties == nil {
		return 0, false, fmt.Errorf("create sheet %s: empty reply", s.SheetName)
	}
	return resp.Replies[0].AddSheet.Properties.SheetId, true, nil
}

// RowNumber extracts the first row from an A1 range such as
// "'Fitbit Data'!A5:R5". It returns 0 when the range has no row.
func RowNumber(updatedRange string) int {
	cells := updatedRange
	if i := strings.LastIndex(cells, "!"); i >= 0 {
		cells = cells[i+1:]
	}
	if i := strings.Index(cells, ":"); i >= 0 {
		cells = cells[:i]
	}
	digits := strings.TrimLeft(cells, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
