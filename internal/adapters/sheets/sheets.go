// Package sheets appends one row per produced video to a Google Sheets log,
// provisioning the spreadsheet on first use.
package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	gsheets "google.golang.org/api/sheets/v4"

	"avatarpipe/internal/googleauth"
	"avatarpipe/internal/pkg/logger"
)

const (
	// TabName is the worksheet rows are appended to.
	TabName = "Video Generation Log"

	vendor    = "google-sheets"
	timestamp = "2006-01-02 15:04:05"
)

// Headers are the log columns, in order.
var Headers = []string{
	"Timestamp",
	"Script Name",
	"Script Length",
	"Audio File",
	"Video File",
	"Drive Link",
	"Status",
	"Duration (s)",
	"Error Message",
}

// Entry is one log row.
type Entry struct {
	Time         time.Time
	ScriptName   string
	ScriptLength int
	AudioFile    string
	VideoFile    string
	DriveLink    string
	Status       string
	Duration     time.Duration
	ErrorMessage string
}

// Values renders the entry in column order.
func (e Entry) Values() []any {
	ts := e.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	duration := ""
	if secs := int(e.Duration.Seconds()); secs > 0 {
		duration = strconv.Itoa(secs)
	}
	return []any{
		ts.Format(timestamp),
		e.ScriptName,
		fmt.Sprintf("%d chars", e.ScriptLength),
		e.AudioFile,
		e.VideoFile,
		e.DriveLink,
		e.Status,
		duration,
		e.ErrorMessage,
	}
}

// Result locates the appended row.
type Result struct {
	SheetID   string
	SheetLink string
	// Row is the 1-based row number, or 0 when the API did not report it.
	Row int
}

// IDStore remembers a newly provisioned spreadsheet ID.
type IDStore interface {
	PersistSheetID(id string) error
}

// Logger appends entries to the log sheet.
type Logger struct {
	srv   *gsheets.Service
	store IDStore
	log   *logger.Logger

	mu      sync.Mutex
	sheetID string
}

// New creates a Logger. sheetID may be empty; a spreadsheet is then created
// on the first Append and its ID handed to store.
func New(srv *gsheets.Service, sheetID string, store IDStore, log *logger.Logger) *Logger {
	return &Logger{
		srv:     srv,
		store:   store,
		log:     log.WithComponent("sheets"),
		sheetID: sheetID,
	}
}

// Link returns the browser URL of a spreadsheet.
func Link(sheetID string) string {
	return "https://docs.google.com/spreadsheets/d/" + sheetID
}

// Append writes e as a new row.
func (l *Logger) Append(ctx context.Context, e Entry) (Result, error) {
	const op = "sheets.append"

	sheetID, err := l.ensureSheet(ctx)
	if err != nil {
		return Result{}, err
	}

	resp, err := l.srv.Spreadsheets.Values.Append(sheetID, quoteRange("A:I"), &gsheets.ValueRange{
		Values: [][]any{e.Values()},
	}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return Result{}, googleauth.APIError(err, vendor, op, "append row")
	}

	res := Result{SheetID: sheetID, SheetLink: Link(sheetID)}
	if resp.Updates != nil {
		res.Row = parseRow(resp.Updates.UpdatedRange)
	}
	l.log.FromContext(ctx).Info("logged to sheet", "row", res.Row, "sheet_link", res.SheetLink)
	return res, nil
}

// ensureSheet returns a usable spreadsheet ID, creating one when none is
// configured or the configured one cannot be opened.
func (l *Logger) ensureSheet(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	log := l.log.FromContext(ctx)

	if l.sheetID != "" {
		_, err := l.srv.Spreadsheets.Get(l.sheetID).Fields("spreadsheetId").Context(ctx).Do()
		if err == nil {
			return l.sheetID, nil
		}
		log.Warn("configured sheet not accessible, creating a new one",
			"sheet_id", l.sheetID,
			"status", googleauth.StatusCode(err),
		)
	}

	id, err := l.create(ctx)
	if err != nil {
		return "", err
	}
	l.sheetID = id

	if l.store != nil {
		if err := l.store.PersistSheetID(id); err != nil {
			log.Warn("could not save sheet id", "sheet_id", id, "error", err.Error())
		} else {
			log.Info("sheet id saved", "sheet_id", id)
		}
	}
	return id, nil
}

func (l *Logger) create(ctx context.Context) (string, error) {
	const op = "sheets.create"

	created, err := l.srv.Spreadsheets.Create(&gsheets.Spreadsheet{
		Properties: &gsheets.SpreadsheetProperties{Title: TabName},
		Sheets: []*gsheets.Sheet{{
			Properties: &gsheets.SheetProperties{
				Title:          TabName,
				GridProperties: &gsheets.GridProperties{FrozenRowCount: 1},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return "", googleauth.APIError(err, vendor, op, "create spreadsheet")
	}

	id := created.SpreadsheetId
	l.log.FromContext(ctx).Info("spreadsheet created", "sheet_id", id)

	header := make([]any, len(Headers))
	for i, h := range Headers {
		header[i] = h
	}
	if _, err := l.srv.Spreadsheets.Values.Update(id, quoteRange("A1:I1"), &gsheets.ValueRange{
		Values: [][]any{header},
	}).ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return "", googleauth.APIError(err, vendor, op, "write header")
	}

	var gid int64
	if len(created.Sheets) > 0 && created.Sheets[0].Properties != nil {
		gid = created.Sheets[0].Properties.SheetId
	}
	if _, err := l.srv.Spreadsheets.BatchUpdate(id, &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: headerFormat(gid),
	}).Context(ctx).Do(); err != nil {
		// The log is usable without formatting.
		l.log.FromContext(ctx).Warn("could not format header", "sheet_id", id, "error", err.Error())
	}
	return id, nil
}

func headerFormat(gid int64) []*gsheets.Request {
	return []*gsheets.Request{
		{
			RepeatCell: &gsheets.RepeatCellRequest{
				Range: &gsheets.GridRange{
					SheetId:         gid,
					StartRowIndex:   0,
					EndRowIndex:     1,
					ForceSendFields: []string{"SheetId", "StartRowIndex"},
				},
				Cell: &gsheets.CellData{
					UserEnteredFormat: &gsheets.CellFormat{
						TextFormat:          &gsheets.TextFormat{Bold: true},
						BackgroundColor:     &gsheets.Color{Red: 0.2, Green: 0.4, Blue: 0.8},
						HorizontalAlignment: "CENTER",
					},
				},
				Fields: "userEnteredFormat(textFormat,backgroundColor,horizontalAlignment)",
			},
		},
		{
			AutoResizeDimensions: &gsheets.AutoResizeDimensionsRequest{
				Dimensions: &gsheets.DimensionRange{
					SheetId:         gid,
					Dimension:       "COLUMNS",
					StartIndex:      0,
					EndIndex:        int64(len(Headers)),
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		},
	}
}

func quoteRange(cells string) string {
	return "'" + TabName + "'!" + cells
}

// parseRow extracts the first row number from an A1 range such as
// "'Video Generation Log'!A7:I7".
func parseRow(updatedRange string) int {
	if i := strings.LastIndex(updatedRange, "!"); i >= 0 {
		updatedRange = updatedRange[i+1:]
	}
	if i := strings.Index(updatedRange, ":"); i >= 0 {
		updatedRange = updatedRange[:i]
	}
	row, err := strconv.Atoi(strings.TrimLeft(updatedRange, "ABCDEFGHIJKLMNOPQRSTUVWXYZ"))
	if err != nil {
		return 0
	}
	return row
}
