package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

const (
	spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"
	valueInputOption    = "USER_ENTERED"
)

// Lookup errors.
var (
	ErrSpreadsheetNotFound = errors.New("spreadsheet not found")
	ErrWorksheetNotFound   = errors.New("worksheet not found")
)

// GoogleOpener opens worksheets through the Sheets and Drive APIs.
type GoogleOpener struct {
	sheets *gsheets.Service
	drive  *drive.Service
}

// NewGoogleOpener authenticates with a service account. credentials is either
// the raw JSON key or a path to it. Extra options are applied to both clients.
func NewGoogleOpener(ctx context.Context, credentials string, opts ...option.ClientOption) (*GoogleOpener, error) {
	all := append([]option.ClientOption{credentialsOption(credentials)}, opts...)
	all = append(all, option.WithScopes(gsheets.SpreadsheetsScope, drive.DriveReadonlyScope))

	sheetsSvc, err := gsheets.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}
	driveSvc, err := drive.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create drive client: %w", err)
	}
	return NewGoogleOpenerWithServices(sheetsSvc, driveSvc), nil
}

// NewGoogleOpenerWithServices wraps preconfigured clients.
func NewGoogleOpenerWithServices(sheetsSvc *gsheets.Service, driveSvc *drive.Service) *GoogleOpener {
	return &GoogleOpener{sheets: sheetsSvc, drive: driveSvc}
}

func credentialsOption(credentials string) option.ClientOption {
	trimmed := strings.TrimSpace(credentials)
	if strings.HasPrefix(trimmed, "{") {
		return option.WithCredentialsJSON([]byte(trimmed))
	}
	if trimmed == "" {
		trimmed = "creds.json"
	}
	return option.WithCredentialsFile(trimmed)
}

// Open finds the spreadsheet by exact name and checks the worksheet exists.
func (o *GoogleOpener) Open(ctx context.Context, spreadsheet, worksheet string) (Worksheet, error) {
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false", escapeQuery(spreadsheet), spreadsheetMimeType)
	list, err := o.drive.Files.List().
		Q(q).
		Fields("files(id, name)").
		PageSize(1).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("find spreadsheet %q: %w", spreadsheet, err)
	}
	if len(list.Files) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrSpreadsheetNotFound, spreadsheet)
	}
	id := list.Files[0].Id

	doc, err := o.sheets.Spreadsheets.Get(id).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get spreadsheet %q: %w", spreadsheet, err)
	}
	for _, sh := range doc.Sheets {
		if sh.Properties != nil && sh.Properties.Title == worksheet {
			return &googleWorksheet{svc: o.sheets, spreadsheetID: id, title: worksheet}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q in %q", ErrWorksheetNotFound, worksheet, spreadsheet)
}

type googleWorksheet struct {
	svc           *gsheets.Service
	spreadsheetID string
	title         string
}

func (w *googleWorksheet) Clear(ctx context.Context) error {
	_, err := w.svc.Spreadsheets.Values.Clear(w.spreadsheetID, quoteTitle(w.title), &gsheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("clear values: %w", err)
	}
	return nil
}

func (w *googleWorksheet) Update(ctx context.Context, cell string, rows [][]any) error {
	rng := quoteTitle(w.title) + "!" + cell
	_, err := w.svc.Spreadsheets.Values.Update(w.spreadsheetID, rng, &gsheets.ValueRange{Values: rows}).
		ValueInputOption(valueInputOption).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update values: %w", err)
	}
	return nil
}

// quoteTitle renders a worksheet title as an A1 sheet reference.
func quoteTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "'", `\'`)
}
