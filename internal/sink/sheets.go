package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/oauth2/google"

	"github.com/letinc/beacon/internal/pkg/httpretry"
)

const (
	sheetsScope   = "https://www.googleapis.com/auth/spreadsheets"
	sheetsBaseURL = "https://sheets.googleapis.com"
)

// SheetsSink appends rows to worksheets of one Google spreadsheet via the
// values:append endpoint. The table name is the worksheet title.
type SheetsSink struct {
	client        httpretry.HTTPDoer
	baseURL       string
	spreadsheetID string
}

// NewSheetsSink builds a sink authenticated with the service-account JSON
// key at credentialsFile.
func NewSheetsSink(ctx context.Context, spreadsheetID, credentialsFile string) (*SheetsSink, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}

	conf, err := google.JWTConfigFromJSON(data, sheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}

	// conf.Client handles token fetch/refresh; the retry wrapper covers
	// transient Sheets API failures on top of it.
	hc := conf.Client(ctx)
	hc.Timeout = 30 * time.Second

	return &SheetsSink{
		client:        httpretry.New(hc, 2),
		baseURL:       sheetsBaseURL,
		spreadsheetID: spreadsheetID,
	}, nil
}

// NewSheetsSinkWithClient builds a sink against a custom endpoint and HTTP
// client. Used by tests.
func NewSheetsSinkWithClient(client httpretry.HTTPDoer, baseURL, spreadsheetID string) *SheetsSink {
	return &SheetsSink{client: client, baseURL: baseURL, spreadsheetID: spreadsheetID}
}

type appendRequest struct {
	Values [][]string `json:"values"`
}

// Append writes rows to the named worksheet, preserving row order.
// USER_ENTERED keeps timestamp strings parseable inside the sheet.
func (s *SheetsSink) Append(ctx context.Context, table string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	body, err := json.Marshal(appendRequest{Values: rows})
	if err != nil {
		return &Error{Table: table, Err: fmt.Errorf("marshal rows: %w", err)}
	}

	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s:append?valueInputOption=USER_ENTERED&insertDataOption=INSERT_ROWS",
		s.baseURL, url.PathEscape(s.spreadsheetID), url.PathEscape(table))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &Error{Table: table, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return &Error{Table: table, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &Error{
			Table:      table,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("sheets API: %s", string(msg)),
		}
	}

	io.Copy(io.Discard, resp.Body)
	return nil
}
