// Package google reads asset rows from a Google Sheets range.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"asetmon/internal/sheets"
)

// Options configures the Sheets client.
type Options struct {
	SpreadsheetID          string
	Range                  string
	ServiceAccountJSON     string
	ServiceAccountFile     string
	ExtraClientOptions     []goption.ClientOption
	SkipServiceAccountAuth bool
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	readRange     string
}

var _ sheets.RowSource = (*Client)(nil)

// New creates a Sheets client. When no credentials are given, the file named by
// GOOGLE_APPLICATION_CREDENTIALS is used.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(opts.Range) == "" {
		opts.Range = "Sheet1!A:J"
	}
	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: opts.SpreadsheetID, readRange: opts.Range}, nil
}

// newSheetsService initializes a read-only Sheets service using Service Account credentials.
func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	clientOpts := append([]goption.ClientOption{}, opts.ExtraClientOptions...)
	if !opts.SkipServiceAccountAuth {
		credentialsJSON, err := loadCredentials(opts)
		if err != nil {
			return nil, err
		}
		clientOpts = append(clientOpts,
			goption.WithCredentialsJSON(credentialsJSON),
			goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	}

	service, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created")
	return service, nil
}

func loadCredentials(opts Options) ([]byte, error) {
	file := strings.TrimSpace(opts.ServiceAccountFile)
	if strings.TrimSpace(opts.ServiceAccountJSON) == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	switch {
	case strings.TrimSpace(opts.ServiceAccountJSON) != "":
		return []byte(opts.ServiceAccountJSON), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

func (c *Client) Name() string {
	return "sheets:" + c.spreadsheetID
}

// ReadRows fetches the configured range with unformatted values, so dates
// come back as serial numbers like they do from an .xlsx file.
func (c *Client) ReadRows(ctx context.Context) ([][]string, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.readRange).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("SERIAL_NUMBER").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("read range %s: %w", c.readRange, err)
	}
	rows := make([][]string, len(resp.Values))
	for i, r := range resp.Values {
		rows[i] = toStrings(r)
	}
	return rows, nil
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		switch x := v.(type) {
		case nil:
			out[i] = ""
		case float64:
			out[i] = strconv.FormatFloat(x, 'f', -1, 64)
		case bool:
			out[i] = strconv.FormatBool(x)
		default:
			out[i] = strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return out
}
