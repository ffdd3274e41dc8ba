// Package sheets reads and writes the lead spreadsheet through the Google Sheets API.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"leadboard/internal/apperr"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

// Source is the spreadsheet as seen by the sync engine. Ranges use A1 notation.
type Source interface {
	ReadRange(ctx context.Context, rng string) ([][]string, error)
	WriteRange(ctx context.Context, rng string, values [][]string) error
}

// Client talks to one spreadsheet with a service account. Reads go through a
// read-only scoped service, writes through a read-write one.
type Client struct {
	spreadsheetID string
	reader        *gsheets.Service
	writer        *gsheets.Service
	log           *zap.Logger
}

// NewClient builds both services from the service-account key file.
func NewClient(ctx context.Context, spreadsheetID, credentialsFile string, log *zap.Logger) (*Client, error) {
	if credentialsFile == "" {
		return nil, fmt.Errorf("credentials file not configured: %w", apperr.ErrAuthenticationMissing)
	}
	if _, err := os.Stat(credentialsFile); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("credentials file %s: %w", credentialsFile, apperr.ErrAuthenticationMissing)
		}
		return nil, fmt.Errorf("stat credentials file: %w", err)
	}

	reader, err := gsheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gsheets.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create read-only sheets service: %w", err)
	}
	writer, err := gsheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gsheets.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create read-write sheets service: %w", err)
	}

	return &Client{
		spreadsheetID: spreadsheetID,
		reader:        reader,
		writer:        writer,
		log:           log.Named("sheets"),
	}, nil
}

func (c *Client) ReadRange(ctx context.Context, rng string) ([][]string, error) {
	resp, err := c.reader.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, apperr.Upstream("read "+rng, err)
	}
	c.log.Debug("range read", zap.String("range", rng), zap.Int("rows", len(resp.Values)))
	return stringify(resp.Values), nil
}

func (c *Client) WriteRange(ctx context.Context, rng string, values [][]string) error {
	rows := make([][]interface{}, len(values))
	for i, row := range values {
		rows[i] = make([]interface{}, len(row))
		for j, cell := range row {
			rows[i][j] = cell
		}
	}

	_, err := c.writer.Spreadsheets.Values.
		Update(c.spreadsheetID, rng, &gsheets.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return apperr.Upstream("write "+rng, err)
	}
	c.log.Debug("range written", zap.String("range", rng))
	return nil
}

func stringify(values [][]interface{}) [][]string {
	out := make([][]string, len(values))
	for i, row := range values {
		out[i] = make([]string, len(row))
		for j, cell := range row {
			if cell == nil {
				continue
			}
			switch v := cell.(type) {
			case string:
				out[i][j] = v
			case float64:
				out[i][j] = strconv.FormatFloat(v, 'f', -1, 64)
			default:
				out[i][j] = fmt.Sprint(v)
			}
		}
	}
	return out
}
