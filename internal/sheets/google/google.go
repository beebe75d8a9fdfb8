package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	ports "fintrack/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const defaultCacheValidDuration = 5 * time.Minute

// Options configures the ledger client. It authenticates with a service
// account (CredentialsJSON or CredentialsFile) or with a saved OAuth user
// token, unless ClientOptions already carry auth.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string

	OAuthClientJSON string
	OAuthClientFile string
	// OAuthTokenFile is written by cmd/oauth-init.
	OAuthTokenFile string
	// Extra options passed to the Sheets service (endpoint overrides in tests).
	ClientOptions []goption.ClientOption
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string

	// Row index cache: transaction id -> 1-based sheet row.
	mu                 sync.Mutex
	rowIndex           map[int64]int
	cachedRowCount     int
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
}

// Ensure interface conformance
var (
	_ ports.LedgerWriter = (*Client)(nil)
	_ ports.LedgerReader = (*Client)(nil)
)

func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheetName := strings.TrimSpace(opts.SheetName)
	if sheetName == "" {
		sheetName = "Ledger"
	}

	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:                svc,
		spreadsheetID:      opts.SpreadsheetID,
		sheetName:          sheetName,
		cacheValidDuration: defaultCacheValidDuration,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	clientOpts := append([]goption.ClientOption{}, opts.ClientOptions...)

	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		credentialsJSON = []byte(opts.CredentialsJSON)
	case strings.TrimSpace(opts.CredentialsFile) != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", opts.CredentialsFile)
		data, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	case strings.TrimSpace(opts.OAuthTokenFile) != "":
		slog.InfoContext(ctx, "Using OAuth user token", "path", opts.OAuthTokenFile)
		ts, err := oauthTokenSource(ctx, opts)
		if err != nil {
			return nil, err
		}
		clientOpts = append(clientOpts, goption.WithTokenSource(ts))
	case len(clientOpts) == 0:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}

	if credentialsJSON != nil {
		clientOpts = append(clientOpts,
			goption.WithCredentialsJSON(credentialsJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope))
	}

	service, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// Upsert writes row over the existing line for its transaction id, or
// appends a new line at the end of the sheet.
func (c *Client) Upsert(ctx context.Context, row ports.LedgerRow) (string, error) {
	if row.TransactionID <= 0 {
		return "", errors.New("ledger row without transaction id")
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	rowNum, found, err := c.findRow(ctx, row.TransactionID)
	if err != nil {
		return "", err
	}
	if !found {
		c.mu.Lock()
		rowNum = c.cachedRowCount + 1
		c.mu.Unlock()
	}

	rng := fmt.Sprintf("%s!A%d:J%d", c.sheetName, rowNum, rowNum)
	vr := &gsheet.ValueRange{Values: [][]any{rowValues(row, time.Now().UTC())}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		c.invalidateRowCache()
		return "", fmt.Errorf("failed to update %s: %w", rng, err)
	}

	if !found {
		c.mu.Lock()
		c.rowIndex[row.TransactionID] = rowNum
		c.cachedRowCount = rowNum
		c.mu.Unlock()
	}
	return rng, nil
}

// MarkDeleted flips the status column of the transaction's row.
func (c *Client) MarkDeleted(ctx context.Context, transactionID int64) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	rowNum, found, err := c.findRow(ctx, transactionID)
	if err != nil {
		return err
	}
	if !found {
		slog.WarnContext(ctx, "Ledger row not found for deleted transaction", "transaction_id", transactionID)
		return nil
	}

	rng := fmt.Sprintf("%s!I%d:J%d", c.sheetName, rowNum, rowNum)
	vr := &gsheet.ValueRange{Values: [][]any{{ports.StatusDeleted, time.Now().UTC().Format(time.RFC3339)}}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", rng, err)
	}
	return nil
}

// ListRows reads every ledger line, skipping the header and malformed rows.
func (c *Client) ListRows(ctx context.Context) ([]ports.LedgerRow, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:J", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	var out []ports.LedgerRow
	for _, raw := range resp.Values {
		if row, ok := parseLedgerRow(toStrings(raw)); ok {
			out = append(out, row)
		}
	}
	return out, nil
}

// findRow returns the 1-based row holding transactionID. The index is served
// from cache while it is fresh; a miss reloads column A, writing the header
// first when the sheet is empty.
func (c *Client) findRow(ctx context.Context, transactionID int64) (int, bool, error) {
	c.mu.Lock()
	if c.rowIndex != nil && time.Now().Before(c.cacheExpiresAt) {
		if n, ok := c.rowIndex[transactionID]; ok {
			c.mu.Unlock()
			return n, true, nil
		}
	}
	c.mu.Unlock()

	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, false, fmt.Errorf("failed to read ids from %s: %w", c.sheetName, err)
	}

	values := resp.Values
	if len(values) == 0 {
		if err := c.writeHeader(ctx); err != nil {
			return 0, false, err
		}
		values = [][]any{{headerRow[0]}}
	}

	index := indexRows(values)

	c.mu.Lock()
	c.rowIndex = index
	c.cachedRowCount = len(values)
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
	c.mu.Unlock()

	n, ok := index[transactionID]
	return n, ok, nil
}

func (c *Client) writeHeader(ctx context.Context) error {
	rng := fmt.Sprintf("%s!A1:J1", c.sheetName)
	vr := &gsheet.ValueRange{Values: [][]any{headerRow}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

func (c *Client) invalidateRowCache() {
	c.mu.Lock()
	c.cacheExpiresAt = time.Time{}
	c.mu.Unlock()
}

// indexRows maps transaction ids in column A to their 1-based row numbers.
func indexRows(values [][]any) map[int64]int {
	index := make(map[int64]int, len(values))
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(fmt.Sprint(row[0])), 10, 64)
		if err != nil {
			continue
		}
		index[id] = i + 1
	}
	return index
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
