// Package google stores remote documents in a Google spreadsheet. Every
// user-scoped collection gets its own tab; each row is [id, json].
package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"ledger/internal/cache"
	"ledger/internal/log"
	ports "ledger/internal/sheets"

	"golang.org/x/sync/singleflight"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const sheetIDCacheTTL = 10 * time.Minute

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetIDs      *cache.LRU[string, int64]
	logger        *log.Logger

	// lookups collapses concurrent spreadsheet metadata fetches.
	lookups singleflight.Group

	// Row indexes are only valid until the next write to the tab, so every
	// find-then-write sequence holds the tab's lock.
	tabsMu sync.Mutex
	tabs   map[string]*sync.Mutex
}

// Ensure interface conformance
var _ ports.DocumentStore = (*Client)(nil)

// Options configures the service account used to reach the spreadsheet.
type Options struct {
	SpreadsheetID   string
	CredentialsJSON string
	CredentialsFile string
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options, logger *log.Logger) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}

	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		credentialsJSON = []byte(opts.CredentialsJSON)
	case strings.TrimSpace(opts.CredentialsFile) != "":
		data, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
		goption.WithHTTPClient(newHTTPClientWithPooling()))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, spreadsheetID, logger), nil
}

// NewWithService wraps an already configured Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetIDs:      cache.NewLRU[string, int64](256, sheetIDCacheTTL),
		logger:        logger.WithComponent(log.ComponentSheets),
		tabs:          make(map[string]*sync.Mutex),
	}
}

// newHTTPClientWithPooling creates an HTTP client for the Sheets API with
// connection pooling and bounded timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// SheetTitle is the tab holding scope's documents.
func SheetTitle(scope ports.Scope) string {
	return scope.UserID + " " + string(scope.Collection)
}

// a1 quotes title for use in an A1 range.
func a1(title, cells string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'!" + cells
}

func (c *Client) Upsert(ctx context.Context, scope ports.Scope, doc ports.Document) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if strings.TrimSpace(doc.ID) == "" {
		return errors.New("document id is required")
	}

	title := SheetTitle(scope)
	defer c.lockTab(title)()

	if _, err := c.ensureSheet(ctx, title); err != nil {
		return err
	}

	row, err := c.findRow(ctx, title, doc.ID)
	if err != nil {
		return err
	}
	vr := &gsheet.ValueRange{Values: [][]any{{doc.ID, string(doc.Data)}}}

	if row >= 0 {
		rng := a1(title, fmt.Sprintf("A%d:B%d", row+1, row+1))
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
			ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			return fmt.Errorf("update %s: %w", rng, err)
		}
		return nil
	}

	rng := a1(title, "A:B")
	if _, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do(); err != nil {
		return fmt.Errorf("append %s: %w", rng, err)
	}
	return nil
}

func (c *Client) List(ctx context.Context, scope ports.Scope) ([]ports.Document, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}

	title := SheetTitle(scope)
	if _, ok, err := c.sheetID(ctx, title); err != nil {
		return nil, err
	} else if !ok {
		return []ports.Document{}, nil
	}

	rng := a1(title, "A:B")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	out := make([]ports.Document, 0, len(resp.Values))
	for _, row := range resp.Values {
		cols := toStrings(row)
		if len(cols) < 2 || cols[0] == "" {
			continue
		}
		out = append(out, ports.Document{ID: cols[0], Data: []byte(cols[1])})
	}
	return out, nil
}

func (c *Client) Delete(ctx context.Context, scope ports.Scope, id string) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	title := SheetTitle(scope)
	defer c.lockTab(title)()

	sheetID, ok, err := c.sheetID(ctx, title)
	if err != nil || !ok {
		return err
	}
	row, err := c.findRow(ctx, title, id)
	if err != nil || row < 0 {
		return err
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		DeleteDimension: &gsheet.DeleteDimensionRequest{Range: &gsheet.DimensionRange{
			SheetId:    sheetID,
			Dimension:  "ROWS",
			StartIndex: int64(row),
			EndIndex:   int64(row + 1),
			// Zero is a valid sheet id and row index.
			ForceSendFields: []string{"SheetId", "StartIndex"},
		}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d in %s: %w", row+1, title, err)
	}
	return nil
}

// lockTab locks the tab named title and returns the matching unlock.
func (c *Client) lockTab(title string) func() {
	c.tabsMu.Lock()
	if c.tabs == nil {
		c.tabs = make(map[string]*sync.Mutex)
	}
	mu, ok := c.tabs[title]
	if !ok {
		mu = &sync.Mutex{}
		c.tabs[title] = mu
	}
	c.tabsMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// findRow returns the zero-based row holding id in column A, or -1.
func (c *Client) findRow(ctx context.Context, title, id string) (int, error) {
	rng := a1(title, "A:A")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return -1, fmt.Errorf("read %s: %w", rng, err)
	}
	for i, row := range resp.Values {
		if len(row) > 0 && strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i, nil
		}
	}
	return -1, nil
}

// sheetID resolves a tab title, consulting the cache before the API.
func (c *Client) sheetID(ctx context.Context, title string) (int64, bool, error) {
	if id, ok := c.sheetIDs.Get(title); ok {
		return id, true, nil
	}
	v, err, _ := c.lookups.Do("sheets", func() (any, error) {
		ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("get spreadsheet: %w", err)
		}
		ids := make(map[string]int64, len(ss.Sheets))
		for _, sh := range ss.Sheets {
			if sh.Properties == nil {
				continue
			}
			c.sheetIDs.Set(sh.Properties.Title, sh.Properties.SheetId)
			ids[sh.Properties.Title] = sh.Properties.SheetId
		}
		return ids, nil
	})
	if err != nil {
		return 0, false, err
	}
	id, found := v.(map[string]int64)[title]
	return id, found, nil
}

// ensureSheet returns the id of the tab named title, adding the tab first
// when it does not exist. Callers hold the tab's lock.
func (c *Client) ensureSheet(ctx context.Context, title string) (int64, error) {
	id, ok, err := c.sheetID(ctx, title)
	if err != nil {
		return 0, err
	}
	if ok {
		return id, nil
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
	}}}
	resp, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("add sheet %s: %w", title, err)
	}
	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil || resp.Replies[0].AddSheet.Properties == nil {
		return 0, fmt.Errorf("add sheet %s: empty reply", title)
	}
	id = resp.Replies[0].AddSheet.Properties.SheetId
	c.sheetIDs.Set(title, id)
	c.logger.InfoContext(ctx, "Created collection sheet", "sheet", title, "sheet_id", id)
	return id, nil
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
