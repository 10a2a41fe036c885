package ledger

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"reelsweep/pkg/errors"
	"reelsweep/pkg/logger"
	"reelsweep/pkg/models"
	"reelsweep/pkg/ratelimit"
	"reelsweep/pkg/retry"
)

// Header is the canonical first row of the ledger sheet. Column
// positions are fixed; every read and write below addresses cells by
// these positions.
var Header = []string{
	"Date", "Username", "Link", "Reel ID",
	"Description", "Status", "YT Posted Date", "YT ID",
}

// Column letters for the cells the client updates individually.
const (
	colDescription = "E"
	colStatus      = "F"
	colPostedDate  = "G"
	colRemoteID    = "H"
)

// statusColumnIndex is the zero-based index of the status column,
// used by the dropdown and formatting requests.
const statusColumnIndex = 5

// API is the narrow surface of the spreadsheet service the client
// needs. Production code wraps the sheets/v4 service; tests supply a
// fake.
type API interface {
	// Get returns the cell values in rng.
	Get(ctx context.Context, rng string) ([][]interface{}, error)

	// Update overwrites the cells in rng with values.
	Update(ctx context.Context, rng string, values [][]interface{}) error

	// Append appends values as new rows after the table in rng.
	Append(ctx context.Context, rng string, values [][]interface{}) error

	// BatchUpdate applies structural requests (validation, formatting).
	BatchUpdate(ctx context.Context, reqs []*sheets.Request) error

	// NumericSheetID resolves the first sheet's numeric ID.
	NumericSheetID(ctx context.Context) (int64, error)
}

// sheetsAPI implements API on the real sheets/v4 service.
type sheetsAPI struct {
	svc           *sheets.Service
	spreadsheetID string
}

// NewSheetsAPI builds the production API from a service-account
// credentials file.
func NewSheetsAPI(ctx context.Context, credentialsFile, spreadsheetID string) (API, error) {
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeConfig, "failed to create sheets service", err)
	}
	return &sheetsAPI{svc: svc, spreadsheetID: spreadsheetID}, nil
}

func (a *sheetsAPI) Get(ctx context.Context, rng string) ([][]interface{}, error) {
	resp, err := a.svc.Spreadsheets.Values.Get(a.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (a *sheetsAPI) Update(ctx context.Context, rng string, values [][]interface{}) error {
	_, err := a.svc.Spreadsheets.Values.Update(a.spreadsheetID, rng, &sheets.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	return err
}

func (a *sheetsAPI) Append(ctx context.Context, rng string, values [][]interface{}) error {
	_, err := a.svc.Spreadsheets.Values.Append(a.spreadsheetID, rng, &sheets.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	return err
}

func (a *sheetsAPI) BatchUpdate(ctx context.Context, reqs []*sheets.Request) error {
	_, err := a.svc.Spreadsheets.BatchUpdate(a.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: reqs,
	}).Context(ctx).Do()
	return err
}

func (a *sheetsAPI) NumericSheetID(ctx context.Context) (int64, error) {
	meta, err := a.svc.Spreadsheets.Get(a.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	if len(meta.Sheets) == 0 || meta.Sheets[0].Properties == nil {
		return 0, errors.New(errors.ErrorTypeNotFound, "spreadsheet has no sheets")
	}
	return meta.Sheets[0].Properties.SheetId, nil
}

// Client reads and writes the reel ledger. Every remote call passes
// through the shared rate limiter, a per-request timeout and the
// quota-aware retry policy.
type Client struct {
	api        API
	limiter    ratelimit.Limiter
	policy     *retry.Policy
	timeout    time.Duration
	formatting bool
	log        logger.Logger
}

// Options tunes a Client. Zero values get sensible defaults.
type Options struct {
	CallsPerMinute int
	MaxRetries     int
	RetryBaseDelay time.Duration

	// RequestTimeout bounds each individual API call. Default 30s.
	RequestTimeout time.Duration

	// ApplyFormatting installs the status dropdown and row colours
	// whenever the header row has to be rewritten.
	ApplyFormatting bool

	Logger logger.Logger
}

// NewClient wires a Client over api.
func NewClient(api API, opts Options) *Client {
	if opts.CallsPerMinute <= 0 {
		opts.CallsPerMinute = 55
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 2 * time.Second
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}

	policy := retry.NewPolicy(opts.MaxRetries, opts.RetryBaseDelay)
	policy.RetryIf = errors.IsQuotaError
	policy.Logger = opts.Logger

	return &Client{
		api:        api,
		limiter:    ratelimit.NewPerMinute(opts.CallsPerMinute),
		policy:     policy,
		timeout:    opts.RequestTimeout,
		formatting: opts.ApplyFormatting,
		log:        opts.Logger,
	}
}

// call runs fn under the rate limiter and retry policy. Each attempt
// gets its own timeout so a stalled request cannot eat the whole
// retry budget.
func (c *Client) call(ctx context.Context, fn func(ctx context.Context) error) error {
	return c.policy.Do(ctx, func() error {
		c.limiter.Wait()
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		return fn(callCtx)
	})
}

// EnsureSchema makes sure row 1 carries the canonical header. A bad
// header is rewritten, and the rewrite re-installs the status dropdown
// and row colouring when formatting is enabled. Formatting failures
// are logged and swallowed.
func (c *Client) EnsureSchema(ctx context.Context) error {
	var existing [][]interface{}
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		existing, err = c.api.Get(ctx, "A1:H1")
		return err
	})
	if err != nil {
		return errors.Wrap(errors.ErrorTypeServerError, "failed to read header row", err)
	}

	if headerMatches(existing) {
		return nil
	}

	row := make([]interface{}, len(Header))
	for i, h := range Header {
		row[i] = h
	}
	err = c.call(ctx, func(ctx context.Context) error {
		return c.api.Update(ctx, "A1:H1", [][]interface{}{row})
	})
	if err != nil {
		return errors.Wrap(errors.ErrorTypeServerError, "failed to write header row", err)
	}
	c.log.Info("ledger header row written")

	if c.formatting {
		if err := c.applyFormatting(ctx); err != nil {
			c.log.WithError(err).Warn("ledger formatting could not be applied")
		}
	}
	return nil
}

func headerMatches(rows [][]interface{}) bool {
	if len(rows) == 0 || len(rows[0]) < len(Header) {
		return false
	}
	for i, want := range Header {
		got, ok := rows[0][i].(string)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// applyFormatting installs the status dropdown and per-status row
// colours. Best effort.
func (c *Client) applyFormatting(ctx context.Context) error {
	var sheetID int64
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		sheetID, err = c.api.NumericSheetID(ctx)
		return err
	})
	if err != nil {
		return err
	}

	reqs := []*sheets.Request{statusDropdownRequest(sheetID)}
	reqs = append(reqs, statusColourRequests(sheetID)...)
	return c.call(ctx, func(ctx context.Context) error {
		return c.api.BatchUpdate(ctx, reqs)
	})
}

func statusDropdownRequest(sheetID int64) *sheets.Request {
	values := []*sheets.ConditionValue{
		{UserEnteredValue: string(models.StatusPending)},
		{UserEnteredValue: string(models.StatusProcessing)},
		{UserEnteredValue: string(models.StatusCompleted)},
		{UserEnteredValue: string(models.StatusFailed)},
	}
	return &sheets.Request{
		SetDataValidation: &sheets.SetDataValidationRequest{
			Range: &sheets.GridRange{
				SheetId:          sheetID,
				StartRowIndex:    1,
				StartColumnIndex: statusColumnIndex,
				EndColumnIndex:   statusColumnIndex + 1,
			},
			Rule: &sheets.DataValidationRule{
				Condition: &sheets.BooleanCondition{
					Type:   "ONE_OF_LIST",
					Values: values,
				},
				ShowCustomUi: true,
				Strict:       false,
			},
		},
	}
}

func statusColourRequests(sheetID int64) []*sheets.Request {
	colours := map[models.Status]*sheets.Color{
		models.StatusPending:    {Red: 1.0, Green: 0.95, Blue: 0.8},
		models.StatusProcessing: {Red: 0.8, Green: 0.9, Blue: 1.0},
		models.StatusCompleted:  {Red: 0.85, Green: 0.95, Blue: 0.85},
		models.StatusFailed:     {Red: 1.0, Green: 0.85, Blue: 0.85},
	}

	reqs := make([]*sheets.Request, 0, len(colours))
	for _, status := range []models.Status{
		models.StatusPending, models.StatusProcessing,
		models.StatusCompleted, models.StatusFailed,
	} {
		reqs = append(reqs, &sheets.Request{
			AddConditionalFormatRule: &sheets.AddConditionalFormatRuleRequest{
				Rule: &sheets.ConditionalFormatRule{
					Ranges: []*sheets.GridRange{{
						SheetId:        sheetID,
						StartRowIndex:  1,
						EndColumnIndex: int64(len(Header)),
					}},
					BooleanRule: &sheets.BooleanRule{
						Condition: &sheets.BooleanCondition{
							Type: "CUSTOM_FORMULA",
							Values: []*sheets.ConditionValue{
								{UserEnteredValue: fmt.Sprintf(`=$F2="%s"`, status)},
							},
						},
						Format: &sheets.CellFormat{
							BackgroundColor: colours[status],
						},
					},
				},
			},
		})
	}
	return reqs
}

// AllRows returns every data row below the header. Row numbers are
// 1-indexed sheet positions starting at 2.
func (c *Client) AllRows(ctx context.Context) ([]models.Reel, error) {
	var raw [][]interface{}
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		raw, err = c.api.Get(ctx, "A2:H")
		return err
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeServerError, "failed to read ledger rows", err)
	}

	reels := make([]models.Reel, 0, len(raw))
	for i, row := range raw {
		reels = append(reels, rowToReel(i+2, row))
	}
	return reels, nil
}

func rowToReel(rowNum int, row []interface{}) models.Reel {
	return models.Reel{
		Row:          rowNum,
		Date:         cell(row, 0),
		Username:     cell(row, 1),
		Link:         cell(row, 2),
		ID:           cell(row, 3),
		Description:  cell(row, 4),
		Status:       models.ParseStatus(cell(row, 5)),
		PostedDate:   cell(row, 6),
		RemoteFileID: cell(row, 7),
	}
}

func cell(row []interface{}, i int) string {
	if i >= len(row) {
		return ""
	}
	s, _ := row[i].(string)
	return s
}

// AppendBatch appends reels as new rows, defaulting empty dates to
// today and empty statuses to pending.
func (c *Client) AppendBatch(ctx context.Context, reels []models.Reel) error {
	if len(reels) == 0 {
		return nil
	}

	rows := make([][]interface{}, 0, len(reels))
	for _, r := range reels {
		date := r.Date
		if date == "" {
			date = models.FormatDate(time.Now())
		}
		status := r.Status
		if status == "" {
			status = models.StatusPending
		}
		rows = append(rows, []interface{}{
			date, r.Username, r.Link, r.ID,
			r.Description, string(status), r.PostedDate, r.RemoteFileID,
		})
	}

	err := c.call(ctx, func(ctx context.Context) error {
		return c.api.Append(ctx, "A:H", rows)
	})
	if err != nil {
		return errors.Wrap(errors.ErrorTypeServerError, "failed to append ledger rows", err)
	}
	c.log.WithField("rows", len(rows)).Info("ledger rows appended")
	return nil
}

// UpdateCell writes a single cell addressed by column letter and
// 1-indexed row.
func (c *Client) UpdateCell(ctx context.Context, column string, row int, value string) error {
	if row < 2 {
		return errors.New(errors.ErrorTypeValidation, fmt.Sprintf("row %d is not a data row", row))
	}
	rng := fmt.Sprintf("%s%d", column, row)
	err := c.call(ctx, func(ctx context.Context) error {
		return c.api.Update(ctx, rng, [][]interface{}{{value}})
	})
	if err != nil {
		return errors.Wrap(errors.ErrorTypeServerError, "failed to update cell "+rng, err)
	}
	return nil
}

// UpdateStatus sets the status cell of a row.
func (c *Client) UpdateStatus(ctx context.Context, row int, status models.Status) error {
	return c.UpdateCell(ctx, colStatus, row, string(status))
}

// UpdateDescription sets the description cell of a row.
func (c *Client) UpdateDescription(ctx context.Context, row int, description string) error {
	return c.UpdateCell(ctx, colDescription, row, description)
}

// UpdateRemoteInfo records the upload: posted date and remote file ID.
func (c *Client) UpdateRemoteInfo(ctx context.Context, row int, postedDate, fileID string) error {
	if row < 2 {
		return errors.New(errors.ErrorTypeValidation, fmt.Sprintf("row %d is not a data row", row))
	}
	rng := fmt.Sprintf("%s%d:%s%d", colPostedDate, row, colRemoteID, row)
	err := c.call(ctx, func(ctx context.Context) error {
		return c.api.Update(ctx, rng, [][]interface{}{{postedDate, fileID}})
	})
	if err != nil {
		return errors.Wrap(errors.ErrorTypeServerError, fmt.Sprintf("failed to update remote info at row %d", row), err)
	}
	return nil
}

// RowsByStatus returns the rows currently in the given status.
func (c *Client) RowsByStatus(ctx context.Context, status models.Status) ([]models.Reel, error) {
	all, err := c.AllRows(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Reel
	for _, r := range all {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

// RowsMissingDescription returns pending rows whose description cell
// is empty. Rows already past pending had their chance; rewriting a
// completed row's description would race the downstream consumer.
func (c *Client) RowsMissingDescription(ctx context.Context) ([]models.Reel, error) {
	all, err := c.AllRows(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Reel
	for _, r := range all {
		if r.Status == models.StatusPending && r.Description == "" && r.Link != "" {
			out = append(out, r)
		}
	}
	return out, nil
}

// Identifiers returns the reel IDs of every row, skipping sentinel
// fallbacks. Used to hydrate the identity cache.
func (c *Client) Identifiers(ctx context.Context) ([]string, error) {
	all, err := c.AllRows(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(all))
	for _, r := range all {
		if r.ID == "" || r.HasSentinelID() {
			continue
		}
		ids = append(ids, r.ID)
	}
	return ids, nil
}
