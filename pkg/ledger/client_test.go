package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/sheets/v4"

	"reelsweep/pkg/models"
)

// fakeAPI records calls and serves canned responses.
type fakeAPI struct {
	getResponses map[string][][]interface{}
	getErr       error
	updates      map[string][][]interface{}
	appends      [][][]interface{}
	batchReqs    [][]*sheets.Request
	batchErr     error
	failGetTimes int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		getResponses: make(map[string][][]interface{}),
		updates:      make(map[string][][]interface{}),
	}
}

func (f *fakeAPI) Get(_ context.Context, rng string) ([][]interface{}, error) {
	if f.failGetTimes > 0 {
		f.failGetTimes--
		return nil, errors.New("quota exceeded for quota metric")
	}
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getResponses[rng], nil
}

func (f *fakeAPI) Update(_ context.Context, rng string, values [][]interface{}) error {
	f.updates[rng] = values
	return nil
}

func (f *fakeAPI) Append(_ context.Context, _ string, values [][]interface{}) error {
	f.appends = append(f.appends, values)
	return nil
}

func (f *fakeAPI) BatchUpdate(_ context.Context, reqs []*sheets.Request) error {
	f.batchReqs = append(f.batchReqs, reqs)
	return f.batchErr
}

func (f *fakeAPI) NumericSheetID(_ context.Context) (int64, error) {
	return 0, nil
}

func newTestClient(api API) *Client {
	c := NewClient(api, Options{
		CallsPerMinute:  1000,
		MaxRetries:      3,
		RetryBaseDelay:  time.Millisecond,
		ApplyFormatting: true,
	})
	return c
}

func headerRow() []interface{} {
	row := make([]interface{}, len(Header))
	for i, h := range Header {
		row[i] = h
	}
	return row
}

func TestEnsureSchemaWritesMissingHeader(t *testing.T) {
	api := newFakeAPI()
	c := newTestClient(api)

	require.NoError(t, c.EnsureSchema(context.Background()))

	written, ok := api.updates["A1:H1"]
	require.True(t, ok, "header should have been written")
	assert.Equal(t, headerRow(), written[0])
	assert.NotEmpty(t, api.batchReqs, "formatting should have been applied")
}

func TestEnsureSchemaKeepsGoodHeader(t *testing.T) {
	api := newFakeAPI()
	api.getResponses["A1:H1"] = [][]interface{}{headerRow()}
	c := newTestClient(api)

	require.NoError(t, c.EnsureSchema(context.Background()))

	_, rewritten := api.updates["A1:H1"]
	assert.False(t, rewritten, "matching header must not be rewritten")
	assert.Empty(t, api.batchReqs, "formatting only re-applies on a rewrite")
}

func TestEnsureSchemaFormattingFailureIsNonFatal(t *testing.T) {
	api := newFakeAPI()
	api.batchErr = errors.New("formatting rejected")
	c := newTestClient(api)

	assert.NoError(t, c.EnsureSchema(context.Background()))
}

func TestEnsureSchemaFormattingDisabled(t *testing.T) {
	api := newFakeAPI()
	c := NewClient(api, Options{
		CallsPerMinute: 1000,
		MaxRetries:     3,
		RetryBaseDelay: time.Millisecond,
	})

	require.NoError(t, c.EnsureSchema(context.Background()))

	_, ok := api.updates["A1:H1"]
	assert.True(t, ok, "header should still be written")
	assert.Empty(t, api.batchReqs)
}

func TestCallAppliesRequestTimeout(t *testing.T) {
	api := newFakeAPI()
	c := NewClient(api, Options{
		CallsPerMinute: 1000,
		RequestTimeout: 5 * time.Second,
	})

	var deadline time.Time
	var hasDeadline bool
	err := c.call(context.Background(), func(ctx context.Context) error {
		deadline, hasDeadline = ctx.Deadline()
		return nil
	})

	require.NoError(t, err)
	require.True(t, hasDeadline, "API calls must carry a deadline")
	assert.WithinDuration(t, time.Now().Add(5*time.Second), deadline, time.Second)
}

func TestAllRows(t *testing.T) {
	api := newFakeAPI()
	api.getResponses["A2:H"] = [][]interface{}{
		{"28-JUN-25", "@alice", "https://www.instagram.com/reel/Abc1/", "Abc1", "a clip", "completed", "29-JUN-25", "drive-1"},
		{"28-JUN-25", "@bob", "https://www.instagram.com/reel/Def2/", "Def2"},
	}
	c := newTestClient(api)

	rows, err := c.AllRows(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 2, rows[0].Row)
	assert.Equal(t, "Abc1", rows[0].ID)
	assert.Equal(t, models.StatusCompleted, rows[0].Status)
	assert.Equal(t, "drive-1", rows[0].RemoteFileID)

	// short row: missing cells read as empty, status defaults pending
	assert.Equal(t, 3, rows[1].Row)
	assert.Equal(t, models.StatusPending, rows[1].Status)
	assert.Empty(t, rows[1].Description)
}

func TestAppendBatchDefaults(t *testing.T) {
	api := newFakeAPI()
	c := newTestClient(api)

	err := c.AppendBatch(context.Background(), []models.Reel{
		{Username: "@alice", Link: "https://x/", ID: "Abc1"},
	})
	require.NoError(t, err)
	require.Len(t, api.appends, 1)

	row := api.appends[0][0]
	assert.Equal(t, models.FormatDate(time.Now()), row[0])
	assert.Equal(t, string(models.StatusPending), row[5])
}

func TestAppendBatchEmptyIsNoop(t *testing.T) {
	api := newFakeAPI()
	c := newTestClient(api)

	require.NoError(t, c.AppendBatch(context.Background(), nil))
	assert.Empty(t, api.appends)
}

func TestUpdateStatusAndDescription(t *testing.T) {
	api := newFakeAPI()
	c := newTestClient(api)
	ctx := context.Background()

	require.NoError(t, c.UpdateStatus(ctx, 4, models.StatusProcessing))
	assert.Equal(t, [][]interface{}{{"processing"}}, api.updates["F4"])

	require.NoError(t, c.UpdateDescription(ctx, 4, "hello world"))
	assert.Equal(t, [][]interface{}{{"hello world"}}, api.updates["E4"])

	require.NoError(t, c.UpdateRemoteInfo(ctx, 4, "29-JUN-25", "drive-9"))
	assert.Equal(t, [][]interface{}{{"29-JUN-25", "drive-9"}}, api.updates["G4:H4"])
}

func TestUpdateCellRejectsHeaderRow(t *testing.T) {
	c := newTestClient(newFakeAPI())
	err := c.UpdateStatus(context.Background(), 1, models.StatusCompleted)
	assert.Error(t, err)
}

func TestRowsByStatus(t *testing.T) {
	api := newFakeAPI()
	api.getResponses["A2:H"] = [][]interface{}{
		{"d", "@a", "l1", "id1", "", "pending"},
		{"d", "@b", "l2", "id2", "", "completed"},
		{"d", "@c", "l3", "id3", "", "pending"},
	}
	c := newTestClient(api)

	rows, err := c.RowsByStatus(context.Background(), models.StatusPending)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "id1", rows[0].ID)
	assert.Equal(t, "id3", rows[1].ID)
}

func TestRowsMissingDescription(t *testing.T) {
	api := newFakeAPI()
	api.getResponses["A2:H"] = [][]interface{}{
		{"d", "@a", "l1", "id1", "described", "pending"},
		{"d", "@b", "l2", "id2", "", "pending"},
		{"d", "@c", "", "id3", "", "pending"},     // no link, skipped
		{"d", "@e", "l4", "id4", "", "completed"}, // past pending, skipped
	}
	c := newTestClient(api)

	rows, err := c.RowsMissingDescription(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "id2", rows[0].ID)
}

func TestIdentifiersSkipsSentinels(t *testing.T) {
	api := newFakeAPI()
	api.getResponses["A2:H"] = [][]interface{}{
		{"d", "@a", "l1", "id1", "", "pending"},
		{"d", "@b", "l2", fmt.Sprintf("unknown_%d", time.Now().Unix()), "", "pending"},
		{"d", "@c", "l3", "", "", "pending"},
		{"d", "@d", "l4", "id4", "", "pending"},
	}
	c := newTestClient(api)

	ids, err := c.Identifiers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"id1", "id4"}, ids)
}

func TestQuotaErrorsAreRetried(t *testing.T) {
	api := newFakeAPI()
	api.failGetTimes = 2
	api.getResponses["A2:H"] = [][]interface{}{
		{"d", "@a", "l1", "id1", "", "pending"},
	}
	c := newTestClient(api)

	rows, err := c.AllRows(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
