package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/pickrelay/internal/relay"
)

func TestCLIReporter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	rep := &cliReporter{w: &buf}
	ctx := context.Background()

	rep.PickerReady(ctx, "https://photos.example/pick/1")
	rep.Progress(ctx, 10)
	rep.ItemFailed(ctx, relay.Outcome{ItemID: "x", Detail: "no download URL"})
	rep.Finished(ctx, &relay.Result{Sent: 10})
	rep.Fatal(ctx, errors.New("ignored"))

	out := buf.String()
	assert.Contains(t, out, "https://photos.example/pick/1")
	assert.Contains(t, out, "Progress: 10 sent…")
	assert.Contains(t, out, "Skipped x: no download URL")
	assert.Contains(t, out, "Done. Sent 10 item(s).")
	assert.NotContains(t, out, "ignored")
}

func TestCLIReporter_QuietKeepsLinkAndFailures(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	rep := &cliReporter{w: &buf, quiet: true}
	ctx := context.Background()

	rep.PickerReady(ctx, "https://photos.example/pick/1")
	rep.Progress(ctx, 10)
	rep.ItemFailed(ctx, relay.Outcome{ItemID: "x", Filename: "a.jpg", Detail: "boom"})

	out := buf.String()
	assert.Contains(t, out, "https://photos.example/pick/1")
	assert.Contains(t, out, "Skipped a.jpg: boom")
	assert.NotContains(t, out, "Progress")
}

func TestCLIReporter_QR(t *testing.T) {
	t.Parallel()

	var plain, withQR bytes.Buffer

	(&cliReporter{w: &plain}).PickerReady(context.Background(), "https://photos.example/pick/1")
	(&cliReporter{w: &withQR, qr: true}).PickerReady(context.Background(), "https://photos.example/pick/1")

	assert.Greater(t, withQR.Len(), plain.Len())
}

func TestPrintResultJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	res := &relay.Result{
		RunID:    "run-1",
		Sent:     1,
		Failed:   1,
		Duration: 1500 * time.Millisecond,
		Outcomes: []relay.Outcome{
			{ItemID: "a", Filename: "a.jpg", Status: relay.StatusSent},
			{ItemID: "b", Status: relay.StatusFailed, Detail: "boom"},
		},
	}
	require.NoError(t, printResultJSON(&buf, res))

	var got runResultJSON
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, int64(1500), got.DurationMS)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "failed", got.Items[1].Status)
}

func TestLedgerKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "-1001234", ledgerKey(tu.ID(-1001234)))
	assert.Equal(t, "@pics", ledgerKey(tu.Username("@pics")))
}
