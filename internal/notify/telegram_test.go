package notify

import (
	"errors"
	"io"
	"log"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/footballdb/internal/loader"
)

type fakeBot struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.err
}

func TestSummary(t *testing.T) {
	start := time.Date(2025, 8, 18, 6, 0, 0, 0, time.UTC)
	report := &loader.Report{
		StorePath:  "football_2526.db",
		XGRows:     1520,
		Tables:     []loader.TableResult{{Table: "E0", Rows: 380}, {Table: "SP1", Rows: 380}},
		TotalRows:  760,
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
	}

	require.Equal(t, "✓ footballdb load: 760 rows in 2 tables\nstore: football_2526.db\nxG matches: 1520\ntook 1.5s", Summary(report))

	report.XGError = "xg_data_full.csv: xG file not found"
	report.Failures = []loader.FileFailure{{File: "B1.csv", Reason: "missing column Date"}}
	report.FinishedAt = time.Time{}
	require.Equal(t, "⚠️ footballdb load: 760 rows in 2 tables\nstore: football_2526.db\nxG unavailable: xg_data_full.csv: xG file not found\nfailed B1.csv: missing column Date", Summary(report))
}

func TestOnRunComplete(t *testing.T) {
	bot := &fakeBot{}
	n := newNotifier(bot, 42, log.New(io.Discard, "", 0))

	n.OnRunComplete(&loader.Report{StorePath: "x.db"})
	require.Len(t, bot.sent, 1)
	require.Equal(t, int64(42), bot.sent[0].ChatID)

	bot.err = errors.New("429 Too Many Requests")
	n.OnRunComplete(&loader.Report{StorePath: "x.db"})
	require.Len(t, bot.sent, 2)
}
