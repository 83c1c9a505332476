package service

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fortuna/footballdb/internal/loader"
	"github.com/fortuna/footballdb/internal/store/repository"
)

const e0 = "Div,Date,HomeTeam,AwayTeam,FTHG,FTAG\n" +
	"E0,15/08/2025,Arsenal,Chelsea,2,1\n" +
	"E0,16/08/2025,Leeds,Everton,0,0\n"

const xgFile = "Date,HomeTeam,AwayTeam,xG_Home,xG_Away\n2025-08-15,Arsenal,Chelsea,1.8,0.9\n"

func quiet() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newService(t *testing.T, reporter loader.Reporter) (*LoadService, string) {
	t.Helper()
	root := t.TempDir()
	raw := filepath.Join(root, "raw")
	require.NoError(t, os.MkdirAll(raw, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(raw, "E0.csv"), []byte(e0), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(raw, "xg_data_full.csv"), []byte(xgFile), 0o644))

	ld := loader.New(loader.Config{RawDir: raw, DSN: filepath.Join(root, "football.db")}, quiet())
	svc := NewLoadService(ld, reporter, quiet())
	t.Cleanup(func() { svc.Shutdown(context.Background()) })
	return svc, raw
}

func TestReadsBeforeFirstBuild(t *testing.T) {
	svc, _ := newService(t, nil)

	_, err := svc.ListTables(context.Background())
	require.ErrorIs(t, err, ErrStoreNotReady)
	require.ErrorIs(t, svc.HealthCheck(), ErrStoreNotReady)
}

func TestRebuildThenQuery(t *testing.T) {
	ctx := context.Background()
	svc, raw := newService(t, nil)

	report, err := svc.Rebuild(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, report.TotalRows)
	require.NoError(t, svc.HealthCheck())

	tables, err := svc.ListTables(ctx)
	require.NoError(t, err)
	require.Equal(t, []repository.TableSummary{{Name: "E0", Rows: 2}}, tables)

	cov, err := svc.XGCoverage(ctx, "E0")
	require.NoError(t, err)
	require.Equal(t, 1, cov.WithXG)

	// a rebuild replaces the store under an open read handle
	require.NoError(t, os.WriteFile(filepath.Join(raw, "SP1.csv"), []byte("Date,HomeTeam,AwayTeam\n17/08/2025,Barcelona,Getafe\n"), 0o644))
	_, err = svc.Rebuild(ctx)
	require.NoError(t, err)

	tables, err = svc.ListTables(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 2)

	rows, err := svc.QueryMatches(ctx, "SP1", repository.MatchFilter{Team: "Getafe"})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.Len(t, svc.History(), 2)
	require.Empty(t, svc.Status().LastError)
}

type blockingReporter struct {
	loader.NopReporter
	started chan struct{}
	release chan struct{}
}

func (b *blockingReporter) OnRunStart(loader.Config) {
	close(b.started)
	<-b.release
}

func TestStartRebuild_RejectsConcurrentLoad(t *testing.T) {
	rep := &blockingReporter{started: make(chan struct{}), release: make(chan struct{})}
	svc, _ := newService(t, rep)

	require.NoError(t, svc.StartRebuild())
	<-rep.started

	require.ErrorIs(t, svc.StartRebuild(), ErrLoadInProgress)
	_, err := svc.Rebuild(context.Background())
	require.ErrorIs(t, err, ErrLoadInProgress)

	status := svc.Status()
	require.True(t, status.Running)
	require.NotNil(t, status.StartedAt)

	close(rep.release)
	require.Eventually(t, func() bool {
		return !svc.Status().Running
	}, 5*time.Second, 10*time.Millisecond)

	status = svc.Status()
	require.NotNil(t, status.Last)
	require.Equal(t, 2, status.Last.TotalRows)
}

func TestRebuild_FatalErrorRecorded(t *testing.T) {
	svc, raw := newService(t, nil)
	require.NoError(t, os.Remove(filepath.Join(raw, "E0.csv")))

	_, err := svc.Rebuild(context.Background())
	require.ErrorIs(t, err, loader.ErrNoLeagueFiles)

	status := svc.Status()
	require.False(t, status.Running)
	require.Contains(t, status.LastError, "no league data")
}
