package xg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_KeepsOnlyMergeColumns(t *testing.T) {
	path := writeFile(t, DefaultFileName,
		"League,Date,HomeTeam,AwayTeam,FTHG,FTAG,xG_Home,xG_Away\n"+
			"EPL,2025-08-15,Liverpool,Bournemouth,4,2,2.31,1.04\n"+
			"EPL,2025-08-16 17:30:00,Aston Villa,Newcastle,0,0,,0.5\n")

	records, err := Load(path)
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.Equal(t, Record{
		Date:     time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC),
		HomeTeam: "Liverpool",
		AwayTeam: "Bournemouth",
		XGHome:   Float(2.31),
		XGAway:   Float(1.04),
	}, records[0])

	require.Equal(t, time.Date(2025, 8, 16, 0, 0, 0, 0, time.UTC), records[1].Date)
	require.Nil(t, records[1].XGHome)
	require.Equal(t, 0.5, *records[1].XGAway)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), DefaultFileName))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLoad_MissingColumn(t *testing.T) {
	path := writeFile(t, DefaultFileName, "Date,HomeTeam,AwayTeam,xG_Home\n2025-08-15,Arsenal,Chelsea,1.8\n")

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), ColXGAway)
}

func TestLoad_BadValuesFailWholeFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"date", "Date,HomeTeam,AwayTeam,xG_Home,xG_Away\nsoon,Arsenal,Chelsea,1.8,0.9\n"},
		{"xg", "Date,HomeTeam,AwayTeam,xG_Home,xG_Away\n2025-08-15,Arsenal,Chelsea,lots,0.9\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, DefaultFileName, tt.content))
			require.Error(t, err)
			require.Contains(t, err.Error(), "row 2")
		})
	}
}
