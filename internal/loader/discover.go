package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DiscoverLeagueFiles lists the league CSV files in dir, skipping any file whose
// name contains the xG file's stem. Paths are returned in name order.
func DiscoverLeagueFiles(dir, xgFileName string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read raw data directory: %w", err)
	}

	xgStem := strings.TrimSuffix(xgFileName, filepath.Ext(xgFileName))

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.EqualFold(filepath.Ext(name), ".csv") {
			continue
		}
		if xgStem != "" && strings.Contains(name, xgStem) {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}

	return files, nil
}

// TableName derives the store table name from a league file path: the base
// name without its extension ("data/raw/E0.csv" -> "E0").
func TableName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
