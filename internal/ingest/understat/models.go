package understat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Match is one entry of understat's datesData array.
type Match struct {
	ID       string `json:"id"`
	IsResult bool   `json:"isResult"`
	Home     Team   `json:"h"`
	Away     Team   `json:"a"`
	Goals    Pair   `json:"goals"`
	XG       Pair   `json:"xG"`
	Datetime string `json:"datetime"`
}

type Team struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	ShortTitle string `json:"short_title"`
}

// Pair holds home and away values. understat sends them as strings, numbers
// or null depending on the match state.
type Pair struct {
	H Number `json:"h"`
	A Number `json:"a"`
}

// Number decodes a JSON number, a quoted number or null.
type Number struct {
	Value float64
	Valid bool
}

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = Number{}
		return nil
	}

	s := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*n = Number{}
			return nil
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", s)
	}
	*n = Number{Value: v, Valid: true}
	return nil
}

// Row is one line of the xG output file.
type Row struct {
	League   string
	Date     string
	HomeTeam string
	AwayTeam string
	FTHG     int
	FTAG     int
	XGHome   float64
	XGAway   float64
}
