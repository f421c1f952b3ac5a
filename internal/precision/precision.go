// Package precision holds the calibration tables that translate a raw CNN score into
// a discrete precision level.
package precision

import (
	"encoding/json"
	"sort"

	"github.com/pkg/errors"
)

// ErrParse is returned for malformed calibration payloads.
var ErrParse = errors.New("malformed precision table")

// Entry is one row of a Table: windows scoring at least Score get Level.
type Entry struct {
	Score float32
	Level uint8
}

// UnmarshalJSON reads a row encoded as a two element array, [score, level].
func (e *Entry) UnmarshalJSON(data []byte) error {
	var row []json.Number
	if err := json.Unmarshal(data, &row); err != nil {
		return err
	}
	if len(row) != 2 {
		return errors.Errorf("row %s has %d columns, want 2", data, len(row))
	}
	score, err := row[0].Float64()
	if err != nil {
		return errors.Wrapf(err, "row %s score", data)
	}
	level, err := row[1].Int64()
	if err != nil {
		return errors.Wrapf(err, "row %s level", data)
	}
	if level < 0 || level > 255 {
		return errors.Errorf("row %s level %d out of range", data, level)
	}
	e.Score, e.Level = float32(score), uint8(level)
	return nil
}

// MarshalJSON writes the row back as [score, level].
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{e.Score, e.Level})
}

// Table maps raw scores to precision levels. Data is sorted by Score.
type Table struct {
	Columns []string `json:"columns"`
	Data    []Entry  `json:"data"`
}

// Parse decodes a calibration payload of the form
//
//	{"columns": ["cnn_score", "precision_u8"], "data": [[0.0, 1], [0.005, 2], ...]}
func Parse(payload []byte) (*Table, error) {
	var t Table
	if err := json.Unmarshal(payload, &t); err != nil {
		return nil, errors.Wrap(ErrParse, err.Error())
	}
	if len(t.Columns) < 2 {
		return nil, errors.Wrapf(ErrParse, "got %d columns, want at least 2", len(t.Columns))
	}
	if len(t.Data) == 0 {
		return nil, errors.Wrap(ErrParse, "no data rows")
	}
	for i := 1; i < len(t.Data); i++ {
		if t.Data[i].Score < t.Data[i-1].Score {
			return nil, errors.Wrapf(ErrParse, "scores not sorted at row %d", i)
		}
	}
	return &t, nil
}

// MustParse is like Parse but panics on error, for payloads fixed at compile time.
func MustParse(payload []byte) *Table {
	t, err := Parse(payload)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the level of the last row whose Score is <= score, or 0 if score
// is below the first row.
func (t *Table) Lookup(score float32) uint8 {
	idx := sort.Search(len(t.Data), func(i int) bool { return t.Data[i].Score > score })
	if idx == 0 {
		return 0
	}
	return t.Data[idx-1].Level
}
