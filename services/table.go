package services

import (
	"encoding/json"
	"math"
	"strconv"
)

// Cell is one table value; invalid cells render as null.
type Cell struct {
	Value float64
	Valid bool
}

func Float(v float64) Cell {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Cell{}
	}
	return Cell{Value: v, Valid: true}
}

func Null() Cell { return Cell{} }

func (c Cell) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(c.Value)
}

// Row is a keyed row of cells aligned with the table's columns.
type Row struct {
	Key    string `json:"key"`
	Values []Cell `json:"values"`
}

// Table is the result of every report: rows keyed by round, user or window,
// a fixed column set and an optional trailing summary row.
type Table struct {
	Name    string   `json:"name"`
	Index   string   `json:"index"`
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
	Summary *Row     `json:"summary,omitempty"`
}

func NewTable(name, index string, columns ...string) *Table {
	return &Table{Name: name, Index: index, Columns: columns, Rows: []Row{}}
}

// Append adds a row; missing trailing values are null.
func (t *Table) Append(key string, values ...Cell) {
	row := Row{Key: key, Values: make([]Cell, len(t.Columns))}
	copy(row.Values, values)
	t.Rows = append(t.Rows, row)
}

func (t *Table) column(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Value looks up a cell by row key and column name. The summary row is
// addressed by its own key.
func (t *Table) Value(key, column string) (Cell, bool) {
	ci := t.column(column)
	if ci < 0 {
		return Cell{}, false
	}
	if t.Summary != nil && t.Summary.Key == key {
		return t.Summary.Values[ci], true
	}
	for _, r := range t.Rows {
		if r.Key == key {
			return r.Values[ci], true
		}
	}
	return Cell{}, false
}

// SetSummarySum sets the summary row to the column-wise sum of valid cells.
func (t *Table) SetSummarySum(key string) {
	t.Summary = t.aggregate(key, func(sum float64, n int) Cell {
		if n == 0 {
			return Null()
		}
		return Float(sum)
	})
}

// SetSummaryMean sets the summary row to the column-wise mean of valid cells.
func (t *Table) SetSummaryMean(key string) {
	t.Summary = t.aggregate(key, func(sum float64, n int) Cell {
		if n == 0 {
			return Null()
		}
		return Float(sum / float64(n))
	})
}

func (t *Table) aggregate(key string, fn func(sum float64, n int) Cell) *Row {
	row := &Row{Key: key, Values: make([]Cell, len(t.Columns))}
	for ci := range t.Columns {
		var sum float64
		var n int
		for _, r := range t.Rows {
			if r.Values[ci].Valid {
				sum += r.Values[ci].Value
				n++
			}
		}
		row.Values[ci] = fn(sum, n)
	}
	return row
}

// Round rounds every valid cell, summary included, to the given places.
func (t *Table) Round(places int) {
	for i := range t.Rows {
		roundCells(t.Rows[i].Values, places)
	}
	if t.Summary != nil {
		roundCells(t.Summary.Values, places)
	}
}

func roundCells(cells []Cell, places int) {
	for i := range cells {
		if cells[i].Valid {
			cells[i].Value = roundTo(cells[i].Value, places)
		}
	}
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func roundKey(round int) string { return strconv.Itoa(round) }

func mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
