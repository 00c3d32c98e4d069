package models

import "time"

// RawColumn is one upstream column. Name holds every level of a possibly
// composite header, e.g. ["Close", "AAPL"] or ["4. close"].
type RawColumn struct {
	Name   []string
	Values []float64
}

// RawFrame is an un-normalized table as returned by a market-data source.
// Missing cells are NaN.
type RawFrame struct {
	Source  string
	Dates   []time.Time
	Columns []RawColumn
}

// Rows returns the number of index entries
func (f *RawFrame) Rows() int {
	if f == nil {
		return 0
	}
	return len(f.Dates)
}

// AddColumn appends a column built from the given header parts
func (f *RawFrame) AddColumn(values []float64, name ...string) {
	f.Columns = append(f.Columns, RawColumn{Name: name, Values: values})
}
