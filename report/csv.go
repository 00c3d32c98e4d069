package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/guregu/null/v6"

	"stock-forecast/models"
)

var csvHeader = []string{"ds", "yhat", "yhat_lower", "yhat_upper"}

func formatNullable(v null.Float) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float64, 'f', -1, 64)
}

// WriteCSV writes one row per forecast point. Missing bounds are empty.
func WriteCSV(w io.Writer, fc *models.ForecastResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, p := range fc.Points {
		err := cw.Write([]string{
			p.Date.Format(time.DateOnly),
			strconv.FormatFloat(p.Value, 'f', -1, 64),
			formatNullable(p.Lower),
			formatNullable(p.Upper),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
