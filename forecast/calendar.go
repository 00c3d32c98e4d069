package forecast

import "time"

// NextBusinessDays returns n weekdays strictly after the calendar day of
// after, at UTC midnight
func NextBusinessDays(after time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	day := time.Date(after.Year(), after.Month(), after.Day(), 0, 0, 0, 0, time.UTC)
	dates := make([]time.Time, 0, n)
	for len(dates) < n {
		day = day.AddDate(0, 0, 1)
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		dates = append(dates, day)
	}
	return dates
}
