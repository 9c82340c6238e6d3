package recurring

import (
	"time"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

// NextDueDate returns the occurrence after d. Month based steps clamp to the
// last day of the target month.
func NextDueDate(d time.Time, freq domain.Frequency) time.Time {
	return step(d, freq, d.Day())
}

// step advances d by one period. anchorDay is the day of month the schedule
// started on, so Jan 31 -> Feb 29 -> Mar 31 keeps returning to the 31st.
func step(d time.Time, freq domain.Frequency, anchorDay int) time.Time {
	switch freq {
	case domain.FrequencyDaily:
		return d.AddDate(0, 0, 1)
	case domain.FrequencyWeekly:
		return d.AddDate(0, 0, 7)
	case domain.FrequencyBiWeekly:
		return d.AddDate(0, 0, 14)
	case domain.FrequencyMonthly:
		return addMonths(d, 1, anchorDay)
	case domain.FrequencyQuarterly:
		return addMonths(d, 3, anchorDay)
	case domain.FrequencySemiAnnual:
		return addMonths(d, 6, anchorDay)
	case domain.FrequencyAnnual:
		return addMonths(d, 12, anchorDay)
	}
	return d
}

func addMonths(d time.Time, months, day int) time.Time {
	y, m, _ := d.Date()
	first := time.Date(y, m+time.Month(months), 1, d.Hour(), d.Minute(), d.Second(), d.Nanosecond(), d.Location())
	if last := daysIn(first); day > last {
		day = last
	}
	return first.AddDate(0, 0, day-1)
}

func daysIn(firstOfMonth time.Time) int {
	return firstOfMonth.AddDate(0, 1, -1).Day()
}
