package utils

import "time"

const DateLayout = "2006-01-02"

// DateOf отбрасывает время, оставляя календарный день в UTC
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today - текущий день в UTC
func Today() time.Time {
	return DateOf(time.Now())
}

// MembershipYearEnd - последний день годового членства, начатого в start
func MembershipYearEnd(start time.Time) time.Time {
	return DateOf(start).AddDate(1, 0, -1)
}

// ParseDate разбирает дату YYYY-MM-DD
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

func FormatDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(DateLayout)
}

// DaysBetween - число календарных дней от from до to (отрицательное, если to раньше)
func DaysBetween(from, to time.Time) int {
	return int(DateOf(to).Sub(DateOf(from)).Hours() / 24)
}
