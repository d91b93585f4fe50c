package i18n

import "time"

// RelativeTime formats t relative to now in locale: "just now" under a minute, then
// minutes, hours and days up to 30 days, then a calendar date.
func RelativeTime(t, now time.Time, locale string) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return T(locale, KeyJustNow)
	case d < time.Hour:
		return plural(locale, int(d/time.Minute), KeyMinuteAgo, KeyMinutesAgo)
	case d < 24*time.Hour:
		return plural(locale, int(d/time.Hour), KeyHourAgo, KeyHoursAgo)
	case d < 30*24*time.Hour:
		return plural(locale, int(d/(24*time.Hour)), KeyDayAgo, KeyDaysAgo)
	default:
		return t.In(now.Location()).Format(T(locale, KeyDateLayout))
	}
}

func plural(locale string, n int, one, many string) string {
	if n == 1 {
		return T(locale, one)
	}
	return T(locale, many, n)
}
