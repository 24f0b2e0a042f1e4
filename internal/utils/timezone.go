package utils

import "time"

func LoadLocation(tz string) *time.Location {
	loc, err := time.LoadLocation(tz)
	if err != nil || tz == "" {
		return time.UTC
	}
	return loc
}

// StartOfDay returns local midnight of the day containing now, in tz.
func StartOfDay(now time.Time, tz string) time.Time {
	local := now.In(LoadLocation(tz))
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, local.Location())
}

func CurrentDateInTimezone(now time.Time, tz string) string {
	return now.In(LoadLocation(tz)).Format("2006-01-02")
}
