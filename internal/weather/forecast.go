package weather

import (
	"sort"
	"strings"
)

// middayHours are the hour labels accepted as the representative reading
// of a day, in the provider's local grid.
var middayHours = map[string]bool{"12": true, "13": true, "14": true}

// SelectMiddayForecast reduces a flat list of readings to at most one
// ForecastDay per calendar date: the first reading whose hour is 12, 13 or
// 14. Later readings for an already selected date are ignored. Days
// without a midday reading are simply absent. The result is sorted by
// date ascending.
func SelectMiddayForecast(readings []Reading) []ForecastDay {
	byDate := make(map[string]ForecastDay)

	for _, r := range readings {
		date, hour, ok := splitLocalTime(r.LocalTime)
		if !ok || !middayHours[hour] {
			continue
		}
		if _, seen := byDate[date]; seen {
			continue
		}
		byDate[date] = ForecastDay{
			Date:         date,
			TemperatureC: Round1(r.TemperatureC),
			Description:  r.Description,
			Icon:         r.Icon,
		}
	}

	days := make([]ForecastDay, 0, len(byDate))
	for _, d := range byDate {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return days
}

// splitLocalTime splits "2024-05-01 12:00:00" into ("2024-05-01", "12").
func splitLocalTime(s string) (date, hour string, ok bool) {
	date, clock, found := strings.Cut(strings.TrimSpace(s), " ")
	if !found || len(date) != len("2006-01-02") || len(clock) < 2 {
		return "", "", false
	}
	return date, clock[:2], true
}
