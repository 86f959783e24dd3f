// Package calmath чистая арифметика (учебный период, номер недели, день
// недели) ↔ конкретная дата. Номера недель 1-based: неделя 1 начинается
// в день старта периода. Никаких конверсий таймзон — даты приходят уже
// локализованными.
package calmath

import "time"

// Midnight обрезает время до полуночи, сохраняя таймзону
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DateForWeek возвращает дату занятия: день weekday внутри недели week
// периода, начинающегося в termStart. Результат всегда лежит в
// [termStart+(week-1)*7d, termStart+week*7d).
func DateForWeek(termStart time.Time, week int, weekday time.Weekday) time.Time {
	base := Midnight(termStart).AddDate(0, 0, (week-1)*7)
	offset := (int(weekday) - int(base.Weekday()) + 7) % 7
	return base.AddDate(0, 0, offset)
}

// WeekForDate возвращает номер недели, в которую попадает дата.
// Левая обратная к DateForWeek: WeekForDate(DateForWeek(w, d)) == w.
func WeekForDate(termStart, date time.Time) int {
	days := int(Midnight(date).Sub(Midnight(termStart)) / (24 * time.Hour))
	if days < 0 {
		days -= 6 // округление к -∞ для дат раньше старта периода
	}
	return days/7 + 1
}
