package utils

import (
	"sort"
	"time"
)

func ParseDate(dateStr string) (*time.Time, error) {
	var date time.Time

	if dateStr != "" {
		incomingDate, err := time.Parse(time.DateOnly, dateStr)
		if err != nil {
			return nil, err
		}

		date = incomingDate
	}

	return &date, nil
}

// CivilDate descarta hora e fuso, mantendo apenas o dia do calendário em UTC
func CivilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Yesterday retorna o dia anterior a now no fuso de negócio informado
func Yesterday(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return CivilDate(now.In(loc)).AddDate(0, 0, -1)
}

// DateRange gera todas as datas entre start e end, inclusive
func DateRange(start, end time.Time) []time.Time {
	start, end = CivilDate(start), CivilDate(end)
	if end.Before(start) {
		return nil
	}

	dates := make([]time.Time, 0, int(end.Sub(start).Hours()/24)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

// ChunkContiguous agrupa datas em janelas contíguas de no máximo maxSpan dias
func ChunkContiguous(dates []time.Time, maxSpan int) [][]time.Time {
	if len(dates) == 0 {
		return nil
	}
	if maxSpan < 1 {
		maxSpan = 1
	}

	sorted := make([]time.Time, len(dates))
	for i, d := range dates {
		sorted[i] = CivilDate(d)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Before(sorted[j])
	})

	chunks := make([][]time.Time, 0)
	current := []time.Time{sorted[0]}
	for _, d := range sorted[1:] {
		last := current[len(current)-1]
		if d.Equal(last) {
			continue
		}
		if d.Equal(last.AddDate(0, 0, 1)) && len(current) < maxSpan {
			current = append(current, d)
			continue
		}
		chunks = append(chunks, current)
		current = []time.Time{d}
	}
	return append(chunks, current)
}

// FormatCompact formata a data como YYYYMMDD
func FormatCompact(t time.Time) string {
	return t.Format("20060102")
}
