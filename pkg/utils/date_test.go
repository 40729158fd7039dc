package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, _ := time.Parse(time.DateOnly, s)
	return t
}

func TestYesterday(t *testing.T) {
	taipei := time.FixedZone("UTC+8", 8*60*60)

	tests := []struct {
		name     string
		now      time.Time
		loc      *time.Location
		expected string
	}{
		{
			name:     "Meia-noite UTC já é o dia seguinte em UTC+8",
			now:      time.Date(2024, 3, 10, 17, 0, 0, 0, time.UTC),
			loc:      taipei,
			expected: "2024-03-10",
		},
		{
			name:     "Mesmo dia em UTC e UTC+8",
			now:      time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC),
			loc:      taipei,
			expected: "2024-03-09",
		},
		{
			name:     "Sem fuso usa UTC",
			now:      time.Date(2024, 1, 1, 0, 30, 0, 0, time.UTC),
			loc:      nil,
			expected: "2023-12-31",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Yesterday(tt.now, tt.loc).Format(time.DateOnly))
		})
	}
}

func TestDateRange(t *testing.T) {
	dates := DateRange(day("2024-02-27"), day("2024-03-02"))
	require.Len(t, dates, 5)
	assert.Equal(t, "2024-02-29", dates[2].Format(time.DateOnly))
	assert.Equal(t, "2024-03-02", dates[4].Format(time.DateOnly))

	assert.Empty(t, DateRange(day("2024-03-02"), day("2024-03-01")))
	assert.Len(t, DateRange(day("2024-03-02"), day("2024-03-02")), 1)
}

func TestChunkContiguous(t *testing.T) {
	t.Run("Dez datas contíguas viram 7 e 3", func(t *testing.T) {
		chunks := ChunkContiguous(DateRange(day("2024-01-01"), day("2024-01-10")), 7)
		require.Len(t, chunks, 2)
		assert.Len(t, chunks[0], 7)
		assert.Len(t, chunks[1], 3)
		assert.Equal(t, "2024-01-08", chunks[1][0].Format(time.DateOnly))
	})

	t.Run("Buracos quebram a janela", func(t *testing.T) {
		dates := []time.Time{day("2024-01-05"), day("2024-01-01"), day("2024-01-02"), day("2024-01-04")}
		chunks := ChunkContiguous(dates, 7)
		require.Len(t, chunks, 2)
		assert.Len(t, chunks[0], 2)
		assert.Len(t, chunks[1], 2)
	})

	t.Run("Nenhuma janela passa do limite", func(t *testing.T) {
		chunks := ChunkContiguous(DateRange(day("2024-01-01"), day("2024-03-31")), 7)
		total := 0
		for _, c := range chunks {
			assert.LessOrEqual(t, len(c), 7)
			total += len(c)
		}
		assert.Equal(t, 91, total)
	})

	t.Run("Datas duplicadas contam uma vez", func(t *testing.T) {
		chunks := ChunkContiguous([]time.Time{day("2024-01-01"), day("2024-01-01")}, 7)
		require.Len(t, chunks, 1)
		assert.Len(t, chunks[0], 1)
	})

	assert.Nil(t, ChunkContiguous(nil, 7))
}
