package domain

import "time"

// ReadingDateLayout is the wire and storage format of a reading date.
const ReadingDateLayout = "2006-01-02"

// ReadingDay marks a calendar day on which the user read.
type ReadingDay struct {
	ID        int64     `json:"id" db:"id"`
	ReadDate  string    `json:"read_date" db:"read_date"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ReadingStats is the yearly reading-day counter.
type ReadingStats struct {
	TotalDaysRead int64 `json:"total_days_read"`
	CurrentYear   int   `json:"current_year"`
}

// ReadingDayRecorded is returned after a reading day is stored.
type ReadingDayRecorded struct {
	Success       bool   `json:"success"`
	ReadDate      string `json:"read_date"`
	TotalDaysRead int64  `json:"total_days_read"`
}
