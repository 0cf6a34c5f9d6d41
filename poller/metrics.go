package poller

import (
	"fmt"
	"time"

	"catalog-backend/dtos"
	"catalog-backend/models"
)

// Metrics are the display values derived from a job's raw counts.
type Metrics struct {
	Progress float64 // percent, 0 when the total is unknown
	Rate     float64 // rows per second since the job was created
	ETA      time.Duration
	HasETA   bool // only while processing with a positive rate
	Elapsed  time.Duration
}

func ComputeMetrics(job *dtos.ImportJobResponse, now time.Time) Metrics {
	var m Metrics

	if job.TotalProducts > 0 {
		m.Progress = float64(job.ProcessedProducts) / float64(job.TotalProducts) * 100
	}

	m.Elapsed = now.Sub(job.CreatedAt)
	if m.Elapsed < 0 {
		m.Elapsed = 0
	}
	if secs := m.Elapsed.Seconds(); secs > 0 {
		m.Rate = float64(job.ProcessedProducts) / secs
	}

	if job.Status == models.ImportStatusProcessing && m.Rate > 0 {
		remaining := job.TotalProducts - job.ProcessedProducts
		if remaining < 0 {
			remaining = 0
		}
		m.ETA = time.Duration(float64(remaining) / m.Rate * float64(time.Second))
		m.HasETA = true
	}
	return m
}

// FormatDuration renders d as "1h 02m 03s", "2m 05s" or "45s".
func FormatDuration(d time.Duration) string {
	total := int64(d.Round(time.Second) / time.Second)
	if total < 0 {
		total = 0
	}
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
