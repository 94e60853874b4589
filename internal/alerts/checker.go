package alerts

import (
	"fmt"
	"time"

	"github.com/kishorekota-dev/chatrouter/internal/config"
	"github.com/kishorekota-dev/chatrouter/internal/types"
)

// WarningRatio is the share of an SLA threshold at which a warning fires
const WarningRatio = 0.8

const (
	RuleSLAWarning = "sla_warning"
	RuleSLABreach  = "sla_breach"
)

// CheckQueueAlerts evaluates SLA rules for queued entries. The wait is measured
// in the entry's current band, the same way automatic escalation measures it.
func CheckQueueAlerts(entries []types.QueueEntry, thresholds config.SLAThresholds, now time.Time) []types.QueueAlert {
	var alerts []types.QueueAlert

	for _, e := range entries {
		limit := thresholds.For(e.Priority)
		if limit <= 0 {
			continue
		}
		waited := now.Sub(e.SLAReference())

		switch {
		case waited >= limit:
			alerts = append(alerts, types.QueueAlert{
				Rule:      RuleSLABreach,
				Severity:  types.SeverityCritical,
				QueueID:   e.QueueID,
				SessionID: e.SessionID,
				Priority:  e.Priority,
				Message:   fmt.Sprintf("Waiting %s, SLA %s", formatDuration(waited), formatDuration(limit)),
			})
		case float64(waited) >= WarningRatio*float64(limit):
			alerts = append(alerts, types.QueueAlert{
				Rule:      RuleSLAWarning,
				Severity:  types.SeverityWarning,
				QueueID:   e.QueueID,
				SessionID: e.SessionID,
				Priority:  e.Priority,
				Message:   fmt.Sprintf("Waiting %s of %s SLA", formatDuration(waited), formatDuration(limit)),
			})
		}
	}

	return alerts
}

func formatDuration(d time.Duration) string {
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if mins >= 60 {
		hours := mins / 60
		mins = mins % 60
		return fmt.Sprintf("%dh%dm", hours, mins)
	}
	return fmt.Sprintf("%dm%ds", mins, secs)
}
