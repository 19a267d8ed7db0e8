package scan

import (
	"fmt"
	"time"

	"github.com/capscanio/capscan/pkg/domain/scansession"
)

// BuildSnapshot assembles a running progress snapshot for a scan that
// started at startedAt and has fully attempted current of total items.
// The ETA extrapolates the observed per-item pace over the remaining
// items and is omitted until at least one item has been attempted.
func BuildSnapshot(startedAt, now time.Time, current, total, successful, failed int, recent []scansession.ItemError) scansession.ProgressSnapshot {
	elapsed := now.Sub(startedAt)
	if elapsed < 0 {
		elapsed = 0
	}

	snapshot := scansession.ProgressSnapshot{
		Status:         scansession.StatusRunning,
		Current:        current,
		Total:          total,
		Successful:     successful,
		Failed:         failed,
		RecentErrors:   trimErrors(recent),
		ElapsedSeconds: elapsed.Seconds(),
	}

	if current > 0 && current < total {
		perItem := elapsed / time.Duration(current)
		snapshot.EstimatedTimeRemaining = humanizeDuration(perItem * time.Duration(total-current))
	}

	return snapshot
}

// trimErrors keeps only the newest entries, bounded by MaxRecentErrors.
func trimErrors(errs []scansession.ItemError) []scansession.ItemError {
	if len(errs) <= scansession.MaxRecentErrors {
		return errs
	}
	return errs[len(errs)-scansession.MaxRecentErrors:]
}

func humanizeDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return "less than 1s"
	case d < 90*time.Second:
		return fmt.Sprintf("%ds", int(d.Round(time.Second).Seconds()))
	case d < 90*time.Minute:
		return fmt.Sprintf("%dm", int(d.Round(time.Minute).Minutes()))
	default:
		return fmt.Sprintf("%.1fh", d.Hours())
	}
}
