package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nightcircle/internal/logging"
	"nightcircle/internal/metrics"
	"nightcircle/internal/store"
)

// Reaper purges expired statuses and room comments. Readers already hide
// expired rows, so a late pass never leaks them.
type Reaper struct {
	statuses store.Statuses
	rooms    store.Rooms
	now      func() time.Time
}

func NewReaper(statuses store.Statuses, rooms store.Rooms) *Reaper {
	return &Reaper{statuses: statuses, rooms: rooms, now: time.Now}
}

// ReapOnce deletes everything expired at the current time and reports how
// many rows went per table.
func (r *Reaper) ReapOnce(ctx context.Context) (statuses, comments int, err error) {
	now := r.now()

	statuses, serr := r.statuses.DeleteExpiredStatuses(ctx, now)
	if serr != nil {
		serr = fmt.Errorf("reap statuses: %w", serr)
	}
	metrics.RowsReaped.WithLabelValues("statuses").Add(float64(statuses))

	comments, cerr := r.rooms.DeleteExpiredComments(ctx, now)
	if cerr != nil {
		cerr = fmt.Errorf("reap comments: %w", cerr)
	}
	metrics.RowsReaped.WithLabelValues("room_comments").Add(float64(comments))

	if statuses+comments > 0 {
		logging.Debug().Int("statuses", statuses).Int("comments", comments).Msg("reaped expired rows")
	}
	return statuses, comments, errors.Join(serr, cerr)
}

// Service wraps the reaper for a supervisor.
func (r *Reaper) Service(interval time.Duration) *Periodic {
	return &Periodic{
		Name:     "reaper",
		Interval: interval,
		Run: func(ctx context.Context) error {
			_, _, err := r.ReapOnce(ctx)
			return err
		},
	}
}
