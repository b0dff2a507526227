package worker

import (
	"context"
	"time"

	"nightcircle/internal/logging"
)

// RoomCleaner removes night rooms past their lifetime.
type RoomCleaner interface {
	CleanupExpiredRooms(ctx context.Context) (int, error)
}

// RoomSweeper runs the room retention pass on a schedule.
func RoomSweeper(cleaner RoomCleaner, interval time.Duration) *Periodic {
	return &Periodic{
		Name:     "room-sweeper",
		Interval: interval,
		Run: func(ctx context.Context) error {
			n, err := cleaner.CleanupExpiredRooms(ctx)
			if n > 0 {
				logging.Info().Int("rooms", n).Msg("swept expired night rooms")
			}
			return err
		},
	}
}
