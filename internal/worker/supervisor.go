package worker

import (
	"time"

	"github.com/thejerf/suture/v4"

	"nightcircle/internal/logging"
)

// NewSupervisor returns a root supervisor whose lifecycle events are
// reported through the application logger.
func NewSupervisor(name string) *suture.Supervisor {
	return suture.New(name, suture.Spec{
		EventHook:        eventHook,
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          10 * time.Second,
	})
}

func eventHook(e suture.Event) {
	log := logging.With("supervisor")
	ev := log.Warn()
	if e.Type() == suture.EventTypeServicePanic {
		ev = log.Error()
	}
	ev.Fields(e.Map()).Msg(e.String())
}
