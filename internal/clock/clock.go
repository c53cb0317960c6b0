package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock abstracts wall-clock reads so session expiry and inactivity windows
// can be exercised deterministically in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// NewSystemClock returns the production clock.
func NewSystemClock() Clock { return systemClock{} }

var Module = fx.Module("clock",
	fx.Provide(NewSystemClock),
)
