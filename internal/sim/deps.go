package sim

import (
	"math/rand"

	"silver-moon/server/internal/content"
	"silver-moon/server/logging"
)

// Deps carries shared infrastructure required by a room simulation.
type Deps struct {
	Content   *content.Store
	Publisher logging.Publisher
	RNG       *rand.Rand
}

func (d Deps) withDefaults() Deps {
	if d.Content == nil {
		d.Content = content.MustDefault()
	}
	if d.Publisher == nil {
		d.Publisher = logging.NopPublisher()
	}
	return d
}
