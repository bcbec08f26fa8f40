package core

import "time"

// Clock supplies "now" to the settlement core. It is injected so that
// lifecycle deadlines (deal expiries, session windows) can be driven by a
// fake clock in tests; the core never calls time.Now directly. The value is
// treated as an opaque, externally supplied instant - the core makes no
// assumption about precision or strict monotonic ordering between calls.
type Clock func() time.Time

// SystemClock is the production clock.
func SystemClock() time.Time {
	return time.Now().UTC()
}
