/*
Package resilience provides a circuit breaker for the record stores.

A failing disk or database should not be hit on every autosave tick and every
mutation. The breaker opens after repeated failures, rejects calls with
ErrCircuitOpen during a cooldown, then lets a bounded number of probes through.

# Usage

	breaker := resilience.New("storage", resilience.Settings{
		Cooldown: 30 * time.Second,
		ShouldTrip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
	})

	err := breaker.Execute(func() error {
		return store.Put(ctx, key, value)
	})

# States

	Closed --[trip]-> Open --[cooldown]-> Half-Open --[probes ok]-> Closed
	                   ^                      |
	                   +------[failure]-------+
*/
package resilience
