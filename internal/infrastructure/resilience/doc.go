/*
Package resilience provides a circuit breaker for operations that keep failing.

The web terminal uses it to guard shell restarts: when the configured shell
cannot be spawned several times in a row, further restart requests fail fast
with ErrCircuitOpen until a cooldown has passed.

# Usage

	guard := resilience.New("restart", resilience.Settings{
		Threshold: 3,
		Cooldown:  30 * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Breaker state changed", zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	err := guard.Do(func() error {
		return spawn()
	})

# States

	Closed --[Threshold failures]-> Open --[Cooldown]-> Half-Open --[success]-> Closed
	                                                        |
	                                                    [failure]
	                                                        v
	                                                      Open

Half-open admits exactly one trial call.
*/
package resilience
