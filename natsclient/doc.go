// Package natsclient wraps a NATS connection for the NATS transport routines,
// adding a circuit breaker, retried connection setup and health reporting.
//
// # Circuit Breaker
//
// Failed connection attempts are counted. After a threshold of consecutive
// failures (default 5) the breaker opens and Connect fails fast with
// ErrCircuitOpen. It half-opens after the current backoff, which doubles each
// time the breaker trips, up to a maximum (default one minute). A successful
// connect resets it.
//
// Connection status moves through:
//
//	Disconnected -> Connecting -> Connected -> Reconnecting -> Connected
//
// # Dialers
//
// Routines never call NewClient directly. They receive a Dialer, built once
// from the deployment's Config, and add their own identity:
//
//	dial := natsclient.NewDialer(natsclient.Config{Timeout: 2 * time.Second})
//	client, err := dial("nats://localhost:4222",
//		natsclient.WithLogger(logger),
//		natsclient.WithName("camera.publish"),
//		natsclient.WithHealthChangeCallback(onHealth),
//	)
//
// IsHealthy and GetStatus feed the routine's health report.
//
// # Testing
//
// NewTestClient starts a NATS server in a container through testcontainers-go
// and registers its teardown with t.Cleanup. Tests using it carry the
// integration build tag.
package natsclient
