// Package retry provides exponential backoff for transient failures.
//
// Routines that talk to an external collaborator (Redis, NATS) wrap their
// connection attempt in Setup with Do:
//
//	err := retry.Do(ctx, retry.Quick(), func() error {
//	    return client.Ping(ctx).Err()
//	})
//
// Errors wrapped with NonRetryable stop the loop immediately.
package retry
