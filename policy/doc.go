// Package policy provides the guards the router applies to replication
// attempts.
//
// # Target Breaker
//
// [TargetBreaker] counts consecutive replication failures per store kind.
// Once the threshold is reached the target is skipped until the cooldown
// has passed, after which a single probe attempt is let through:
//
//	breaker := policy.NewTargetBreaker(
//	    policy.WithThreshold(5),
//	    policy.WithCooldown(time.Minute),
//	)
//	router, _ := switchyard.NewRouter(source, managed,
//	    switchyard.WithBreaker(breaker),
//	)
//
// Skipped attempts are reported as types.ErrReplicationDropped.
//
// # In-flight Limiter
//
// [Limiter] is a non-blocking semaphore bounding the number of replication
// attempts running at once. A zero limit disables it.
package policy
