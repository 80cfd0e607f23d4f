// Package notify delivers user-visible notifications about replication
// failures.
//
// The router calls types.Notifier.Notify and never waits for or inspects the
// outcome, so every notifier here returns immediately:
//
//   - [Memory]: bounded in-process queue; drops when full
//   - [Stream]: NATS JetStream stream consumed by remote UIs
//   - [Log]: writes notifications to a types.Logger
//   - [Fanout]: forwards to several notifiers
//
// [Relay] moves notifications from a Memory queue to a sink such as
// Stream.Publish, keeping network I/O off the notifying goroutine.
//
// Notifications are transient. Nothing here retries a replication attempt.
//
// # Example
//
//	queue := notify.NewMemory(notify.WithCapacity(1024))
//	stream, _ := notify.NewStream(js)
//	relay := notify.NewRelay(queue, stream.Publish)
//	relay.Start()
//	defer relay.Stop()
//
//	router, _ := switchyard.NewRouter(reader, managed, switchyard.WithNotifier(queue))
package notify
