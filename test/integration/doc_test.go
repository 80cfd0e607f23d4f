// Package integration_test provides end-to-end tests of the router with
// real stores and transports.
//
// The self-hosted store is reached through a real proxy server executing on
// SQLite, the managed store is a GORM SQLite database, and NATS runs embedded.
// No external services are required.
//
// # Running Integration Tests
//
// Integration tests are skipped when using -short flag or when
// SKIP_INTEGRATION_TESTS=1:
//
//	go test -short ./...           # Skips integration tests
//	go test ./test/integration/... # Runs integration tests
//
// SQLite is provided by the go-sqlite3 driver, which requires cgo.
package integration_test
