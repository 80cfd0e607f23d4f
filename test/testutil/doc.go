// Package testutil provides test utilities and mock implementations for switchyard testing.
//
// # Mock Implementations
//
//   - [MockAdapter]: In-memory adapter.Adapter with call recording and fault injection
//   - [RecordingExecutor]: proxy.Executor that records requests
//   - [TestMetricsCollector]: types.MetricsCollector that counts calls
//
// # Usage
//
//	managed := testutil.NewMockAdapter(types.KindManaged)
//	managed.SetError("Upsert", errors.New("unreachable"))
//
//	router, _ := switchyard.NewRouter(source, managed)
//
// # Integration Test Helpers
//
//   - StartEmbeddedNATS: Starts an embedded NATS server with JetStream
//   - CreateKV, PutSettings: Settings buckets for config.NATS tests
//   - OpenSQLite: Opens an in-memory GORM database backed by go-sqlite3
package testutil
