// Package config reads the data source settings that decide which store is
// primary and which stores receive replicated writes.
//
// Settings are stored as one JSON document under a single key of a Source:
//
//   - Memory: in-process map, for tests and embedding
//   - File: YAML document on disk, re-read on every access
//   - NATS: JetStream KV bucket with a live watch and a local cache
//
// The package never writes settings on behalf of the router. SelectPrimary is
// a total function: every configuration state, including none at all, maps
// to exactly one primary store kind.
//
// # Example
//
//	reader := config.NewReader(config.NewFile("/etc/switchyard/settings.yaml"), "")
//	settings, err := reader.Load(ctx)
//	primary := config.SelectPrimary(settings) // managed when err != nil
package config
