package testutil

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"
)

// StartEmbeddedNATS runs a JetStream-enabled NATS server on a random local
// port for the duration of t and returns a JetStream context on it.
//
// Settings buckets and notification streams share the returned context. Use
// StartEmbeddedNATSConn when the core connection is needed as well.
func StartEmbeddedNATS(t *testing.T) jetstream.JetStream {
	t.Helper()

	_, js := StartEmbeddedNATSConn(t)

	return js
}

// StartEmbeddedNATSConn is StartEmbeddedNATS returning the core connection
// alongside the JetStream context, for the proxy's NATS transport.
//
// The server stores its state under t.TempDir() and is shut down at cleanup.
func StartEmbeddedNATSConn(t *testing.T) (*nats.Conn, jetstream.JetStream) {
	t.Helper()

	ns, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
		NoSigs:    true,
	})
	require.NoError(t, err, "nats server options rejected")

	ns.Start()
	t.Cleanup(ns.Shutdown)
	require.True(t, ns.ReadyForConnections(5*time.Second), "nats server did not start")

	nc, err := nats.Connect(ns.ClientURL(), nats.Name(t.Name()))
	require.NoError(t, err, "connecting to embedded nats")
	t.Cleanup(nc.Close)

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	return nc, js
}

// CreateKV creates the settings bucket named bucket.
func CreateKV(t *testing.T, js jetstream.JetStream, bucket string) jetstream.KeyValue {
	t.Helper()

	kv, err := js.CreateKeyValue(t.Context(), jetstream.KeyValueConfig{Bucket: bucket})
	require.NoError(t, err, "creating kv bucket %s", bucket)

	return kv
}

// PutSettings stores v as JSON under key, the way the settings screen saves
// data source settings.
func PutSettings(t *testing.T, kv jetstream.KeyValue, key string, v any) {
	t.Helper()

	b, err := json.Marshal(v)
	require.NoError(t, err)

	_, err = kv.Put(t.Context(), key, b)
	require.NoError(t, err, "storing settings under %s", key)
}
