package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATS stores cursors in a JetStream key-value bucket. Indexer names
// double as bucket keys, so they must be valid JetStream key names
// (alphanumerics, '-', '_' and '.').
type NATS struct {
	nc *nats.Conn
	kv jetstream.KeyValue
}

// NewNATS connects to the given NATS URL and ensures the bucket exists.
func NewNATS(url, bucket string) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:  bucket,
		Storage: jetstream.FileStorage,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure KV bucket %s: %w", bucket, err)
	}

	return &NATS{nc: nc, kv: kv}, nil
}

func (n *NATS) Get(ctx context.Context, name string) (string, bool, error) {
	entry, err := n.kv.Get(ctx, name)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(entry.Value()), true, nil
}

func (n *NATS) Set(ctx context.Context, name, value string) error {
	_, err := n.kv.PutString(ctx, name, value)
	return err
}

func (n *NATS) Delete(ctx context.Context, name string) error {
	err := n.kv.Delete(ctx, name)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	return err
}

// Close releases the NATS connection.
func (n *NATS) Close() error {
	if n.nc != nil {
		n.nc.Close()
	}
	return nil
}
