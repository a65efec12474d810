package opensearch

import (
	"context"

	"github.com/opensearch-project/opensearch-go/v2"

	"github.com/wippyai/hostbridge/errors"
)

// NewClient builds a client from cfg without contacting the cluster.
func NewClient(cfg Config) (*opensearch.Client, error) {
	client, err := opensearch.NewClient(opensearch.Config{
		Addresses:    cfg.Addresses,
		Username:     cfg.Username,
		Password:     cfg.Password,
		MaxRetries:   cfg.MaxRetries,
		DisableRetry: cfg.DisableRetry,
	})
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "opensearch client")
	}
	return client, nil
}

// Connect opens a store for cfg and pings the cluster once. Ping failures
// are returned as the store reports them.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	s := NewStore(client)
	if err := s.Ping(ctx); err != nil {
		return nil, err
	}
	return s, nil
}
