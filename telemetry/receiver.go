package telemetry

import (
	"context"
	"reflect"
	"strconv"

	"go.uber.org/zap"

	"github.com/wippyai/hostbridge/docstore"
)

var eventType = reflect.TypeOf(Event{})

// Receiver reads and writes telemetry events through a document store.
type Receiver struct {
	store docstore.Store
}

// NewReceiver creates a receiver over store.
func NewReceiver(store docstore.Store) *Receiver {
	return &Receiver{store: store}
}

// Store returns the underlying document store.
func (r *Receiver) Store() docstore.Store {
	return r.store
}

// FindTelemetryEvents returns every event stored in index. A document that
// does not decode as an event fails the whole read with a conversion error
// whose path names the index and position.
func (r *Receiver) FindTelemetryEvents(ctx context.Context, index string) ([]Event, error) {
	docs, err := r.store.Search(ctx, index)
	if err != nil {
		return nil, err
	}

	events := make([]Event, len(docs))
	for i, doc := range docs {
		ev, err := EventFromDocument(doc, index, strconv.Itoa(i))
		if err != nil {
			return nil, err
		}
		events[i] = ev
	}

	Logger().Debug("telemetry events read",
		zap.String("index", index), zap.Int("count", len(events)))
	return events, nil
}

// Publish bulk-indexes events into index, keeping their ids.
func (r *Receiver) Publish(ctx context.Context, index string, events ...Event) error {
	docs := make([]docstore.Document, len(events))
	for i, ev := range events {
		docs[i] = ev.Document()
	}
	return r.store.BulkIndex(ctx, index, docs)
}
