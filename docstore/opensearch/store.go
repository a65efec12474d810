package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"go.uber.org/zap"

	"github.com/wippyai/hostbridge/docstore"
	"github.com/wippyai/hostbridge/errors"
)

const refreshWaitFor = "wait_for"

var matchAll = []byte(`{"query":{"match_all":{}}}`)

// Store is a docstore.Store backed by an OpenSearch cluster.
type Store struct {
	client opensearchapi.Transport
}

var _ docstore.Store = (*Store)(nil)

// NewStore creates a store over client, usually an *opensearch.Client.
func NewStore(client opensearchapi.Transport) *Store {
	return &Store{client: client}
}

type request interface {
	Do(ctx context.Context, transport opensearchapi.Transport) (*opensearchapi.Response, error)
}

// do performs req and maps transport and status failures. The caller owns
// the returned body.
func (s *Store) do(ctx context.Context, op string, req request) ([]byte, int, error) {
	res, err := req.Do(ctx, s.client)
	if err != nil {
		Logger().Debug("opensearch request failed", zap.String("op", op), zap.Error(err))
		return nil, 0, errors.Transport(op, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, res.StatusCode, errors.Transport(op, err)
	}
	if res.IsError() {
		Logger().Debug("opensearch request rejected",
			zap.String("op", op), zap.Int("status", res.StatusCode))
		return nil, res.StatusCode, errors.Server(op, res.StatusCode, reason(body))
	}
	return body, res.StatusCode, nil
}

// reason extracts the error type and reason from an error response body.
func reason(body []byte) string {
	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &payload) != nil || len(payload.Error) == 0 {
		return strings.TrimSpace(string(body))
	}
	var detail struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	}
	if json.Unmarshal(payload.Error, &detail) != nil || detail.Type == "" {
		return strings.Trim(string(payload.Error), `"`)
	}
	return detail.Type + ": " + detail.Reason
}

// Ping asks the cluster for its info document. An unreachable cluster is a
// transport error and a refusal is a server error with its status.
func (s *Store) Ping(ctx context.Context) error {
	_, _, err := s.do(ctx, "ping", opensearchapi.InfoRequest{ErrorTrace: true})
	return err
}

// CreateIndex implements docstore.Store.
func (s *Store) CreateIndex(ctx context.Context, name string) error {
	_, _, err := s.do(ctx, "create index", opensearchapi.IndicesCreateRequest{Index: name})
	return err
}

// DeleteIndex implements docstore.Store.
func (s *Store) DeleteIndex(ctx context.Context, name string) error {
	ignore := true
	_, _, err := s.do(ctx, "delete index", opensearchapi.IndicesDeleteRequest{
		Index:             []string{name},
		IgnoreUnavailable: &ignore,
	})
	return err
}

// Index implements docstore.Store.
func (s *Store) Index(ctx context.Context, index string, doc docstore.Document) (string, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return "", errors.Wrap(errors.PhaseStore, errors.KindInvalidInput, err, "encode document")
	}

	out, _, err := s.do(ctx, "index", opensearchapi.IndexRequest{
		Index:   index,
		Body:    bytes.NewReader(body),
		Refresh: refreshWaitFor,
	})
	if err != nil {
		return "", err
	}

	var res struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(out, &res); err != nil || res.ID == "" {
		return "", errors.Wrap(errors.PhaseStore, errors.KindInvalidData, err, "decode index response")
	}
	return res.ID, nil
}

// BulkIndex implements docstore.Store.
func (s *Store) BulkIndex(ctx context.Context, index string, docs []docstore.Document) error {
	if len(docs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range docs {
		action := map[string]any{}
		if id, ok := docstore.DocumentID(doc); ok {
			action["_id"] = id
		}
		if err := enc.Encode(map[string]any{"index": action}); err != nil {
			return errors.Wrap(errors.PhaseStore, errors.KindInvalidInput, err, "encode bulk action")
		}
		if err := enc.Encode(doc); err != nil {
			return errors.Wrap(errors.PhaseStore, errors.KindInvalidInput, err, "encode document")
		}
	}

	out, _, err := s.do(ctx, "bulk index", opensearchapi.BulkRequest{
		Index:   index,
		Body:    &buf,
		Refresh: refreshWaitFor,
	})
	if err != nil {
		return err
	}
	return bulkFailure(out)
}

// bulkFailure reports the first failed item of a bulk response.
func bulkFailure(body []byte) error {
	var res struct {
		Items []map[string]struct {
			Error  json.RawMessage `json:"error"`
			Status int             `json:"status"`
		} `json:"items"`
		Errors bool `json:"errors"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return errors.Wrap(errors.PhaseStore, errors.KindInvalidData, err, "decode bulk response")
	}
	if !res.Errors {
		return nil
	}
	for _, item := range res.Items {
		for _, r := range item {
			if r.Status >= http.StatusBadRequest {
				return errors.Server("bulk index", r.Status, reason([]byte(`{"error":`+string(r.Error)+`}`)))
			}
		}
	}
	return errors.Server("bulk index", http.StatusInternalServerError, "bulk request reported errors")
}

// Delete implements docstore.Store.
func (s *Store) Delete(ctx context.Context, index, id string) error {
	_, _, err := s.do(ctx, "delete", opensearchapi.DeleteRequest{
		Index:      index,
		DocumentID: id,
		Refresh:    refreshWaitFor,
	})
	return err
}

// DeleteAll implements docstore.Store.
func (s *Store) DeleteAll(ctx context.Context, index string) error {
	refresh := true
	_, _, err := s.do(ctx, "delete all", opensearchapi.DeleteByQueryRequest{
		Index:   []string{index},
		Body:    bytes.NewReader(matchAll),
		Refresh: &refresh,
	})
	return err
}

// Search implements docstore.Store.
func (s *Store) Search(ctx context.Context, index string) ([]docstore.Document, error) {
	allowNoIndices := true
	out, status, err := s.do(ctx, "search", opensearchapi.SearchRequest{
		Index:          []string{index},
		Body:           bytes.NewReader(matchAll),
		AllowNoIndices: &allowNoIndices,
	})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errors.Server("search", status, "failed to query data")
	}

	var res struct {
		Hits struct {
			Hits []struct {
				Source docstore.Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(out, &res); err != nil {
		return nil, errors.Wrap(errors.PhaseStore, errors.KindInvalidData, err, "decode search response")
	}

	docs := make([]docstore.Document, len(res.Hits.Hits))
	for i, h := range res.Hits.Hits {
		docs[i] = h.Source
	}
	return docs, nil
}
