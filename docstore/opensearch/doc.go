// Package opensearch implements docstore.Store against an OpenSearch
// cluster using opensearch-go.
//
// Configuration comes from the environment:
//
//	var cfg opensearch.Config
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
//	store, err := opensearch.Connect(ctx, cfg)
//
// Connect pings the cluster before returning; Ping can be called again
// later as a health check.
//
// Writes use refresh=wait_for so that a following Search sees them.
// DeleteAll runs a match_all delete-by-query; Search runs a match_all query
// with allow_no_indices so a missing index yields no documents.
//
// Network failures become transport errors, and responses with status 400
// or above become server errors carrying the status and the cluster's
// error type and reason.
package opensearch
