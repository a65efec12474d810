// Package docstore defines the document store the bindings expose to host
// code, with an in-memory implementation in docstore/memory and an
// OpenSearch one in docstore/opensearch.
//
// Index and query semantics belong to the backing store. This package only
// fixes the seven operations and how their failures surface: every failure
// is an errors.KindIO error, with the HTTP status attached for server-side
// failures:
//
//	if docstore.IsNotFound(err) {
//	    // index or document does not exist
//	}
package docstore
