package telemetry

import (
	"github.com/wippyai/hostbridge/docstore"
	"github.com/wippyai/hostbridge/host"
)

// Event is a telemetry document as stored in an index.
type Event struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Value int32  `json:"value"`
}

// Document returns e as a store document. The id travels in the "id"
// field, so bulk indexing keeps it.
func (e Event) Document() docstore.Document {
	return docstore.Document{
		docstore.IDField: e.ID,
		"name":           e.Name,
		"value":          e.Value,
	}
}

// EventFromDocument decodes a stored document. Numbers must fit an int32
// exactly; JSON decoders hand them over as float64.
func EventFromDocument(doc docstore.Document, path ...string) (Event, error) {
	rv, err := host.Convert(doc, eventType, path...)
	if err != nil {
		return Event{}, err
	}
	return rv.Interface().(Event), nil
}

// ClusterInfo is the cluster identity returned by the cluster root endpoint.
type ClusterInfo struct {
	Version     *Version `json:"version,omitempty"`
	ClusterUUID string   `json:"cluster_uuid"`
	ClusterName string   `json:"cluster_name"`
}

// Version describes the cluster build.
type Version struct {
	BuildSnapshot                    *bool  `json:"build_snapshot,omitempty"`
	Number                           string `json:"number"`
	BuildFlavor                      string `json:"build_flavor"`
	BuildType                        string `json:"build_type"`
	BuildHash                        string `json:"build_hash"`
	BuildDate                        string `json:"build_date"`
	LuceneVersion                    string `json:"lucene_version"`
	MinimumWireCompatibilityVersion  string `json:"minimum_wire_compatibility_version"`
	MinimumIndexCompatibilityVersion string `json:"minimum_index_compatibility_version"`
}

// License is the cluster license as reported by the license endpoint.
type License struct {
	IssueDate          *string `json:"issue_date,omitempty"`
	IssueDateInMillis  *int64  `json:"issue_date_in_millis,omitempty"`
	ExpiryDate         *string `json:"expiry_date,omitempty"`
	ExpiryDateInMillis *int64  `json:"expiry_date_in_millis,omitempty"`
	MaxNodes           *uint32 `json:"max_nodes,omitempty"`
	IssuedTo           *string `json:"issued_to,omitempty"`
	Issuer             *string `json:"issuer,omitempty"`
	StartDateInMillis  *int64  `json:"start_date_in_millis,omitempty"`
	Status             string  `json:"status"`
	UID                string  `json:"uid"`
	Type               string  `json:"type"`
}

// ClusterData pairs the cluster identity with its license.
type ClusterData struct {
	ClusterInfo ClusterInfo `json:"cluster_info"`
	LicenseInfo License     `json:"license_info"`
}
