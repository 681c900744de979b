// Package models holds the typed request and response bodies of the /api/v2
// wire contract. Optional fields are pointers, nil slices or nil maps and are
// omitted from requests rather than sent as null.
package models

// Ptr returns a pointer to v, for optional scalar fields.
func Ptr[T any](v T) *T {
	return &v
}

// Strings converts values to the optional-per-record form used by documents
// and URIs. Every entry is present.
func Strings(values ...string) []*string {
	out := make([]*string, len(values))
	for i := range values {
		out[i] = &values[i]
	}
	return out
}

// Metadata is a flat mapping from key to a string, number or boolean.
type Metadata map[string]any

// Where is a metadata filter tree, e.g. {"$and": [{"topic": "rust"}, {"year": {"$gte": 2020}}]}.
// The server owns the grammar; any JSON object is forwarded as-is.
type Where map[string]any

// WhereDocument is a full-text filter tree over documents, e.g. {"$contains": "rust"}.
type WhereDocument map[string]any

// Include selects which fields get and query return.
type Include string

const (
	IncludeDocuments  Include = "documents"
	IncludeEmbeddings Include = "embeddings"
	IncludeMetadatas  Include = "metadatas"
	IncludeDistances  Include = "distances"
	IncludeURIs       Include = "uris"
)

// Page carries limit/offset paging. Zero values are left off the request.
type Page struct {
	Limit  int
	Offset int
}

// ErrorResponse is the body the server sends with a failure status.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
