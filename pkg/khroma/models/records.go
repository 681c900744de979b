package models

import (
	"errors"
	"fmt"
)

// Records is the body of add, upsert and update requests. Every non-nil
// per-record slice must line up with IDs; a nil element (nil Metadata,
// nil *string) is sent as null for that record.
type Records struct {
	IDs        []string    `json:"ids"`
	Embeddings *Embeddings `json:"embeddings,omitempty"`
	Metadatas  []Metadata  `json:"metadatas,omitempty"`
	Documents  []*string   `json:"documents,omitempty"`
	URIs       []*string   `json:"uris,omitempty"`
}

// Validate checks the shape of the batch: at least one id, no duplicate ids
// and per-record slices matching IDs in length. Embedding dimensionality is
// left to the server.
func (r Records) Validate() error {
	if len(r.IDs) == 0 {
		return errors.New("records: at least one id is required")
	}

	seen := make(map[string]struct{}, len(r.IDs))
	for _, id := range r.IDs {
		if _, ok := seen[id]; ok {
			return fmt.Errorf("records: duplicate id %q in batch", id)
		}
		seen[id] = struct{}{}
	}

	n := len(r.IDs)
	if r.Embeddings != nil && r.Embeddings.Len() != n {
		return fmt.Errorf("records: %d embeddings for %d ids", r.Embeddings.Len(), n)
	}
	if r.Metadatas != nil && len(r.Metadatas) != n {
		return fmt.Errorf("records: %d metadatas for %d ids", len(r.Metadatas), n)
	}
	if r.Documents != nil && len(r.Documents) != n {
		return fmt.Errorf("records: %d documents for %d ids", len(r.Documents), n)
	}
	if r.URIs != nil && len(r.URIs) != n {
		return fmt.Errorf("records: %d uris for %d ids", len(r.URIs), n)
	}
	return nil
}

// DeleteRecords selects records to delete by id, by filter, or both.
type DeleteRecords struct {
	IDs           []string      `json:"ids,omitempty"`
	Where         Where         `json:"where,omitempty"`
	WhereDocument WhereDocument `json:"where_document,omitempty"`
}
