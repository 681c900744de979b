package models

// GetRecords selects records by id and/or filter.
type GetRecords struct {
	IDs           []string      `json:"ids,omitempty"`
	Where         Where         `json:"where,omitempty"`
	WhereDocument WhereDocument `json:"where_document,omitempty"`
	Include       []Include     `json:"include,omitempty"`
	Limit         int           `json:"limit,omitempty"`
	Offset        int           `json:"offset,omitempty"`
}

// GetResult holds parallel per-record slices. Slices for fields that were
// not included are nil.
type GetResult struct {
	IDs        []string    `json:"ids"`
	Include    []Include   `json:"include"`
	Embeddings [][]float32 `json:"embeddings,omitempty"`
	Documents  []*string   `json:"documents,omitempty"`
	Metadatas  []Metadata  `json:"metadatas,omitempty"`
	URIs       []*string   `json:"uris,omitempty"`
}

// Record is one row of a GetResult.
type Record struct {
	ID        string
	Embedding []float32
	Document  *string
	Metadata  Metadata
	URI       *string
}

// Records zips the parallel slices into rows.
func (r *GetResult) Records() []Record {
	out := make([]Record, len(r.IDs))
	for i, id := range r.IDs {
		out[i] = Record{
			ID:        id,
			Embedding: at(r.Embeddings, i),
			Document:  at(r.Documents, i),
			Metadata:  at(r.Metadatas, i),
			URI:       at(r.URIs, i),
		}
	}
	return out
}

// QueryRecords asks for the NResults nearest neighbours of each query embedding.
type QueryRecords struct {
	QueryEmbeddings *Embeddings   `json:"query_embeddings"`
	IDs             []string      `json:"ids,omitempty"`
	Where           Where         `json:"where,omitempty"`
	WhereDocument   WhereDocument `json:"where_document,omitempty"`
	Include         []Include     `json:"include,omitempty"`
	NResults        int           `json:"n_results,omitempty"`
}

// QueryResult holds one ranked row per query embedding; row i of every
// slice answers query embedding i.
type QueryResult struct {
	IDs        [][]string    `json:"ids"`
	Include    []Include     `json:"include"`
	Distances  [][]*float32  `json:"distances,omitempty"`
	Documents  [][]*string   `json:"documents,omitempty"`
	Metadatas  [][]Metadata  `json:"metadatas,omitempty"`
	Embeddings [][][]float32 `json:"embeddings,omitempty"`
	URIs       [][]*string   `json:"uris,omitempty"`
}

// Match is one ranked neighbour.
type Match struct {
	ID        string
	Distance  *float32
	Document  *string
	Metadata  Metadata
	Embedding []float32
	URI       *string
}

// Matches returns the ranked neighbours of query embedding i, closest first.
func (r *QueryResult) Matches(i int) []Match {
	if i < 0 || i >= len(r.IDs) {
		return nil
	}
	ids := r.IDs[i]
	distances := at(r.Distances, i)
	documents := at(r.Documents, i)
	metadatas := at(r.Metadatas, i)
	embeddings := at(r.Embeddings, i)
	uris := at(r.URIs, i)

	out := make([]Match, len(ids))
	for j, id := range ids {
		out[j] = Match{
			ID:        id,
			Document:  at(documents, j),
			Metadata:  at(metadatas, j),
			Embedding: at(embeddings, j),
			URI:       at(uris, j),
			Distance:  at(distances, j),
		}
	}
	return out
}

func at[T any](s []T, i int) T {
	var zero T
	if i < len(s) {
		return s[i]
	}
	return zero
}
