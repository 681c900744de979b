package models

import "github.com/google/uuid"

// Space is the distance function of a vector index.
type Space string

const (
	SpaceL2     Space = "l2"
	SpaceCosine Space = "cosine"
	SpaceIP     Space = "ip"
)

// Collection is the server's view of a collection.
type Collection struct {
	ID                uuid.UUID               `json:"id"`
	Name              string                  `json:"name"`
	Metadata          Metadata                `json:"metadata,omitempty"`
	ConfigurationJSON CollectionConfiguration `json:"configuration_json"`
	Tenant            string                  `json:"tenant"`
	Database          string                  `json:"database"`
	LogPosition       int64                   `json:"log_position"`
	Version           int                     `json:"version"`
	Dimension         *int                    `json:"dimension,omitempty"`
}

// CreateCollection is the body of a collection create request.
//
// GetOrCreate asks the server to return an existing collection instead of
// failing with a conflict.
type CreateCollection struct {
	Name          string                   `json:"name"`
	Metadata      Metadata                 `json:"metadata,omitempty"`
	Configuration *CollectionConfiguration `json:"configuration,omitempty"`
	GetOrCreate   bool                     `json:"get_or_create,omitempty"`
}

// ModifyCollection renames a collection or replaces its metadata or
// mutable configuration. An empty NewMetadata is left off the wire like a
// nil one, so it leaves the stored metadata in place rather than clearing it.
type ModifyCollection struct {
	NewName          *string                        `json:"new_name,omitempty"`
	NewMetadata      Metadata                       `json:"new_metadata,omitempty"`
	NewConfiguration *UpdateCollectionConfiguration `json:"new_configuration,omitempty"`
}

// ForkCollection copies a collection under a new name.
type ForkCollection struct {
	NewName string `json:"new_name"`
}

// CollectionConfiguration is the index configuration set at creation time.
type CollectionConfiguration struct {
	EmbeddingFunction *EmbeddingFunctionConfiguration `json:"embedding_function,omitempty"`
	HNSW              *HNSWConfiguration              `json:"hnsw,omitempty"`
	SPANN             *SPANNConfiguration             `json:"spann,omitempty"`
}

// EmbeddingFunctionConfiguration records which embedding function produced
// the collection's vectors. Type is "legacy" or "known"; Name and Config are
// only meaningful for "known".
type EmbeddingFunctionConfiguration struct {
	Type   string         `json:"type"`
	Name   string         `json:"name,omitempty"`
	Config map[string]any `json:"config,omitempty"`
}

type HNSWConfiguration struct {
	EfConstruction *int     `json:"ef_construction,omitempty"`
	EfSearch       *int     `json:"ef_search,omitempty"`
	MaxNeighbors   *int     `json:"max_neighbors,omitempty"`
	ResizeFactor   *float64 `json:"resize_factor,omitempty"`
	Space          *Space   `json:"space,omitempty"`
	SyncThreshold  *int     `json:"sync_threshold,omitempty"`
}

type SPANNConfiguration struct {
	EfConstruction        *int   `json:"ef_construction,omitempty"`
	EfSearch              *int   `json:"ef_search,omitempty"`
	MaxNeighbors          *int   `json:"max_neighbors,omitempty"`
	MergeThreshold        *int   `json:"merge_threshold,omitempty"`
	ReassignNeighborCount *int   `json:"reassign_neighbor_count,omitempty"`
	SearchNprobe          *int   `json:"search_nprobe,omitempty"`
	Space                 *Space `json:"space,omitempty"`
	SplitThreshold        *int   `json:"split_threshold,omitempty"`
	WriteNprobe           *int   `json:"write_nprobe,omitempty"`
}

// UpdateCollectionConfiguration holds the configuration that may change
// after creation.
type UpdateCollectionConfiguration struct {
	EmbeddingFunction *EmbeddingFunctionConfiguration `json:"embedding_function,omitempty"`
	HNSW              *UpdateHNSWConfiguration        `json:"hnsw,omitempty"`
	SPANN             *SPANNConfiguration             `json:"spann,omitempty"`
}

type UpdateHNSWConfiguration struct {
	BatchSize     *int     `json:"batch_size,omitempty"`
	EfSearch      *int     `json:"ef_search,omitempty"`
	MaxNeighbors  *int     `json:"max_neighbors,omitempty"`
	NumThreads    *int     `json:"num_threads,omitempty"`
	ResizeFactor  *float64 `json:"resize_factor,omitempty"`
	SyncThreshold *int     `json:"sync_threshold,omitempty"`
}
