package khroma

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/papercomputeco/khroma/pkg/khroma/models"
)

// Collection addresses the records of one collection. Its fields are a
// snapshot of the server state when the handle was made and are never
// refreshed.
type Collection struct {
	db    *Database
	model models.Collection
}

func (c *Collection) ID() uuid.UUID {
	return c.model.ID
}

func (c *Collection) Name() string {
	return c.model.Name
}

func (c *Collection) Metadata() models.Metadata {
	return c.model.Metadata
}

// Dimension is nil until the server has seen an embedding.
func (c *Collection) Dimension() *int {
	return c.model.Dimension
}

func (c *Collection) Configuration() models.CollectionConfiguration {
	return c.model.ConfigurationJSON
}

// Model returns the full server description.
func (c *Collection) Model() models.Collection {
	return c.model
}

func (c *Collection) Database() *Database {
	return c.db
}

func (c *Collection) path(segments ...string) []string {
	return c.db.path(append([]string{"collections", c.model.ID.String()}, segments...)...)
}

func (c *Collection) write(ctx context.Context, op, endpoint string, records models.Records) error {
	if err := records.Validate(); err != nil {
		return &Error{Kind: KindEncode, Op: op, Message: "invalid records", Err: err}
	}
	return c.db.transport().do(ctx, call{
		op:     op,
		method: http.MethodPost,
		path:   c.path(endpoint),
		body:   records,
	}, nil)
}

// Add inserts new records. Ids that already exist are left untouched.
func (c *Collection) Add(ctx context.Context, records models.Records) error {
	return c.write(ctx, "collection_add", "add", records)
}

// Upsert inserts records or replaces those whose ids already exist.
func (c *Collection) Upsert(ctx context.Context, records models.Records) error {
	return c.write(ctx, "collection_upsert", "upsert", records)
}

// Update changes existing records. Fields left nil are not touched.
func (c *Collection) Update(ctx context.Context, records models.Records) error {
	return c.write(ctx, "collection_update", "update", records)
}

// Delete removes the records selected by id and/or filter.
func (c *Collection) Delete(ctx context.Context, req models.DeleteRecords) error {
	return c.db.transport().do(ctx, call{
		op:     "collection_delete",
		method: http.MethodPost,
		path:   c.path("delete"),
		body:   req,
	}, nil)
}

// Get returns the records selected by id and/or filter.
func (c *Collection) Get(ctx context.Context, req models.GetRecords) (*models.GetResult, error) {
	var res models.GetResult
	err := c.db.transport().do(ctx, call{
		op:     "collection_get",
		method: http.MethodPost,
		path:   c.path("get"),
		body:   req,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Query ranks records by distance to each query embedding. page is sent as
// limit and offset query parameters.
func (c *Collection) Query(ctx context.Context, req models.QueryRecords, page models.Page) (*models.QueryResult, error) {
	if req.QueryEmbeddings == nil {
		return nil, &Error{Kind: KindEncode, Op: "collection_query", Message: "query embeddings are required"}
	}

	var res models.QueryResult
	err := c.db.transport().do(ctx, call{
		op:     "collection_query",
		method: http.MethodPost,
		path:   c.path("query"),
		query:  pageQuery(page),
		body:   req,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Count returns the number of records.
func (c *Collection) Count(ctx context.Context) (int, error) {
	var n int
	err := c.db.transport().do(ctx, call{
		op:     "collection_count",
		method: http.MethodGet,
		path:   c.path("count"),
	}, &n)
	return n, err
}

// Modify renames the collection or replaces its metadata or configuration.
// The receiver is unchanged; the returned handle reflects the new name and
// metadata.
func (c *Collection) Modify(ctx context.Context, req models.ModifyCollection) (*Collection, error) {
	err := c.db.transport().do(ctx, call{
		op:     "collection_modify",
		method: http.MethodPut,
		path:   c.path(),
		body:   req,
	}, nil)
	if err != nil {
		return nil, err
	}

	m := c.model
	if req.NewName != nil {
		m.Name = *req.NewName
	}
	if len(req.NewMetadata) > 0 {
		m.Metadata = req.NewMetadata
	}
	return c.db.collection(m), nil
}

// Fork copies the collection under newName and returns the copy.
func (c *Collection) Fork(ctx context.Context, newName string) (*Collection, error) {
	var m models.Collection
	err := c.db.transport().do(ctx, call{
		op:     "collection_fork",
		method: http.MethodPost,
		path:   c.path("fork"),
		body:   models.ForkCollection{NewName: newName},
	}, &m)
	if err != nil {
		return nil, err
	}
	return c.db.collection(m), nil
}
