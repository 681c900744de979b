package khroma

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/papercomputeco/khroma/pkg/khroma/models"
)

// Database scopes collection management to one database of one tenant.
type Database struct {
	tenant *Tenant
	name   string

	// model is set when the handle came from a server response.
	model models.Database
}

func (d *Database) Name() string {
	return d.name
}

func (d *Database) Tenant() *Tenant {
	return d.tenant
}

// ID is the server id, or uuid.Nil for a handle built without a round trip.
func (d *Database) ID() uuid.UUID {
	return d.model.ID
}

func (d *Database) path(segments ...string) []string {
	return append([]string{"tenants", d.tenant.name, "databases", d.name}, segments...)
}

func (d *Database) transport() *transport {
	return d.tenant.client.t
}

// CreateCollection creates a collection. With req.GetOrCreate set the server
// returns an existing collection of the same name instead of failing.
func (d *Database) CreateCollection(ctx context.Context, req models.CreateCollection) (*Collection, error) {
	var c models.Collection
	err := d.transport().do(ctx, call{
		op:     "create_collection",
		method: http.MethodPost,
		path:   d.path("collections"),
		body:   req,
	}, &c)
	if err != nil {
		return nil, err
	}
	return d.collection(c), nil
}

// GetCollection fetches a collection by name.
func (d *Database) GetCollection(ctx context.Context, name string) (*Collection, error) {
	var c models.Collection
	err := d.transport().do(ctx, call{
		op:     "get_collection",
		method: http.MethodGet,
		path:   d.path("collections", name),
	}, &c)
	if err != nil {
		return nil, err
	}
	return d.collection(c), nil
}

// GetOrCreateCollection creates the collection, or fetches it by name when
// the create fails because it already exists. Which failures count as
// "already exists" is set by WithConflictMatcher. Every other error is
// returned unchanged.
func (d *Database) GetOrCreateCollection(ctx context.Context, req models.CreateCollection) (*Collection, error) {
	c, err := d.CreateCollection(ctx, req)
	if err == nil {
		return c, nil
	}

	e, ok := AsError(err)
	if !ok || !d.tenant.client.conflict(e) {
		return nil, err
	}

	d.transport().logger.DebugContext(ctx, "collection exists, fetching",
		"collection", req.Name,
		"status", e.Status,
		"code", e.Code,
	)
	return d.GetCollection(ctx, req.Name)
}

// ListCollections lists the collections of this database.
func (d *Database) ListCollections(ctx context.Context, page models.Page) ([]*Collection, error) {
	var cs []models.Collection
	err := d.transport().do(ctx, call{
		op:     "list_collections",
		method: http.MethodGet,
		path:   d.path("collections"),
		query:  pageQuery(page),
	}, &cs)
	if err != nil {
		return nil, err
	}
	if err := validateEach("list_collections", cs); err != nil {
		return nil, err
	}

	out := make([]*Collection, len(cs))
	for i := range cs {
		out[i] = d.collection(cs[i])
	}
	return out, nil
}

// DeleteCollection deletes a collection by name.
func (d *Database) DeleteCollection(ctx context.Context, name string) error {
	return d.transport().do(ctx, call{
		op:     "delete_collection",
		method: http.MethodDelete,
		path:   d.path("collections", name),
	}, nil)
}

// CountCollections returns the number of collections in this database.
func (d *Database) CountCollections(ctx context.Context) (int, error) {
	var n int
	err := d.transport().do(ctx, call{
		op:     "count_collections",
		method: http.MethodGet,
		path:   d.path("collections_count"),
	}, &n)
	return n, err
}

func (d *Database) collection(m models.Collection) *Collection {
	return &Collection{db: d, model: m}
}
