package khroma

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/papercomputeco/khroma/pkg/khroma/models"
)

// Tenant scopes database management to one tenant.
type Tenant struct {
	client *Khroma
	name   string
}

func (t *Tenant) Name() string {
	return t.name
}

// CreateDatabase creates a database in this tenant and returns its handle.
func (t *Tenant) CreateDatabase(ctx context.Context, name string) (*Database, error) {
	err := t.client.t.do(ctx, call{
		op:     "create_database",
		method: http.MethodPost,
		path:   []string{"tenants", t.name, "databases"},
		body:   models.CreateDatabase{Name: name},
	}, nil)
	if err != nil {
		return nil, err
	}
	return t.Database(name), nil
}

// GetDatabase fetches a database of this tenant.
func (t *Tenant) GetDatabase(ctx context.Context, name string) (*Database, error) {
	var db models.Database
	err := t.client.t.do(ctx, call{
		op:     "get_database",
		method: http.MethodGet,
		path:   []string{"tenants", t.name, "databases", name},
	}, &db)
	if err != nil {
		return nil, err
	}
	return t.database(db), nil
}

// ListDatabases lists the databases of this tenant.
func (t *Tenant) ListDatabases(ctx context.Context, page models.Page) ([]models.Database, error) {
	var dbs []models.Database
	err := t.client.t.do(ctx, call{
		op:     "list_databases",
		method: http.MethodGet,
		path:   []string{"tenants", t.name, "databases"},
		query:  pageQuery(page),
	}, &dbs)
	if err != nil {
		return nil, err
	}
	if err := validateEach("list_databases", dbs); err != nil {
		return nil, err
	}
	return dbs, nil
}

// DeleteDatabase deletes a database and everything in it.
func (t *Tenant) DeleteDatabase(ctx context.Context, name string) error {
	return t.client.t.do(ctx, call{
		op:     "delete_database",
		method: http.MethodDelete,
		path:   []string{"tenants", t.name, "databases", name},
	}, nil)
}

// Database returns a handle for name without checking that it exists.
func (t *Tenant) Database(name string) *Database {
	return &Database{tenant: t, name: name}
}

func (t *Tenant) database(m models.Database) *Database {
	return &Database{tenant: t, name: m.Name, model: m}
}

func pageQuery(p models.Page) url.Values {
	q := url.Values{}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Offset > 0 {
		q.Set("offset", strconv.Itoa(p.Offset))
	}
	return q
}

// validateEach applies Validate to every decoded element of a list response.
func validateEach[T any, PT interface {
	*T
	validator
}](op string, items []T) error {
	for i := range items {
		if err := PT(&items[i]).Validate(); err != nil {
			return &Error{Kind: KindParse, Op: op, Message: "unexpected " + op + " response", Err: err}
		}
	}
	return nil
}
