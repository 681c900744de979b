package models

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// The Validate methods below check that a decoded response carries the
// fields a caller depends on. A syntactically valid body such as {} would
// otherwise decode into a zero value.

func (h *Heartbeat) Validate() error {
	if h.NanosecondHeartbeat <= 0 {
		return errors.New("heartbeat: missing nanosecond heartbeat")
	}
	return nil
}

func (p *PreFlightChecks) Validate() error {
	if p.MaxBatchSize <= 0 {
		return errors.New("pre-flight checks: missing max batch size")
	}
	return nil
}

// An unauthenticated server reports an empty user id, so only the tenant is
// required.
func (i *Identity) Validate() error {
	if i.Tenant == "" {
		return errors.New("identity: missing tenant")
	}
	return nil
}

func (t *Tenant) Validate() error {
	if t.Name == "" {
		return errors.New("tenant: missing name")
	}
	return nil
}

func (d *Database) Validate() error {
	if d.Name == "" {
		return errors.New("database: missing name")
	}
	return nil
}

func (c *Collection) Validate() error {
	if c.ID == uuid.Nil {
		return errors.New("collection: missing id")
	}
	if c.Name == "" {
		return errors.New("collection: missing name")
	}
	return nil
}

func (r *GetResult) Validate() error {
	if r.IDs == nil {
		return errors.New("get result: missing ids")
	}
	n := len(r.IDs)
	for _, f := range []field{
		{"embeddings", lenIfSet(r.Embeddings)},
		{"documents", lenIfSet(r.Documents)},
		{"metadatas", lenIfSet(r.Metadatas)},
		{"uris", lenIfSet(r.URIs)},
	} {
		if f.len >= 0 && f.len != n {
			return fmt.Errorf("get result: %d %s for %d ids", f.len, f.name, n)
		}
	}
	return nil
}

func (r *QueryResult) Validate() error {
	if r.IDs == nil {
		return errors.New("query result: missing ids")
	}
	n := len(r.IDs)
	for _, f := range []field{
		{"distances", lenIfSet(r.Distances)},
		{"documents", lenIfSet(r.Documents)},
		{"metadatas", lenIfSet(r.Metadatas)},
		{"embeddings", lenIfSet(r.Embeddings)},
		{"uris", lenIfSet(r.URIs)},
	} {
		if f.len >= 0 && f.len != n {
			return fmt.Errorf("query result: %d rows of %s for %d queries", f.len, f.name, n)
		}
	}
	return nil
}

// field pairs a result field with its length, checked in declaration order.
type field struct {
	name string
	len  int
}

// lenIfSet returns -1 for a field the server left out.
func lenIfSet[T any](s []T) int {
	if s == nil {
		return -1
	}
	return len(s)
}
