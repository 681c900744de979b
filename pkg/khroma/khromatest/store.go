package khromatest

import (
	"fmt"
	"maps"
	"net/http"
	"slices"

	"github.com/google/uuid"

	"github.com/papercomputeco/khroma/pkg/khroma/models"
)

// All state is guarded by Server.mu.

type tenant struct {
	name      string
	databases map[string]*database
	order     []string
}

type database struct {
	id          uuid.UUID
	name        string
	tenant      string
	collections map[uuid.UUID]*collection
	order       []uuid.UUID
}

type collection struct {
	model   models.Collection
	records map[string]*record
	order   []string
}

type record struct {
	id        string
	embedding []float32
	document  *string
	metadata  models.Metadata
	uri       *string
}

func (s *Server) addTenant(name string) *tenant {
	t := &tenant{name: name, databases: map[string]*database{}}
	s.tenants[name] = t
	s.order = append(s.order, name)
	return t
}

func (s *Server) tenant(name string) (*tenant, error) {
	t, ok := s.tenants[name]
	if !ok {
		return nil, apiErr(http.StatusNotFound, "NotFoundError", fmt.Sprintf("tenant %s not found", name))
	}
	return t, nil
}

func (s *Server) database(tenantName, name string) (*database, error) {
	t, err := s.tenant(tenantName)
	if err != nil {
		return nil, err
	}
	db, ok := t.databases[name]
	if !ok {
		return nil, apiErr(http.StatusNotFound, "NotFoundError", fmt.Sprintf("database %s not found", name))
	}
	return db, nil
}

func (t *tenant) addDatabase(name string) *database {
	db := &database{
		id:          uuid.New(),
		name:        name,
		tenant:      t.name,
		collections: map[uuid.UUID]*collection{},
	}
	t.databases[name] = db
	t.order = append(t.order, name)
	return db
}

func (t *tenant) removeDatabase(name string) {
	delete(t.databases, name)
	t.order = slices.DeleteFunc(t.order, func(n string) bool { return n == name })
}

func (db *database) model() models.Database {
	return models.Database{ID: db.id, Name: db.name, Tenant: db.tenant}
}

// lookup resolves a collection by id, then by name.
func (db *database) lookup(ref string) (*collection, error) {
	if id, err := uuid.Parse(ref); err == nil {
		if c, ok := db.collections[id]; ok {
			return c, nil
		}
	}
	if c := db.byName(ref); c != nil {
		return c, nil
	}
	return nil, apiErr(http.StatusNotFound, "NotFoundError", fmt.Sprintf("collection %s does not exist", ref))
}

func (db *database) byName(name string) *collection {
	for _, c := range db.collections {
		if c.model.Name == name {
			return c
		}
	}
	return nil
}

func (db *database) addCollection(m models.Collection) *collection {
	c := &collection{model: m, records: map[string]*record{}}
	db.attach(c)
	return c
}

func (db *database) attach(c *collection) {
	db.collections[c.model.ID] = c
	db.order = append(db.order, c.model.ID)
}

func (db *database) removeCollection(id uuid.UUID) {
	delete(db.collections, id)
	db.order = slices.DeleteFunc(db.order, func(x uuid.UUID) bool { return x == id })
}

func (db *database) list() []*collection {
	out := make([]*collection, len(db.order))
	for i, id := range db.order {
		out[i] = db.collections[id]
	}
	return out
}

func (c *collection) put(r *record) {
	if _, ok := c.records[r.id]; !ok {
		c.order = append(c.order, r.id)
	}
	c.records[r.id] = r
}

func (c *collection) remove(id string) {
	delete(c.records, id)
	c.order = slices.DeleteFunc(c.order, func(x string) bool { return x == id })
}

func (c *collection) clone(name string) *collection {
	m := c.model
	m.ID = uuid.New()
	m.Name = name
	m.Metadata = maps.Clone(c.model.Metadata)

	out := &collection{model: m, records: make(map[string]*record, len(c.records))}
	for _, id := range c.order {
		r := *c.records[id]
		r.metadata = maps.Clone(r.metadata)
		out.records[id] = &r
		out.order = append(out.order, id)
	}
	return out
}

// checkDimensions fixes the collection dimension on the first embedding and
// rejects any vector of another length. Nothing changes when it fails.
func (c *collection) checkDimensions(vectors [][]float32) error {
	dim := -1
	if c.model.Dimension != nil {
		dim = *c.model.Dimension
	}
	for _, v := range vectors {
		if v == nil {
			continue
		}
		if dim < 0 {
			dim = len(v)
		}
		if len(v) != dim {
			return apiErr(http.StatusBadRequest, "InvalidArgumentError", fmt.Sprintf(
				"collection expecting embedding with dimension of %d, got %d", dim, len(v)))
		}
	}
	if dim >= 0 && c.model.Dimension == nil {
		c.model.Dimension = &dim
	}
	return nil
}

// dense converts any embedding representation to float vectors. Sparse
// vectors are expanded up to their largest index.
func dense(e *models.Embeddings) [][]float32 {
	if e == nil {
		return nil
	}
	switch e.Kind() {
	case models.EmbeddingInt:
		out := make([][]float32, e.Len())
		for i, v := range e.Ints() {
			if v == nil {
				continue
			}
			out[i] = make([]float32, len(v))
			for j, x := range v {
				out[i][j] = float32(x)
			}
		}
		return out
	case models.EmbeddingSparse:
		out := make([][]float32, e.Len())
		for i, v := range e.Sparse() {
			if v == nil {
				continue
			}
			size := 0
			for _, idx := range v.Indices {
				size = max(size, idx+1)
			}
			out[i] = make([]float32, size)
			for j, idx := range v.Indices {
				if j < len(v.Values) && idx >= 0 {
					out[i][idx] = v.Values[j]
				}
			}
		}
		return out
	default:
		return e.Floats()
	}
}

// squaredL2 pads the shorter vector with zeros.
func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range max(len(a), len(b)) {
		var x, y float32
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		d := x - y
		sum += d * d
	}
	return sum
}
