package khromatest

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/papercomputeco/khroma/pkg/config"
	"github.com/papercomputeco/khroma/pkg/khroma/models"
)

func decodeBody(c *fiber.Ctx, v any) error {
	if err := json.Unmarshal(c.Body(), v); err != nil {
		return apiErr(http.StatusBadRequest, "InvalidArgumentError", fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

func empty(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{})
}

func paginate[T any](c *fiber.Ctx, items []T) []T {
	offset := min(max(c.QueryInt("offset", 0), 0), len(items))
	items = items[offset:]
	if limit := c.QueryInt("limit", 0); limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func includes(list []models.Include, want models.Include) bool {
	return slices.Contains(list, want)
}

func (s *Server) handleHeartbeat(c *fiber.Ctx) error {
	return c.JSON(models.Heartbeat{NanosecondHeartbeat: time.Now().UnixNano()})
}

func (s *Server) handleVersion(c *fiber.Ctx) error {
	return c.JSON(Version)
}

func (s *Server) handleHealthcheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"is_executor_ready": true, "is_log_client_ready": true})
}

func (s *Server) handlePreFlightChecks(c *fiber.Ctx) error {
	return c.JSON(models.PreFlightChecks{MaxBatchSize: s.maxBatchSize})
}

func (s *Server) handleIdentity(c *fiber.Ctx) error {
	return c.JSON(models.Identity{
		UserID:    "",
		Tenant:    config.DefaultTenant,
		Databases: []string{config.DefaultDatabase},
	})
}

func (s *Server) handleReset(c *fiber.Ctx) error {
	if !s.allowReset {
		return apiErr(http.StatusForbidden, "AuthorizationError", "reset is disabled")
	}
	s.mu.Lock()
	s.seed()
	s.mu.Unlock()
	return c.JSON(true)
}

func (s *Server) handleCreateTenant(c *fiber.Ctx) error {
	var req models.CreateTenant
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	if req.Name == "" {
		return apiErr(http.StatusBadRequest, "InvalidArgumentError", "tenant name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[req.Name]; ok {
		return apiErr(http.StatusConflict, "UniqueConstraintError", fmt.Sprintf("tenant %s already exists", req.Name))
	}
	s.addTenant(req.Name)
	return empty(c)
}

func (s *Server) handleGetTenant(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.tenant(c.Params("tenant"))
	if err != nil {
		return err
	}
	return c.JSON(models.Tenant{Name: t.name})
}

func (s *Server) handleCreateDatabase(c *fiber.Ctx) error {
	var req models.CreateDatabase
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	if req.Name == "" {
		return apiErr(http.StatusBadRequest, "InvalidArgumentError", "database name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.tenant(c.Params("tenant"))
	if err != nil {
		return err
	}
	if _, ok := t.databases[req.Name]; ok {
		return apiErr(http.StatusConflict, "UniqueConstraintError", fmt.Sprintf("database %s already exists", req.Name))
	}
	t.addDatabase(req.Name)
	return empty(c)
}

func (s *Server) handleListDatabases(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.tenant(c.Params("tenant"))
	if err != nil {
		return err
	}
	out := []models.Database{}
	for _, name := range paginate(c, t.order) {
		out = append(out, t.databases[name].model())
	}
	return c.JSON(out)
}

func (s *Server) handleGetDatabase(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	db, err := s.database(c.Params("tenant"), c.Params("database"))
	if err != nil {
		return err
	}
	return c.JSON(db.model())
}

func (s *Server) handleDeleteDatabase(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.database(c.Params("tenant"), c.Params("database"))
	if err != nil {
		return err
	}
	s.tenants[db.tenant].removeDatabase(db.name)
	return empty(c)
}

func (s *Server) paramDatabase(c *fiber.Ctx) (*database, error) {
	return s.database(c.Params("tenant"), c.Params("database"))
}

func (s *Server) paramCollection(c *fiber.Ctx) (*collection, *database, error) {
	db, err := s.paramDatabase(c)
	if err != nil {
		return nil, nil, err
	}
	col, err := db.lookup(c.Params("collection"))
	if err != nil {
		return nil, nil, err
	}
	return col, db, nil
}

func (s *Server) handleCountCollections(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	db, err := s.paramDatabase(c)
	if err != nil {
		return err
	}
	return c.JSON(len(db.collections))
}

func (s *Server) handleCreateCollection(c *fiber.Ctx) error {
	var req models.CreateCollection
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	if req.Name == "" {
		return apiErr(http.StatusBadRequest, "InvalidArgumentError", "collection name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.paramDatabase(c)
	if err != nil {
		return err
	}

	if existing := db.byName(req.Name); existing != nil {
		if req.GetOrCreate {
			return c.JSON(existing.model)
		}
		return apiErr(http.StatusConflict, "UniqueConstraintError", fmt.Sprintf("collection %s already exists", req.Name))
	}

	cfg := models.CollectionConfiguration{
		HNSW: &models.HNSWConfiguration{Space: models.Ptr(models.SpaceL2)},
	}
	if req.Configuration != nil {
		cfg = *req.Configuration
	}

	col := db.addCollection(models.Collection{
		ID:                uuid.New(),
		Name:              req.Name,
		Metadata:          maps.Clone(req.Metadata),
		ConfigurationJSON: cfg,
		Tenant:            db.tenant,
		Database:          db.name,
	})
	s.logger.Debug("khromatest collection created", "collection", req.Name, "id", col.model.ID)
	return c.JSON(col.model)
}

func (s *Server) handleListCollections(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	db, err := s.paramDatabase(c)
	if err != nil {
		return err
	}
	out := []models.Collection{}
	for _, col := range paginate(c, db.list()) {
		out = append(out, col.model)
	}
	return c.JSON(out)
}

func (s *Server) handleGetCollection(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, _, err := s.paramCollection(c)
	if err != nil {
		return err
	}
	return c.JSON(col.model)
}

func (s *Server) handleModifyCollection(c *fiber.Ctx) error {
	var req models.ModifyCollection
	if err := decodeBody(c, &req); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	col, db, err := s.paramCollection(c)
	if err != nil {
		return err
	}

	if req.NewName != nil && *req.NewName != col.model.Name {
		if db.byName(*req.NewName) != nil {
			return apiErr(http.StatusConflict, "UniqueConstraintError", fmt.Sprintf("collection %s already exists", *req.NewName))
		}
		col.model.Name = *req.NewName
	}
	if req.NewMetadata != nil {
		col.model.Metadata = maps.Clone(req.NewMetadata)
	}
	if nc := req.NewConfiguration; nc != nil {
		if nc.EmbeddingFunction != nil {
			col.model.ConfigurationJSON.EmbeddingFunction = nc.EmbeddingFunction
		}
		if nc.HNSW != nil {
			h := col.model.ConfigurationJSON.HNSW
			if h == nil {
				h = &models.HNSWConfiguration{}
				col.model.ConfigurationJSON.HNSW = h
			}
			if nc.HNSW.EfSearch != nil {
				h.EfSearch = nc.HNSW.EfSearch
			}
			if nc.HNSW.MaxNeighbors != nil {
				h.MaxNeighbors = nc.HNSW.MaxNeighbors
			}
			if nc.HNSW.ResizeFactor != nil {
				h.ResizeFactor = nc.HNSW.ResizeFactor
			}
			if nc.HNSW.SyncThreshold != nil {
				h.SyncThreshold = nc.HNSW.SyncThreshold
			}
		}
		if nc.SPANN != nil {
			col.model.ConfigurationJSON.SPANN = nc.SPANN
		}
	}
	col.model.Version++
	return empty(c)
}

func (s *Server) handleDeleteCollection(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, db, err := s.paramCollection(c)
	if err != nil {
		return err
	}
	db.removeCollection(col.model.ID)
	return empty(c)
}

func (s *Server) handleFork(c *fiber.Ctx) error {
	var req models.ForkCollection
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	if req.NewName == "" {
		return apiErr(http.StatusBadRequest, "InvalidArgumentError", "new_name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	col, db, err := s.paramCollection(c)
	if err != nil {
		return err
	}
	if db.byName(req.NewName) != nil {
		return apiErr(http.StatusConflict, "UniqueConstraintError", fmt.Sprintf("collection %s already exists", req.NewName))
	}
	fork := col.clone(req.NewName)
	db.attach(fork)
	return c.JSON(fork.model)
}

type writeMode int

const (
	modeAdd writeMode = iota
	modeUpsert
	modeUpdate
)

func (s *Server) handleAdd(c *fiber.Ctx) error    { return s.write(c, modeAdd) }
func (s *Server) handleUpsert(c *fiber.Ctx) error { return s.write(c, modeUpsert) }
func (s *Server) handleUpdate(c *fiber.Ctx) error { return s.write(c, modeUpdate) }

func (s *Server) write(c *fiber.Ctx, mode writeMode) error {
	var req models.Records
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return apiErr(http.StatusBadRequest, "InvalidArgumentError", err.Error())
	}
	if len(req.IDs) > s.maxBatchSize {
		return apiErr(http.StatusBadRequest, "InvalidArgumentError", fmt.Sprintf(
			"batch of %d exceeds max batch size %d", len(req.IDs), s.maxBatchSize))
	}

	vectors := dense(req.Embeddings)
	if mode != modeUpdate && vectors == nil {
		return apiErr(http.StatusBadRequest, "InvalidArgumentError", "embeddings are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	col, _, err := s.paramCollection(c)
	if err != nil {
		return err
	}
	if err := col.checkDimensions(vectors); err != nil {
		return err
	}

	for i, id := range req.IDs {
		existing := col.records[id]
		switch {
		case mode == modeAdd && existing != nil:
			continue
		case mode == modeUpdate && existing == nil:
			continue
		case existing == nil:
			r := &record{id: id}
			apply(r, req, vectors, i, false)
			col.put(r)
		default:
			r := *existing
			apply(&r, req, vectors, i, mode == modeUpdate)
			col.put(&r)
		}
	}
	return empty(c)
}

// apply copies record i of req onto r. Absent fields are left as they are.
// Metadata is merged key by key when merge is set, with null deleting a key.
func apply(r *record, req models.Records, vectors [][]float32, i int, merge bool) {
	if i < len(vectors) && vectors[i] != nil {
		r.embedding = vectors[i]
	}
	if i < len(req.Documents) && req.Documents[i] != nil {
		r.document = req.Documents[i]
	}
	if i < len(req.URIs) && req.URIs[i] != nil {
		r.uri = req.URIs[i]
	}
	if i < len(req.Metadatas) && req.Metadatas[i] != nil {
		next := models.Metadata{}
		if merge {
			next = maps.Clone(r.metadata)
			if next == nil {
				next = models.Metadata{}
			}
		}
		for k, v := range req.Metadatas[i] {
			if v == nil {
				delete(next, k)
				continue
			}
			next[k] = v
		}
		r.metadata = next
	}
}

// selectRecords returns the records matching every given selector, in
// insertion order.
func (col *collection) selectRecords(ids []string, where models.Where, doc models.WhereDocument) ([]*record, error) {
	var wanted map[string]bool
	if ids != nil {
		wanted = make(map[string]bool, len(ids))
		for _, id := range ids {
			wanted[id] = true
		}
	}

	out := []*record{}
	for _, id := range col.order {
		if wanted != nil && !wanted[id] {
			continue
		}
		r := col.records[id]
		if len(where) > 0 {
			ok, err := matchWhere(where, r.metadata)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		if len(doc) > 0 {
			ok, err := matchDocument(doc, r.document)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Server) handleDelete(c *fiber.Ctx) error {
	var req models.DeleteRecords
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	if req.IDs == nil && len(req.Where) == 0 && len(req.WhereDocument) == 0 {
		return apiErr(http.StatusBadRequest, "InvalidArgumentError", "delete requires ids or a filter")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	col, _, err := s.paramCollection(c)
	if err != nil {
		return err
	}
	matched, err := col.selectRecords(req.IDs, req.Where, req.WhereDocument)
	if err != nil {
		return err
	}
	for _, r := range matched {
		col.remove(r.id)
	}
	return empty(c)
}

var (
	defaultGetInclude   = []models.Include{models.IncludeDocuments, models.IncludeMetadatas}
	defaultQueryInclude = []models.Include{models.IncludeDocuments, models.IncludeMetadatas, models.IncludeDistances}
)

func (s *Server) handleGet(c *fiber.Ctx) error {
	var req models.GetRecords
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	include := req.Include
	if include == nil {
		include = defaultGetInclude
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	col, _, err := s.paramCollection(c)
	if err != nil {
		return err
	}
	matched, err := col.selectRecords(req.IDs, req.Where, req.WhereDocument)
	if err != nil {
		return err
	}

	offset := min(max(req.Offset, 0), len(matched))
	matched = matched[offset:]
	if req.Limit > 0 && req.Limit < len(matched) {
		matched = matched[:req.Limit]
	}

	res := models.GetResult{IDs: []string{}, Include: include}
	if includes(include, models.IncludeEmbeddings) {
		res.Embeddings = [][]float32{}
	}
	if includes(include, models.IncludeDocuments) {
		res.Documents = []*string{}
	}
	if includes(include, models.IncludeMetadatas) {
		res.Metadatas = []models.Metadata{}
	}
	if includes(include, models.IncludeURIs) {
		res.URIs = []*string{}
	}
	for _, r := range matched {
		res.IDs = append(res.IDs, r.id)
		if res.Embeddings != nil {
			res.Embeddings = append(res.Embeddings, r.embedding)
		}
		if res.Documents != nil {
			res.Documents = append(res.Documents, r.document)
		}
		if res.Metadatas != nil {
			res.Metadatas = append(res.Metadatas, r.metadata)
		}
		if res.URIs != nil {
			res.URIs = append(res.URIs, r.uri)
		}
	}
	return c.JSON(res)
}

func (s *Server) handleQuery(c *fiber.Ctx) error {
	var req models.QueryRecords
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	queries := dense(req.QueryEmbeddings)
	if len(queries) == 0 {
		return apiErr(http.StatusBadRequest, "InvalidArgumentError", "query_embeddings are required")
	}
	n := req.NResults
	if n <= 0 {
		n = 10
	}
	include := req.Include
	if include == nil {
		include = defaultQueryInclude
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	col, _, err := s.paramCollection(c)
	if err != nil {
		return err
	}
	for _, q := range queries {
		if q == nil {
			return apiErr(http.StatusBadRequest, "InvalidArgumentError", "query embedding cannot be null")
		}
		if col.model.Dimension != nil && len(q) != *col.model.Dimension {
			return apiErr(http.StatusBadRequest, "InvalidArgumentError", fmt.Sprintf(
				"collection expecting embedding with dimension of %d, got %d", *col.model.Dimension, len(q)))
		}
	}

	candidates, err := col.selectRecords(req.IDs, req.Where, req.WhereDocument)
	if err != nil {
		return err
	}
	candidates = paginate(c, candidates)

	res := models.QueryResult{IDs: [][]string{}, Include: include}
	for _, q := range queries {
		type ranked struct {
			r *record
			d float32
		}
		rows := make([]ranked, 0, len(candidates))
		for _, r := range candidates {
			if r.embedding == nil {
				continue
			}
			rows = append(rows, ranked{r: r, d: squaredL2(q, r.embedding)})
		}
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].d < rows[j].d })
		if len(rows) > n {
			rows = rows[:n]
		}

		ids := make([]string, len(rows))
		distances := make([]*float32, len(rows))
		documents := make([]*string, len(rows))
		metadatas := make([]models.Metadata, len(rows))
		embeddings := make([][]float32, len(rows))
		uris := make([]*string, len(rows))
		for i, row := range rows {
			ids[i] = row.r.id
			distances[i] = &row.d
			documents[i] = row.r.document
			metadatas[i] = row.r.metadata
			embeddings[i] = row.r.embedding
			uris[i] = row.r.uri
		}

		res.IDs = append(res.IDs, ids)
		if includes(include, models.IncludeDistances) {
			res.Distances = append(res.Distances, distances)
		}
		if includes(include, models.IncludeDocuments) {
			res.Documents = append(res.Documents, documents)
		}
		if includes(include, models.IncludeMetadatas) {
			res.Metadatas = append(res.Metadatas, metadatas)
		}
		if includes(include, models.IncludeEmbeddings) {
			res.Embeddings = append(res.Embeddings, embeddings)
		}
		if includes(include, models.IncludeURIs) {
			res.URIs = append(res.URIs, uris)
		}
	}
	return c.JSON(res)
}

func (s *Server) handleCount(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, _, err := s.paramCollection(c)
	if err != nil {
		return err
	}
	return c.JSON(len(col.records))
}
