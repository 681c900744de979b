package khroma_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/sync/errgroup"

	"github.com/papercomputeco/khroma/pkg/config"
	"github.com/papercomputeco/khroma/pkg/khroma"
	"github.com/papercomputeco/khroma/pkg/khroma/khromatest"
	"github.com/papercomputeco/khroma/pkg/khroma/models"
	"github.com/papercomputeco/khroma/pkg/khroma/where"
)

var _ = Describe("Khroma against the simulated server", func() {
	var (
		ctx    context.Context
		srv    *khromatest.Server
		client *khroma.Khroma
		db     *khroma.Database
	)

	BeforeEach(func() {
		ctx = context.Background()
		srv = khromatest.NewServer()
		DeferCleanup(srv.Close)

		var err error
		client, err = khroma.New(srv.URL)
		Expect(err).NotTo(HaveOccurred())
		db = client.Tenant(config.DefaultTenant).Database(config.DefaultDatabase)
	})

	Describe("server", func() {
		It("reports version, heartbeat and limits", func() {
			v, err := client.Version(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(khromatest.Version))

			hb, err := client.Heartbeat(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(hb.Time().IsZero()).To(BeFalse())

			checks, err := client.PreFlightChecks(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(checks.MaxBatchSize).To(BeNumerically(">", 0))

			health, err := client.Healthcheck(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(health).To(ContainSubstring("is_executor_ready"))

			id, err := client.Identity(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(id.Tenant).To(Equal(config.DefaultTenant))
		})

		It("resets all data", func() {
			_, err := db.CreateCollection(ctx, models.CreateCollection{Name: "docs"})
			Expect(err).NotTo(HaveOccurred())

			Expect(client.Reset(ctx)).To(Succeed())
			n, err := db.CountCollections(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeZero())
		})

		It("surfaces a disabled reset as forbidden", func() {
			locked := khromatest.NewServer(khromatest.WithReset(false))
			DeferCleanup(locked.Close)
			c, err := khroma.New(locked.URL)
			Expect(err).NotTo(HaveOccurred())

			Expect(c.Reset(ctx)).To(MatchError(khroma.ErrForbidden))
		})

		It("authenticates with a token", func() {
			secured := khromatest.NewServer(khromatest.WithToken("secret"))
			DeferCleanup(secured.Close)

			anon, err := khroma.New(secured.URL)
			Expect(err).NotTo(HaveOccurred())
			_, err = anon.Heartbeat(ctx)
			Expect(err).To(MatchError(khroma.ErrUnauthorized))

			authed, err := khroma.New(secured.URL, khroma.WithToken("secret"))
			Expect(err).NotTo(HaveOccurred())
			_, err = authed.Heartbeat(ctx)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("tenants and databases", func() {
		It("creates and fetches tenants", func() {
			t, err := client.CreateTenant(ctx, "acme")
			Expect(err).NotTo(HaveOccurred())
			Expect(t.Name()).To(Equal("acme"))

			got, err := client.GetTenant(ctx, "acme")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Name()).To(Equal("acme"))

			_, err = client.CreateTenant(ctx, "acme")
			Expect(err).To(MatchError(khroma.ErrConflict))
		})

		It("fails to get a missing tenant with not found", func() {
			_, err := client.GetTenant(ctx, "ghost")
			Expect(err).To(MatchError(khroma.ErrNotFound))
			e, _ := khroma.AsError(err)
			Expect(e.Message).To(Equal("tenant ghost not found"))
		})

		It("manages databases within a tenant", func() {
			t, err := client.CreateTenant(ctx, "acme")
			Expect(err).NotTo(HaveOccurred())

			for _, name := range []string{"one", "two", "three"} {
				_, err := t.CreateDatabase(ctx, name)
				Expect(err).NotTo(HaveOccurred())
			}

			got, err := t.GetDatabase(ctx, "two")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Name()).To(Equal("two"))
			Expect(got.ID()).NotTo(Equal(uuid.Nil))
			Expect(got.Tenant().Name()).To(Equal("acme"))

			all, err := t.ListDatabases(ctx, models.Page{})
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(3))

			page, err := t.ListDatabases(ctx, models.Page{Limit: 1, Offset: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(page).To(HaveLen(1))
			Expect(page[0].Name).To(Equal("two"))

			Expect(t.DeleteDatabase(ctx, "two")).To(Succeed())
			_, err = t.GetDatabase(ctx, "two")
			Expect(err).To(MatchError(khroma.ErrNotFound))
		})

		It("keeps databases scoped to their tenant", func() {
			a, err := client.CreateTenant(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			_, err = client.CreateTenant(ctx, "b")
			Expect(err).NotTo(HaveOccurred())
			_, err = a.CreateDatabase(ctx, "shared")
			Expect(err).NotTo(HaveOccurred())

			_, err = client.Tenant("b").GetDatabase(ctx, "shared")
			Expect(err).To(MatchError(khroma.ErrNotFound))
		})
	})

	Describe("collections", func() {
		It("creates, fetches, lists and deletes", func() {
			created, err := db.CreateCollection(ctx, models.CreateCollection{
				Name:     "docs",
				Metadata: models.Metadata{"owner": "search"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(created.ID()).NotTo(Equal(uuid.Nil))
			Expect(created.Metadata()).To(HaveKeyWithValue("owner", "search"))
			Expect(created.Dimension()).To(BeNil())

			got, err := db.GetCollection(ctx, "docs")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID()).To(Equal(created.ID()))

			_, err = db.CreateCollection(ctx, models.CreateCollection{Name: "notes"})
			Expect(err).NotTo(HaveOccurred())

			list, err := db.ListCollections(ctx, models.Page{})
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(2))
			Expect(list[0].Name()).To(Equal("docs"))

			n, err := db.CountCollections(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))

			Expect(db.DeleteCollection(ctx, "docs")).To(Succeed())
			_, err = db.GetCollection(ctx, "docs")
			Expect(err).To(MatchError(khroma.ErrNotFound))
		})

		It("fails a duplicate create with a conflict", func() {
			_, err := db.CreateCollection(ctx, models.CreateCollection{Name: "docs"})
			Expect(err).NotTo(HaveOccurred())
			_, err = db.CreateCollection(ctx, models.CreateCollection{Name: "docs"})
			Expect(err).To(MatchError(khroma.ErrConflict))
		})

		It("keeps the configuration", func() {
			col, err := db.CreateCollection(ctx, models.CreateCollection{
				Name: "cosine",
				Configuration: &models.CollectionConfiguration{
					HNSW: &models.HNSWConfiguration{Space: models.Ptr(models.SpaceCosine), EfSearch: models.Ptr(50)},
				},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(*col.Configuration().HNSW.Space).To(Equal(models.SpaceCosine))
		})

		It("modifies without mutating the original handle", func() {
			col, err := db.CreateCollection(ctx, models.CreateCollection{Name: "docs"})
			Expect(err).NotTo(HaveOccurred())

			renamed, err := col.Modify(ctx, models.ModifyCollection{
				NewName:     models.Ptr("articles"),
				NewMetadata: models.Metadata{"v": 2},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(renamed.Name()).To(Equal("articles"))
			Expect(renamed.ID()).To(Equal(col.ID()))
			Expect(col.Name()).To(Equal("docs"))

			got, err := db.GetCollection(ctx, "articles")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Metadata()).To(HaveKeyWithValue("v", 2.0))
		})

		It("keeps the metadata when modified with an empty map", func() {
			col, err := db.CreateCollection(ctx, models.CreateCollection{
				Name:     "docs",
				Metadata: models.Metadata{"v": 1},
			})
			Expect(err).NotTo(HaveOccurred())

			same, err := col.Modify(ctx, models.ModifyCollection{NewMetadata: models.Metadata{}})
			Expect(err).NotTo(HaveOccurred())
			Expect(same.Metadata()).To(HaveKeyWithValue("v", 1.0))

			got, err := db.GetCollection(ctx, "docs")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Metadata()).To(HaveKeyWithValue("v", 1.0))
		})

		It("forks a collection with its records", func() {
			col, err := db.CreateCollection(ctx, models.CreateCollection{Name: "docs"})
			Expect(err).NotTo(HaveOccurred())
			Expect(col.Add(ctx, models.Records{
				IDs:        []string{"a", "b"},
				Embeddings: models.FloatEmbeddings([]float32{1, 2}, []float32{3, 4}),
			})).To(Succeed())

			fork, err := col.Fork(ctx, "docs-copy")
			Expect(err).NotTo(HaveOccurred())
			Expect(fork.ID()).NotTo(Equal(col.ID()))
			Expect(fork.Name()).To(Equal("docs-copy"))

			Expect(col.Delete(ctx, models.DeleteRecords{IDs: []string{"a"}})).To(Succeed())
			n, err := fork.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))
		})
	})

	Describe("GetOrCreateCollection", func() {
		It("returns the same collection on repeated calls", func() {
			first, err := db.GetOrCreateCollection(ctx, models.CreateCollection{Name: "docs"})
			Expect(err).NotTo(HaveOccurred())
			second, err := db.GetOrCreateCollection(ctx, models.CreateCollection{Name: "docs"})
			Expect(err).NotTo(HaveOccurred())

			Expect(second.ID()).To(Equal(first.ID()))
			n, err := db.CountCollections(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))
		})

		It("creates exactly one collection under concurrent callers", func() {
			ids := make([]uuid.UUID, 8)
			g, gctx := errgroup.WithContext(ctx)
			for i := range ids {
				g.Go(func() error {
					col, err := db.GetOrCreateCollection(gctx, models.CreateCollection{Name: "race"})
					if err != nil {
						return err
					}
					ids[i] = col.ID()
					return nil
				})
			}
			Expect(g.Wait()).To(Succeed())

			for _, id := range ids {
				Expect(id).To(Equal(ids[0]))
			}
			n, err := db.CountCollections(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))
		})

		It("propagates errors other than a conflict", func() {
			_, err := client.Tenant("ghost").Database("nowhere").GetOrCreateCollection(ctx, models.CreateCollection{Name: "docs"})
			Expect(err).To(MatchError(khroma.ErrNotFound))
		})
	})

	Describe("records", func() {
		var col *khroma.Collection

		BeforeEach(func() {
			var err error
			col, err = db.GetOrCreateCollection(ctx, models.CreateCollection{Name: "docs"})
			Expect(err).NotTo(HaveOccurred())
		})

		It("upserts, counts and queries by nearest neighbour", func() {
			Expect(col.Upsert(ctx, models.Records{
				IDs:        []string{"id1", "id2"},
				Embeddings: models.FloatEmbeddings([]float32{1, 2, 3}, []float32{4, 5, 6}),
				Documents:  models.Strings("about Rust", "about ChromaDB"),
			})).To(Succeed())

			n, err := col.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))

			res, err := col.Query(ctx, models.QueryRecords{
				QueryEmbeddings: models.FloatEmbeddings([]float32{1.1, 2.1, 3.1}),
				NResults:        1,
			}, models.Page{})
			Expect(err).NotTo(HaveOccurred())

			matches := res.Matches(0)
			Expect(matches).To(HaveLen(1))
			Expect(matches[0].ID).To(Equal("id1"))
			Expect(*matches[0].Document).To(Equal("about Rust"))
			Expect(*matches[0].Distance).To(BeNumerically("~", 0.03, 1e-4))
		})

		It("filters get by metadata", func() {
			Expect(col.Upsert(ctx, models.Records{
				IDs:        []string{"id3", "id4"},
				Embeddings: models.FloatEmbeddings([]float32{1, 0}, []float32{0, 1}),
				Metadatas: []models.Metadata{
					{"topic": "rust", "year": 2023},
					{"topic": "ai", "year": 2023},
				},
			})).To(Succeed())

			res, err := col.Get(ctx, models.GetRecords{Where: models.Where{"topic": "rust"}})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IDs).To(Equal([]string{"id3"}))

			res, err = col.Get(ctx, models.GetRecords{
				Where:   where.And(where.Eq("year", 2023), where.Ne("topic", "rust")),
				Include: []models.Include{models.IncludeMetadatas, models.IncludeEmbeddings},
			})
			Expect(err).NotTo(HaveOccurred())
			rows := res.Records()
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].ID).To(Equal("id4"))
			Expect(rows[0].Embedding).To(Equal([]float32{0, 1}))
			Expect(rows[0].Document).To(BeNil())
		})

		It("deletes by id and by filter", func() {
			Expect(col.Add(ctx, models.Records{
				IDs:        []string{"a", "b", "c", "d"},
				Embeddings: models.FloatEmbeddings([]float32{1}, []float32{2}, []float32{3}, []float32{4}),
				Metadatas: []models.Metadata{
					{"year": 2023}, {"year": 2023}, {"year": 2024}, nil,
				},
			})).To(Succeed())

			Expect(col.Delete(ctx, models.DeleteRecords{IDs: []string{"a"}})).To(Succeed())
			res, err := col.Get(ctx, models.GetRecords{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IDs).To(Equal([]string{"b", "c", "d"}))

			Expect(col.Delete(ctx, models.DeleteRecords{Where: models.Where{"year": 2023}})).To(Succeed())
			res, err = col.Get(ctx, models.GetRecords{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IDs).To(Equal([]string{"c", "d"}))
		})

		It("filters by document text", func() {
			Expect(col.Add(ctx, models.Records{
				IDs:        []string{"r", "g"},
				Embeddings: models.FloatEmbeddings([]float32{1}, []float32{2}),
				Documents:  models.Strings("about Rust", "about Go"),
			})).To(Succeed())

			res, err := col.Get(ctx, models.GetRecords{WhereDocument: where.Contains("Go")})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IDs).To(Equal([]string{"g"}))
		})

		It("updates only the fields given", func() {
			Expect(col.Add(ctx, models.Records{
				IDs:        []string{"a"},
				Embeddings: models.FloatEmbeddings([]float32{1, 2}),
				Documents:  models.Strings("first"),
				Metadatas:  []models.Metadata{{"topic": "rust", "draft": true}},
			})).To(Succeed())

			Expect(col.Update(ctx, models.Records{
				IDs:       []string{"a"},
				Metadatas: []models.Metadata{{"draft": nil, "year": 2024}},
			})).To(Succeed())

			res, err := col.Get(ctx, models.GetRecords{IDs: []string{"a"}})
			Expect(err).NotTo(HaveOccurred())
			row := res.Records()[0]
			Expect(*row.Document).To(Equal("first"))
			Expect(row.Metadata).To(Equal(models.Metadata{"topic": "rust", "year": 2024.0}))
		})

		It("pages get results", func() {
			Expect(col.Add(ctx, models.Records{
				IDs:        []string{"a", "b", "c"},
				Embeddings: models.IntEmbeddings([]int64{1}, []int64{2}, []int64{3}),
			})).To(Succeed())

			res, err := col.Get(ctx, models.GetRecords{Limit: 1, Offset: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IDs).To(Equal([]string{"b"}))
		})

		It("surfaces server rejections of bad dimensions", func() {
			Expect(col.Add(ctx, models.Records{
				IDs:        []string{"a"},
				Embeddings: models.FloatEmbeddings([]float32{1, 2, 3}),
			})).To(Succeed())

			err := col.Add(ctx, models.Records{
				IDs:        []string{"b"},
				Embeddings: models.FloatEmbeddings([]float32{1, 2}),
			})
			Expect(err).To(MatchError(khroma.ErrAPI))
			e, _ := khroma.AsError(err)
			Expect(e.Status).To(Equal(http.StatusBadRequest))
			Expect(e.Code).To(Equal("InvalidArgumentError"))
		})

		It("rejects malformed batches before sending", func() {
			err := col.Upsert(ctx, models.Records{IDs: []string{"a", "a"}})
			Expect(err).To(MatchError(khroma.ErrEncode))
		})

		It("rejects filters that cannot be encoded", func() {
			err := col.Delete(ctx, models.DeleteRecords{Where: models.Where{"bad": make(chan int)}})
			Expect(err).To(MatchError(khroma.ErrEncode))
		})

		It("requires query embeddings", func() {
			_, err := col.Query(ctx, models.QueryRecords{NResults: 1}, models.Page{})
			Expect(err).To(MatchError(khroma.ErrEncode))
		})
	})
})

var _ = Describe("GetOrCreateCollection conflict classification", func() {
	const collectionJSON = `{"id":"6a8f1c2e-2c5e-4d7b-9a0e-3f2b1c4d5e6f","name":"docs","tenant":"t","database":"d"}`

	var (
		srv      *httptest.Server
		gets     atomic.Int32
		ctx      context.Context
		createFn http.HandlerFunc
	)

	BeforeEach(func() {
		ctx = context.Background()
		gets.Store(0)
		srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				createFn(w, r)
				return
			}
			gets.Add(1)
			w.Write([]byte(collectionJSON))
		}))
		DeferCleanup(srv.Close)
	})

	respond := func(status int, body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			w.Write([]byte(body))
		}
	}

	getOrCreate := func(opts ...khroma.Option) (*khroma.Collection, error) {
		client, err := khroma.New(srv.URL, opts...)
		Expect(err).NotTo(HaveOccurred())
		return client.Tenant("t").Database("d").GetOrCreateCollection(ctx, models.CreateCollection{Name: "docs"})
	}

	It("falls back to get on a 409", func() {
		createFn = respond(http.StatusConflict, `{"error":"UniqueConstraintError","message":"exists"}`)
		col, err := getOrCreate()
		Expect(err).NotTo(HaveOccurred())
		Expect(col.Name()).To(Equal("docs"))
		Expect(gets.Load()).To(Equal(int32(1)))
	})

	It("falls back to get on a UniqueConstraintError code", func() {
		createFn = respond(http.StatusInternalServerError, `{"error":"UniqueConstraintError","message":"exists"}`)
		_, err := getOrCreate()
		Expect(err).NotTo(HaveOccurred())
	})

	It("propagates other api errors unchanged", func() {
		createFn = respond(http.StatusInternalServerError, `{"error":"InternalError","message":"boom"}`)
		_, err := getOrCreate()
		Expect(err).To(MatchError(khroma.ErrAPI))
		e, _ := khroma.AsError(err)
		Expect(e.Op).To(Equal("create_collection"))
		Expect(e.Message).To(Equal("boom"))
		Expect(gets.Load()).To(BeZero())
	})

	It("uses a configured matcher", func() {
		createFn = respond(http.StatusUnprocessableEntity, `{"error":"AlreadyExists","message":"exists"}`)

		_, err := getOrCreate()
		Expect(err).To(MatchError(khroma.ErrAPI))

		_, err = getOrCreate(khroma.WithConflictMatcher(khroma.ConflictOnCode("AlreadyExists")))
		Expect(err).NotTo(HaveOccurred())
		Expect(gets.Load()).To(Equal(int32(1)))
	})
})

var _ = Describe("NewFromConfig", func() {
	It("builds a client and scoped database from config", func() {
		srv := khromatest.NewServer(khromatest.WithToken("secret"))
		DeferCleanup(srv.Close)

		cfg := config.NewDefaultConfig()
		cfg.Server.URL = srv.URL
		cfg.Server.Token = "secret"

		db, err := khroma.DatabaseFromConfig(cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(db.Name()).To(Equal(config.DefaultDatabase))
		Expect(db.Tenant().Name()).To(Equal(config.DefaultTenant))

		_, err = db.CreateCollection(context.Background(), models.CreateCollection{Name: "docs"})
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects an invalid config", func() {
		cfg := config.NewDefaultConfig()
		cfg.Server.URL = ""
		_, err := khroma.NewFromConfig(cfg)
		Expect(err).To(MatchError(ContainSubstring("server.url is required")))
	})

	It("rejects an invalid url as a url error", func() {
		cfg := config.NewDefaultConfig()
		cfg.Server.URL = "not a url"
		_, err := khroma.NewFromConfig(cfg)
		Expect(err).To(MatchError(khroma.ErrURL))
	})
})
