package vectordb

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/civicqa/govrag/common/logger"
	"github.com/civicqa/govrag/config"
	"github.com/civicqa/govrag/schema"
)

const (
	milvusVectorField = "vector"
	milvusSearchEf    = 64
)

type milvusProvider struct {
	cfg        config.VectorDBConfig
	collection string

	mu   sync.Mutex
	conn client.Client
}

func newMilvus(cfg config.VectorDBConfig) (*milvusProvider, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("milvus: host is required")
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "gov_rag_v1"
	}
	return &milvusProvider{cfg: cfg, collection: collection}, nil
}

// connect dials lazily so construction never blocks on an unreachable store.
func (m *milvusProvider) connect(ctx context.Context) (client.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil {
		return m.conn, nil
	}
	port := m.cfg.Port
	if port == 0 {
		port = 19530
	}
	conn, err := client.NewClient(ctx, client.Config{
		Address:  fmt.Sprintf("%s:%d", m.cfg.Host, port),
		Username: m.cfg.Username,
		Password: m.cfg.Password,
		DBName:   m.cfg.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("milvus connect: %w", err)
	}
	m.conn = conn
	return conn, nil
}

func (m *milvusProvider) EnsureCollection(ctx context.Context, dims int) error {
	conn, err := m.connect(ctx)
	if err != nil {
		return err
	}
	exists, err := conn.HasCollection(ctx, m.collection)
	if err != nil {
		return fmt.Errorf("has collection: %w", err)
	}
	if exists {
		return nil
	}

	sch := entity.NewSchema().WithName(m.collection).
		WithField(entity.NewField().WithName("id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(64).WithIsPrimaryKey(true)).
		WithField(entity.NewField().WithName(milvusVectorField).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(dims))).
		WithField(entity.NewField().WithName("url").WithDataType(entity.FieldTypeVarChar).WithMaxLength(1024)).
		WithField(entity.NewField().WithName("title").WithDataType(entity.FieldTypeVarChar).WithMaxLength(512)).
		WithField(entity.NewField().WithName("section_heading").WithDataType(entity.FieldTypeVarChar).WithMaxLength(512)).
		WithField(entity.NewField().WithName("text").WithDataType(entity.FieldTypeVarChar).WithMaxLength(4096)).
		WithField(entity.NewField().WithName("char_start").WithDataType(entity.FieldTypeInt64)).
		WithField(entity.NewField().WithName("char_end").WithDataType(entity.FieldTypeInt64)).
		WithField(entity.NewField().WithName("content_type").WithDataType(entity.FieldTypeVarChar).WithMaxLength(16)).
		WithField(entity.NewField().WithName("crawl_ts").WithDataType(entity.FieldTypeVarChar).WithMaxLength(64)).
		WithField(entity.NewField().WithName("embedding_model").WithDataType(entity.FieldTypeVarChar).WithMaxLength(128)).
		WithField(entity.NewField().WithName("tokens").WithDataType(entity.FieldTypeInt64)).
		WithField(entity.NewField().WithName("hash").WithDataType(entity.FieldTypeVarChar).WithMaxLength(64))

	if err := conn.CreateCollection(ctx, sch, 1); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	idx, err := entity.NewIndexHNSW(entity.COSINE, 16, 200)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	if err := conn.CreateIndex(ctx, m.collection, milvusVectorField, idx, false); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if err := conn.LoadCollection(ctx, m.collection, false); err != nil {
		return fmt.Errorf("load collection: %w", err)
	}
	logger.Infof("milvus: created collection %s (dims=%d)", m.collection, dims)
	return nil
}

func (m *milvusProvider) Upsert(ctx context.Context, records []schema.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}
	conn, err := m.connect(ctx)
	if err != nil {
		return err
	}

	n := len(records)
	ids := make([]string, n)
	vectors := make([][]float32, n)
	urls := make([]string, n)
	titles := make([]string, n)
	headings := make([]string, n)
	texts := make([]string, n)
	starts := make([]int64, n)
	ends := make([]int64, n)
	ctypes := make([]string, n)
	crawls := make([]string, n)
	models := make([]string, n)
	tokens := make([]int64, n)
	hashes := make([]string, n)
	dims := 0
	for i, r := range records {
		ids[i] = r.ID
		vectors[i] = r.Vector
		urls[i] = r.URL
		titles[i] = r.Title
		headings[i] = r.SectionHeading
		texts[i] = r.Text
		starts[i] = int64(r.CharStart)
		ends[i] = int64(r.CharEnd)
		ctypes[i] = string(r.ContentType)
		crawls[i] = r.CrawlTS
		models[i] = r.EmbeddingModel
		tokens[i] = int64(r.Tokens)
		hashes[i] = r.Hash
		if len(r.Vector) > dims {
			dims = len(r.Vector)
		}
	}

	_, err = conn.Upsert(ctx, m.collection, "",
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnFloatVector(milvusVectorField, dims, vectors),
		entity.NewColumnVarChar("url", urls),
		entity.NewColumnVarChar("title", titles),
		entity.NewColumnVarChar("section_heading", headings),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnInt64("char_start", starts),
		entity.NewColumnInt64("char_end", ends),
		entity.NewColumnVarChar("content_type", ctypes),
		entity.NewColumnVarChar("crawl_ts", crawls),
		entity.NewColumnVarChar("embedding_model", models),
		entity.NewColumnInt64("tokens", tokens),
		entity.NewColumnVarChar("hash", hashes),
	)
	if err != nil {
		return fmt.Errorf("upsert %d records: %w", n, err)
	}
	return nil
}

var milvusOutputFields = []string{
	"url", "title", "section_heading", "text",
	"char_start", "char_end", "content_type", "crawl_ts",
}

func (m *milvusProvider) Search(ctx context.Context, vector []float32, opts SearchOptions) ([]schema.Candidate, error) {
	conn, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	sp, err := entity.NewIndexHNSWSearchParam(milvusSearchEf)
	if err != nil {
		return nil, fmt.Errorf("search params: %w", err)
	}

	var exprs []string
	for k, v := range opts.Filters {
		exprs = append(exprs, fmt.Sprintf(`%s == "%s"`, k, strings.ReplaceAll(v, `"`, "")))
	}
	expr := strings.Join(exprs, " && ")

	results, err := conn.Search(ctx, m.collection, nil, expr, milvusOutputFields,
		[]entity.Vector{entity.FloatVector(vector)}, milvusVectorField,
		entity.COSINE, opts.TopK, sp)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	var candidates []schema.Candidate
	for _, rs := range results {
		for i := 0; i < rs.ResultCount; i++ {
			score := float64(rs.Scores[i])
			if score < opts.ScoreThreshold {
				continue
			}
			id, err := rs.IDs.GetAsString(i)
			if err != nil {
				return nil, fmt.Errorf("result id: %w", err)
			}
			candidates = append(candidates, schema.Candidate{
				ID:             id,
				Score:          score,
				URL:            columnString(rs.Fields, "url", i),
				Title:          columnString(rs.Fields, "title", i),
				SectionHeading: columnString(rs.Fields, "section_heading", i),
				Text:           columnString(rs.Fields, "text", i),
				CharStart:      columnInt(rs.Fields, "char_start", i),
				CharEnd:        columnInt(rs.Fields, "char_end", i),
				ContentType:    schema.ParseContentType(columnString(rs.Fields, "content_type", i)),
				CrawlTS:        columnString(rs.Fields, "crawl_ts", i),
			})
		}
	}
	return candidates, nil
}

func (m *milvusProvider) Info(ctx context.Context) (*CollectionInfo, error) {
	conn, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	stats, err := conn.GetCollectionStatistics(ctx, m.collection)
	if err != nil {
		return nil, fmt.Errorf("collection stats: %w", err)
	}
	points, _ := strconv.ParseInt(stats["row_count"], 10, 64)

	info := &CollectionInfo{Name: m.collection, Points: points}
	if desc, err := conn.DescribeCollection(ctx, m.collection); err == nil && desc.Schema != nil {
		for _, f := range desc.Schema.Fields {
			if f.Name == milvusVectorField {
				if dim, err := strconv.Atoi(f.TypeParams[entity.TypeParamDim]); err == nil {
					info.Dimensions = dim
				}
			}
		}
	}
	return info, nil
}

func columnString(fields client.ResultSet, name string, idx int) string {
	col := fields.GetColumn(name)
	if col == nil {
		return ""
	}
	v, err := col.GetAsString(idx)
	if err != nil {
		return ""
	}
	return v
}

func columnInt(fields client.ResultSet, name string, idx int) int {
	col := fields.GetColumn(name)
	if col == nil {
		return 0
	}
	v, err := col.GetAsInt64(idx)
	if err != nil {
		return 0
	}
	return int(v)
}
