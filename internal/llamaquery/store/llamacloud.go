package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kart-io/logger"
	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel/attribute"

	"github.com/overlordausritter/beastgpt/internal/llamaquery/model"
	"github.com/overlordausritter/beastgpt/pkg/infra/tracing"
	"github.com/overlordausritter/beastgpt/pkg/utils/httpclient"
	"github.com/overlordausritter/beastgpt/pkg/utils/json"
)

// CompositeModeFull 组合检索的 full 模式：合并所有索引结果后统一重排。
const CompositeModeFull = "full"

// LlamaCloudConfig LlamaCloud 访问配置。
type LlamaCloudConfig struct {
	BaseURL        string
	APIKey         string
	OrganizationID string
	ProjectName    string
	// IDCacheTTL 为 0 时 ID 永不过期。
	IDCacheTTL time.Duration
}

// LlamaCloudStore 实现基于 LlamaCloud REST API 的索引检索。
type LlamaCloudStore struct {
	client *httpclient.Client
	config *LlamaCloudConfig
	ids    *gocache.Cache
}

var _ IndexStore = (*LlamaCloudStore)(nil)

// NewLlamaCloudStore 创建 LlamaCloud 存储实例。
func NewLlamaCloudStore(client *httpclient.Client, config *LlamaCloudConfig) *LlamaCloudStore {
	ttl := config.IDCacheTTL
	cleanup := 10 * time.Minute
	if ttl <= 0 {
		ttl = gocache.NoExpiration
		cleanup = 0
	}
	return &LlamaCloudStore{
		client: client,
		config: config,
		ids:    gocache.New(ttl, cleanup),
	}
}

type apiEntity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type apiNode struct {
	Node struct {
		Text     string         `json:"text"`
		Metadata map[string]any `json:"metadata"`
	} `json:"node"`
	Score float64 `json:"score"`
}

type pipelineRetrieveRequest struct {
	Query string `json:"query"`
}

type pipelineRetrieveResponse struct {
	RetrievalNodes []apiNode `json:"retrieval_nodes"`
}

type retrieverPipeline struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PipelineID  string `json:"pipeline_id"`
}

type retrieverUpsertRequest struct {
	Name      string              `json:"name"`
	Pipelines []retrieverPipeline `json:"pipelines"`
}

type compositeRetrieveRequest struct {
	Query      string `json:"query"`
	Mode       string `json:"mode"`
	RerankTopN int    `json:"rerank_top_n"`
}

type compositeRetrieveResponse struct {
	Nodes []apiNode `json:"nodes"`
}

// RetrieveIndex 在单个 pipeline 上检索。
func (s *LlamaCloudStore) RetrieveIndex(ctx context.Context, index string, query string) ([]*model.RetrievedNode, error) {
	ctx, span := tracing.StartSpan(ctx, "llamacloud.retrieve_index", attribute.String(tracing.QueryIndex, index))
	defer span.End()

	pipelineID, err := s.pipelineID(ctx, index)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	var resp pipelineRetrieveResponse
	path := "/api/v1/pipelines/" + url.PathEscape(pipelineID) + "/retrieve"
	if err := s.do(ctx, http.MethodPost, path, nil, pipelineRetrieveRequest{Query: query}, &resp); err != nil {
		if httpclient.IsStatus(err, http.StatusNotFound) {
			s.ids.Delete(pipelineKey(index))
		}
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("retrieve from index %q: %w", index, err)
	}

	nodes := toNodes(resp.RetrievalNodes)
	span.SetAttributes(attribute.Int(tracing.QueryNodes, len(nodes)))
	return nodes, nil
}

// RetrieveComposite 通过组合检索器检索，检索器不存在时先创建。
func (s *LlamaCloudStore) RetrieveComposite(ctx context.Context, spec *CompositeSpec, query string) ([]*model.RetrievedNode, error) {
	ctx, span := tracing.StartSpan(ctx, "llamacloud.retrieve_composite", attribute.String(tracing.QueryIndex, spec.Name))
	defer span.End()

	retrieverID, err := s.retrieverID(ctx, spec)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	req := compositeRetrieveRequest{
		Query:      query,
		Mode:       CompositeModeFull,
		RerankTopN: spec.RerankTopN,
	}
	var resp compositeRetrieveResponse
	path := "/api/v1/retrievers/" + url.PathEscape(retrieverID) + "/retrieve"
	if err := s.do(ctx, http.MethodPost, path, nil, req, &resp); err != nil {
		if httpclient.IsStatus(err, http.StatusNotFound) {
			s.ids.Delete(retrieverKey(spec.Name))
		}
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("retrieve from composite retriever %q: %w", spec.Name, err)
	}

	nodes := toNodes(resp.Nodes)
	span.SetAttributes(attribute.Int(tracing.QueryNodes, len(nodes)))
	return nodes, nil
}

// projectID 解析并缓存项目 ID。
func (s *LlamaCloudStore) projectID(ctx context.Context) (string, error) {
	key := "project:" + s.config.ProjectName
	if id, ok := s.ids.Get(key); ok {
		return id.(string), nil
	}

	q := url.Values{}
	q.Set("project_name", s.config.ProjectName)
	if s.config.OrganizationID != "" {
		q.Set("organization_id", s.config.OrganizationID)
	}

	var projects []apiEntity
	if err := s.do(ctx, http.MethodGet, "/api/v1/projects", q, nil, &projects); err != nil {
		return "", fmt.Errorf("resolve project %q: %w", s.config.ProjectName, err)
	}
	id, ok := findByName(projects, s.config.ProjectName)
	if !ok {
		return "", fmt.Errorf("project %q not found", s.config.ProjectName)
	}

	s.ids.SetDefault(key, id)
	logger.Debugw("resolved project", "project", s.config.ProjectName, "project_id", id)
	return id, nil
}

// pipelineID 解析并缓存索引 ID。
func (s *LlamaCloudStore) pipelineID(ctx context.Context, name string) (string, error) {
	key := pipelineKey(name)
	if id, ok := s.ids.Get(key); ok {
		return id.(string), nil
	}

	projectID, err := s.projectID(ctx)
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("project_id", projectID)
	q.Set("pipeline_name", name)

	var pipelines []apiEntity
	if err := s.do(ctx, http.MethodGet, "/api/v1/pipelines", q, nil, &pipelines); err != nil {
		return "", fmt.Errorf("resolve index %q: %w", name, err)
	}
	id, ok := findByName(pipelines, name)
	if !ok {
		return "", fmt.Errorf("index %q not found in project %q", name, s.config.ProjectName)
	}

	s.ids.SetDefault(key, id)
	logger.Debugw("resolved index", "index", name, "pipeline_id", id)
	return id, nil
}

// retrieverID 创建或更新组合检索器并缓存其 ID。
func (s *LlamaCloudStore) retrieverID(ctx context.Context, spec *CompositeSpec) (string, error) {
	key := retrieverKey(spec.Name)
	if id, ok := s.ids.Get(key); ok {
		return id.(string), nil
	}

	projectID, err := s.projectID(ctx)
	if err != nil {
		return "", err
	}

	body := retrieverUpsertRequest{
		Name:      spec.Name,
		Pipelines: make([]retrieverPipeline, 0, len(spec.Indices)),
	}
	for _, idx := range spec.Indices {
		pipelineID, err := s.pipelineID(ctx, idx.Name)
		if err != nil {
			return "", err
		}
		body.Pipelines = append(body.Pipelines, retrieverPipeline{
			Name:        idx.Name,
			Description: idx.Description,
			PipelineID:  pipelineID,
		})
	}

	q := url.Values{}
	q.Set("project_id", projectID)

	var retriever apiEntity
	if err := s.do(ctx, http.MethodPut, "/api/v1/retrievers", q, body, &retriever); err != nil {
		return "", fmt.Errorf("upsert composite retriever %q: %w", spec.Name, err)
	}
	if retriever.ID == "" {
		return "", fmt.Errorf("upsert composite retriever %q: empty id in response", spec.Name)
	}

	s.ids.SetDefault(key, retriever.ID)
	logger.Infow("composite retriever ready",
		"retriever", spec.Name,
		"retriever_id", retriever.ID,
		"indices", len(body.Pipelines),
	)
	return retriever.ID, nil
}

// do 发送一个 JSON 请求。错误中不包含 Authorization 头。
func (s *LlamaCloudStore) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	u := strings.TrimRight(s.config.BaseURL, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return s.client.DoJSON(req, out)
}

func toNodes(in []apiNode) []*model.RetrievedNode {
	nodes := make([]*model.RetrievedNode, 0, len(in))
	for _, n := range in {
		nodes = append(nodes, &model.RetrievedNode{
			Text:     n.Node.Text,
			Metadata: n.Node.Metadata,
			Score:    n.Score,
		})
	}
	return nodes
}

func findByName(entities []apiEntity, name string) (string, bool) {
	for _, e := range entities {
		if e.Name == name && e.ID != "" {
			return e.ID, true
		}
	}
	// 服务端已按名称过滤，名称大小写不一致时取第一个
	if len(entities) > 0 && entities[0].ID != "" {
		return entities[0].ID, true
	}
	return "", false
}

func pipelineKey(name string) string {
	return "pipeline:" + name
}

func retrieverKey(name string) string {
	return "retriever:" + name
}
