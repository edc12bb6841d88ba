package store

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overlordausritter/beastgpt/pkg/utils/httpclient"
	"github.com/overlordausritter/beastgpt/pkg/utils/json"
)

const testKey = "llx-test"

type fakeCloud struct {
	t              *testing.T
	projectLookups atomic.Int32
	pipelineLookup atomic.Int32
	upserts        atomic.Int32
	retrieves      atomic.Int32
	upsertBody     retrieverUpsertRequest
	compositeBody  compositeRetrieveRequest
	pipelineStatus int
}

func (f *fakeCloud) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+testKey {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/v1/projects":
		f.projectLookups.Add(1)
		if r.URL.Query().Get("project_name") != "The BEAST" || r.URL.Query().Get("organization_id") != "org-1" {
			_, _ = io.WriteString(w, `[]`)
			return
		}
		_, _ = io.WriteString(w, `[{"id":"proj-1","name":"The BEAST"}]`)

	case r.Method == http.MethodGet && r.URL.Path == "/api/v1/pipelines":
		f.pipelineLookup.Add(1)
		assert.Equal(f.t, "proj-1", r.URL.Query().Get("project_id"))
		name := r.URL.Query().Get("pipeline_name")
		ids := map[string]string{"Deals": "pipe-deals", "Themes": "pipe-themes"}
		data, _ := json.Marshal([]apiEntity{{ID: ids[name], Name: name}})
		_, _ = w.Write(data)

	case r.Method == http.MethodPost && r.URL.Path == "/api/v1/pipelines/pipe-deals/retrieve":
		f.retrieves.Add(1)
		if f.pipelineStatus != 0 {
			w.WriteHeader(f.pipelineStatus)
			_, _ = io.WriteString(w, `{"detail":"gone"}`)
			return
		}
		var req pipelineRetrieveRequest
		body, _ := io.ReadAll(r.Body)
		assert.NoError(f.t, json.Unmarshal(body, &req))
		assert.Equal(f.t, "revenue", req.Query)
		_, _ = io.WriteString(w, `{"retrieval_nodes":[
			{"node":{"text":"B","metadata":{"file_name":"b.pdf","web_url":"https://x/b"}},"score":0.9},
			{"node":{"text":"","metadata":{}},"score":0.5},
			{"node":{"text":"A","metadata":{"document_title":"A Doc"}},"score":0.1}]}`)

	case r.Method == http.MethodPut && r.URL.Path == "/api/v1/retrievers":
		f.upserts.Add(1)
		assert.Equal(f.t, "proj-1", r.URL.Query().Get("project_id"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(f.t, json.Unmarshal(body, &f.upsertBody))
		_, _ = io.WriteString(w, `{"id":"ret-1","name":"Composite"}`)

	case r.Method == http.MethodPost && r.URL.Path == "/api/v1/retrievers/ret-1/retrieve":
		f.retrieves.Add(1)
		body, _ := io.ReadAll(r.Body)
		assert.NoError(f.t, json.Unmarshal(body, &f.compositeBody))
		_, _ = io.WriteString(w, `{"nodes":[{"node":{"text":"merged","metadata":{"filename":"m.docx"}},"score":1}]}`)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestStore(t *testing.T) (*LlamaCloudStore, *fakeCloud) {
	fake := &fakeCloud{t: t}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s := NewLlamaCloudStore(httpclient.NewClient(nil), &LlamaCloudConfig{
		BaseURL:        srv.URL,
		APIKey:         testKey,
		OrganizationID: "org-1",
		ProjectName:    "The BEAST",
	})
	return s, fake
}

func TestRetrieveIndex(t *testing.T) {
	s, fake := newTestStore(t)

	nodes, err := s.RetrieveIndex(context.Background(), "Deals", "revenue")
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.Equal(t, "B", nodes[0].Text)
	assert.Equal(t, "https://x/b", nodes[0].Metadata["web_url"])
	assert.Equal(t, "", nodes[1].Text)
	assert.Equal(t, "A", nodes[2].Text)
	assert.InDelta(t, 0.9, nodes[0].Score, 1e-9)

	_, err = s.RetrieveIndex(context.Background(), "Deals", "revenue")
	require.NoError(t, err)

	// ID 只解析一次
	assert.Equal(t, int32(1), fake.projectLookups.Load())
	assert.Equal(t, int32(1), fake.pipelineLookup.Load())
	assert.Equal(t, int32(2), fake.retrieves.Load())
}

func TestRetrieveComposite(t *testing.T) {
	s, fake := newTestStore(t)

	spec := &CompositeSpec{
		Name: "Composite",
		Indices: []IndexRef{
			{Name: "Deals", Description: "deal files"},
			{Name: "Themes", Description: "market research"},
		},
		RerankTopN: 6,
	}

	nodes, err := s.RetrieveComposite(context.Background(), spec, "outlook")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "merged", nodes[0].Text)

	assert.Equal(t, "Composite", fake.upsertBody.Name)
	require.Len(t, fake.upsertBody.Pipelines, 2)
	assert.Equal(t, retrieverPipeline{Name: "Deals", Description: "deal files", PipelineID: "pipe-deals"}, fake.upsertBody.Pipelines[0])
	assert.Equal(t, "pipe-themes", fake.upsertBody.Pipelines[1].PipelineID)
	assert.Equal(t, compositeRetrieveRequest{Query: "outlook", Mode: "full", RerankTopN: 6}, fake.compositeBody)

	_, err = s.RetrieveComposite(context.Background(), spec, "outlook")
	require.NoError(t, err)
	assert.Equal(t, int32(1), fake.upserts.Load())
	assert.Equal(t, int32(1), fake.projectLookups.Load())
}

func TestRetrieveIndexNotFoundInvalidatesID(t *testing.T) {
	s, fake := newTestStore(t)
	fake.pipelineStatus = http.StatusNotFound

	_, err := s.RetrieveIndex(context.Background(), "Deals", "revenue")
	require.Error(t, err)
	assert.True(t, httpclient.IsStatus(err, http.StatusNotFound))
	assert.NotContains(t, err.Error(), testKey)

	_, found := s.ids.Get(pipelineKey("Deals"))
	assert.False(t, found)
}

func TestUnknownProject(t *testing.T) {
	fake := &fakeCloud{t: t}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s := NewLlamaCloudStore(httpclient.NewClient(nil), &LlamaCloudConfig{
		BaseURL:        srv.URL,
		APIKey:         testKey,
		OrganizationID: "other-org",
		ProjectName:    "The BEAST",
	})
	_, err := s.RetrieveIndex(context.Background(), "Deals", "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `project "The BEAST" not found`)
}
