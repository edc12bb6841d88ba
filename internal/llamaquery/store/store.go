package store

import (
	"context"

	"github.com/overlordausritter/beastgpt/internal/llamaquery/model"
)

// IndexRef 一个命名索引及其内容描述。
type IndexRef struct {
	// Name 索引（pipeline）名称。
	Name string
	// Description 索引内容领域的自然语言描述。
	Description string
}

// CompositeSpec 组合检索器定义。
type CompositeSpec struct {
	// Name 组合检索器名称，不存在时创建。
	Name string
	// Indices 参与合并的索引。
	Indices []IndexRef
	// RerankTopN 重排后保留的节点数。
	RerankTopN int
}

// IndexStore 定义托管索引的检索接口。
type IndexStore interface {
	// RetrieveIndex 在单个索引上检索。
	RetrieveIndex(ctx context.Context, index string, query string) ([]*model.RetrievedNode, error)

	// RetrieveComposite 通过组合检索器在多个索引上检索并重排。
	RetrieveComposite(ctx context.Context, spec *CompositeSpec, query string) ([]*model.RetrievedNode, error)
}
