// Package model 定义查询服务在各层之间传递的数据结构。
package model

import "fmt"

// EmptyResultMessage is returned when retrieval succeeds with zero nodes.
const EmptyResultMessage = "No relevant documents found."

// RetrievedNode 索引服务返回的一个文本块，仅在单次请求内存在。
type RetrievedNode struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float64        `json:"score"`
}

// fileNameKeys 按优先级排列的文件名元数据键。
var fileNameKeys = []string{"file_name", "filename", "document_title"}

// FileName returns the first present, non-empty value among file_name,
// filename and document_title, or nil when none is set.
func (n *RetrievedNode) FileName() *string {
	for _, key := range fileNameKeys {
		v, ok := n.Metadata[key]
		if !ok || v == nil {
			continue
		}
		s, isString := v.(string)
		if !isString {
			s = fmt.Sprint(v)
		}
		if s != "" {
			return &s
		}
	}
	return nil
}

// WebURL returns metadata.web_url as-is, nil when absent.
func (n *RetrievedNode) WebURL() any {
	return n.Metadata["web_url"]
}

// ResultRecord 归一化后的输出单元。
type ResultRecord struct {
	Text     string  `json:"text"`
	FileName *string `json:"file_name"`
	WebURL   any     `json:"web_url"`
}

// NewResultRecord maps a retrieved node into its normalized record.
func NewResultRecord(n *RetrievedNode) *ResultRecord {
	return &ResultRecord{
		Text:     n.Text,
		FileName: n.FileName(),
		WebURL:   n.WebURL(),
	}
}

// Selection is one choice made by the LLM selector.
type Selection struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// SelectorMetadata 路由选择器的原始元数据。
type SelectorMetadata struct {
	Selections []Selection `json:"selections"`
}

// QueryResponse is the success envelope. Errors never use it.
type QueryResponse struct {
	Query            string            `json:"query"`
	SelectedTool     *string           `json:"selected_tool,omitempty"`
	Response         *string           `json:"response,omitempty"`
	SelectorMetadata *SelectorMetadata `json:"selector_metadata,omitempty"`
	Results          []*ResultRecord   `json:"results"`
	Text             *string           `json:"text,omitempty"`
	Message          string            `json:"message,omitempty"`

	// Streamed 为 true 时 handler 以 NDJSON 逐条输出 Results。
	Streamed bool `json:"-"`
}

// Retrieval is what a strategy hands back to the dispatcher.
type Retrieval struct {
	Nodes []*RetrievedNode

	// 以下字段仅由 router-engine 策略填充。
	SelectedTool     string
	Answer           *string
	SelectorMetadata *SelectorMetadata
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
