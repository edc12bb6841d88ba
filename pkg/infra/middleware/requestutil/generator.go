// Package requestutil 提供请求 ID 生成与上下文传递工具。
package requestutil

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// HeaderXRequestID is the header name for request ID.
const HeaderXRequestID = "X-Request-ID"

type requestIDKey struct{}

// GetRequestID returns the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// IDGenerator 定义请求 ID 生成器接口
type IDGenerator interface {
	Generate() string
}

// HexGenerator 使用加密随机数生成 32 位十六进制 ID
type HexGenerator struct{}

// Generate 实现 IDGenerator 接口
func (HexGenerator) Generate() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// ULIDGenerator 生成时间可排序的 ULID
type ULIDGenerator struct {
	mu      sync.Mutex
	entropy io.Reader
}

// NewULIDGenerator 创建 ULID 生成器，同一毫秒内单调递增
func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Generate 实现 IDGenerator 接口
func (g *ULIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}

// NewGenerator 根据类型名称创建生成器，默认 ulid
func NewGenerator(generatorType string) IDGenerator {
	if generatorType == "hex" {
		return HexGenerator{}
	}
	return NewULIDGenerator()
}
