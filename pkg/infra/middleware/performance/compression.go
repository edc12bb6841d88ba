// Package performance provides response compression middleware.
package performance

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	mwopts "github.com/overlordausritter/beastgpt/pkg/options/middleware"
)

// CompressionWithOptions 返回 gzip 响应压缩中间件。
//
// 响应体先缓冲，达到 MinSize 后才开始压缩；整个响应小于 MinSize 时原样输出。
// 处理程序在达到 MinSize 之前调用 Flush 时视为流式响应，直接启用压缩。
func CompressionWithOptions(opts mwopts.CompressionOptions) gin.HandlerFunc {
	if opts.Level == 0 || opts.Level == -1 {
		opts.Level = gzip.DefaultCompression
	}

	compressTypes := make(map[string]bool, len(opts.Types))
	for _, ct := range opts.Types {
		compressTypes[ct] = true
	}
	skip := make(map[string]struct{}, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		skip[p] = struct{}{}
	}

	// gzip.Writer 池，复用对象减少内存分配
	gzipPool := &sync.Pool{
		New: func() interface{} {
			gz, _ := gzip.NewWriterLevel(io.Discard, opts.Level)
			return gz
		},
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}
		if !strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") {
			c.Next()
			return
		}

		orig := c.Writer
		gw := &gzipResponseWriter{
			ResponseWriter: orig,
			minSize:        opts.MinSize,
			compressTypes:  compressTypes,
			pool:           gzipPool,
		}
		c.Writer = gw
		defer func() {
			gw.finish()
			c.Writer = orig
		}()

		c.Next()
	}
}

// gzipResponseWriter 缓冲响应直到可以决定是否压缩。
type gzipResponseWriter struct {
	gin.ResponseWriter

	minSize       int
	compressTypes map[string]bool
	pool          *sync.Pool

	status  int
	buf     bytes.Buffer
	decided bool
	gz      *gzip.Writer
}

func (w *gzipResponseWriter) WriteHeader(code int) {
	if !w.decided {
		w.status = code
		return
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *gzipResponseWriter) WriteHeaderNow() {}

func (w *gzipResponseWriter) Status() int {
	if !w.decided && w.status != 0 {
		return w.status
	}
	return w.ResponseWriter.Status()
}

func (w *gzipResponseWriter) Written() bool {
	return w.decided || w.buf.Len() > 0
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	if w.decided {
		if w.gz != nil {
			return w.gz.Write(b)
		}
		return w.ResponseWriter.Write(b)
	}

	w.buf.Write(b)
	if w.buf.Len() >= w.minSize {
		if err := w.decide(true); err != nil {
			return 0, err
		}
	}
	return len(b), nil
}

func (w *gzipResponseWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// Flush 实现 http.Flusher 接口，支持流式响应。
func (w *gzipResponseWriter) Flush() {
	if !w.decided {
		_ = w.decide(true)
	}
	if w.gz != nil {
		_ = w.gz.Flush()
	}
	w.ResponseWriter.Flush()
}

// decide 写出响应头和已缓冲的数据。
func (w *gzipResponseWriter) decide(large bool) error {
	w.decided = true

	h := w.Header()
	if large && w.shouldCompress(h) {
		h.Del("Content-Length")
		h.Set("Content-Encoding", "gzip")
		h.Add("Vary", "Accept-Encoding")

		gz := w.pool.Get().(*gzip.Writer)
		gz.Reset(w.ResponseWriter)
		w.gz = gz
	}

	if w.status != 0 {
		w.ResponseWriter.WriteHeader(w.status)
	}
	if w.buf.Len() == 0 {
		return nil
	}

	var err error
	if w.gz != nil {
		_, err = w.gz.Write(w.buf.Bytes())
	} else {
		_, err = w.ResponseWriter.Write(w.buf.Bytes())
	}
	w.buf.Reset()
	return err
}

func (w *gzipResponseWriter) shouldCompress(h http.Header) bool {
	if h.Get("Content-Encoding") != "" {
		return false
	}
	if w.status == http.StatusNoContent || w.status == http.StatusNotModified {
		return false
	}
	ct := h.Get("Content-Type")
	if idx := strings.Index(ct, ";"); idx >= 0 {
		ct = ct[:idx]
	}
	return w.compressTypes[strings.TrimSpace(ct)]
}

// finish 输出剩余缓冲并关闭 gzip writer，回收到池中。
func (w *gzipResponseWriter) finish() {
	if !w.decided {
		if w.status == 0 && w.buf.Len() == 0 {
			return
		}
		_ = w.decide(false)
	}
	if w.gz != nil {
		_ = w.gz.Close()
		w.pool.Put(w.gz)
		w.gz = nil
	}
}
