package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"
)

// Config 池配置。
type Config struct {
	// Capacity 池容量（最大并发 goroutine 数）
	Capacity int
	// ExpiryDuration goroutine 空闲过期时间
	ExpiryDuration time.Duration
	// PreAlloc 是否预分配 worker 队列
	PreAlloc bool
	// Nonblocking 池满时提交是否立即返回 ErrPoolOverload
	Nonblocking bool
	// MaxBlockingTasks 当 Nonblocking=false 时，最大等待任务数（0 表示无限制）
	MaxBlockingTasks int
}

// DefaultConfig 返回检索调用池的默认配置。
func DefaultConfig() *Config {
	return &Config{
		Capacity:         64,
		ExpiryDuration:   30 * time.Second,
		PreAlloc:         false,
		Nonblocking:      false,
		MaxBlockingTasks: 1024,
	}
}

// Validate 校验配置。
func (c *Config) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidPoolConfig, c.Capacity)
	}
	if c.MaxBlockingTasks < 0 {
		return fmt.Errorf("%w: max blocking tasks must not be negative", ErrInvalidPoolConfig)
	}
	return nil
}

// Pool 有界 worker 池。
type Pool struct {
	name   string
	pool   *ants.Pool
	config *Config
	stats  poolStatsCounter

	closed   atomic.Bool
	closedMu sync.Mutex
}

type poolStatsCounter struct {
	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
	panics    atomic.Int64
	waitNs    atomic.Int64
}

// Stats 池统计快照。
type Stats struct {
	Name            string `json:"name"`
	Capacity        int    `json:"capacity"`
	Running         int    `json:"running"`
	Waiting         int    `json:"waiting"`
	SubmittedTasks  int64  `json:"submitted_tasks"`
	CompletedTasks  int64  `json:"completed_tasks"`
	FailedTasks     int64  `json:"failed_tasks"`
	RejectedTasks   int64  `json:"rejected_tasks"`
	PanicRecovered  int64  `json:"panic_recovered"`
	TotalWaitTimeNs int64  `json:"total_wait_time_ns"`
}

// NewPool 创建 worker 池。
func NewPool(name string, config *Config) (*Pool, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Pool{name: name, config: config}

	ap, err := ants.NewPool(config.Capacity,
		ants.WithExpiryDuration(config.ExpiryDuration),
		ants.WithPreAlloc(config.PreAlloc),
		ants.WithNonblocking(config.Nonblocking),
		ants.WithMaxBlockingTasks(config.MaxBlockingTasks),
		ants.WithPanicHandler(func(v interface{}) {
			logger.Errorw("Worker panic recovered", "pool", name, "panic", v)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("创建 ants 池失败: %w", err)
	}
	p.pool = ap

	logger.Infow("Worker pool created",
		"name", name,
		"capacity", config.Capacity,
		"nonblocking", config.Nonblocking,
	)
	return p, nil
}

// Name 返回池名称
func (p *Pool) Name() string {
	return p.name
}

// Cap 返回池容量
func (p *Pool) Cap() int {
	return p.pool.Cap()
}

// Running 返回正在运行的 goroutine 数量
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Submit 提交任务到池中执行，不等待结果。
func (p *Pool) Submit(task func()) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	queued := time.Now()
	err := p.pool.Submit(func() {
		p.stats.waitNs.Add(int64(time.Since(queued)))
		defer func() {
			if r := recover(); r != nil {
				p.stats.panics.Add(1)
				p.stats.failed.Add(1)
				panic(r)
			}
			p.stats.completed.Add(1)
		}()
		task()
	})
	if err != nil {
		if errors.Is(err, ants.ErrPoolOverload) {
			p.stats.rejected.Add(1)
			return ErrPoolOverload
		}
		if errors.Is(err, ants.ErrPoolClosed) {
			return ErrPoolClosed
		}
		p.stats.failed.Add(1)
		return err
	}
	p.stats.submitted.Add(1)
	return nil
}

// Run 在池中执行 fn 并等待其结果。
// 上下文取消时立即返回 ctx.Err()，已开始的任务仍会在后台运行完毕。
// 任务内的 panic 转换为 *PanicError。
func Run[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)

	err := p.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				p.stats.panics.Add(1)
				done <- result{err: &PanicError{Pool: p.name, Value: r}}
			}
		}()
		if ctx.Err() != nil {
			done <- result{err: ctx.Err()}
			return
		}
		v, err := fn(ctx)
		done <- result{val: v, err: err}
	})
	if err != nil {
		return zero, err
	}

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Release 关闭池并释放资源
func (p *Pool) Release() {
	p.closedMu.Lock()
	defer p.closedMu.Unlock()

	if p.closed.Swap(true) {
		return
	}
	p.pool.Release()
	logger.Infow("Worker pool released", "name", p.name)
}

// ReleaseTimeout 带超时关闭池，等待运行中的任务完成。
func (p *Pool) ReleaseTimeout(timeout time.Duration) error {
	p.closedMu.Lock()
	defer p.closedMu.Unlock()

	if p.closed.Swap(true) {
		return nil
	}
	return p.pool.ReleaseTimeout(timeout)
}

// Stats 返回池统计信息快照
func (p *Pool) Stats() Stats {
	return Stats{
		Name:            p.name,
		Capacity:        p.pool.Cap(),
		Running:         p.pool.Running(),
		Waiting:         p.pool.Waiting(),
		SubmittedTasks:  p.stats.submitted.Load(),
		CompletedTasks:  p.stats.completed.Load(),
		FailedTasks:     p.stats.failed.Load(),
		RejectedTasks:   p.stats.rejected.Load(),
		PanicRecovered:  p.stats.panics.Load(),
		TotalWaitTimeNs: p.stats.waitNs.Load(),
	}
}
