// Package pool 提供基于 ants 的有界 goroutine 池，用于执行阻塞的出站调用。
package pool

import (
	"errors"
	"fmt"
)

// 池相关错误定义
var (
	// ErrPoolClosed 池已关闭
	ErrPoolClosed = errors.New("池已关闭")

	// ErrInvalidPoolConfig 无效的池配置
	ErrInvalidPoolConfig = errors.New("无效的池配置")

	// ErrPoolOverload 池已满
	ErrPoolOverload = errors.New("池已满")
)

// PanicError 任务执行过程中发生 panic。
type PanicError struct {
	Pool  string
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("pool %s: task panicked: %v", e.Pool, e.Value)
}
