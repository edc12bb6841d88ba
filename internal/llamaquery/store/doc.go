// Package store 提供查询服务的托管索引访问层。
//
// 该包定义了索引检索的接口抽象，以及基于 LlamaCloud REST API 的实现。
// 项目、索引和组合检索器的 ID 在进程内缓存，不做任何持久化。
package store
