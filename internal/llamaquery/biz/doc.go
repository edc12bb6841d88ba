// Package biz 实现查询分发流水线：
// 请求校验 → 凭证检查 → 检索策略 → 执行器（工作池 + 重试）→ 响应归一化。
package biz
