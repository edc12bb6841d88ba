package biz

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/overlordausritter/beastgpt/pkg/infra/pool"
	"github.com/overlordausritter/beastgpt/pkg/llm/resilience"
	"github.com/overlordausritter/beastgpt/pkg/utils/errors"
)

// 查询服务错误码。所有错误都以 HTTP 200 + {"error": ...} 返回。
var (
	ErrMissingQuery = errors.Register(errors.New(
		errors.MakeCode(errors.ServiceQuery, errors.CategoryRequest, 1),
		http.StatusOK, "Missing 'query' in request body"))

	ErrMissingCredential = errors.Register(errors.New(
		errors.MakeCode(errors.ServiceQuery, errors.CategoryConfig, 1),
		http.StatusOK, "Missing credential"))

	ErrTransientUpstream = errors.Register(errors.New(
		errors.MakeCode(errors.ServiceThirdPartyIndex, errors.CategoryNetwork, 1),
		http.StatusOK, "Llama Cloud connection failed"))

	ErrUpstreamQuery = errors.Register(errors.New(
		errors.MakeCode(errors.ServiceThirdPartyIndex, errors.CategoryInternal, 1),
		http.StatusOK, "Llama Cloud query failed"))

	ErrRouterQuery = errors.Register(errors.New(
		errors.MakeCode(errors.ServiceQuery, errors.CategoryInternal, 1),
		http.StatusOK, "Router query failed"))
)

// Error kinds, used as metric labels.
const (
	KindMissingQuery      = "missing_query"
	KindMissingCredential = "missing_credential"
	KindTransient         = "transient_upstream"
	KindUpstreamQuery     = "upstream_query"
	KindRouterQuery       = "router_query"
	KindCanceled          = "canceled"
	KindInternal          = "internal"
)

// SelectionError 选择器输出无法解析或越界。
type SelectionError struct {
	Output string
	Reason string
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("invalid selector output (%s): %q", e.Reason, e.Output)
}

// LLMError 选择器或合成器的模型调用失败。执行器不重试此类错误，
// 重试策略只针对索引存储的瞬时网络错误。
type LLMError struct {
	Stage string
	Err   error
}

func (e *LLMError) Error() string {
	return e.Stage + ": " + e.Err.Error()
}

func (e *LLMError) Unwrap() error { return e.Err }

func missingCredential(name string) *errors.Errno {
	return ErrMissingCredential.WithMessagef("Missing %s environment variable", name)
}

func withDetail(e *errors.Errno, cause error) *errors.Errno {
	return e.WithMessagef("%s: %s", e.Message, cause.Error()).WithCause(cause)
}

// classifyError maps a pipeline failure onto the user-facing taxonomy.
// routed selects the router wording for failures that are not transient.
func classifyError(err error, routed bool) error {
	if err == nil {
		return nil
	}

	var errno *errors.Errno
	if stderrors.As(err, &errno) {
		return err
	}

	// 模型调用失败不属于 Llama Cloud 连接错误
	var llmErr *LLMError
	if stderrors.As(err, &llmErr) {
		if routed || llmErr.Stage == "selector" {
			return withDetail(ErrRouterQuery, err)
		}
		return withDetail(ErrUpstreamQuery, err)
	}

	var exhausted *resilience.ExhaustedError
	if stderrors.As(err, &exhausted) {
		return withDetail(ErrTransientUpstream, exhausted.Last)
	}

	if stderrors.Is(err, pool.ErrPoolOverload) {
		return ErrUpstreamQuery.WithMessagef("%s: worker pool overloaded", ErrUpstreamQuery.Message).WithCause(err)
	}

	var selErr *SelectionError
	if routed || stderrors.As(err, &selErr) {
		return withDetail(ErrRouterQuery, err)
	}
	return withDetail(ErrUpstreamQuery, err)
}

// KindOf returns the metric label for err.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case stderrors.Is(err, ErrMissingQuery):
		return KindMissingQuery
	case stderrors.Is(err, ErrMissingCredential):
		return KindMissingCredential
	case stderrors.Is(err, ErrTransientUpstream):
		return KindTransient
	case stderrors.Is(err, ErrRouterQuery):
		return KindRouterQuery
	case stderrors.Is(err, ErrUpstreamQuery):
		return KindUpstreamQuery
	case isCanceled(err):
		return KindCanceled
	default:
		return KindInternal
	}
}
