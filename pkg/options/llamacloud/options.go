// Package llamacloud provides configuration options for the managed index platform.
package llamacloud

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/overlordausritter/beastgpt/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// APIKeyEnv is the environment variable holding the platform API key.
const APIKeyEnv = "LLAMA_API_KEY"

// IndexOptions names one managed index and describes when to use it.
type IndexOptions struct {
	Name        string `json:"name" mapstructure:"name"`
	Description string `json:"description" mapstructure:"description"`
}

// Options 托管索引平台配置。
type Options struct {
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey 覆盖 LLAMA_API_KEY 环境变量，为空时按请求读取环境变量。
	APIKey string `json:"-" mapstructure:"api-key"`

	OrganizationID string         `json:"organization-id" mapstructure:"organization-id"`
	ProjectName    string         `json:"project-name" mapstructure:"project-name"`
	Indices        []IndexOptions `json:"indices" mapstructure:"indices"`

	CompositeRetrieverName string `json:"composite-retriever-name" mapstructure:"composite-retriever-name"`
	RerankTopN             int    `json:"rerank-top-n" mapstructure:"rerank-top-n"`

	// IDCacheTTL 项目/索引/检索器 ID 的缓存时间，0 表示进程内永不过期。
	IDCacheTTL time.Duration `json:"id-cache-ttl" mapstructure:"id-cache-ttl"`

	ConnectTimeout time.Duration `json:"connect-timeout" mapstructure:"connect-timeout"`
	ReadTimeout    time.Duration `json:"read-timeout" mapstructure:"read-timeout"`
	WriteTimeout   time.Duration `json:"write-timeout" mapstructure:"write-timeout"`
	PoolTimeout    time.Duration `json:"pool-timeout" mapstructure:"pool-timeout"`
	MaxConns       int           `json:"max-conns" mapstructure:"max-conns"`
}

// NewOptions 创建默认配置。
func NewOptions() *Options {
	return &Options{
		BaseURL:        "https://api.cloud.llamaindex.ai",
		OrganizationID: "8ff953cd-9c16-49f2-93a4-732206133586",
		ProjectName:    "The BEAST",
		Indices: []IndexOptions{
			{
				Name:        "Sharepoint Deal Pipeline",
				Description: "Deal-specific materials such as data rooms, pitch decks, and company diligence files.",
			},
			{
				Name:        "SharePoint Thematic Work",
				Description: "Market research, news, and sectoral analysis supporting deal context.",
			},
		},
		CompositeRetrieverName: "The Beast Composite Retriever",
		RerankTopN:             6,
		IDCacheTTL:             0,
		ConnectTimeout:         10 * time.Second,
		ReadTimeout:            120 * time.Second,
		WriteTimeout:           10 * time.Second,
		PoolTimeout:            10 * time.Second,
		MaxConns:               100,
	}
}

// AddFlags adds flags for the index platform to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "llamacloud."
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "Index platform API base URL.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "Index platform API key (defaults to $"+APIKeyEnv+").")
	fs.StringVar(&o.OrganizationID, p+"organization-id", o.OrganizationID, "Organization ID owning the project.")
	fs.StringVar(&o.ProjectName, p+"project-name", o.ProjectName, "Project holding the indices.")
	fs.StringVar(&o.CompositeRetrieverName, p+"composite-retriever-name", o.CompositeRetrieverName, "Name of the composite retriever to upsert.")
	fs.IntVar(&o.RerankTopN, p+"rerank-top-n", o.RerankTopN, "Number of nodes kept after composite reranking.")
	fs.DurationVar(&o.IDCacheTTL, p+"id-cache-ttl", o.IDCacheTTL, "How long resolved project, pipeline and retriever IDs are cached (0 = forever).")
	fs.DurationVar(&o.ConnectTimeout, p+"connect-timeout", o.ConnectTimeout, "Outbound connect timeout.")
	fs.DurationVar(&o.ReadTimeout, p+"read-timeout", o.ReadTimeout, "Outbound per-read timeout.")
	fs.DurationVar(&o.WriteTimeout, p+"write-timeout", o.WriteTimeout, "Outbound per-write timeout.")
	fs.DurationVar(&o.PoolTimeout, p+"pool-timeout", o.PoolTimeout, "Time to wait for a free outbound connection slot.")
	fs.IntVar(&o.MaxConns, p+"max-conns", o.MaxConns, "Maximum concurrent outbound connections.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	var errs []error
	if o.BaseURL == "" {
		errs = append(errs, fmt.Errorf("llamacloud.base-url is required"))
	}
	if o.ProjectName == "" {
		errs = append(errs, fmt.Errorf("llamacloud.project-name is required"))
	}
	if len(o.Indices) == 0 {
		errs = append(errs, fmt.Errorf("llamacloud.indices must name at least one index"))
	}
	for i, idx := range o.Indices {
		if idx.Name == "" {
			errs = append(errs, fmt.Errorf("llamacloud.indices[%d].name is required", i))
		}
	}
	if o.RerankTopN <= 0 {
		errs = append(errs, fmt.Errorf("llamacloud.rerank-top-n must be positive"))
	}
	for name, d := range map[string]time.Duration{
		"connect-timeout": o.ConnectTimeout,
		"read-timeout":    o.ReadTimeout,
		"write-timeout":   o.WriteTimeout,
		"pool-timeout":    o.PoolTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("llamacloud.%s must be positive", name))
		}
	}
	if o.MaxConns <= 0 {
		errs = append(errs, fmt.Errorf("llamacloud.max-conns must be positive"))
	}
	return errs
}

// Complete completes the options with defaults.
func (o *Options) Complete() error {
	if len(o.Indices) == 0 {
		o.Indices = NewOptions().Indices
	}
	return nil
}

// ResolveAPIKey returns the configured key, falling back on the environment.
func (o *Options) ResolveAPIKey() string {
	if o.APIKey != "" {
		return o.APIKey
	}
	return os.Getenv(APIKeyEnv)
}
