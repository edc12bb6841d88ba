// Package app provides the query server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/overlordausritter/beastgpt/cmd/llamaquery/app/options"
	"github.com/overlordausritter/beastgpt/internal/llamaquery"
	"github.com/overlordausritter/beastgpt/pkg/infra/app"
)

const (
	// envPrefix prefixes environment overrides of config keys, e.g. LLAMAQUERY_HTTP_ADDR.
	envPrefix = "LLAMAQUERY"

	// commandDesc is the description of the command.
	commandDesc = `The Beast API

A query service that answers natural-language questions from documents held in
managed LlamaCloud indices.

This server provides:
  - POST /llamaquery with single, composite, router and router-engine strategies
  - fixed-backoff retry of transient upstream failures
  - optional refine synthesis, context truncation and NDJSON streaming

The index key is read from $LLAMA_API_KEY and the LLM key from $OPENAI_API_KEY.`
)

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	return app.NewApp(
		app.WithName(llamaquery.Name),
		app.WithShortDescription(llamaquery.Title+" query service"),
		app.WithDescription(commandDesc),
		app.WithEnvPrefix(envPrefix),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		// 收到信号后优雅退出
		return server.Run(ctx)
	}
}
