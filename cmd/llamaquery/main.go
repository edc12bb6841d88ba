// Package main is the entry point for The Beast API query service.
package main

import (
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/overlordausritter/beastgpt/cmd/llamaquery/app"
)

func main() {
	// 按容器 CPU 配额设置 GOMAXPROCS
	_, _ = maxprocs.Set()
	app.NewApp().Run()
}
