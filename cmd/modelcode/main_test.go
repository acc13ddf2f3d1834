package main

import (
	"testing"

	"github.com/aisgo/ais-modelcode/conf"

	"go.uber.org/fx"
)

func TestGraphResolves(t *testing.T) {
	cfg, err := conf.Load(t.TempDir())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.Database.SQLite.Path = ""

	if err := fx.ValidateApp(options(cfg)...); err != nil {
		t.Fatalf("fx graph: %v", err)
	}
}
