package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/aisgo/ais-modelcode/api"
	"github.com/aisgo/ais-modelcode/audit"
	"github.com/aisgo/ais-modelcode/cache"
	"github.com/aisgo/ais-modelcode/conf"
	"github.com/aisgo/ais-modelcode/database/mysql"
	"github.com/aisgo/ais-modelcode/database/postgres"
	"github.com/aisgo/ais-modelcode/database/sqlite"
	"github.com/aisgo/ais-modelcode/engine"
	"github.com/aisgo/ais-modelcode/logger"
	"github.com/aisgo/ais-modelcode/middleware"
	"github.com/aisgo/ais-modelcode/mq"
	"github.com/aisgo/ais-modelcode/shutdown"
	httptransport "github.com/aisgo/ais-modelcode/transport/http"
	"github.com/aisgo/ais-modelcode/utils/id-generator/snowflake"

	// 注册 MQ 生产者实现
	_ "github.com/aisgo/ais-modelcode/mq/kafka"
	_ "github.com/aisgo/ais-modelcode/mq/rocketmq"

	"go.uber.org/fx"
)

func main() {
	configDir := flag.String("config", "configs", "directory containing config.yaml")
	flag.Parse()

	cfg, err := conf.Load(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := snowflake.Configure(cfg.Snowflake.NodeID); err != nil {
		fmt.Fprintf(os.Stderr, "snowflake: %v\n", err)
		os.Exit(1)
	}

	fx.New(options(cfg)...).Run()
}

func options(cfg *conf.AppConfig) []fx.Option {
	opts := []fx.Option{
		conf.Module(cfg),
		fx.WithLogger(logger.FxLogger),
		logger.Module,
		shutdown.Module,
		databaseModule(cfg.Database.Driver),
		mq.Module,
		audit.Module,
		engine.Module,
		middleware.Module,
		api.Module,
		httptransport.Module,
	}
	if cfg.Redis.Enabled {
		opts = append(opts, cache.Module)
	}
	return opts
}

func databaseModule(driver string) fx.Option {
	switch driver {
	case conf.DriverMySQL:
		return mysql.Module
	case conf.DriverPostgres:
		return postgres.Module
	default:
		return sqlite.Module
	}
}
