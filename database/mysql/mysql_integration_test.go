//go:build integration

package mysql

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/aisgo/ais-modelcode/database"
	"github.com/aisgo/ais-modelcode/logger"
	"github.com/aisgo/ais-modelcode/model"
	"github.com/aisgo/ais-modelcode/shutdown"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
)

// startMySQL 启动 MySQL 容器并转换为分项配置，覆盖 BuildDSN 的拼接路径
func startMySQL(t *testing.T) Config {
	t.Helper()
	if testing.Short() {
		t.Skip("skip integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := mysql.Run(ctx,
		"mysql:8.0",
		mysql.WithDatabase("modelcode"),
		mysql.WithUsername("modelcode"),
		mysql.WithPassword("modelcode"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	parsed, err := mysqldriver.ParseDSN(dsn)
	require.NoError(t, err)

	host, portStr, err := net.SplitHostPort(parsed.Addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	cfg := Config{
		Host:     host,
		Port:     port,
		User:     parsed.User,
		Password: parsed.Passwd,
		DBName:   parsed.DBName,
	}
	cfg.MaxOpenConns = 4
	cfg.ConnMaxLifetime = time.Minute
	return cfg
}

func TestMigrateAndUniqueKeysIntegration(t *testing.T) {
	sm := shutdown.NewManager(shutdown.ManagerParams{})
	db, err := NewDB(Params{Config: startMySQL(t), Logger: logger.NewNop(), Shutdown: sm})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(model.All()...))

	require.NoError(t, db.Create(&model.ProductType{Code: "PCB", Name: "印制板"}).Error)
	err = db.Create(&model.ProductType{Code: "PCB", Name: "重复"}).Error
	require.True(t, database.IsDuplicateKey(err), "expected duplicate key, got %v", err)

	// 软删除后同编码可再次创建：唯一索引包含 deleted 列
	require.NoError(t, db.Where("code = ?", "PCB").Delete(&model.ProductType{}).Error)
	require.NoError(t, db.Create(&model.ProductType{Code: "PCB", Name: "重建"}).Error)

	// 连接池关闭挂在关停管理器上
	require.NoError(t, sm.Shutdown(context.Background()))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.Error(t, sqlDB.Ping())
}
