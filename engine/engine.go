package engine

import (
	"context"
	"strconv"
	"time"

	"github.com/aisgo/ais-modelcode/audit"
	"github.com/aisgo/ais-modelcode/logger"
	"github.com/aisgo/ais-modelcode/model"
	"github.com/aisgo/ais-modelcode/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

/* ========================================================================
 * Model Code Allocation Engine
 * ========================================================================
 * 组件（由底向上）:
 *   HierarchyCatalog     层级定义与结构解析（两层 / 三层）
 *   PreallocationEngine  创建编码分类时预生成 100 个 planned 槽位
 *   AvailabilityChecker  只读可用性查询（仅供提示）
 *   AllocationEngine     条件更新 / 唯一索引插入完成无冲突分配
 *   LifecycleManager     软删除与恢复
 *   BatchCoordinator     批量操作，逐条独立、汇总结果
 * 并发: 不使用应用锁，只依赖单行条件更新与数据库唯一索引
 * ======================================================================== */

// BlockSize 三层结构每个分类数字预分配的槽位数（00-99）
const BlockSize = 100

// Repos 引擎使用的仓储集合，共享同一 *gorm.DB，事务经 context 传递
type Repos struct {
	ProductTypes repository.Repository[model.ProductType]
	Models       repository.Repository[model.ModelClassification]
	CodeClasses  repository.Repository[model.CodeClassification]
	Codes        repository.Repository[model.CodeUsage]
}

// NewRepos 创建仓储集合
func NewRepos(db *gorm.DB) *Repos {
	return &Repos{
		ProductTypes: repository.NewRepository[model.ProductType](db),
		Models:       repository.NewRepository[model.ModelClassification](db),
		CodeClasses:  repository.NewRepository[model.CodeClassification](db),
		Codes:        repository.NewRepository[model.CodeUsage](db),
	}
}

// Migrate 建表与索引
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(model.All()...)
}

// recorder 审计发送，失败只记日志
type recorder struct {
	sink audit.Sink
	log  *logger.Logger
}

func newRecorder(sink audit.Sink, log *logger.Logger) recorder {
	if sink == nil {
		sink = audit.Nop
	}
	if log == nil {
		log = logger.NewNop()
	}
	return recorder{sink: sink, log: log}
}

// emit 必须在事务结束后调用
func (r recorder) emit(ctx context.Context, action audit.Action, entityType string, id int64, before, after any, err error) {
	entry := audit.NewEntry(ctx, action, entityType, idString(id)).
		WithValues(before, after).
		WithResult(err)
	if sinkErr := r.sink.Record(ctx, entry); sinkErr != nil {
		r.log.WithContext(ctx).Warn("audit record failed",
			zap.String("action", string(action)),
			zap.String("entity_type", entityType),
			zap.Error(sinkErr),
		)
	}
}

func idString(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

// operatorOr 取 context 中的操作人作为兜底
func operatorOr(ctx context.Context, v string) string {
	if v != "" {
		return v
	}
	return logger.OperatorFromContext(ctx)
}

func nowMilli() int64 {
	return time.Now().UnixMilli()
}
