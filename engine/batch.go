package engine

import (
	"context"
	"fmt"

	"github.com/aisgo/ais-modelcode/errors"
	"github.com/aisgo/ais-modelcode/logger"
	"github.com/aisgo/ais-modelcode/metrics"
	"github.com/aisgo/ais-modelcode/model"

	"go.uber.org/zap"
)

/* ========================================================================
 * BatchCoordinator - 批量操作
 * ========================================================================
 * 每条独立原子，不加全局锁；失败不影响其他条目
 * 结果按行号汇总，供导入界面标红失败行
 * ======================================================================== */

// MaxBatchItems 单次批量条数上限
const MaxBatchItems = 1000

// 批量操作名（指标与报告）
const (
	OpCreateClassifications = "create_classifications"
	OpImportCodes           = "import_codes"
	OpValidateImport        = "validate_import"
	OpUpdateOccupancy       = "update_occupancy_types"
	OpSoftDelete            = "soft_delete_codes"
	OpRestore               = "restore_codes"
)

// ItemResult 单条结果
type ItemResult struct {
	Index   int    `json:"index"`
	Success bool   `json:"success"`
	ID      int64  `json:"id,string,omitempty"`
	Model   string `json:"model,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// BatchReport 批量结果汇总
type BatchReport struct {
	Operation    string       `json:"operation"`
	DryRun       bool         `json:"dryRun,omitempty"`
	Total        int          `json:"total"`
	SuccessCount int          `json:"succeeded"`
	FailureCount int          `json:"failed"`
	Items        []ItemResult `json:"items"`
}

func newReport(op string, total int) *BatchReport {
	return &BatchReport{Operation: op, Total: total, Items: make([]ItemResult, 0, total)}
}

func (r *BatchReport) Succeeded() int { return r.SuccessCount }
func (r *BatchReport) Failed() int    { return r.FailureCount }

// Err 存在失败条目时返回 PartialBatchFailure
func (r *BatchReport) Err() error {
	if r.FailureCount == 0 {
		return nil
	}
	return errors.Newf(errors.ErrCodePartialBatchFailure, "%s: %d of %d items failed", r.Operation, r.FailureCount, r.Total)
}

func (r *BatchReport) record(index int, id int64, code string, err error) {
	item := ItemResult{Index: index, ID: id, Model: code, Success: err == nil, Message: "ok"}
	if err != nil {
		item.Code = errors.Code(err).String()
		item.Message = errors.Message(err)
		r.FailureCount++
	} else {
		r.SuccessCount++
	}
	r.Items = append(r.Items, item)
	if !r.DryRun {
		metrics.BatchItemsTotal.WithLabelValues(r.Operation, metrics.ResultLabel(err)).Inc()
	}
}

// ImportRow 导入行
type ImportRow struct {
	CodeKey
	Metadata
}

// OccupancyUpdate 占用类型修改
type OccupancyUpdate struct {
	ID            int64
	OccupancyType model.OccupancyType
}

// BatchCoordinator 批量协调
type BatchCoordinator struct {
	catalog      *HierarchyCatalog
	prealloc     *PreallocationEngine
	availability *AvailabilityChecker
	allocation   *AllocationEngine
	lifecycle    *LifecycleManager
	dict         DictionaryLookup
	log          *logger.Logger
}

// NewBatchCoordinator 创建批量协调
func NewBatchCoordinator(
	catalog *HierarchyCatalog,
	prealloc *PreallocationEngine,
	availability *AvailabilityChecker,
	allocation *AllocationEngine,
	lifecycle *LifecycleManager,
	dict DictionaryLookup,
	log *logger.Logger,
) *BatchCoordinator {
	if log == nil {
		log = logger.NewNop()
	}
	return &BatchCoordinator{
		catalog:      catalog,
		prealloc:     prealloc,
		availability: availability,
		allocation:   allocation,
		lifecycle:    lifecycle,
		dict:         dict,
		log:          log,
	}
}

func checkBatchSize(n int) error {
	if n == 0 {
		return errors.New(errors.ErrCodeInvalidArgument, "batch is empty")
	}
	if n > MaxBatchItems {
		return errors.Newf(errors.ErrCodeInvalidArgument, "batch of %d items exceeds the limit of %d", n, MaxBatchItems)
	}
	return nil
}

// CreateClassifications 批量创建编码分类，每个分类独立预分配
func (b *BatchCoordinator) CreateClassifications(ctx context.Context, items []CodeClassificationInput) (*BatchReport, error) {
	if err := checkBatchSize(len(items)); err != nil {
		return nil, err
	}
	report := newReport(OpCreateClassifications, len(items))
	for i, in := range items {
		if err := ctx.Err(); err != nil {
			report.record(i, 0, "", errors.Wrap(errors.ErrCodeCanceled, "batch canceled", err))
			continue
		}
		cc, err := b.prealloc.CreateCodeClassification(ctx, in)
		if err != nil {
			report.record(i, 0, "", err)
			continue
		}
		report.record(i, cc.ID, cc.Prefix(), nil)
	}
	b.logReport(ctx, report)
	return report, nil
}

// ValidateImport 导入预检：格式、结构、字典、文件内重复与可用性，不写库
func (b *BatchCoordinator) ValidateImport(ctx context.Context, rows []ImportRow) (*BatchReport, error) {
	if err := checkBatchSize(len(rows)); err != nil {
		return nil, err
	}
	report := newReport(OpValidateImport, len(rows))
	report.DryRun = true
	seen := make(map[string]int, len(rows))
	for i, row := range rows {
		report.record(i, 0, row.Model(), b.validateRow(ctx, i, row, seen))
	}
	return report, nil
}

// ImportCodeUsages 导入编码；写入前重新校验，写入本身仍由条件更新/唯一索引仲裁
// 与已有活跃编码重复的行统一报告为 Conflict
func (b *BatchCoordinator) ImportCodeUsages(ctx context.Context, rows []ImportRow) (*BatchReport, error) {
	if err := checkBatchSize(len(rows)); err != nil {
		return nil, err
	}
	report := newReport(OpImportCodes, len(rows))
	seen := make(map[string]int, len(rows))
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			report.record(i, 0, row.Model(), errors.Wrap(errors.ErrCodeCanceled, "batch canceled", err))
			continue
		}
		if err := b.validateRow(ctx, i, row, seen); err != nil {
			report.record(i, 0, row.Model(), err)
			continue
		}
		created, err := b.importRow(ctx, row)
		if err != nil {
			report.record(i, 0, row.Model(), err)
			continue
		}
		report.record(i, created.ID, created.Model, nil)
	}
	b.logReport(ctx, report)
	return report, nil
}

func (b *BatchCoordinator) importRow(ctx context.Context, row ImportRow) (*model.CodeUsage, error) {
	s, err := b.catalog.ResolveStructure(ctx, row.ModelType)
	if err != nil {
		return nil, err
	}

	var created *model.CodeUsage
	if s.Kind == ThreeLayer {
		created, err = b.allocation.Create(ctx, CreateRequest{CodeKey: row.CodeKey, Metadata: row.Metadata})
	} else {
		created, err = b.allocation.CreateManual(ctx, ManualRequest{
			ModelType:    row.ModelType,
			ActualNumber: row.ActualNumber,
			Extension:    row.Extension,
			Metadata:     row.Metadata,
		})
	}
	if errors.IsAlreadyAllocated(err) {
		err = errors.Wrapf(errors.ErrCodeConflict, err, "code %s already exists", row.Model())
	}
	return created, err
}

// validateRow 单行校验；seen 记录文件内已出现的编码 -> 行号
func (b *BatchCoordinator) validateRow(ctx context.Context, index int, row ImportRow, seen map[string]int) error {
	if row.ActualNumber == "" {
		return errors.New(errors.ErrCodeInvalidFormat, "actual number is required for import")
	}
	if err := checkOccupancy(ctx, b.dict, row.OccupancyType); err != nil {
		return err
	}

	code := row.Model()
	if first, dup := seen[code]; dup {
		return errors.Newf(errors.ErrCodeConflict, "code %s duplicates row %d", code, first+1)
	}
	seen[code] = index

	res, err := b.availability.CheckAvailability(ctx, row.CodeKey)
	if err != nil {
		return err
	}
	switch res.Status {
	case Taken:
		return errors.New(errors.ErrCodeConflict, res.Reason)
	case Invalid:
		return errors.New(errors.ErrCodeInvalidFormat, res.Reason)
	}
	return nil
}

// UpdateOccupancyTypes 批量修改占用类型
func (b *BatchCoordinator) UpdateOccupancyTypes(ctx context.Context, items []OccupancyUpdate) (*BatchReport, error) {
	if err := checkBatchSize(len(items)); err != nil {
		return nil, err
	}
	report := newReport(OpUpdateOccupancy, len(items))
	for i, it := range items {
		row, err := b.allocation.UpdateOccupancyType(ctx, it.ID, it.OccupancyType)
		if err != nil {
			report.record(i, it.ID, "", err)
			continue
		}
		report.record(i, row.ID, row.Model, nil)
	}
	b.logReport(ctx, report)
	return report, nil
}

// SoftDeleteCodes 批量软删除
func (b *BatchCoordinator) SoftDeleteCodes(ctx context.Context, ids []int64, reason string) (*BatchReport, error) {
	if err := checkBatchSize(len(ids)); err != nil {
		return nil, err
	}
	report := newReport(OpSoftDelete, len(ids))
	for i, id := range ids {
		report.record(i, id, "", b.lifecycle.SoftDelete(ctx, id, reason))
	}
	b.logReport(ctx, report)
	return report, nil
}

// RestoreCodes 批量恢复
func (b *BatchCoordinator) RestoreCodes(ctx context.Context, ids []int64) (*BatchReport, error) {
	if err := checkBatchSize(len(ids)); err != nil {
		return nil, err
	}
	report := newReport(OpRestore, len(ids))
	for i, id := range ids {
		row, err := b.lifecycle.Restore(ctx, id)
		if err != nil {
			report.record(i, id, "", err)
			continue
		}
		report.record(i, row.ID, row.Model, nil)
	}
	b.logReport(ctx, report)
	return report, nil
}

func (b *BatchCoordinator) logReport(ctx context.Context, r *BatchReport) {
	b.log.WithContext(ctx).Info("batch finished",
		zap.String("operation", r.Operation),
		zap.Int("total", r.Total),
		zap.Int("succeeded", r.SuccessCount),
		zap.Int("failed", r.FailureCount),
	)
}

// String 便于日志输出
func (r *BatchReport) String() string {
	return fmt.Sprintf("%s: %d/%d succeeded", r.Operation, r.SuccessCount, r.Total)
}
