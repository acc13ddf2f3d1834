package engine

import (
	"context"
	"strings"
	"time"

	"github.com/aisgo/ais-modelcode/audit"
	"github.com/aisgo/ais-modelcode/errors"
	"github.com/aisgo/ais-modelcode/logger"
	"github.com/aisgo/ais-modelcode/metrics"
	"github.com/aisgo/ais-modelcode/model"
	"github.com/aisgo/ais-modelcode/repository"
)

/* ========================================================================
 * AllocationEngine - 编码分配
 * ========================================================================
 * 三层: planned 槽位经单条条件更新翻转为 allocated
 *       UPDATE ... WHERE id = ? AND state = 'planned' AND deleted = 0
 *       影响 0 行即竞争失败，返回 AlreadyAllocated
 * 两层: 直接插入 allocated 行，唯一索引冲突返回 Conflict
 * 未指定编号时按最小 actual_number 选择，失败重选，最多 BlockSize 次
 * ======================================================================== */

// 分配路径（指标标签）
const (
	pathPinned    = "pinned"
	pathNext      = "next"
	pathExtension = "extension"
	pathManual    = "manual"
)

// Metadata 分配时附带的业务信息
type Metadata struct {
	ProductName   string
	Description   string
	OccupancyType model.OccupancyType
	CustomerID    string
	FactoryID     string
	Builder       string
	Requester     string
	CreationDate  *time.Time
}

// columns 转为更新列；requester/builder 缺省取当前操作人
func (m Metadata) columns(ctx context.Context) map[string]any {
	cols := map[string]any{
		"product_name":   strings.TrimSpace(m.ProductName),
		"description":    m.Description,
		"occupancy_type": m.OccupancyType,
		"customer_id":    m.CustomerID,
		"factory_id":     m.FactoryID,
		"builder":        operatorOr(ctx, m.Builder),
		"requester":      operatorOr(ctx, m.Requester),
	}
	if m.CreationDate != nil {
		cols["creation_date"] = *m.CreationDate
	} else {
		cols["creation_date"] = time.Now()
	}
	return cols
}

func (m Metadata) apply(ctx context.Context, row *model.CodeUsage) {
	row.ProductName = strings.TrimSpace(m.ProductName)
	row.Description = m.Description
	row.OccupancyType = m.OccupancyType
	row.CustomerID = m.CustomerID
	row.FactoryID = m.FactoryID
	row.Builder = operatorOr(ctx, m.Builder)
	row.Requester = operatorOr(ctx, m.Requester)
	row.CreationDate = m.CreationDate
	if row.CreationDate == nil {
		now := time.Now()
		row.CreationDate = &now
	}
}

// CreateRequest 三层结构创建编码
// ActualNumber 为空时分配该分类下最小的 planned 槽位
type CreateRequest struct {
	CodeKey
	Metadata
}

// ManualRequest 两层结构手工创建编码
type ManualRequest struct {
	ModelType    string
	ActualNumber string
	Extension    string
	Metadata
}

// AllocationEngine 分配引擎
type AllocationEngine struct {
	repos   *Repos
	catalog *HierarchyCatalog
	dict    DictionaryLookup
	rec     recorder
}

// NewAllocationEngine 创建分配引擎
func NewAllocationEngine(repos *Repos, catalog *HierarchyCatalog, dict DictionaryLookup, sink audit.Sink, log *logger.Logger) *AllocationEngine {
	return &AllocationEngine{repos: repos, catalog: catalog, dict: dict, rec: newRecorder(sink, log)}
}

// Allocate 将指定 planned 槽位翻转为 allocated
func (e *AllocationEngine) Allocate(ctx context.Context, slotID int64, meta Metadata) (*model.CodeUsage, error) {
	row, err := e.allocate(ctx, slotID, meta)
	metrics.AllocationsTotal.WithLabelValues(pathPinned, metrics.ResultLabel(err)).Inc()
	e.rec.emit(ctx, audit.ActionAllocate, audit.EntityCodeUsage, slotID, nil, row, err)
	return row, err
}

func (e *AllocationEngine) allocate(ctx context.Context, slotID int64, meta Metadata) (*model.CodeUsage, error) {
	if err := checkOccupancy(ctx, e.dict, meta.OccupancyType); err != nil {
		return nil, err
	}

	updates := meta.columns(ctx)
	updates["state"] = model.StateAllocated
	n, err := e.repos.Codes.UpdateWhere(ctx, updates, "id = ? AND state = ?", slotID, model.StatePlanned)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, e.explainLostSlot(ctx, slotID)
	}
	return e.repos.Codes.FindByID(ctx, slotID)
}

// explainLostSlot 条件更新落空时区分 NotFound / AlreadyAllocated / 已删除
func (e *AllocationEngine) explainLostSlot(ctx context.Context, slotID int64) error {
	row, err := e.repos.Codes.FindByID(ctx, slotID, repository.WithUnscoped())
	if err != nil {
		if errors.IsNotFound(err) {
			return errors.Newf(errors.ErrCodeNotFound, "code slot %d not found", slotID)
		}
		return err
	}
	if row.State == model.StateDeleted {
		return errors.Newf(errors.ErrCodeConflict, "code %s is deleted and reserved until restored", row.Model)
	}
	return errors.Newf(errors.ErrCodeAlreadyAllocated, "code %s is already allocated", row.Model)
}

// AllocateNext 分配编码分类下 actual_number 最小的 planned 槽位
// 竞争落败时重选下一个，最多 BlockSize 次；无空闲槽位返回 Conflict
func (e *AllocationEngine) AllocateNext(ctx context.Context, codeClassificationID int64, meta Metadata) (*model.CodeUsage, error) {
	row, err := e.allocateNext(ctx, codeClassificationID, meta)
	metrics.AllocationsTotal.WithLabelValues(pathNext, metrics.ResultLabel(err)).Inc()
	var id int64
	if row != nil {
		id = row.ID
	}
	e.rec.emit(ctx, audit.ActionAllocate, audit.EntityCodeUsage, id, nil, row, err)
	return row, err
}

func (e *AllocationEngine) allocateNext(ctx context.Context, codeClassificationID int64, meta Metadata) (*model.CodeUsage, error) {
	cc, err := e.repos.CodeClasses.FindByID(ctx, codeClassificationID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.Newf(errors.ErrCodeNotFound, "code classification %d not found", codeClassificationID)
		}
		return nil, err
	}

	for attempt := 0; attempt < BlockSize; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeCanceled, "allocation canceled", err)
		}
		slot, err := e.repos.Codes.FindOneWithOpts(ctx,
			"code_classification_id = ? AND state = ? AND extension = ''",
			[]repository.Option{repository.WithOrderBy("actual_number ASC")},
			cc.ID, model.StatePlanned)
		if err != nil {
			if errors.IsNotFound(err) {
				return nil, errors.Newf(errors.ErrCodeConflict, "no free code left in %s00-%s99", cc.Prefix(), cc.Prefix())
			}
			return nil, err
		}

		row, err := e.allocate(ctx, slot.ID, meta)
		if errors.IsAlreadyAllocated(err) {
			metrics.AllocationRetriesTotal.Inc()
			continue
		}
		return row, err
	}
	return nil, errors.Newf(errors.ErrCodeConflict, "no free code left in %s00-%s99 after %d attempts", cc.Prefix(), cc.Prefix(), BlockSize)
}

// Create 三层结构创建编码
//   - 无 actualNumber: 等同 AllocateNext
//   - 指定 actualNumber: 分配该槽位；槽位已删除时保留到恢复为止（Conflict）
//   - 带 extension: 在同号槽位下插入新的 allocated 行
func (e *AllocationEngine) Create(ctx context.Context, req CreateRequest) (*model.CodeUsage, error) {
	s, err := e.catalog.ResolveStructure(ctx, req.ModelType)
	if err != nil {
		return nil, err
	}
	if s.Kind != ThreeLayer {
		return nil, errors.Newf(errors.ErrCodeInvalidFormat, "model type %s is two-layer, use manual creation", req.ModelType)
	}

	cc, err := e.repos.CodeClasses.FindOne(ctx, "model_classification_id = ? AND code = ?",
		s.ModelClassification.ID, req.ClassificationNumber)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.Newf(errors.ErrCodeNotFound, "code classification %s-%s not found", req.ModelType, req.ClassificationNumber)
		}
		return nil, err
	}

	if req.ActualNumber == "" {
		if req.Extension != "" {
			return nil, errors.New(errors.ErrCodeInvalidFormat, "extension requires an actual number")
		}
		return e.AllocateNext(ctx, cc.ID, req.Metadata)
	}
	if err := validateKey(s, req.CodeKey); err != nil {
		return nil, err
	}

	if req.Extension != "" {
		return e.createExtension(ctx, s, cc, req)
	}

	slot, err := findActive(ctx, e.repos, req.CodeKey)
	if err != nil {
		return nil, err
	}
	if slot == nil {
		err := e.explainMissingSlot(ctx, req.CodeKey)
		metrics.AllocationsTotal.WithLabelValues(pathPinned, metrics.ResultLabel(err)).Inc()
		return nil, err
	}
	if slot.State != model.StatePlanned {
		err := errors.Newf(errors.ErrCodeAlreadyAllocated, "code %s is already allocated", slot.Model)
		metrics.AllocationsTotal.WithLabelValues(pathPinned, metrics.ResultLabel(err)).Inc()
		return nil, err
	}
	return e.Allocate(ctx, slot.ID, req.Metadata)
}

func (e *AllocationEngine) explainMissingSlot(ctx context.Context, key CodeKey) error {
	deleted, err := findDeleted(ctx, e.repos, key)
	if err != nil {
		return err
	}
	if deleted != nil {
		return errors.Newf(errors.ErrCodeConflict, "code %s is deleted and reserved until restored", key.Model())
	}
	return errors.Newf(errors.ErrCodeNotFound, "slot %s not found", key.Model())
}

func (e *AllocationEngine) createExtension(ctx context.Context, s *Structure, cc *model.CodeClassification, req CreateRequest) (*model.CodeUsage, error) {
	row, err := e.insert(ctx, s, cc.ID, req.CodeKey, req.Metadata, func(ctx context.Context) error {
		base := req.CodeKey
		base.Extension = ""
		slot, err := findActive(ctx, e.repos, base)
		if err != nil {
			return err
		}
		if slot == nil {
			return errors.Newf(errors.ErrCodeNotFound, "base code %s not found", base.Model())
		}
		return nil
	})
	metrics.AllocationsTotal.WithLabelValues(pathExtension, metrics.ResultLabel(err)).Inc()
	return row, err
}

// CreateManual 两层结构手工创建编码，唯一索引是唯一仲裁者
func (e *AllocationEngine) CreateManual(ctx context.Context, req ManualRequest) (*model.CodeUsage, error) {
	row, err := e.createManual(ctx, req)
	metrics.AllocationsTotal.WithLabelValues(pathManual, metrics.ResultLabel(err)).Inc()
	return row, err
}

func (e *AllocationEngine) createManual(ctx context.Context, req ManualRequest) (*model.CodeUsage, error) {
	s, err := e.catalog.ResolveStructure(ctx, req.ModelType)
	if err != nil {
		return nil, err
	}
	if s.Kind != TwoLayer {
		return nil, errors.Newf(errors.ErrCodeInvalidFormat, "model type %s uses code classifications, manual creation is not allowed", req.ModelType)
	}
	key := CodeKey{ModelType: req.ModelType, ActualNumber: req.ActualNumber, Extension: req.Extension}
	if err := validateKey(s, key); err != nil {
		return nil, err
	}
	return e.insert(ctx, s, 0, key, req.Metadata, nil)
}

// insert 插入 allocated 行，唯一冲突转为 Conflict
func (e *AllocationEngine) insert(ctx context.Context, s *Structure, codeClassificationID int64, key CodeKey, meta Metadata, precheck func(context.Context) error) (*model.CodeUsage, error) {
	if err := checkOccupancy(ctx, e.dict, meta.OccupancyType); err != nil {
		return nil, err
	}
	if precheck != nil {
		if err := precheck(ctx); err != nil {
			return nil, err
		}
	}

	row := &model.CodeUsage{
		ModelClassificationID:    s.ModelClassification.ID,
		CodeClassificationID:     codeClassificationID,
		Model:                    key.Model(),
		ModelType:                key.ModelType,
		CodeClassificationNumber: key.ClassificationNumber,
		ActualNumber:             key.ActualNumber,
		Extension:                key.Extension,
		State:                    model.StateAllocated,
	}
	meta.apply(ctx, row)

	err := e.repos.Codes.Create(ctx, row)
	if errors.IsConflict(err) {
		err = errors.Wrapf(errors.ErrCodeConflict, err, "code %s already exists", row.Model)
	}
	e.rec.emit(ctx, audit.ActionCreate, audit.EntityCodeUsage, row.ID, nil, row, err)
	if err != nil {
		return nil, err
	}
	return row, nil
}

// MetadataPatch 修改业务信息，nil 字段不修改；编码字段不可修改
type MetadataPatch struct {
	ProductName   *string
	Description   *string
	OccupancyType *model.OccupancyType
	CustomerID    *string
	FactoryID     *string
	Builder       *string
	Requester     *string
	CreationDate  *time.Time
}

func (p MetadataPatch) columns() map[string]any {
	cols := make(map[string]any, 8)
	setString := func(col string, v *string) {
		if v != nil {
			cols[col] = strings.TrimSpace(*v)
		}
	}
	setString("product_name", p.ProductName)
	setString("description", p.Description)
	setString("customer_id", p.CustomerID)
	setString("factory_id", p.FactoryID)
	setString("builder", p.Builder)
	setString("requester", p.Requester)
	if p.OccupancyType != nil {
		cols["occupancy_type"] = *p.OccupancyType
	}
	if p.CreationDate != nil {
		cols["creation_date"] = *p.CreationDate
	}
	return cols
}

// UpdateMetadata 修改已分配编码的业务信息
func (e *AllocationEngine) UpdateMetadata(ctx context.Context, id int64, patch MetadataPatch) (*model.CodeUsage, error) {
	if patch.OccupancyType != nil {
		if err := checkOccupancy(ctx, e.dict, *patch.OccupancyType); err != nil {
			return nil, err
		}
	}
	cols := patch.columns()
	if len(cols) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidArgument, "nothing to update")
	}

	before, err := e.repos.Codes.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	after, err := e.updateAllocated(ctx, before, cols)
	e.rec.emit(ctx, audit.ActionUpdate, audit.EntityCodeUsage, id, before, after, err)
	return after, err
}

// UpdateOccupancyType 修改占用类型
func (e *AllocationEngine) UpdateOccupancyType(ctx context.Context, id int64, occ model.OccupancyType) (*model.CodeUsage, error) {
	if occ == "" {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "occupancy type is required")
	}
	return e.UpdateMetadata(ctx, id, MetadataPatch{OccupancyType: &occ})
}

func (e *AllocationEngine) updateAllocated(ctx context.Context, row *model.CodeUsage, cols map[string]any) (*model.CodeUsage, error) {
	n, err := e.repos.Codes.UpdateWhere(ctx, cols, "id = ? AND state = ?", row.ID, model.StateAllocated)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidArgument, "code %s is %s, only allocated codes can be updated", row.Model, row.State)
	}
	return e.repos.Codes.FindByID(ctx, row.ID)
}
