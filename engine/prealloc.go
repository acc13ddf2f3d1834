package engine

import (
	"context"
	"strings"

	"github.com/aisgo/ais-modelcode/audit"
	"github.com/aisgo/ais-modelcode/errors"
	"github.com/aisgo/ais-modelcode/logger"
	"github.com/aisgo/ais-modelcode/metrics"
	"github.com/aisgo/ais-modelcode/model"
	"github.com/aisgo/ais-modelcode/validator"

	"go.uber.org/zap"
)

/* ========================================================================
 * PreallocationEngine - 预分配
 * ========================================================================
 * 三层结构: 创建编码分类 d 时，同一事务内生成 {type}-d00 .. {type}-d99
 * 共 100 个 planned 槽位；任一槽位冲突则整体回滚
 * 两层结构不预分配，编码由 AllocationEngine.CreateManual 按需创建
 * ======================================================================== */

// PreallocationEngine 预分配引擎
type PreallocationEngine struct {
	repos   *Repos
	catalog *HierarchyCatalog
	rec     recorder
	log     *logger.Logger
}

// NewPreallocationEngine 创建预分配引擎
func NewPreallocationEngine(repos *Repos, catalog *HierarchyCatalog, sink audit.Sink, log *logger.Logger) *PreallocationEngine {
	if log == nil {
		log = logger.NewNop()
	}
	return &PreallocationEngine{repos: repos, catalog: catalog, rec: newRecorder(sink, log), log: log}
}

// CodeClassificationInput 创建编码分类
// ModelClassificationID 与 ModelType 二选一，ID 优先
type CodeClassificationInput struct {
	ModelClassificationID int64
	ModelType             string
	Code                  string
	Name                  string
}

// CreateCodeClassification 创建编码分类并预分配槽位
func (p *PreallocationEngine) CreateCodeClassification(ctx context.Context, in CodeClassificationInput) (*model.CodeClassification, error) {
	if !validator.IsClassDigit(in.Code) {
		return nil, errors.Newf(errors.ErrCodeInvalidFormat, "classification code %q must be a single digit 0-9", in.Code)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, errors.New(errors.ErrCodeInvalidArgument, "classification name is required")
	}

	mc, err := p.resolveModel(ctx, in)
	if err != nil {
		return nil, err
	}
	if !mc.HasCodeClassification {
		return nil, errors.Newf(errors.ErrCodeInvalidFormat, "model type %s is two-layer and has no code classifications", mc.Type)
	}

	cc := &model.CodeClassification{
		ModelClassificationID: mc.ID,
		ModelType:             mc.Type,
		Code:                  in.Code,
		Name:                  name,
	}
	var slots []*model.CodeUsage
	err = p.repos.CodeClasses.Execute(ctx, func(txCtx context.Context) error {
		if err := p.repos.CodeClasses.Create(txCtx, cc); err != nil {
			if errors.IsConflict(err) {
				return errors.Wrapf(errors.ErrCodeConflict, err, "classification %s already exists", cc.Prefix())
			}
			return err
		}
		var err error
		slots, err = p.OnCodeClassificationCreated(txCtx, mc, cc)
		return err
	})

	p.rec.emit(ctx, audit.ActionCreate, audit.EntityCodeClassification, cc.ID, nil, cc, err)
	if err != nil {
		return nil, err
	}
	metrics.PreallocatedSlotsTotal.Add(float64(len(slots)))
	p.rec.emit(ctx, audit.ActionPreallocate, audit.EntityCodeClassification, cc.ID, nil,
		map[string]any{"prefix": cc.Prefix(), "slots": len(slots)}, nil)
	p.log.WithContext(ctx).Info("code classification preallocated",
		zap.String("prefix", cc.Prefix()),
		zap.Int("slots", len(slots)),
	)
	return cc, nil
}

// OnCodeClassificationCreated 为编码分类生成 100 个 planned 槽位
// 调用方未开启事务时自行开启；任一行冲突返回 Conflict，不留下部分槽位
func (p *PreallocationEngine) OnCodeClassificationCreated(ctx context.Context, mc *model.ModelClassification, cc *model.CodeClassification) ([]*model.CodeUsage, error) {
	if !mc.HasCodeClassification {
		return nil, errors.Newf(errors.ErrCodeInvalidFormat, "model type %s does not pre-allocate", mc.Type)
	}

	slots := make([]*model.CodeUsage, 0, BlockSize)
	for i := 0; i < BlockSize; i++ {
		number := model.SlotNumber(i)
		slots = append(slots, &model.CodeUsage{
			ModelClassificationID:    mc.ID,
			CodeClassificationID:     cc.ID,
			Model:                    model.FormatModel(mc.Type, cc.Code, number, ""),
			ModelType:                mc.Type,
			CodeClassificationNumber: cc.Code,
			ActualNumber:             number,
			State:                    model.StatePlanned,
		})
	}

	err := p.repos.Codes.Execute(ctx, func(txCtx context.Context) error {
		if err := p.repos.Codes.CreateBatch(txCtx, slots, BlockSize); err != nil {
			if errors.IsConflict(err) {
				return errors.Wrapf(errors.ErrCodeConflict, err, "block %s00-%s99 collides with existing codes", cc.Prefix(), cc.Prefix())
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return slots, nil
}

func (p *PreallocationEngine) resolveModel(ctx context.Context, in CodeClassificationInput) (*model.ModelClassification, error) {
	if in.ModelClassificationID != 0 {
		mc, err := p.repos.Models.FindByID(ctx, in.ModelClassificationID)
		if errors.IsNotFound(err) {
			return nil, errors.Newf(errors.ErrCodeNotFound, "model classification %d not found", in.ModelClassificationID)
		}
		return mc, err
	}
	s, err := p.catalog.ResolveStructure(ctx, in.ModelType)
	if err != nil {
		return nil, err
	}
	mc := s.ModelClassification
	return &mc, nil
}
