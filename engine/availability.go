package engine

import (
	"context"

	"github.com/aisgo/ais-modelcode/errors"
	"github.com/aisgo/ais-modelcode/model"
	"github.com/aisgo/ais-modelcode/repository"
	"github.com/aisgo/ais-modelcode/validator"
)

/* ========================================================================
 * AvailabilityChecker - 可用性查询
 * ========================================================================
 * 只读、无锁，结果仅供提示；真正的保证在 AllocationEngine 的
 * 条件更新与唯一索引插入
 * ======================================================================== */

// AvailabilityStatus 可用性
type AvailabilityStatus string

const (
	Available AvailabilityStatus = "available"
	Taken     AvailabilityStatus = "taken"
	Invalid   AvailabilityStatus = "invalid"
)

// CodeKey 编码元组
type CodeKey struct {
	ModelType            string `json:"modelType"`
	ClassificationNumber string `json:"classificationNumber,omitempty"`
	ActualNumber         string `json:"actualNumber"`
	Extension            string `json:"extension,omitempty"`
}

// Model 完整编码字符串
func (k CodeKey) Model() string {
	return model.FormatModel(k.ModelType, k.ClassificationNumber, k.ActualNumber, k.Extension)
}

// Availability 查询结果
type Availability struct {
	Status AvailabilityStatus `json:"status"`
	Model  string             `json:"model"`
	Reason string             `json:"reason,omitempty"`
	// SlotID 三层结构可分配的 planned 槽位
	SlotID int64 `json:"slotId,string,omitempty"`
}

// AvailabilityChecker 可用性查询
type AvailabilityChecker struct {
	repos   *Repos
	catalog *HierarchyCatalog
}

// NewAvailabilityChecker 创建可用性查询
func NewAvailabilityChecker(repos *Repos, catalog *HierarchyCatalog) *AvailabilityChecker {
	return &AvailabilityChecker{repos: repos, catalog: catalog}
}

// CheckAvailability 查询编码是否可用
// 输入与型号结构不符返回 Invalid（不是 error）；未知型号返回 NotFound
func (a *AvailabilityChecker) CheckAvailability(ctx context.Context, key CodeKey) (*Availability, error) {
	s, err := a.catalog.ResolveStructure(ctx, key.ModelType)
	if err != nil {
		if errors.Code(err) == errors.ErrCodeInvalidFormat {
			return &Availability{Status: Invalid, Model: key.Model(), Reason: errors.Message(err)}, nil
		}
		return nil, err
	}
	return a.check(ctx, s, key)
}

func (a *AvailabilityChecker) check(ctx context.Context, s *Structure, key CodeKey) (*Availability, error) {
	res := &Availability{Model: key.Model()}
	if err := validateKey(s, key); err != nil {
		res.Status, res.Reason = Invalid, errors.Message(err)
		return res, nil
	}

	if s.Kind == ThreeLayer {
		exists, err := a.repos.CodeClasses.Exists(ctx, "model_classification_id = ? AND code = ?",
			s.ModelClassification.ID, key.ClassificationNumber)
		if err != nil {
			return nil, err
		}
		if !exists {
			res.Status, res.Reason = Invalid, "code classification "+key.ModelType+"-"+key.ClassificationNumber+" does not exist"
			return res, nil
		}
	}

	active, err := findActive(ctx, a.repos, key)
	if err != nil {
		return nil, err
	}
	switch {
	case active != nil && active.State == model.StatePlanned:
		res.Status, res.SlotID = Available, active.ID
	case active != nil:
		res.Status, res.Reason = Taken, "code "+res.Model+" is already allocated"
	case s.Kind == ThreeLayer && key.Extension == "":
		// 三层槽位被删除后保留到恢复为止
		deleted, err := findDeleted(ctx, a.repos, key)
		if err != nil {
			return nil, err
		}
		if deleted != nil {
			res.Status, res.Reason = Taken, "code "+res.Model+" is deleted and reserved until restored"
		} else {
			res.Status, res.Reason = Invalid, "slot "+res.Model+" does not exist"
		}
	default:
		res.Status = Available
	}
	return res, nil
}

// validateKey 按结构校验元组格式
func validateKey(s *Structure, key CodeKey) error {
	if key.Extension != "" && !validator.IsExtension(key.Extension) {
		return errors.Newf(errors.ErrCodeInvalidFormat, "extension %q must be 1-10 letters or digits", key.Extension)
	}
	if s.Kind == TwoLayer {
		if key.ClassificationNumber != "" {
			return errors.Newf(errors.ErrCodeInvalidFormat, "model type %s is two-layer and takes no classification number", key.ModelType)
		}
		if !validator.IsActualNumber(key.ActualNumber) {
			return errors.Newf(errors.ErrCodeInvalidFormat, "actual number %q must be 1-6 digits", key.ActualNumber)
		}
		return nil
	}

	if !validator.IsClassDigit(key.ClassificationNumber) {
		return errors.Newf(errors.ErrCodeInvalidFormat, "model type %s requires a single-digit classification number", key.ModelType)
	}
	if len(key.ActualNumber) != 2 || !validator.IsActualNumber(key.ActualNumber) {
		return errors.Newf(errors.ErrCodeInvalidFormat, "actual number %q must be two digits 00-99", key.ActualNumber)
	}
	return nil
}

const tupleQuery = "model_type = ? AND code_classification_number = ? AND actual_number = ? AND extension = ?"

func tupleArgs(key CodeKey) []any {
	return []any{key.ModelType, key.ClassificationNumber, key.ActualNumber, key.Extension}
}

// findActive 未删除的同元组记录，不存在返回 nil
func findActive(ctx context.Context, repos *Repos, key CodeKey) (*model.CodeUsage, error) {
	row, err := repos.Codes.FindOne(ctx, tupleQuery, tupleArgs(key)...)
	if errors.IsNotFound(err) {
		return nil, nil
	}
	return row, err
}

// findDeleted 最近一次删除的同元组记录，不存在返回 nil
func findDeleted(ctx context.Context, repos *Repos, key CodeKey) (*model.CodeUsage, error) {
	rows, err := repos.Codes.FindByQueryWithOpts(ctx, tupleQuery+" AND deleted <> 0",
		[]repository.Option{repository.WithUnscoped(), repository.WithOrderBy("deleted DESC"), repository.WithLimit(1)},
		tupleArgs(key)...)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}
