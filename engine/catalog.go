package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/aisgo/ais-modelcode/audit"
	"github.com/aisgo/ais-modelcode/errors"
	"github.com/aisgo/ais-modelcode/logger"
	"github.com/aisgo/ais-modelcode/model"
	"github.com/aisgo/ais-modelcode/repository"
	"github.com/aisgo/ais-modelcode/validator"

	"gorm.io/datatypes"
)

/* ========================================================================
 * HierarchyCatalog - 层级目录
 * ========================================================================
 * 职责: 产品类型 / 型号分类 / 编码分类的定义维护与结构解析
 * 约束:
 *   - 型号分类下已有编码或编码分类时，type 与 hasCodeClassification 不可修改
 *   - 被引用的产品类型不可删除
 * ======================================================================== */

// StructureKind 型号结构
type StructureKind int

const (
	TwoLayer   StructureKind = 2
	ThreeLayer StructureKind = 3
)

func (k StructureKind) String() string {
	switch k {
	case TwoLayer:
		return "two_layer"
	case ThreeLayer:
		return "three_layer"
	default:
		return fmt.Sprintf("StructureKind(%d)", int(k))
	}
}

func (k StructureKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *StructureKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "two_layer":
		*k = TwoLayer
	case "three_layer":
		*k = ThreeLayer
	default:
		return fmt.Errorf("unknown structure kind %q", b)
	}
	return nil
}

// Structure 结构解析结果
type Structure struct {
	Kind                StructureKind             `json:"kind"`
	ModelClassification model.ModelClassification `json:"modelClassification"`
	ProductType         model.ProductType         `json:"productType"`
}

// HierarchyCatalog 层级目录
type HierarchyCatalog struct {
	repos *Repos
	cache StructureCache
	rec   recorder
}

// NewHierarchyCatalog 创建层级目录
func NewHierarchyCatalog(repos *Repos, cache StructureCache, sink audit.Sink, log *logger.Logger) *HierarchyCatalog {
	if cache == nil {
		cache = NopStructureCache
	}
	return &HierarchyCatalog{repos: repos, cache: cache, rec: newRecorder(sink, log)}
}

/* ========================================================================
 * 校验与结构解析
 * ======================================================================== */

// ValidateModelTypeFormat 型号类型: 2-20 位大写字母
func (c *HierarchyCatalog) ValidateModelTypeFormat(modelType string) error {
	if !validator.IsModelType(modelType) {
		return errors.Newf(errors.ErrCodeInvalidFormat, "model type %q must be 2-20 uppercase letters", modelType)
	}
	return nil
}

// ValidateProductCode 产品类型编码: 2-20 位大写字母或数字
func (c *HierarchyCatalog) ValidateProductCode(code string) error {
	if !validator.IsProductCode(code) {
		return errors.Newf(errors.ErrCodeInvalidFormat, "product code %q must be 2-20 uppercase letters or digits", code)
	}
	return nil
}

// ResolveStructure 解析型号结构，未知型号返回 NotFound
// 事务内不读写缓存，避免缓存未提交的数据
func (c *HierarchyCatalog) ResolveStructure(ctx context.Context, modelType string) (*Structure, error) {
	if err := c.ValidateModelTypeFormat(modelType); err != nil {
		return nil, err
	}

	_, inTx := repository.TxFromContext(ctx)
	if !inTx {
		if s, ok := c.cache.Get(ctx, modelType); ok {
			return s, nil
		}
	}

	mc, err := c.repos.Models.FindOne(ctx, "type = ?", modelType)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.Newf(errors.ErrCodeNotFound, "model type %s not found", modelType)
		}
		return nil, err
	}
	pt, err := c.repos.ProductTypes.FindByID(ctx, mc.ProductTypeID)
	if err != nil {
		return nil, err
	}

	s := &Structure{Kind: TwoLayer, ModelClassification: *mc, ProductType: *pt}
	if mc.HasCodeClassification {
		s.Kind = ThreeLayer
	}
	if !inTx {
		c.cache.Set(ctx, s)
	}
	return s, nil
}

/* ========================================================================
 * 产品类型
 * ======================================================================== */

// ProductTypeInput 创建产品类型
type ProductTypeInput struct {
	Code        string
	Name        string
	Description string
}

// CreateProductType 创建产品类型，编码重复返回 Conflict
func (c *HierarchyCatalog) CreateProductType(ctx context.Context, in ProductTypeInput) (*model.ProductType, error) {
	if err := c.ValidateProductCode(in.Code); err != nil {
		return nil, err
	}
	pt := &model.ProductType{Code: in.Code, Name: strings.TrimSpace(in.Name), Description: in.Description}
	err := c.repos.ProductTypes.Create(ctx, pt)
	if errors.IsConflict(err) {
		err = errors.Wrapf(errors.ErrCodeConflict, err, "product type %s already exists", in.Code)
	}
	c.rec.emit(ctx, audit.ActionCreate, audit.EntityProductType, pt.ID, nil, pt, err)
	if err != nil {
		return nil, err
	}
	return pt, nil
}

// ListProductTypes 全部产品类型
func (c *HierarchyCatalog) ListProductTypes(ctx context.Context) ([]*model.ProductType, error) {
	return c.repos.ProductTypes.FindByQueryWithOpts(ctx, "", []repository.Option{repository.WithOrderBy("code ASC")})
}

// DeleteProductType 删除产品类型，存在型号分类引用时返回 Conflict
func (c *HierarchyCatalog) DeleteProductType(ctx context.Context, id int64) error {
	pt, err := c.repos.ProductTypes.FindByID(ctx, id)
	if err != nil {
		return err
	}
	referenced, err := c.repos.Models.Exists(ctx, "product_type_id = ?", id)
	if err == nil && referenced {
		err = errors.Newf(errors.ErrCodeConflict, "product type %s is referenced by model classifications", pt.Code)
	}
	if err == nil {
		err = c.repos.ProductTypes.Delete(ctx, id)
	}
	c.rec.emit(ctx, audit.ActionDelete, audit.EntityProductType, id, pt, nil, err)
	return err
}

/* ========================================================================
 * 型号分类
 * ======================================================================== */

// ModelClassificationInput 创建型号分类
type ModelClassificationInput struct {
	ProductTypeID         int64
	Type                  string
	Descriptions          []string
	HasCodeClassification bool
}

// ModelClassificationPatch 修改型号分类，nil 字段不修改
type ModelClassificationPatch struct {
	Type                  *string
	Descriptions          []string
	HasCodeClassification *bool
}

// ModelFilter 型号分类查询条件
type ModelFilter struct {
	ProductTypeID int64
	Keyword       string
	Page          int
	PageSize      int
}

// CreateModelClassification 创建型号分类
func (c *HierarchyCatalog) CreateModelClassification(ctx context.Context, in ModelClassificationInput) (*model.ModelClassification, error) {
	if err := c.ValidateModelTypeFormat(in.Type); err != nil {
		return nil, err
	}
	if _, err := c.repos.ProductTypes.FindByID(ctx, in.ProductTypeID); err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.Newf(errors.ErrCodeNotFound, "product type %d not found", in.ProductTypeID)
		}
		return nil, err
	}

	mc := &model.ModelClassification{
		ProductTypeID:         in.ProductTypeID,
		Type:                  in.Type,
		Descriptions:          datatypes.NewJSONSlice(cleanLines(in.Descriptions)),
		HasCodeClassification: in.HasCodeClassification,
	}
	err := c.repos.Models.Create(ctx, mc)
	if errors.IsConflict(err) {
		err = errors.Wrapf(errors.ErrCodeConflict, err, "model type %s already exists", in.Type)
	}
	c.cache.Invalidate(ctx, in.Type)
	c.rec.emit(ctx, audit.ActionCreate, audit.EntityModelClassification, mc.ID, nil, mc, err)
	if err != nil {
		return nil, err
	}
	return mc, nil
}

// GetModelClassification 按 ID 查询
func (c *HierarchyCatalog) GetModelClassification(ctx context.Context, id int64) (*model.ModelClassification, error) {
	return c.repos.Models.FindByID(ctx, id)
}

// ListModelClassifications 分页查询
func (c *HierarchyCatalog) ListModelClassifications(ctx context.Context, f ModelFilter) (*repository.PageResult[model.ModelClassification], error) {
	conds := make([]string, 0, 2)
	args := make([]any, 0, 2)
	if f.ProductTypeID != 0 {
		conds = append(conds, "product_type_id = ?")
		args = append(args, f.ProductTypeID)
	}
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		conds = append(conds, "type LIKE ?")
		args = append(args, "%"+strings.ToUpper(kw)+"%")
	}
	return c.repos.Models.FindPageWithOpts(ctx, f.Page, f.PageSize, strings.Join(conds, " AND "),
		[]repository.Option{repository.WithOrderBy("type ASC")}, args...)
}

// UpdateModelClassification 修改型号分类
// 结构字段（type、hasCodeClassification）在其下存在编码分类或编码后锁定
func (c *HierarchyCatalog) UpdateModelClassification(ctx context.Context, id int64, patch ModelClassificationPatch) (*model.ModelClassification, error) {
	before, err := c.repos.Models.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]any, 3)
	structural := false
	if patch.Type != nil && *patch.Type != before.Type {
		if err := c.ValidateModelTypeFormat(*patch.Type); err != nil {
			return nil, err
		}
		updates["type"] = *patch.Type
		structural = true
	}
	if patch.HasCodeClassification != nil && *patch.HasCodeClassification != before.HasCodeClassification {
		updates["has_code_classification"] = *patch.HasCodeClassification
		structural = true
	}
	if patch.Descriptions != nil {
		updates["descriptions"] = datatypes.NewJSONSlice(cleanLines(patch.Descriptions))
	}
	if len(updates) == 0 {
		return before, nil
	}

	if structural {
		if err := c.ensureNoChildren(ctx, before); err != nil {
			c.rec.emit(ctx, audit.ActionUpdate, audit.EntityModelClassification, id, before, nil, err)
			return nil, err
		}
	}

	err = c.repos.Models.UpdateByID(ctx, id, updates, "type", "has_code_classification", "descriptions")
	if errors.IsConflict(err) {
		err = errors.Wrapf(errors.ErrCodeConflict, err, "model type %v already exists", updates["type"])
	}
	newType, _ := updates["type"].(string)
	c.cache.Invalidate(ctx, before.Type, newType)

	var after *model.ModelClassification
	if err == nil {
		after, err = c.repos.Models.FindByID(ctx, id)
	}
	c.rec.emit(ctx, audit.ActionUpdate, audit.EntityModelClassification, id, before, after, err)
	return after, err
}

// DeleteModelClassification 删除型号分类，存在编码分类或编码时返回 Conflict
func (c *HierarchyCatalog) DeleteModelClassification(ctx context.Context, id int64) error {
	mc, err := c.repos.Models.FindByID(ctx, id)
	if err != nil {
		return err
	}
	err = c.ensureNoChildren(ctx, mc)
	if err == nil {
		err = c.repos.Models.Delete(ctx, id)
	}
	c.cache.Invalidate(ctx, mc.Type)
	c.rec.emit(ctx, audit.ActionDelete, audit.EntityModelClassification, id, mc, nil, err)
	return err
}

func (c *HierarchyCatalog) ensureNoChildren(ctx context.Context, mc *model.ModelClassification) error {
	hasClasses, err := c.repos.CodeClasses.Exists(ctx, "model_classification_id = ?", mc.ID)
	if err != nil {
		return err
	}
	if hasClasses {
		return errors.Newf(errors.ErrCodeConflict, "model type %s already has code classifications", mc.Type)
	}
	// 已删除编码可被恢复，同样锁定结构；编码分类删除时清理掉的 planned 槽位除外
	hasCodes, err := c.repos.Codes.ExistsWithOpts(ctx, "model_classification_id = ? AND (deleted = 0 OR deleted_reason <> ?)",
		[]repository.Option{repository.WithUnscoped()}, mc.ID, ReasonClassificationRemoved)
	if err != nil {
		return err
	}
	if hasCodes {
		return errors.Newf(errors.ErrCodeConflict, "model type %s already has codes", mc.Type)
	}
	return nil
}

/* ========================================================================
 * 编码分类（创建见 PreallocationEngine）
 * ======================================================================== */

// ListCodeClassifications 按型号类型查询编码分类
func (c *HierarchyCatalog) ListCodeClassifications(ctx context.Context, modelType string) ([]*model.CodeClassification, error) {
	s, err := c.ResolveStructure(ctx, modelType)
	if err != nil {
		return nil, err
	}
	return c.ListCodeClassificationsByModelID(ctx, s.ModelClassification.ID)
}

// ListCodeClassificationsByModelID 按型号分类 ID 查询编码分类
func (c *HierarchyCatalog) ListCodeClassificationsByModelID(ctx context.Context, modelClassificationID int64) ([]*model.CodeClassification, error) {
	return c.repos.CodeClasses.FindByQueryWithOpts(ctx, "model_classification_id = ?",
		[]repository.Option{repository.WithOrderBy("code ASC")}, modelClassificationID)
}

// UpdateCodeClassification 只允许修改名称，分类数字决定编码不可变
func (c *HierarchyCatalog) UpdateCodeClassification(ctx context.Context, id int64, name string) (*model.CodeClassification, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New(errors.ErrCodeInvalidArgument, "name is required")
	}
	before, err := c.repos.CodeClasses.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	err = c.repos.CodeClasses.UpdateByID(ctx, id, map[string]any{"name": name}, "name")

	var after *model.CodeClassification
	if err == nil {
		after, err = c.repos.CodeClasses.FindByID(ctx, id)
	}
	c.rec.emit(ctx, audit.ActionUpdate, audit.EntityCodeClassification, id, before, after, err)
	return after, err
}

// ReasonClassificationRemoved 编码分类删除时 planned 槽位的删除原因
const ReasonClassificationRemoved = "classification removed"

// DeleteCodeClassification 删除编码分类
// 存在已分配编码或已删除待恢复的编码时返回 Conflict；否则同一事务内软删除其 planned 槽位与分类本身
func (c *HierarchyCatalog) DeleteCodeClassification(ctx context.Context, id int64) error {
	cc, err := c.repos.CodeClasses.FindByID(ctx, id)
	if err != nil {
		return err
	}

	var cleaned int64
	err = c.repos.CodeClasses.Execute(ctx, func(txCtx context.Context) error {
		allocated, err := c.repos.Codes.Count(txCtx, "code_classification_id = ? AND state = ?", id, model.StateAllocated)
		if err != nil {
			return err
		}
		if allocated > 0 {
			return errors.Newf(errors.ErrCodeConflict, "classification %s has %d allocated codes", cc.Prefix(), allocated)
		}
		// 重建同一数字会重新生成这些编号，已删除的历史编码只能经 Restore 复用
		retired, err := c.repos.Codes.CountWithOpts(txCtx, "code_classification_id = ? AND state = ? AND deleted_reason <> ?",
			[]repository.Option{repository.WithUnscoped()}, id, model.StateDeleted, ReasonClassificationRemoved)
		if err != nil {
			return err
		}
		if retired > 0 {
			return errors.Newf(errors.ErrCodeConflict, "classification %s has %d deleted codes reserved until restored", cc.Prefix(), retired)
		}

		cleaned, err = c.repos.Codes.UpdateWhere(txCtx, map[string]any{
			"state":          model.StateDeleted,
			"deleted_reason": ReasonClassificationRemoved,
			"deleted":        nowMilli(),
		}, "code_classification_id = ? AND state = ?", id, model.StatePlanned)
		if err != nil {
			return err
		}
		return c.repos.CodeClasses.Delete(txCtx, id)
	})

	c.rec.emit(ctx, audit.ActionDelete, audit.EntityCodeClassification, id, cc,
		map[string]any{"removedSlots": cleaned}, err)
	return err
}

func cleanLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
