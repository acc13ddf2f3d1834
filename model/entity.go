package model

import (
	"encoding/json"
	"time"

	"github.com/aisgo/ais-modelcode/database"
	"github.com/aisgo/ais-modelcode/repository"

	"gorm.io/datatypes"
	"gorm.io/plugin/soft_delete"
)

/* ========================================================================
 * Entities - 型号编码层级实体
 * ========================================================================
 * 层级: ProductType -> ModelClassification -> (CodeClassification) -> CodeUsage
 * 唯一性: 所有唯一索引都包含 deleted 列，只在未删除记录之间生效
 * 可空的元组成员统一存为空串，避免 NULL 绕过唯一索引
 * ======================================================================== */

// ProductType 产品类型（如 PCB、FPC）
type ProductType struct {
	repository.BaseModel
	Code        string                `json:"code" gorm:"column:code;size:20;not null;uniqueIndex:uk_product_type_code,priority:1;comment:产品类型编码"`
	Name        string                `json:"name" gorm:"column:name;size:100;not null;comment:名称"`
	Description string                `json:"description" gorm:"column:description;size:500"`
	Deleted     soft_delete.DeletedAt `json:"-" gorm:"column:deleted;not null;default:0;softDelete:milli;uniqueIndex:uk_product_type_code,priority:2"`
}

func (ProductType) TableName() string { return "product_types" }

// ModelClassification 型号分类（如 SLU），决定两层/三层结构
type ModelClassification struct {
	repository.BaseModel
	ProductTypeID         int64                       `json:"productTypeId,string" gorm:"column:product_type_id;not null;index:idx_model_classification_product_type"`
	Type                  string                      `json:"type" gorm:"column:type;size:20;not null;uniqueIndex:uk_model_classification_type,priority:1;comment:型号类型"`
	Descriptions          datatypes.JSONSlice[string] `json:"descriptions" gorm:"column:descriptions;comment:描述行"`
	HasCodeClassification bool                        `json:"hasCodeClassification" gorm:"column:has_code_classification;not null;comment:是否三层结构"`
	Deleted               soft_delete.DeletedAt       `json:"-" gorm:"column:deleted;not null;default:0;softDelete:milli;uniqueIndex:uk_model_classification_type,priority:2"`
}

func (ModelClassification) TableName() string { return "model_classifications" }

// Layers 返回 2 或 3
func (m *ModelClassification) Layers() int {
	if m.HasCodeClassification {
		return 3
	}
	return 2
}

// CodeClassification 编码分类（仅三层结构），一位分类数字
type CodeClassification struct {
	repository.BaseModel
	ModelClassificationID int64                 `json:"modelClassificationId,string" gorm:"column:model_classification_id;not null;uniqueIndex:uk_code_classification,priority:1"`
	ModelType             string                `json:"modelType" gorm:"column:model_type;size:20;not null;index:idx_code_classification_model_type"`
	Code                  string                `json:"code" gorm:"column:code;size:1;not null;uniqueIndex:uk_code_classification,priority:2;comment:分类数字"`
	Name                  string                `json:"name" gorm:"column:name;size:100;not null"`
	Deleted               soft_delete.DeletedAt `json:"-" gorm:"column:deleted;not null;default:0;softDelete:milli;uniqueIndex:uk_code_classification,priority:3"`
}

func (CodeClassification) TableName() string { return "code_classifications" }

// Prefix 编码前缀，如 SLU-1
func (c *CodeClassification) Prefix() string {
	return c.ModelType + "-" + c.Code
}

// CodeUsage 编码使用记录
type CodeUsage struct {
	repository.BaseModel
	ModelClassificationID    int64                 `json:"modelClassificationId,string" gorm:"column:model_classification_id;not null;index:idx_code_usage_model_classification"`
	CodeClassificationID     int64                 `json:"codeClassificationId,string" gorm:"column:code_classification_id;not null;default:0;index:idx_code_usage_code_classification"`
	Model                    string                `json:"model" gorm:"column:model;size:64;not null;index:idx_code_usage_model;comment:完整编码"`
	ModelType                string                `json:"modelType" gorm:"column:model_type;size:20;not null;uniqueIndex:uk_code_usage,priority:1"`
	CodeClassificationNumber string                `json:"codeClassificationNumber" gorm:"column:code_classification_number;size:1;not null;default:'';uniqueIndex:uk_code_usage,priority:2"`
	ActualNumber             string                `json:"actualNumber" gorm:"column:actual_number;size:6;not null;uniqueIndex:uk_code_usage,priority:3"`
	Extension                string                `json:"extension" gorm:"column:extension;size:10;not null;default:'';uniqueIndex:uk_code_usage,priority:4"`
	ProductName              string                `json:"productName" gorm:"column:product_name;size:200"`
	Description              string                `json:"description" gorm:"column:description;size:500"`
	OccupancyType            OccupancyType         `json:"occupancyType" gorm:"column:occupancy_type;size:16"`
	CustomerID               string                `json:"customerId" gorm:"column:customer_id;size:64"`
	FactoryID                string                `json:"factoryId" gorm:"column:factory_id;size:64"`
	Builder                  string                `json:"builder" gorm:"column:builder;size:64"`
	Requester                string                `json:"requester" gorm:"column:requester;size:64"`
	CreationDate             *time.Time            `json:"creationDate" gorm:"column:creation_date"`
	State                    State                 `json:"state" gorm:"column:state;size:16;not null;index:idx_code_usage_state"`
	DeletedReason            string                `json:"deletedReason" gorm:"column:deleted_reason;size:500"`
	Deleted                  soft_delete.DeletedAt `json:"-" gorm:"column:deleted;not null;default:0;softDelete:milli;uniqueIndex:uk_code_usage,priority:5"`
}

func (CodeUsage) TableName() string { return "code_usages" }

// IsAllocated 兼容旧接口的派生布尔值
func (c *CodeUsage) IsAllocated() bool { return c.State == StateAllocated }

// IsDeleted 兼容旧接口的派生布尔值
func (c *CodeUsage) IsDeleted() bool { return c.State == StateDeleted }

// MarshalJSON 在 state 之外输出派生的 isAllocated / isDeleted
func (c CodeUsage) MarshalJSON() ([]byte, error) {
	type plain CodeUsage
	return json.Marshal(struct {
		plain
		IsAllocated bool `json:"isAllocated"`
		IsDeleted   bool `json:"isDeleted"`
	}{plain(c), c.IsAllocated(), c.IsDeleted()})
}

// AuditLog 审计记录（DBSink 落库）
type AuditLog struct {
	ID         string         `json:"id" gorm:"column:id;primaryKey;size:26;comment:ULID"`
	Action     string         `json:"action" gorm:"column:action;size:64;not null;index:idx_audit_action"`
	EntityType string         `json:"entityType" gorm:"column:entity_type;size:64;not null;index:idx_audit_entity,priority:1"`
	EntityID   string         `json:"entityId" gorm:"column:entity_id;size:64;index:idx_audit_entity,priority:2"`
	Before     database.JSONB `json:"before" gorm:"column:before_value"`
	After      database.JSONB `json:"after" gorm:"column:after_value"`
	Success    bool           `json:"success" gorm:"column:success;not null"`
	Message    string         `json:"message" gorm:"column:message;size:1000"`
	Operator   string         `json:"operator" gorm:"column:operator;size:64"`
	RequestID  string         `json:"requestId" gorm:"column:request_id;size:64"`
	CreatedAt  time.Time      `json:"createdAt" gorm:"column:created_at;not null;index:idx_audit_created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

// All 返回需要迁移的全部实体
func All() []any {
	return []any{
		&ProductType{},
		&ModelClassification{},
		&CodeClassification{},
		&CodeUsage{},
		&AuditLog{},
	}
}
