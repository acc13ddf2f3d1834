package api

import (
	"time"

	"github.com/aisgo/ais-modelcode/engine"
	"github.com/aisgo/ais-modelcode/model"
)

/* ========================================================================
 * Request DTOs
 * ========================================================================
 * ID 字段以字符串传输，避免前端丢失雪花 ID 精度
 * ======================================================================== */

type productTypeRequest struct {
	Code        string `json:"code" validate:"required,productcode" error_msg:"required:产品类型编码必填|productcode:产品类型编码须为2-20位大写字母或数字"`
	Name        string `json:"name" validate:"required,max=100" error_msg:"required:名称必填|max:名称不超过100字"`
	Description string `json:"description" validate:"max=500"`
}

type modelClassificationRequest struct {
	ProductTypeID         int64    `json:"productTypeId,string" validate:"required" error_msg:"required:产品类型必填"`
	Type                  string   `json:"type" validate:"required,modeltype" error_msg:"required:型号类型必填|modeltype:型号类型须为2-20位大写字母"`
	Descriptions          []string `json:"descriptions"`
	HasCodeClassification bool     `json:"hasCodeClassification"`
}

type modelClassificationPatch struct {
	Type                  *string  `json:"type" validate:"omitempty,modeltype" error_msg:"modeltype:型号类型须为2-20位大写字母"`
	Descriptions          []string `json:"descriptions"`
	HasCodeClassification *bool    `json:"hasCodeClassification"`
}

type codeClassificationRequest struct {
	ModelClassificationID int64  `json:"modelClassificationId,string"`
	ModelType             string `json:"modelType" validate:"omitempty,modeltype" error_msg:"modeltype:型号类型须为2-20位大写字母"`
	Code                  string `json:"code" validate:"required,classdigit" error_msg:"required:分类数字必填|classdigit:分类数字须为单个数字0-9"`
	Name                  string `json:"name" validate:"required,max=100" error_msg:"required:分类名称必填|max:分类名称不超过100字"`
}

func (r codeClassificationRequest) input() engine.CodeClassificationInput {
	return classificationItem(r).input()
}

type renameRequest struct {
	Name string `json:"name" validate:"required,max=100" error_msg:"required:名称必填|max:名称不超过100字"`
}

// MetadataRequest 分配时的业务信息，内嵌于创建与导入请求
type MetadataRequest struct {
	ProductName   string     `json:"productName" validate:"max=200"`
	Description   string     `json:"description" validate:"max=500"`
	OccupancyType string     `json:"occupancyType"`
	CustomerID    string     `json:"customerId" validate:"max=64"`
	FactoryID     string     `json:"factoryId" validate:"max=64"`
	Builder       string     `json:"builder" validate:"max=64"`
	Requester     string     `json:"requester" validate:"max=64"`
	CreationDate  *time.Time `json:"creationDate"`
}

func (m MetadataRequest) metadata() engine.Metadata {
	return engine.Metadata{
		ProductName:   m.ProductName,
		Description:   m.Description,
		OccupancyType: model.OccupancyType(m.OccupancyType),
		CustomerID:    m.CustomerID,
		FactoryID:     m.FactoryID,
		Builder:       m.Builder,
		Requester:     m.Requester,
		CreationDate:  m.CreationDate,
	}
}

// createCodeRequest 三层结构创建；actualNumber 为空时取下一个可用槽位
type createCodeRequest struct {
	ModelType            string `json:"modelType" validate:"required,modeltype" error_msg:"required:型号类型必填|modeltype:型号类型须为2-20位大写字母"`
	ClassificationNumber string `json:"classificationNumber" validate:"required,classdigit" error_msg:"required:分类数字必填|classdigit:分类数字须为单个数字0-9"`
	ActualNumber         string `json:"actualNumber" validate:"omitempty,actualnumber" error_msg:"actualnumber:实际编号须为1-6位数字"`
	Extension            string `json:"extension" validate:"omitempty,extension" error_msg:"extension:扩展后缀须为1-10位字母或数字"`
	MetadataRequest
}

func (r createCodeRequest) request() engine.CreateRequest {
	return engine.CreateRequest{
		CodeKey: engine.CodeKey{
			ModelType:            r.ModelType,
			ClassificationNumber: r.ClassificationNumber,
			ActualNumber:         r.ActualNumber,
			Extension:            r.Extension,
		},
		Metadata: r.metadata(),
	}
}

// manualCodeRequest 两层结构手工创建
type manualCodeRequest struct {
	ModelType    string `json:"modelType" validate:"required,modeltype" error_msg:"required:型号类型必填|modeltype:型号类型须为2-20位大写字母"`
	ActualNumber string `json:"actualNumber" validate:"required,actualnumber" error_msg:"required:实际编号必填|actualnumber:实际编号须为1-6位数字"`
	Extension    string `json:"extension" validate:"omitempty,extension" error_msg:"extension:扩展后缀须为1-10位字母或数字"`
	MetadataRequest
}

func (r manualCodeRequest) request() engine.ManualRequest {
	return engine.ManualRequest{
		ModelType:    r.ModelType,
		ActualNumber: r.ActualNumber,
		Extension:    r.Extension,
		Metadata:     r.metadata(),
	}
}

// metadataPatchRequest 修改业务信息，缺省字段不修改
type metadataPatchRequest struct {
	ProductName   *string    `json:"productName" validate:"omitempty,max=200"`
	Description   *string    `json:"description" validate:"omitempty,max=500"`
	OccupancyType *string    `json:"occupancyType"`
	CustomerID    *string    `json:"customerId" validate:"omitempty,max=64"`
	FactoryID     *string    `json:"factoryId" validate:"omitempty,max=64"`
	Builder       *string    `json:"builder" validate:"omitempty,max=64"`
	Requester     *string    `json:"requester" validate:"omitempty,max=64"`
	CreationDate  *time.Time `json:"creationDate"`
}

func (r metadataPatchRequest) patch() engine.MetadataPatch {
	p := engine.MetadataPatch{
		ProductName:  r.ProductName,
		Description:  r.Description,
		CustomerID:   r.CustomerID,
		FactoryID:    r.FactoryID,
		Builder:      r.Builder,
		Requester:    r.Requester,
		CreationDate: r.CreationDate,
	}
	if r.OccupancyType != nil {
		occ := model.OccupancyType(*r.OccupancyType)
		p.OccupancyType = &occ
	}
	return p
}

/* ========================================================================
 * 批量请求
 * ======================================================================== */

// classificationItem 批量行不带校验标签，格式问题逐条进入报告
type classificationItem struct {
	ModelClassificationID int64  `json:"modelClassificationId,string"`
	ModelType             string `json:"modelType"`
	Code                  string `json:"code"`
	Name                  string `json:"name"`
}

type batchClassificationsRequest struct {
	Items []classificationItem `json:"items" validate:"required,min=1,max=1000" error_msg:"required:条目不能为空|min:条目不能为空|max:单批最多1000条"`
}

// importRowRequest 导入行；行级格式问题由引擎逐条报告，不在此拦截整批
type importRowRequest struct {
	ModelType            string `json:"modelType"`
	ClassificationNumber string `json:"classificationNumber"`
	ActualNumber         string `json:"actualNumber"`
	Extension            string `json:"extension"`
	MetadataRequest
}

func (r importRowRequest) row() engine.ImportRow {
	return engine.ImportRow{
		CodeKey: engine.CodeKey{
			ModelType:            r.ModelType,
			ClassificationNumber: r.ClassificationNumber,
			ActualNumber:         r.ActualNumber,
			Extension:            r.Extension,
		},
		Metadata: r.metadata(),
	}
}

func (r batchClassificationsRequest) inputs() []engine.CodeClassificationInput {
	items := make([]engine.CodeClassificationInput, len(r.Items))
	for i, item := range r.Items {
		items[i] = item.input()
	}
	return items
}

type importRequest struct {
	Rows []importRowRequest `json:"rows" validate:"required,min=1,max=1000" error_msg:"required:导入行不能为空|min:导入行不能为空|max:单批最多1000条"`
}

func (r importRequest) rows() []engine.ImportRow {
	rows := make([]engine.ImportRow, len(r.Rows))
	for i, row := range r.Rows {
		rows[i] = row.row()
	}
	return rows
}

type occupancyUpdateRequest struct {
	ID            int64  `json:"id,string"`
	OccupancyType string `json:"occupancyType"`
}

func (i classificationItem) input() engine.CodeClassificationInput {
	return engine.CodeClassificationInput{
		ModelClassificationID: i.ModelClassificationID,
		ModelType:             i.ModelType,
		Code:                  i.Code,
		Name:                  i.Name,
	}
}

type batchOccupancyRequest struct {
	Items []occupancyUpdateRequest `json:"items" validate:"required,min=1,max=1000" error_msg:"required:条目不能为空|min:条目不能为空|max:单批最多1000条"`
}

type batchIDsRequest struct {
	IDs    []string `json:"ids" validate:"required,min=1,max=1000" error_msg:"required:编码ID不能为空|min:编码ID不能为空|max:单批最多1000条"`
	Reason string   `json:"reason" validate:"max=500"`
}
