package engine

import (
	"context"

	"github.com/aisgo/ais-modelcode/errors"
	"github.com/aisgo/ais-modelcode/model"
)

/* ========================================================================
 * DictionaryLookup - 数据字典
 * ========================================================================
 * 引擎只保存字典编码，不解析展示文本
 * DictionaryEntry 为封闭和类型，每种条目有自己的字段
 * ======================================================================== */

// DictionaryKind 字典条目类型
type DictionaryKind string

const (
	KindCustomer      DictionaryKind = "customer"
	KindFactory       DictionaryKind = "factory"
	KindProductName   DictionaryKind = "product_name"
	KindOccupancyType DictionaryKind = "occupancy_type"
	KindModelType     DictionaryKind = "model_type"
)

// DictionaryEntry 字典条目
type DictionaryEntry interface {
	Kind() DictionaryKind
	Code() string
	dictionaryEntry()
}

// CustomerEntry 客户
type CustomerEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FactoryEntry 工厂
type FactoryEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
}

// ProductNameEntry 品名
type ProductNameEntry struct {
	Value string `json:"value"`
}

// OccupancyTypeEntry 占用类型
type OccupancyTypeEntry struct {
	Type  model.OccupancyType `json:"type"`
	Label string              `json:"label"`
}

// ModelTypeEntry 型号类型
type ModelTypeEntry struct {
	Type        string `json:"type"`
	ProductCode string `json:"productCode"`
}

func (CustomerEntry) Kind() DictionaryKind      { return KindCustomer }
func (FactoryEntry) Kind() DictionaryKind       { return KindFactory }
func (ProductNameEntry) Kind() DictionaryKind   { return KindProductName }
func (OccupancyTypeEntry) Kind() DictionaryKind { return KindOccupancyType }
func (ModelTypeEntry) Kind() DictionaryKind     { return KindModelType }

func (e CustomerEntry) Code() string      { return e.ID }
func (e FactoryEntry) Code() string       { return e.ID }
func (e ProductNameEntry) Code() string   { return e.Value }
func (e OccupancyTypeEntry) Code() string { return string(e.Type) }
func (e ModelTypeEntry) Code() string     { return e.Type }

func (CustomerEntry) dictionaryEntry()      {}
func (FactoryEntry) dictionaryEntry()       {}
func (ProductNameEntry) dictionaryEntry()   {}
func (OccupancyTypeEntry) dictionaryEntry() {}
func (ModelTypeEntry) dictionaryEntry()     {}

// DictionaryLookup 字典查询，不存在返回 NotFound
type DictionaryLookup interface {
	Lookup(ctx context.Context, kind DictionaryKind, code string) (DictionaryEntry, error)
}

// StaticDictionary 内存字典
type StaticDictionary struct {
	entries map[DictionaryKind]map[string]DictionaryEntry
}

// NewStaticDictionary 创建内存字典
func NewStaticDictionary(entries ...DictionaryEntry) *StaticDictionary {
	d := &StaticDictionary{entries: make(map[DictionaryKind]map[string]DictionaryEntry)}
	for _, e := range entries {
		d.Add(e)
	}
	return d
}

// DefaultDictionary 只含三种占用类型
func DefaultDictionary() *StaticDictionary {
	return NewStaticDictionary(
		OccupancyTypeEntry{Type: model.OccupancyPlanning, Label: "规划"},
		OccupancyTypeEntry{Type: model.OccupancyWorkOrder, Label: "工令"},
		OccupancyTypeEntry{Type: model.OccupancySuspended, Label: "暂停"},
	)
}

// Add 添加或覆盖条目，非并发安全，只应在启动时调用
func (d *StaticDictionary) Add(e DictionaryEntry) {
	byCode, ok := d.entries[e.Kind()]
	if !ok {
		byCode = make(map[string]DictionaryEntry)
		d.entries[e.Kind()] = byCode
	}
	byCode[e.Code()] = e
}

func (d *StaticDictionary) Lookup(_ context.Context, kind DictionaryKind, code string) (DictionaryEntry, error) {
	if e, ok := d.entries[kind][code]; ok {
		return e, nil
	}
	return nil, errors.Newf(errors.ErrCodeNotFound, "%s %q not found in dictionary", kind, code)
}

// checkOccupancy 空值允许；非空必须在字典中
func checkOccupancy(ctx context.Context, dict DictionaryLookup, occ model.OccupancyType) error {
	if occ == "" {
		return nil
	}
	if !occ.Valid() {
		return errors.Newf(errors.ErrCodeInvalidFormat, "unknown occupancy type %q", occ)
	}
	if dict == nil {
		return nil
	}
	if _, err := dict.Lookup(ctx, KindOccupancyType, string(occ)); err != nil {
		if errors.IsNotFound(err) {
			return errors.Newf(errors.ErrCodeInvalidFormat, "unknown occupancy type %q", occ)
		}
		return err
	}
	return nil
}
