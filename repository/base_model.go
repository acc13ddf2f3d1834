package repository

import (
	"time"

	"github.com/aisgo/ais-modelcode/utils/id-generator/snowflake"

	"gorm.io/gorm"
)

/* ========================================================================
 * Base Model - 基础模型
 * ========================================================================
 * 职责: 定义所有模型的公共字段和方法
 * 使用: 所有 GORM 模型都应嵌入此结构体
 * 说明: 软删除列由各实体自行声明，以便参与各自的唯一索引
 * ======================================================================== */

// BaseModel 所有模型的基类
// 包含通用字段：ID、创建时间、更新时间
type BaseModel struct {
	ID         int64     `json:"id,string" gorm:"primaryKey;autoIncrement:false;comment:主键ID"`
	CreateTime time.Time `json:"createTime" gorm:"column:create_time;autoCreateTime;comment:创建时间"`
	UpdateTime time.Time `json:"updateTime" gorm:"column:update_time;autoUpdateTime;comment:更新时间"`
}

// BeforeCreate GORM 钩子：在创建记录前自动生成雪花 ID
// 注意: 在多实例部署环境中，必须配置环境变量 SNOWFLAKE_NODE_ID
func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == 0 {
		m.ID = snowflake.Generate()
	}
	return nil
}
