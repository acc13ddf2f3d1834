package model

import "fmt"

/* ========================================================================
 * CodeUsage State - 编码状态机
 * ========================================================================
 * planned --allocate--> allocated --softDelete--> deleted --restore--> allocated
 * planned --softDelete--> deleted
 * ======================================================================== */

// State 编码记录状态
type State string

const (
	StatePlanned   State = "planned"   // 预分配，未占用
	StateAllocated State = "allocated" // 已占用
	StateDeleted   State = "deleted"   // 已软删除
)

// transitions 合法的状态迁移
var transitions = map[State][]State{
	StatePlanned:   {StateAllocated, StateDeleted},
	StateAllocated: {StateDeleted},
	StateDeleted:   {StateAllocated},
}

// Valid 是否为已知状态
func (s State) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransit 判断是否允许从 s 迁移到 to
func (s State) CanTransit(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseState 解析状态字符串
func ParseState(raw string) (State, error) {
	s := State(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown state %q", raw)
	}
	return s, nil
}

/* ========================================================================
 * Occupancy Type - 占用类型
 * ======================================================================== */

// OccupancyType 占用类型编码，展示文本由字典解析
type OccupancyType string

const (
	OccupancyPlanning  OccupancyType = "规划"
	OccupancyWorkOrder OccupancyType = "工令"
	OccupancySuspended OccupancyType = "暂停"
)

// OccupancyTypes 所有占用类型
func OccupancyTypes() []OccupancyType {
	return []OccupancyType{OccupancyPlanning, OccupancyWorkOrder, OccupancySuspended}
}

// Valid 是否为已知占用类型
func (o OccupancyType) Valid() bool {
	switch o {
	case OccupancyPlanning, OccupancyWorkOrder, OccupancySuspended:
		return true
	}
	return false
}
