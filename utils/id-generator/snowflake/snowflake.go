package snowflake

import (
	"fmt"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/bwmarrin/snowflake"
)

/* ========================================================================
 * Snowflake - 实体主键
 * ========================================================================
 * 产品类型、型号分类、编码分类与编码占用记录的主键均由此生成
 * 结构: 41 位毫秒时间戳 + 10 位节点 + 12 位序列
 * 节点来源: Configure(snowflake.node_id) > 环境变量 SNOWFLAKE_NODE_ID > 0
 * ======================================================================== */

// MaxNodeID 10 位节点号上限
const MaxNodeID = 1023

// EnvNodeID 未显式配置时读取的环境变量
const EnvNodeID = "SNOWFLAKE_NODE_ID"

var current atomic.Pointer[snowflake.Node]

// Configure 设置节点号；应在第一条记录写入前调用
// 多实例部署时每个实例必须使用不同节点号
func Configure(nodeID int64) error {
	n, err := newNode(nodeID)
	if err != nil {
		return err
	}
	current.Store(n)
	return nil
}

// Generate 生成主键
func Generate() int64 {
	if n := current.Load(); n != nil {
		return n.Generate().Int64()
	}
	nodeID, err := envNodeID()
	if err != nil {
		panic(err)
	}
	n, err := newNode(nodeID)
	if err != nil {
		panic(err)
	}
	// 并发首次调用时只保留一个节点，避免同号节点各自计数
	if !current.CompareAndSwap(nil, n) {
		n = current.Load()
	}
	return n.Generate().Int64()
}

// NodeOf 返回主键所属节点
func NodeOf(id int64) int64 {
	return snowflake.ID(id).Node()
}

func newNode(nodeID int64) (*snowflake.Node, error) {
	if nodeID < 0 || nodeID > MaxNodeID {
		return nil, fmt.Errorf("snowflake node id %d out of range [0, %d]", nodeID, MaxNodeID)
	}
	return snowflake.NewNode(nodeID)
}

func envNodeID() (int64, error) {
	val := os.Getenv(EnvNodeID)
	if val == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s=%q: invalid integer", EnvNodeID, val)
	}
	return id, nil
}
