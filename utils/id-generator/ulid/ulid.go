package ulid

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

/* ========================================================================
 * ULID - 审计事件 ID
 * ========================================================================
 * 26 字符 Crockford Base32，字典序即时间序，按 ID 排序即按发生顺序回放
 * ======================================================================== */

// Generator 单调 ULID 生成器，并发安全
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
}

// NewGenerator entropy 为 nil 时使用 crypto/rand
func NewGenerator(entropy io.Reader) *Generator {
	if entropy == nil {
		entropy = rand.Reader
	}
	return &Generator{entropy: ulid.Monotonic(entropy, 0)}
}

// At 以给定时间生成；同一毫秒内按调用顺序递增
func (g *Generator) At(t time.Time) ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), g.entropy)
}

var std = NewGenerator(nil)

// GenerateString 生成当前时间的事件 ID
func GenerateString() string {
	return std.At(time.Now()).String()
}

// Time 解析事件 ID 中的发生时间
func Time(id string) (time.Time, error) {
	u, err := ulid.ParseStrict(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}
