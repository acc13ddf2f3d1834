package shutdown

import "time"

// Config 优雅关停配置
type Config struct {
	// Timeout 整体关停超时，超时后剩余钩子不再执行
	Timeout time.Duration `mapstructure:"timeout"`
	// HookTimeout 单个钩子超时，0 表示只受整体超时约束
	HookTimeout time.Duration `mapstructure:"hook_timeout"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Timeout:     30 * time.Second,
		HookTimeout: 10 * time.Second,
	}
}
