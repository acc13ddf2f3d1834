package conf

import (
	"bytes"
	"errors"
	"os"
	"regexp"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

/* ========================================================================
 * Config Loader - 配置加载器
 * ========================================================================
 * 职责: 统一配置加载，支持 YAML / JSON / 环境变量 / .env 文件
 * 技术: Viper + mapstructure 解码钩子 + godotenv
 * ======================================================================== */

// Loader 定义配置加载接口
type Loader interface {
	Load(config any) error
}

type viperLoader struct {
	configPath string
	configName string
	configType string
	envPrefix  string
	dotEnv     []string
	defaults   map[string]any
}

// Option 配置加载选项
type Option func(*viperLoader)

// WithEnvPrefix 自定义环境变量前缀（默认 APP）
func WithEnvPrefix(prefix string) Option {
	return func(l *viperLoader) { l.envPrefix = prefix }
}

// WithDotEnv 加载前先读取 .env 文件，不存在的文件被忽略，已存在的环境变量不会被覆盖
func WithDotEnv(files ...string) Option {
	return func(l *viperLoader) { l.dotEnv = append(l.dotEnv, files...) }
}

// WithDefaults 设置默认值，键使用点分路径（如 server.port）
// 只有声明过的键才能被环境变量覆盖
func WithDefaults(defaults map[string]any) Option {
	return func(l *viperLoader) {
		if l.defaults == nil {
			l.defaults = make(map[string]any, len(defaults))
		}
		for k, v := range defaults {
			l.defaults[k] = v
		}
	}
}

var envPlaceholderPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

func expandEnvPlaceholders(raw string) string {
	return envPlaceholderPattern.ReplaceAllStringFunc(raw, func(match string) string {
		sub := envPlaceholderPattern.FindStringSubmatch(match)
		if len(sub) < 2 {
			return match
		}

		name := sub[1]
		def := ""
		if len(sub) >= 3 {
			def = sub[2]
		}

		// 兼容 bash 的 ${VAR:-default} 语义：未设置或为空字符串时使用 default
		if val, ok := os.LookupEnv(name); ok && val != "" {
			return val
		}
		return def
	})
}

// NewLoader 创建一个新的配置加载器
// configPath: 配置文件目录
// configName: 配置文件名 (不含扩展名)
// configType: 配置文件类型 (yaml, json 等)
func NewLoader(configPath, configName, configType string, opts ...Option) Loader {
	l := &viperLoader{
		configPath: configPath,
		configName: configName,
		configType: configType,
		envPrefix:  "APP",
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *viperLoader) loadDotEnv() error {
	for _, file := range l.dotEnv {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

func (l *viperLoader) newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(l.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, val := range l.defaults {
		v.SetDefault(k, val)
	}
	return v
}

func (l *viperLoader) Load(config any) error {
	if err := l.loadDotEnv(); err != nil {
		return err
	}

	// 先让 viper 帮我们定位配置文件（支持 AddConfigPath + SetConfigName 的搜索逻辑）
	finder := viper.New()
	finder.AddConfigPath(l.configPath)
	finder.SetConfigName(l.configName)
	finder.SetConfigType(l.configType)

	if err := finder.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
	}
	configFile := finder.ConfigFileUsed()

	// 再读取一次配置：在进入 viper 解析前，做 ${VAR} / ${VAR:-default} 的环境变量占位符展开
	v := l.newViper()
	if configFile != "" {
		raw, err := os.ReadFile(configFile)
		if err != nil {
			return err
		}
		v.SetConfigType(l.configType)
		if err := v.ReadConfig(bytes.NewBufferString(expandEnvPlaceholders(string(raw)))); err != nil {
			return err
		}
	}

	return v.Unmarshal(config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	)))
}
