package middleware

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aisgo/ais-modelcode/logger"
	"github.com/aisgo/ais-modelcode/response"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

/* ========================================================================
 * Auth Header - 网关签名身份
 * ========================================================================
 * 网关校验前端令牌后注入以下头，本服务只验证签名并解析身份：
 *   X-AIS-Auth-V      版本 ("1")
 *   X-AIS-Auth-Iss    签发方
 *   X-AIS-Auth-Ts     unix 秒
 *   X-AIS-Auth-Nonce  随机串
 *   X-AIS-Auth-User   base64url(JSON UserInfo)
 *   X-AIS-Auth-Sign   hex(HMAC-SHA256(secret, "v|iss|ts|nonce|user"))
 * 验证通过后操作人写入 request context，供日志、审计与 requester 兜底
 * ======================================================================== */

const (
	AuthHeaderVersionV1 = "1"

	HeaderAuthVersion   = "X-AIS-Auth-V"
	HeaderAuthIssuer    = "X-AIS-Auth-Iss"
	HeaderAuthTimestamp = "X-AIS-Auth-Ts"
	HeaderAuthNonce     = "X-AIS-Auth-Nonce"
	HeaderAuthUser      = "X-AIS-Auth-User"
	HeaderAuthSignature = "X-AIS-Auth-Sign"
)

// 写操作权限
const (
	PermCodeUsageManage           = "CodeUsageManage"
	PermCodeClassificationManage  = "CodeClassificationManage"
	PermModelClassificationManage = "ModelClassificationManage"

	// RoleAdmin 拥有全部权限
	RoleAdmin = "admin"
)

const (
	defaultAuthMaxAge    = 5 * time.Minute
	defaultAuthClockSkew = 30 * time.Second
	authNonceSize        = 16
	authLocalKey         = "modelcode_auth"
)

var (
	ErrAuthHeaderMissing          = stderrors.New("missing auth headers")
	ErrAuthHeaderInvalidVersion   = stderrors.New("invalid auth version")
	ErrAuthHeaderInvalidIssuer    = stderrors.New("invalid auth issuer")
	ErrAuthHeaderInvalidTS        = stderrors.New("invalid auth timestamp")
	ErrAuthHeaderMissingNonce     = stderrors.New("missing auth nonce")
	ErrAuthHeaderMissingUser      = stderrors.New("missing auth user")
	ErrAuthHeaderInvalidUser      = stderrors.New("invalid auth user header")
	ErrAuthHeaderInvalidSign      = stderrors.New("invalid auth signature")
	ErrAuthHeaderExpired          = stderrors.New("auth header expired")
	ErrAuthHeaderNotYetValid      = stderrors.New("auth header timestamp in future")
	ErrAuthHeaderMissingSecret    = stderrors.New("auth header secret is required")
	ErrAuthHeaderIssuerNotAllowed = stderrors.New("auth issuer not allowed")
)

// UserInfo 网关注入的用户身份
type UserInfo struct {
	UserID      string   `json:"user_id"`
	Username    string   `json:"username,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// Operator 审计与 requester 使用的名字，优先用户名
func (u *UserInfo) Operator() string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return u.Username
	}
	return u.UserID
}

// Has 判断是否拥有任一权限；admin 角色视为全部拥有
func (u *UserInfo) Has(perms ...string) bool {
	if u == nil {
		return false
	}
	if slices.Contains(u.Roles, RoleAdmin) {
		return true
	}
	for _, p := range perms {
		if slices.Contains(u.Permissions, p) {
			return true
		}
	}
	return false
}

// AuthContext 验证后的身份信息
type AuthContext struct {
	Issuer   string
	IssuedAt time.Time
	Nonce    string
	User     *UserInfo
}

// AuthHeaderValues 头部原始值
type AuthHeaderValues struct {
	Version   string
	Issuer    string
	Timestamp int64
	Nonce     string
	User      string
	Signature string
}

// WriteTo 写入 http.Header（服务间调用或测试）
func (v AuthHeaderValues) WriteTo(h http.Header) {
	if h == nil || v.Signature == "" {
		return
	}
	h.Set(HeaderAuthVersion, v.Version)
	h.Set(HeaderAuthIssuer, v.Issuer)
	h.Set(HeaderAuthTimestamp, strconv.FormatInt(v.Timestamp, 10))
	h.Set(HeaderAuthNonce, v.Nonce)
	h.Set(HeaderAuthSignature, v.Signature)
	if v.User != "" {
		h.Set(HeaderAuthUser, v.User)
	}
}

// UserFromContext 取当前请求的用户
func UserFromContext(c fiber.Ctx) (*UserInfo, bool) {
	ac, ok := c.Locals(authLocalKey).(*AuthContext)
	if !ok || ac == nil || ac.User == nil {
		return nil, false
	}
	return ac.User, true
}

/* ========================================================================
 * 签名
 * ======================================================================== */

// AuthHeaderSignerConfig 签名配置
type AuthHeaderSignerConfig struct {
	Secret  string
	Issuer  string
	NowFunc func() time.Time
}

// AuthHeaderSigner 生成签名头
type AuthHeaderSigner struct {
	secret string
	issuer string
	now    func() time.Time
}

func NewAuthHeaderSigner(cfg AuthHeaderSignerConfig) *AuthHeaderSigner {
	now := cfg.NowFunc
	if now == nil {
		now = time.Now
	}
	return &AuthHeaderSigner{secret: cfg.Secret, issuer: cfg.Issuer, now: now}
}

// BuildHeaders 为 user 生成签名头；user 为 nil 表示服务身份
func (s *AuthHeaderSigner) BuildHeaders(user *UserInfo) (AuthHeaderValues, error) {
	if s.secret == "" {
		return AuthHeaderValues{}, ErrAuthHeaderMissingSecret
	}
	if s.issuer == "" {
		return AuthHeaderValues{}, ErrAuthHeaderInvalidIssuer
	}
	userValue, err := EncodeUserInfo(user)
	if err != nil {
		return AuthHeaderValues{}, err
	}
	nonce, err := generateNonce()
	if err != nil {
		return AuthHeaderValues{}, err
	}
	v := AuthHeaderValues{
		Version:   AuthHeaderVersionV1,
		Issuer:    s.issuer,
		Timestamp: s.now().Unix(),
		Nonce:     nonce,
		User:      userValue,
	}
	v.Signature = sign(s.secret, v)
	return v, nil
}

/* ========================================================================
 * 验证
 * ======================================================================== */

// AuthConfig 身份验证配置；Enabled=false 时所有请求放行（本地开发）
type AuthConfig struct {
	Enabled          bool              `mapstructure:"enabled"`
	Secret           string            `mapstructure:"secret"`
	Secrets          map[string]string `mapstructure:"secrets"` // issuer -> secret，优先于 Secret
	AllowedIssuers   []string          `mapstructure:"allowed_issuers"`
	MaxAge           time.Duration     `mapstructure:"max_age"`
	AllowedClockSkew time.Duration     `mapstructure:"allowed_clock_skew"`
	AllowEmptyUser   bool              `mapstructure:"allow_empty_user"`

	NowFunc func() time.Time `mapstructure:"-"`
}

// AuthHeaderVerifier 验证签名头
type AuthHeaderVerifier struct {
	cfg AuthConfig
	log *logger.Logger
	now func() time.Time
}

func NewAuthHeaderVerifier(cfg AuthConfig, log *logger.Logger) *AuthHeaderVerifier {
	if cfg.MaxAge == 0 {
		cfg.MaxAge = defaultAuthMaxAge
	}
	if cfg.AllowedClockSkew == 0 {
		cfg.AllowedClockSkew = defaultAuthClockSkew
	}
	if log == nil {
		log = logger.NewNop()
	}
	now := cfg.NowFunc
	if now == nil {
		now = time.Now
	}
	return &AuthHeaderVerifier{cfg: cfg, log: log, now: now}
}

// Enabled 是否启用
func (v *AuthHeaderVerifier) Enabled() bool {
	return v != nil && v.cfg.Enabled
}

// Authenticate 验证签名头并把操作人写入 request context
func (v *AuthHeaderVerifier) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		if !v.Enabled() {
			return c.Next()
		}
		if v.cfg.Secret == "" && len(v.cfg.Secrets) == 0 {
			v.log.Error("auth verifier misconfigured: missing secret")
			return response.InternalError(c, "auth misconfigured")
		}

		values, err := parseAuthHeaderValues(c.Get)
		var ac *AuthContext
		if err == nil {
			ac, err = v.Verify(values)
		}
		if err != nil {
			v.log.WithContext(c.Context()).Warn("auth header rejected",
				zap.Error(err),
				zap.String("issuer", values.Issuer),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			return response.Unauthorized(c, err.Error())
		}

		c.Locals(authLocalKey, ac)
		if op := ac.User.Operator(); op != "" {
			c.SetContext(logger.ContextWithOperator(c.Context(), op))
		}
		return c.Next()
	}
}

// RequirePermission 要求任一权限；验证关闭时放行
func (v *AuthHeaderVerifier) RequirePermission(perms ...string) fiber.Handler {
	return func(c fiber.Ctx) error {
		if !v.Enabled() {
			return c.Next()
		}
		user, ok := UserFromContext(c)
		if !ok {
			return response.Unauthorized(c, ErrAuthHeaderMissingUser.Error())
		}
		if !user.Has(perms...) {
			return response.Forbidden(c, "missing permission "+strings.Join(perms, " or "))
		}
		return c.Next()
	}
}

// Verify 校验签名、时效与签发方
func (v *AuthHeaderVerifier) Verify(values AuthHeaderValues) (*AuthContext, error) {
	if values.Version == "" || values.Issuer == "" || values.Timestamp == 0 || values.Signature == "" {
		return nil, ErrAuthHeaderMissing
	}
	if values.Version != AuthHeaderVersionV1 {
		return nil, ErrAuthHeaderInvalidVersion
	}
	if len(v.cfg.AllowedIssuers) > 0 && !slices.Contains(v.cfg.AllowedIssuers, values.Issuer) {
		return nil, ErrAuthHeaderIssuerNotAllowed
	}
	if values.Nonce == "" {
		return nil, ErrAuthHeaderMissingNonce
	}
	secret := v.secretFor(values.Issuer)
	if secret == "" {
		return nil, ErrAuthHeaderMissingSecret
	}
	if subtle.ConstantTimeCompare([]byte(sign(secret, values)), []byte(values.Signature)) != 1 {
		return nil, ErrAuthHeaderInvalidSign
	}

	issuedAt := time.Unix(values.Timestamp, 0)
	now := v.now()
	if now.Sub(issuedAt) > v.cfg.MaxAge {
		return nil, ErrAuthHeaderExpired
	}
	if issuedAt.After(now.Add(v.cfg.AllowedClockSkew)) {
		return nil, ErrAuthHeaderNotYetValid
	}

	user, err := DecodeUserInfo(values.User)
	if err != nil {
		return nil, ErrAuthHeaderInvalidUser
	}
	if !v.cfg.AllowEmptyUser && (user == nil || user.UserID == "") {
		return nil, ErrAuthHeaderMissingUser
	}
	return &AuthContext{Issuer: values.Issuer, IssuedAt: issuedAt, Nonce: values.Nonce, User: user}, nil
}

func (v *AuthHeaderVerifier) secretFor(issuer string) string {
	if s, ok := v.cfg.Secrets[issuer]; ok {
		return s
	}
	return v.cfg.Secret
}

// ParseAuthHeaderValues 从 http.Header 读取
func ParseAuthHeaderValues(h http.Header) (AuthHeaderValues, error) {
	if h == nil {
		return AuthHeaderValues{}, ErrAuthHeaderMissing
	}
	return parseAuthHeaderValues(func(key string, _ ...string) string { return h.Get(key) })
}

func parseAuthHeaderValues(get func(string, ...string) string) (AuthHeaderValues, error) {
	values := AuthHeaderValues{
		Version:   strings.TrimSpace(get(HeaderAuthVersion)),
		Issuer:    strings.TrimSpace(get(HeaderAuthIssuer)),
		Nonce:     strings.TrimSpace(get(HeaderAuthNonce)),
		User:      strings.TrimSpace(get(HeaderAuthUser)),
		Signature: strings.TrimSpace(get(HeaderAuthSignature)),
	}
	stamp := strings.TrimSpace(get(HeaderAuthTimestamp))
	if values.Version == "" || values.Issuer == "" || stamp == "" || values.Signature == "" {
		return values, ErrAuthHeaderMissing
	}
	ts, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil || ts <= 0 {
		return values, ErrAuthHeaderInvalidTS
	}
	values.Timestamp = ts
	return values, nil
}

// EncodeUserInfo base64url(JSON)
func EncodeUserInfo(user *UserInfo) (string, error) {
	if user == nil {
		return "", nil
	}
	data, err := json.Marshal(user)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeUserInfo 兼容标准 base64
func DecodeUserInfo(value string) (*UserInfo, error) {
	if value == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		if data, err = base64.StdEncoding.DecodeString(value); err != nil {
			return nil, err
		}
	}
	var user UserInfo
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func sign(secret string, v AuthHeaderValues) string {
	payload := strings.Join([]string{
		v.Version,
		v.Issuer,
		strconv.FormatInt(v.Timestamp, 10),
		v.Nonce,
		v.User,
	}, "|")
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func generateNonce() (string, error) {
	buf := make([]byte, authNonceSize)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
