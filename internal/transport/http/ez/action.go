package ez

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"empire-mine/internal/domain"
	resp "empire-mine/internal/transport/http/response"
)

// gin.Context keys set by the auth middleware.
const (
	CtxUserID = "userId"
	CtxRole   = "role"
)

type EZ struct{ g *gin.RouterGroup }

func New(g *gin.RouterGroup) EZ { return EZ{g: g} }

// 绑定方式
type Binder string

const (
	BindJSON  Binder = "json"  // 从 JSON 绑定
	BindQuery Binder = "query" // 从 URL ?a=b 绑定
	BindNone  Binder = "none"  // 不绑定，自己从 c.Param 取
)

// 统一错误对象（配合 resp.Error(int, msg)）
type AErr struct {
	Code int
	Msg  string
	Err  error
	// Data 非空时随错误一起返回
	Data any
}

func (e *AErr) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "action error"
}

func (e *AErr) Unwrap() error { return e.Err }

func BadRequest(msg string) error   { return &AErr{Code: resp.CodeBadRequest, Msg: msg} }
func Unauthorized(msg string) error { return &AErr{Code: resp.CodeUnauthorized, Msg: msg} }
func Internal(msg string, err error) error {
	return &AErr{Code: resp.CodeServerError, Msg: msg, Err: err}
}

// WithData attaches a partial result to err so the client still receives it.
func WithData(err error, data any) error {
	ae := FromError(err)
	return &AErr{Code: ae.Code, Msg: ae.Msg, Err: ae.Err, Data: data}
}

// FromError maps domain sentinels onto response codes.
func FromError(err error) *AErr {
	var ae *AErr
	if errors.As(err, &ae) {
		return ae
	}
	for _, m := range domainCodes {
		if errors.Is(err, m.err) {
			return &AErr{Code: m.code, Msg: m.err.Error(), Err: err}
		}
	}
	return &AErr{Code: resp.CodeServerError, Msg: "internal error", Err: err}
}

var domainCodes = []struct {
	err  error
	code int
}{
	{domain.ErrPersistence, resp.CodeServerError},
	{domain.ErrUserNotFound, resp.CodeNotFound},
	{domain.ErrAlreadyActivated, resp.CodeConflict},
	{domain.ErrEmailTaken, resp.CodeConflict},
	{domain.ErrDuplicateReferralCode, resp.CodeConflict},
	{domain.ErrInsufficientBalance, resp.CodePaymentRequired},
	{domain.ErrInvalidReferralCode, resp.CodeBadRequest},
	{domain.ErrInvalidAmount, resp.CodeBadRequest},
	{domain.ErrInvalidUser, resp.CodeBadRequest},
	{domain.ErrInvalidCredentials, resp.CodeUnauthorized},
}

// 动作定义：I 入参，O 出参
type Action[I any, O any] struct {
	Method  string   // "GET" | "POST" | "PUT" | "DELETE"
	Path    string   // 例："/login"、"/me/activate"
	Binder  Binder   // 绑定方式
	Auth    bool     // 是否要求登录（检查 userId）
	Roles   []string // 限定角色（可选）
	Handler func(c *gin.Context, in *I) (O, error)
}

// RegisterAction 在当前 EZ 下注册动作接口
func RegisterAction[I any, O any](e EZ, a Action[I, O]) {
	h := func(c *gin.Context) {
		// 1) 鉴权/角色
		if a.Auth {
			if c.GetString(CtxUserID) == "" {
				c.JSON(http.StatusOK, resp.Error(resp.CodeUnauthorized, "unauthorized"))
				return
			}
			if len(a.Roles) > 0 && !hasRole(c.GetString(CtxRole), a.Roles) {
				c.JSON(http.StatusOK, resp.Error(resp.CodeForbidden, "forbidden"))
				return
			}
		}

		// 2) 绑定入参
		var in I
		var bindErr error
		switch a.Binder {
		case BindJSON:
			bindErr = c.ShouldBindJSON(&in)
		case BindQuery:
			bindErr = c.ShouldBindQuery(&in)
		default: // BindNone: 不绑定
		}
		if bindErr != nil {
			c.JSON(http.StatusOK, resp.Error(resp.CodeBadRequest, bindErr.Error()))
			return
		}

		// 3) 执行 + 统一错误映射
		out, err := a.Handler(c, &in)
		if err != nil {
			ae := FromError(err)
			_ = c.Error(err)
			c.JSON(http.StatusOK, resp.ErrorWithData(ae.Code, ae.Error(), ae.Data))
			return
		}
		c.JSON(http.StatusOK, resp.OK(out))
	}

	switch strings.ToUpper(a.Method) {
	case http.MethodGet:
		e.g.GET(a.Path, h)
	case http.MethodPut:
		e.g.PUT(a.Path, h)
	case http.MethodDelete:
		e.g.DELETE(a.Path, h)
	default: // 默认 POST
		e.g.POST(a.Path, h)
	}
}

func hasRole(role string, roles []string) bool {
	for _, r := range roles {
		if role == r {
			return true
		}
	}
	return false
}
