package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"empire-mine/internal/core/auth"
	"empire-mine/internal/core/cache"
	"empire-mine/internal/domain"
	"empire-mine/internal/service"
	"empire-mine/internal/transport/http/ez"
	mdw "empire-mine/internal/transport/http/middleware"
)

// AccountHandler serves registration, login and the signed-in user's routes.
type AccountHandler struct {
	accounts   *service.AccountService
	activation *service.ActivationService
	jwter      *auth.JWTer
	log        *zap.Logger

	codes    *cache.Cache // nil disables the referral-code cache
	codesTTL time.Duration

	authRPS   rate.Limit // 0 leaves /auth unthrottled
	authBurst int
}

func NewAccountHandler(
	accounts *service.AccountService,
	activation *service.ActivationService,
	jwter *auth.JWTer,
	l *zap.Logger,
) *AccountHandler {
	if l == nil {
		l = zap.NewNop()
	}
	return &AccountHandler{accounts: accounts, activation: activation, jwter: jwter, log: l}
}

// WithCodeCache enables redis read-through for referral-code checks.
func (h *AccountHandler) WithCodeCache(c *cache.Cache, ttl time.Duration) *AccountHandler {
	if ttl > 0 {
		h.codes, h.codesTTL = c, ttl
	}
	return h
}

// WithAuthRateLimit throttles /auth/register and /auth/login per client IP.
func (h *AccountHandler) WithAuthRateLimit(rps float64, burst int) *AccountHandler {
	if rps > 0 && burst > 0 {
		h.authRPS, h.authBurst = rate.Limit(rps), burst
	}
	return h
}

func (h *AccountHandler) Priority() int { return 10 }

type registerIn struct {
	Email        string `json:"email"        binding:"required,email"`
	Password     string `json:"password"     binding:"omitempty,min=6,max=72"`
	Name         string `json:"name"         binding:"omitempty,max=64"`
	ReferralCode string `json:"referralCode" binding:"omitempty,max=32"`
}

type loginIn struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"max=72"`
}

type sessionOut struct {
	Token string   `json:"token"`
	User  UserView `json:"user"`
}

type codeCheckOut struct {
	Code  string `json:"code"`
	Valid bool   `json:"valid"`
}

func (h *AccountHandler) MountAPI(public, authed *gin.RouterGroup) {
	pub := ez.New(public)
	me := ez.New(authed)

	var throttle []gin.HandlerFunc
	if h.authRPS > 0 {
		throttle = append(throttle, mdw.RateLimitPerIP(h.authRPS, h.authBurst))
	}
	sessions := ez.New(public.Group("/auth", throttle...))

	ez.RegisterAction(sessions, ez.Action[registerIn, sessionOut]{
		Method:  http.MethodPost,
		Path:    "/register",
		Binder:  ez.BindJSON,
		Handler: h.register,
	})
	ez.RegisterAction(sessions, ez.Action[loginIn, sessionOut]{
		Method:  http.MethodPost,
		Path:    "/login",
		Binder:  ez.BindJSON,
		Handler: h.login,
	})
	ez.RegisterAction(pub, ez.Action[struct{}, codeCheckOut]{
		Method:  http.MethodGet,
		Path:    "/referral-codes/:code",
		Binder:  ez.BindNone,
		Handler: h.checkCode,
	})

	ez.RegisterAction(me, ez.Action[struct{}, UserView]{
		Method:  http.MethodGet,
		Path:    "/me",
		Binder:  ez.BindNone,
		Auth:    true,
		Handler: h.me,
	})
	ez.RegisterAction(me, ez.Action[struct{}, *service.ActivationResult]{
		Method:  http.MethodPost,
		Path:    "/me/activate",
		Binder:  ez.BindNone,
		Auth:    true,
		Handler: h.activate,
	})
	ez.RegisterAction(me, ez.Action[struct{}, listOut]{
		Method:  http.MethodGet,
		Path:    "/me/downline",
		Binder:  ez.BindNone,
		Auth:    true,
		Handler: h.downline,
	})
}

func (h *AccountHandler) register(c *gin.Context, in *registerIn) (sessionOut, error) {
	u, err := h.accounts.Register(c.Request.Context(), service.RegisterArgs{
		Email:        in.Email,
		Password:     in.Password,
		Name:         in.Name,
		ReferralCode: in.ReferralCode,
	})
	if err != nil {
		return sessionOut{}, err
	}
	return h.session(u.ID, u.Role, toView(u))
}

func (h *AccountHandler) login(c *gin.Context, in *loginIn) (sessionOut, error) {
	u, err := h.accounts.Login(c.Request.Context(), in.Email, in.Password)
	if err != nil {
		// 不区分 "无此用户" 与 "密码错误"
		return sessionOut{}, ez.Unauthorized("invalid credentials")
	}
	return h.session(u.ID, u.Role, toView(u))
}

func (h *AccountHandler) session(uid, role string, v UserView) (sessionOut, error) {
	tok, err := h.jwter.Issue(uid, role)
	if err != nil || tok == "" {
		return sessionOut{}, ez.Internal("issue token failed", err)
	}
	return sessionOut{Token: tok, User: v}, nil
}

func (h *AccountHandler) checkCode(c *gin.Context, _ *struct{}) (codeCheckOut, error) {
	code := domain.NormalizeCode(c.Param("code"))
	if code == "" {
		return codeCheckOut{}, ez.BadRequest("missing code")
	}
	if h.codes == nil {
		return codeCheckOut{Code: code, Valid: h.accounts.CheckReferralCode(c.Request.Context(), code)}, nil
	}

	hit, err := cache.GetOrLoadJSON(h.codes, c.Request.Context(), "refcode:"+code, h.codesTTL,
		func(ctx context.Context) (*codeCheckOut, error) {
			if !h.accounts.CheckReferralCode(ctx, code) {
				return nil, nil
			}
			return &codeCheckOut{Code: code, Valid: true}, nil
		})
	if err != nil {
		h.log.Warn("referral code cache unavailable", zap.String("code", code), zap.Error(err))
		return codeCheckOut{Code: code, Valid: h.accounts.CheckReferralCode(c.Request.Context(), code)}, nil
	}
	if hit == nil {
		return codeCheckOut{Code: code}, nil
	}
	return *hit, nil
}

func (h *AccountHandler) me(c *gin.Context, _ *struct{}) (UserView, error) {
	u, err := h.accounts.Get(c.Request.Context(), c.GetString(ez.CtxUserID))
	if err != nil {
		return UserView{}, err
	}
	return toView(u), nil
}

func (h *AccountHandler) activate(c *gin.Context, _ *struct{}) (*service.ActivationResult, error) {
	uid := c.GetString(ez.CtxUserID)
	res, err := h.activation.Activate(c.Request.Context(), uid)
	if err != nil {
		if res != nil {
			// 激活已提交，奖励发放中断：把已完成部分带回
			h.log.Error("referral cascade interrupted",
				zap.String("rid", c.GetString(mdw.KeyRequestID)),
				zap.String("user_id", uid),
				zap.Int("credited_levels", len(res.Credits)),
				zap.Error(err),
			)
			return nil, ez.WithData(err, res)
		}
		return nil, err
	}
	return res, nil
}

func (h *AccountHandler) downline(c *gin.Context, _ *struct{}) (listOut, error) {
	us, err := h.accounts.Downline(c.Request.Context(), c.GetString(ez.CtxUserID))
	if err != nil {
		return listOut{}, err
	}
	return listOut{Total: len(us), Items: toViews(us)}, nil
}
