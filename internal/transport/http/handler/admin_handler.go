package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"empire-mine/internal/domain"
	"empire-mine/internal/service"
	"empire-mine/internal/transport/http/ez"
)

// AdminHandler exposes user inspection and manual ledger movements.
type AdminHandler struct {
	accounts *service.AccountService
	ledger   *service.LedgerService
}

func NewAdminHandler(accounts *service.AccountService, ledger *service.LedgerService) *AdminHandler {
	return &AdminHandler{accounts: accounts, ledger: ledger}
}

type listQ struct {
	Offset int    `form:"offset,default=0"`
	Limit  int    `form:"limit,default=20"`
	Q      string `form:"q"` // 按 email/name/code 模糊搜
}

type amountIn struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

func (h *AdminHandler) MountAdmin(admin *gin.RouterGroup) {
	g := ez.New(admin)

	ez.RegisterAction(g, ez.Action[listQ, listOut]{
		Method:  http.MethodGet,
		Path:    "/users",
		Binder:  ez.BindQuery,
		Handler: h.list,
	})
	ez.RegisterAction(g, ez.Action[struct{}, UserView]{
		Method: http.MethodGet,
		Path:   "/users/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (UserView, error) {
			u, err := h.accounts.Get(c.Request.Context(), c.Param("id"))
			if err != nil {
				return UserView{}, err
			}
			return toView(u), nil
		},
	})
	ez.RegisterAction(g, ez.Action[amountIn, UserView]{
		Method:  http.MethodPost,
		Path:    "/users/:id/deposit",
		Binder:  ez.BindJSON,
		Handler: h.move(h.ledger.Deposit),
	})
	ez.RegisterAction(g, ez.Action[amountIn, UserView]{
		Method:  http.MethodPost,
		Path:    "/users/:id/reward",
		Binder:  ez.BindJSON,
		Handler: h.move(h.ledger.Reward),
	})
	ez.RegisterAction(g, ez.Action[amountIn, UserView]{
		Method:  http.MethodPost,
		Path:    "/users/:id/debit",
		Binder:  ez.BindJSON,
		Handler: h.move(h.ledger.Debit),
	})
}

func (h *AdminHandler) list(c *gin.Context, in *listQ) (listOut, error) {
	if in.Limit <= 0 || in.Limit > 100 {
		in.Limit = 20
	}
	if in.Offset < 0 {
		in.Offset = 0
	}
	all := h.accounts.List(c.Request.Context())
	if s := strings.ToLower(strings.TrimSpace(in.Q)); s != "" {
		filtered := all[:0:0]
		for _, u := range all {
			if strings.Contains(strings.ToLower(u.Email), s) ||
				strings.Contains(strings.ToLower(u.Name), s) ||
				strings.Contains(strings.ToLower(u.ReferralCode), s) {
				filtered = append(filtered, u)
			}
		}
		all = filtered
	}

	out := listOut{Total: len(all), Items: []UserView{}}
	if in.Offset >= len(all) {
		return out, nil
	}
	end := min(in.Offset+in.Limit, len(all))
	out.Items = toViews(all[in.Offset:end])
	return out, nil
}

func (h *AdminHandler) move(
	op func(ctx context.Context, userID string, amount int64) (domain.User, error),
) func(*gin.Context, *amountIn) (UserView, error) {
	return func(c *gin.Context, in *amountIn) (UserView, error) {
		u, err := op(c.Request.Context(), c.Param("id"), in.Amount)
		if err != nil {
			return UserView{}, err
		}
		return toView(u), nil
	}
}
