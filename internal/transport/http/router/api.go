package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"empire-mine/internal/core/auth"
	mdw "empire-mine/internal/transport/http/middleware"
)

// NewAPIEngine 用户端：/api/v1
func NewAPIEngine(l *zap.Logger, jwter *auth.JWTer, reg *Registry, health HealthFunc) *gin.Engine {
	r := newEngine(l, health)

	// 前缀
	api := r.Group("/api/v1")

	// 鉴权分组（/me 必须挂这里，才能拿到 userId）
	authUser := api.Group("")
	authUser.Use(mdw.AuthJWT(jwter, ""))

	reg.MountAllAPI(api, authUser)
	return r
}
