package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"empire-mine/internal/core/auth"
	"empire-mine/internal/domain"
	mdw "empire-mine/internal/transport/http/middleware"
)

// NewAdminEngine 管理端：/admin/v1，统一要求 admin 角色
func NewAdminEngine(l *zap.Logger, jwter *auth.JWTer, reg *Registry, health HealthFunc) *gin.Engine {
	r := newEngine(l, health)

	admin := r.Group("/admin/v1")
	admin.Use(mdw.AuthJWT(jwter, domain.RoleAdmin))

	reg.MountAllAdmin(admin)
	return r
}
