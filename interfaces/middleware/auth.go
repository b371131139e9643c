package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"

	"github.com/Methodus-dev/methodus-shorts-planner/domain/dto"
	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/logger"
	"github.com/Methodus-dev/methodus-shorts-planner/infrastructure/utils"
)

// AdminAuth requires a Bearer token signed with secretKey and carrying the admin role.
func AdminAuth(secretKey string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		res := dto.Res{ResponseCode: "401", ResponseMessage: "Unauthorized"}
		if secretKey == "" {
			res.ResponseCode = "503"
			res.ResponseMessage = "Admin endpoints are disabled"
			ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, res)
			return
		}
		authorization := ctx.Request.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(authorization, "Bearer ")
		if !ok || tokenString == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, res)
			return
		}

		claims, err := utils.ParseAdminToken(tokenString, secretKey)
		if err != nil {
			res.ResponseMessage = rejectReason(err)
			logger.GetLogger().WithField("error", err).Warn("Admin token rejected")
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, res)
			return
		}
		ctx.Set("admin_subject", claims.Subject)
		ctx.Next()
	}
}

func rejectReason(err error) string {
	var ve *jwt.ValidationError
	if errors.As(err, &ve) {
		if ve.Errors&jwt.ValidationErrorMalformed != 0 {
			return "That's not even a token"
		} else if ve.Errors&(jwt.ValidationErrorExpired|jwt.ValidationErrorNotValidYet) != 0 {
			return "Timing is everything"
		}
		return fmt.Sprintf("Couldn't handle this token:%v", err)
	}
	return "Unauthorized"
}
