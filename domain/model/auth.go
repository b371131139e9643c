package model

import "github.com/golang-jwt/jwt"

const RoleAdmin = "admin"

// AdminClaims authorize the operator endpoints (manual refresh).
type AdminClaims struct {
	Role string `json:"role"`
	jwt.StandardClaims
}
