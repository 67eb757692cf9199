package middleware

import (
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"user-api/internal/core/auth"
	"user-api/internal/domain"
	resp "user-api/internal/transport/http/response"
)

const KeyIdentity = "identity"

type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// Authenticate requires a valid bearer token and stores the caller's
// domain.Identity on the context.
func Authenticate(p TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, tok, ok := strings.Cut(c.GetHeader("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(tok) == "" {
			resp.Abort(c, resp.CodeUnauthorized, "")
			return
		}
		claims, err := p.Parse(strings.TrimSpace(tok))
		if err != nil {
			resp.Abort(c, resp.CodeUnauthorized, "")
			return
		}
		role := domain.Role(claims.Role)
		if !role.Valid() {
			role = domain.RoleUser
		}
		c.Set(KeyIdentity, domain.Identity{UserID: claims.UserID, Email: claims.Email, Role: role})
		c.Next()
	}
}

// RequireRole must run after Authenticate.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			resp.Abort(c, resp.CodeUnauthorized, "")
			return
		}
		if !slices.Contains(roles, id.Role) {
			resp.Abort(c, resp.CodeForbidden, "")
			return
		}
		c.Next()
	}
}

func IdentityFrom(c *gin.Context) (domain.Identity, bool) {
	v, ok := c.Get(KeyIdentity)
	if !ok {
		return domain.Identity{}, false
	}
	id, ok := v.(domain.Identity)
	return id, ok
}
