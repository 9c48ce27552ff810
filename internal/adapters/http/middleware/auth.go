package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quotebook/internal/adapters/http/dto"
	"github.com/jsamuelsen/quotebook/internal/platform/config"
)

// ContextKeyClaims is the gin context key holding the caller's *Claims.
const ContextKeyClaims = "claims"

// Claims identifies the caller. The API sits behind the chat command layer,
// which has already resolved the user and forwards their platform ID and
// role names as headers; nothing here verifies a credential.
type Claims struct {
	Subject string
	Roles   []string
}

// HasRole reports whether the caller holds role.
func (c *Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// identityHeaders returns the configured header names, defaulting to
// X-User-ID and X-User-Roles.
func identityHeaders(cfg *config.AuthConfig) (subject, roles string) {
	subject, roles = "X-User-ID", "X-User-Roles"
	if cfg == nil {
		return subject, roles
	}

	if cfg.SubjectHeader != "" {
		subject = cfg.SubjectHeader
	}

	if cfg.RolesHeader != "" {
		roles = cfg.RolesHeader
	}

	return subject, roles
}

// ExtractClaims reads the caller from the identity headers. Missing headers
// give empty claims.
func ExtractClaims(c *gin.Context, cfg *config.AuthConfig) *Claims {
	subjectHeader, rolesHeader := identityHeaders(cfg)

	claims := &Claims{Subject: strings.TrimSpace(c.GetHeader(subjectHeader))}
	if raw := c.GetHeader(rolesHeader); raw != "" {
		claims.Roles = parseCommaSeparated(raw)
	}

	return claims
}

// GetClaims returns the claims stored by RequireAuth or RequireRole, or nil.
func GetClaims(c *gin.Context) *Claims {
	v, ok := c.Get(ContextKeyClaims)
	if !ok {
		return nil
	}

	claims, _ := v.(*Claims)

	return claims
}

// Subject returns the caller's user ID, or "" when unauthenticated.
func Subject(c *gin.Context) string {
	if claims := GetClaims(c); claims != nil {
		return claims.Subject
	}

	return ""
}

// RequireAuth rejects requests without a caller ID with 401. Voting routes
// use it so every upvote is attributed to a user.
func RequireAuth(cfg *config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ExtractClaims(c, cfg)
		if claims.Subject == "" {
			abortWith(c, http.StatusUnauthorized, dto.ErrorCodeUnauthorized, "user identity required")
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// RequireRole rejects callers without role with 403. Claims already stored
// by RequireAuth are reused.
func RequireRole(cfg *config.AuthConfig, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			claims = ExtractClaims(c, cfg)
			c.Set(ContextKeyClaims, claims)
		}

		if !claims.HasRole(role) {
			abortWith(c, http.StatusForbidden, dto.ErrorCodeForbidden, "insufficient permissions: role "+role+" required")
			return
		}

		c.Next()
	}
}

func abortWith(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, dto.NewErrorResponse(code, message).WithTraceID(dto.GetTraceID(c)))
}

// parseCommaSeparated splits a role list, dropping blanks.
func parseCommaSeparated(s string) []string {
	var out []string

	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}
