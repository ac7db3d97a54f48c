package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wellness-gatekeeper/internal/auth"
	"wellness-gatekeeper/internal/domain/access"
	"wellness-gatekeeper/internal/domain/users"
	"wellness-gatekeeper/internal/repository"
	"wellness-gatekeeper/internal/session"
)

const (
	ctxIdentity = "identity"
	ctxSession  = "session"
)

// IdentityFrom returns the identity stored by AuthMiddleware or OptionalAuth.
func IdentityFrom(c *gin.Context) (access.Identity, bool) {
	v, ok := c.Get(ctxIdentity)
	if !ok {
		return access.Identity{}, false
	}
	id, ok := v.(access.Identity)
	return id, ok
}

func setIdentity(c *gin.Context, id access.Identity) {
	c.Set(ctxIdentity, id)
	c.Set("user_id", id.ID)
	c.Set("email", id.Email)
	if id.Role != "" {
		c.Set("role", id.Role)
	}
}

func AuthMiddleware(verifier auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header missing"})
			return
		}
		token, ok := auth.BearerToken(header)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Bearer token malformed"})
			return
		}

		id, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		setIdentity(c, id)
		c.Next()
	}
}

// OptionalAuth stores the identity when a valid bearer token is present and
// lets the request through anonymously otherwise.
func OptionalAuth(verifier auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := auth.BearerToken(c.GetHeader("Authorization")); ok {
			if id, err := verifier.Verify(c.Request.Context(), token); err == nil {
				setIdentity(c, id)
			}
		}
		c.Next()
	}
}

// RequireRole checks the role on the caller's stored profile. The profile,
// not the token, is authoritative for roles.
func RequireRole(profiles repository.ProfileStore, role string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		p, err := profiles.FetchProfile(c.Request.Context(), id.ID)
		if err != nil && !errors.Is(err, repository.ErrProfileNotFound) {
			logger.Error("role check: fetch profile", zap.String("user_id", id.ID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
			return
		}
		if !hasRole(p, role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}

		c.Next()
	}
}

func hasRole(p *users.Profile, role string) bool {
	return p != nil && p.Role == role
}

// WithSession attaches the caller's entitlement session. It must run after
// AuthMiddleware.
func WithSession(manager *session.Manager, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		h, err := manager.Acquire(c.Request.Context(), id)
		if errors.Is(err, session.ErrSessionClosed) {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Shutting down"})
			return
		}
		if err != nil {
			// The session already fell back to its last known state.
			logger.Warn("session check failed", zap.String("user_id", id.ID), zap.Error(err))
		}

		c.Set(ctxSession, h)
		c.Next()
	}
}

func SessionFrom(c *gin.Context) (*session.Handle, bool) {
	v, ok := c.Get(ctxSession)
	if !ok {
		return nil, false
	}
	h, ok := v.(*session.Handle)
	return h, ok && h != nil
}
