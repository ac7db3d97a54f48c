package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wellness-gatekeeper/internal/domain/access"
)

// RequireFeature blocks the request with 402 unless the caller's tier grants
// feature. A blocked request raises the session's paywall flag.
func RequireFeature(feature access.Feature) gin.HandlerFunc {
	return func(c *gin.Context) {
		h, ok := SessionFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		if !h.Session.RequireFeature(feature) {
			st := h.Session.Status()
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
				"error":   "Your plan does not include this feature",
				"feature": feature,
				"plan":    st.Plan,
				"paywall": true,
			})
			return
		}

		c.Next()
	}
}
