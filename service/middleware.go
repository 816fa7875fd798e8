package service

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/morf1ng/105site/logutils"
	"github.com/morf1ng/105site/metrics"
	"github.com/morf1ng/105site/response"
	"github.com/morf1ng/105site/util"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

const (
	requestIDKey = "request_id"
	userIDKey    = "user_id"
	rolesKey     = "roles"
)

// RequestID echoes X-Request-Id or generates one, and writes an access log
// line once the request is done.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := strings.TrimSpace(c.GetHeader("X-Request-Id"))
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set("X-Request-Id", rid)

		start := time.Now()
		c.Next()

		logutils.WithRequest(rid).WithFields(logutils.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("request")
	}
}

// CORS allows the configured origins and exposes the token headers set by
// the auth endpoints.
func CORS(origins []string) gin.HandlerFunc {
	conf := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Refresh-Token", "X-Request-Id"},
		ExposeHeaders:    []string{"Authorization", "X-Refresh-Token", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		// credentials cannot be combined with a literal "*"; reflect the origin instead
		conf.AllowOriginFunc = func(string) bool { return true }
	} else {
		conf.AllowOrigins = origins
	}
	return cors.New(conf)
}

// BearerAuth requires a valid access token in the Authorization header and
// stores its user id and role names in the context.
func BearerAuth(tokens *util.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, found := strings.Cut(header, " ")
		token = strings.TrimSpace(token)
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			c.Header("WWW-Authenticate", "Bearer")
			response.AbortWithError(c, http.StatusUnauthorized, "Not authenticated", response.NotAuthenticated)
			return
		}
		msg, err := tokens.CheckToken(token, util.AccessToken)
		if err != nil || msg.UserID == 0 {
			c.Header("WWW-Authenticate", "Bearer")
			response.AbortWithError(c, http.StatusUnauthorized, "Invalid token", response.InvalidToken)
			return
		}
		c.Set(userIDKey, msg.UserID)
		c.Set(rolesKey, msg.Roles)
		c.Next()
	}
}

// RoleRequired lets the request through only when the token carries role.
// It must run after BearerAuth.
func RoleRequired(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, r := range CurrentRoles(c) {
			if r == role {
				c.Next()
				return
			}
		}
		response.AbortWithError(c, http.StatusForbidden, "Not enough permissions", response.InvalidRole)
	}
}

func CurrentUserID(c *gin.Context) uint {
	return c.GetUint(userIDKey)
}

func CurrentRoles(c *gin.Context) []string {
	return c.GetStringSlice(rolesKey)
}

// maxLimiters bounds the per-client limiter table. The client seen least
// recently is dropped once it is full.
const maxLimiters = 4096

type ipLimiter struct {
	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
}

func newIPLimiter(limit rate.Limit, burst, size int) *ipLimiter {
	limiters, err := lru.New[string, *rate.Limiter](size)
	if err != nil {
		panic(err)
	}
	return &ipLimiter{limiters: limiters, limit: limit, burst: burst}
}

func (l *ipLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters.Get(key); ok {
		return lim
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	l.limiters.Add(key, lim)
	return lim
}

// LoginRateLimit throttles requests per client IP.
func LoginRateLimit(perSecond float64, burst int) gin.HandlerFunc {
	l := newIPLimiter(rate.Limit(perSecond), burst, maxLimiters)
	return func(c *gin.Context) {
		if !l.get(c.ClientIP()).Allow() {
			metrics.LoginAttempts.WithLabelValues("limited").Inc()
			response.AbortWithError(c, http.StatusTooManyRequests, "Too many requests, try again later", response.TooManyRequests)
			return
		}
		c.Next()
	}
}
