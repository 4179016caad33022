package middleware

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/moltflow/backend/internal/apikey"
	"github.com/moltflow/backend/internal/logger"
	"github.com/moltflow/backend/internal/models"
)

var jwtSecret = []byte(os.Getenv("JWT_SECRET"))

// Context keys set on successful authentication.
const (
	ctxActorID   = "actor_id"
	ctxActorType = "actor_type"
	ctxAgent     = "agent"
	ctxUser      = "user"
)

// AuthMiddleware resolves either an agent (Bearer API key) or an expert
// (JWT session token) from the Authorization header.
type AuthMiddleware struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAuthMiddleware(db *gorm.DB, log *logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{db: db, log: log.With("component", "auth")}
}

// RequireAuth rejects the request unless an agent or expert authenticates.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.authenticate(c) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		c.Next()
	}
}

// RequireAgent rejects anything but a valid agent API key.
func (m *AuthMiddleware) RequireAgent() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.authenticate(c) || ActorType(c) != models.ActorAgent {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Agent authentication required"})
			return
		}
		c.Next()
	}
}

// RequireExpert rejects anything but a valid expert session.
func (m *AuthMiddleware) RequireExpert() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.authenticate(c) || ActorType(c) != models.ActorExpert {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "You must be logged in"})
			return
		}
		c.Next()
	}
}

// OptionalAuth authenticates when credentials are present but never rejects.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.authenticate(c)
		c.Next()
	}
}

func (m *AuthMiddleware) authenticate(c *gin.Context) bool {
	if _, ok := c.Get(ctxActorID); ok {
		return true
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return false
	}

	// Agent API keys carry the key prefix; anything else is treated as an
	// expert session token.
	if key := apikey.ExtractFromHeader(authHeader); key != "" {
		return m.authenticateAgent(c, key)
	}
	return m.authenticateExpert(c, authHeader)
}

// authenticateAgent finds candidate agents by key fingerprint, then confirms
// with a single bcrypt comparison per candidate.
func (m *AuthMiddleware) authenticateAgent(c *gin.Context, key string) bool {
	var candidates []models.Agent
	fp := apikey.Fingerprint(key)
	if err := m.db.Where("api_key_fingerprint = ?", fp).Find(&candidates).Error; err != nil {
		m.log.Error("agent lookup failed", "error", err)
		return false
	}

	for i := range candidates {
		if apikey.Verify(key, candidates[i].APIKeyHash) {
			c.Set(ctxActorID, candidates[i].ID)
			c.Set(ctxActorType, models.ActorAgent)
			c.Set(ctxAgent, &candidates[i])
			return true
		}
	}
	return false
}

func (m *AuthMiddleware) authenticateExpert(c *gin.Context, authHeader string) bool {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return false
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return false
	}
	rawID, _ := claims["user_id"].(string)
	userID, err := uuid.Parse(rawID)
	if err != nil {
		return false
	}

	var user models.User
	if err := m.db.First(&user, "id = ?", userID).Error; err != nil {
		return false
	}

	c.Set(ctxActorID, user.ID)
	c.Set(ctxActorType, models.ActorExpert)
	c.Set(ctxUser, &user)
	return true
}

// Actor returns the authenticated actor's id and type.
func Actor(c *gin.Context) (uuid.UUID, string, bool) {
	id, ok := c.Get(ctxActorID)
	if !ok {
		return uuid.Nil, "", false
	}
	return id.(uuid.UUID), ActorType(c), true
}

// ActorType returns "agent" or "expert", or "" when unauthenticated.
func ActorType(c *gin.Context) string {
	t, _ := c.Get(ctxActorType)
	s, _ := t.(string)
	return s
}

// AgentFrom returns the authenticated agent, if any.
func AgentFrom(c *gin.Context) (*models.Agent, bool) {
	v, ok := c.Get(ctxAgent)
	if !ok {
		return nil, false
	}
	agent, ok := v.(*models.Agent)
	return agent, ok
}

// UserFrom returns the authenticated expert, if any.
func UserFrom(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(ctxUser)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}
