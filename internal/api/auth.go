package api

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/victornm/quizzer/internal/domain"
	"github.com/victornm/quizzer/internal/errors"
)

const (
	principalKey = "principal"
	leeway       = 30 * time.Second
)

// Claims are the access token claims issued by the account service.
type Claims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens and exposes the caller as a domain.Player.
type Authenticator struct {
	secret []byte
	parser *jwt.Parser
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithLeeway(leeway),
		),
	}
}

// Verify parses the token and returns the player it was issued to.
func (a *Authenticator) Verify(token string) (domain.Player, error) {
	var claims Claims
	_, err := a.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return domain.Player{}, errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("INVALID_ACCESS_TOKEN"),
			errors.WithCause(err),
		)
	}

	if strings.TrimSpace(claims.Email) == "" {
		return domain.Player{}, errors.Unauthenticated("INVALID_ACCESS_TOKEN")
	}

	// Sessions and leaderboards compare emails exactly.
	return domain.Player{Name: claims.Name, Email: strings.ToLower(strings.TrimSpace(claims.Email))}, nil
}

// Middleware rejects requests without a valid bearer token.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || token == "" {
			abortWithError(c, errors.Unauthenticated("Please authenticate!"))
			return
		}

		p, err := a.Verify(token)
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(principalKey, p)
		c.Next()
	}
}

func playerFrom(c *gin.Context) domain.Player {
	p, _ := c.MustGet(principalKey).(domain.Player)
	return p
}
