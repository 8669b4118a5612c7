package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// requireAuth guards the operator API. Tokens are HS256 JWTs signed with the
// configured API secret; the subject claim names the operator for logging.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		operator, err := s.authenticate(c)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]any{
				"error":   "AuthenticationRequired",
				"message": err.Error(),
			})
		}
		c.Set("operator", operator)
		return next(c)
	}
}

func (s *Server) authenticate(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return "", errMissingAuth
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errBadAuthFormat
	}

	token, err := jwt.Parse([]byte(parts[1]),
		jwt.WithKey(jwa.HS256, []byte(s.apiSecret)),
		jwt.WithValidate(true),
	)
	if err != nil {
		return "", err
	}

	sub := token.Subject()
	if sub == "" {
		return "", errMissingSubject
	}

	return sub, nil
}

var (
	errMissingAuth    = errors.New("missing authorization header")
	errBadAuthFormat  = errors.New("invalid authorization header format")
	errMissingSubject = errors.New("missing 'sub' claim in token")
)
