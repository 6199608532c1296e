package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"

	"mpcasos/internal/apperr"
	"mpcasos/internal/logging"
)

type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// Principal is the authenticated caller.
type Principal struct {
	UserID      int64
	Username    string
	Roles       []string
	Permissions []string
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// JWTClaims is the token payload issued by the identity service.
type JWTClaims struct {
	jwt.RegisteredClaims
	IDUsuario     int64    `json:"idUsuario"`
	NombreUsuario string   `json:"nombreUsuario,omitempty"`
	Roles         []string `json:"roles,omitempty"`
	Permissions   []string `json:"permissions,omitempty"`
}

func authenticateJWT(token string, cfg AuthConfig) (Principal, error) {
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return Principal{}, errors.New("jwt secret not configured")
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	parser := jwt.NewParser(opts...)
	claims := &JWTClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil {
		return Principal{}, err
	}
	if !parsed.Valid {
		return Principal{}, errors.New("invalid token")
	}
	if claims.IDUsuario <= 0 {
		return Principal{}, errors.New("idUsuario claim required")
	}
	return Principal{
		UserID:      claims.IDUsuario,
		Username:    claims.NombreUsuario,
		Roles:       claims.Roles,
		Permissions: claims.Permissions,
	}, nil
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func newAuthMiddleware(basePath string, cfg AuthConfig) func(http.Handler) http.Handler {
	public := map[string]bool{
		path.Join(basePath, "health"):       true,
		path.Join(basePath, "openapi.json"): true,
		path.Join(basePath, "docs"):         true,
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			// Only enforce for API base path.
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			if public[req.URL.Path] {
				next.ServeHTTP(w, req)
				return
			}
			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			if authz == "" {
				respondStatusError(w, fromAppError(apperr.Authentication("token de acceso requerido")))
				return
			}
			token, ok := bearerToken(authz)
			if !ok {
				respondStatusError(w, fromAppError(apperr.Authentication("credenciales inválidas")))
				return
			}
			principal, err := authenticateJWT(token, cfg)
			if err != nil {
				if l := logging.FromContext(req.Context()); l != nil {
					l.WithError(err).Debug("http.auth.rejected")
				}
				respondStatusError(w, fromAppError(apperr.Authentication("token inválido o expirado")))
				return
			}
			ctx := withPrincipal(req.Context(), principal)
			if l := logging.FromContext(ctx); l != nil {
				ctx = logging.WithLogger(ctx, l.WithField("user_id", principal.UserID))
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}
}

func hasPermission(perms []string, perm string) bool {
	for _, p := range perms {
		if p == perm {
			return true
		}
	}
	return false
}

// requirePermission returns the principal when it holds perm.
func requirePermission(ctx context.Context, perm string) (Principal, error) {
	p, ok := principalFromContext(ctx)
	if !ok {
		return Principal{}, apperr.Authentication("autenticación requerida")
	}
	if perm != "" && !hasPermission(p.Permissions, perm) {
		return Principal{}, apperr.Authorization("permiso " + perm + " requerido")
	}
	return p, nil
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}
