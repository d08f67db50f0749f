package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/huddle/backend/internal/models"
	"github.com/huddle/backend/internal/session"
)

type contextKey string

const sessionKey contextKey = "session"

var errRevoked = errors.New("token revoked")

// Session is the authenticated caller for one request.
type Session struct {
	UserID    string
	Email     string
	Name      string
	Token     string
	TokenID   string
	ExpiresAt time.Time
}

// Verifier turns a bearer token into a Session.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Session, error)
}

// JWTVerifier accepts tokens issued by this service and rejects revoked ones.
type JWTVerifier struct {
	secret  []byte
	revoker session.Revoker
}

func NewJWTVerifier(jwtSecret string, revoker session.Revoker) *JWTVerifier {
	return &JWTVerifier{secret: []byte(jwtSecret), revoker: revoker}
}

func (v *JWTVerifier) Verify(ctx context.Context, token string) (*Session, error) {
	claims, err := session.Parse(v.secret, token)
	if err != nil {
		return nil, err
	}
	if v.revoker != nil {
		revoked, err := v.revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, errRevoked
		}
	}
	return &Session{
		UserID:    claims.UserID,
		Email:     claims.Email,
		Token:     token,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAtTime(),
	}, nil
}

type FirebaseAuthConfig struct {
	ProjectID       string
	CredentialsJSON string
}

// NewFirebaseAuthClient uses the inline credentials when given, else Application Default Credentials.
func NewFirebaseAuthClient(ctx context.Context, cfg FirebaseAuthConfig) (*fbauth.Client, error) {
	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, err
	}
	return app.Auth(ctx)
}

// FirebaseVerifier accepts Firebase ID tokens.
type FirebaseVerifier struct {
	client *fbauth.Client
}

func NewFirebaseVerifier(client *fbauth.Client) *FirebaseVerifier {
	return &FirebaseVerifier{client: client}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (*Session, error) {
	tok, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, err
	}
	email, _ := tok.Claims["email"].(string)
	name, _ := tok.Claims["name"].(string)
	return &Session{
		UserID:    tok.UID,
		Email:     email,
		Name:      name,
		Token:     token,
		ExpiresAt: time.Unix(tok.Expires, 0),
	}, nil
}

// Authenticate requires a bearer token accepted by one of the verifiers, tried in order.
func Authenticate(log *zap.Logger, verifiers ...Verifier) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Authorization header required"))
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
				writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid authorization header format"))
				return
			}
			token := strings.TrimSpace(parts[1])

			for _, v := range verifiers {
				if v == nil {
					continue
				}
				sess, err := v.Verify(r.Context(), token)
				if err != nil {
					log.Debug("[Auth] verifier rejected token", zap.Error(err))
					continue
				}
				next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
				return
			}

			writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid or expired token"))
		})
	}
}

func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

func SessionFromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(sessionKey).(*Session)
	return sess, ok && sess != nil
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) string {
	if sess, ok := SessionFromContext(ctx); ok {
		return sess.UserID
	}
	return ""
}

func GetUserEmail(ctx context.Context) string {
	if sess, ok := SessionFromContext(ctx); ok {
		return sess.Email
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
