package web

import (
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tttranscribe/internal/infra/security"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleClient = "client"
	RoleAdmin  = "admin"
)

const (
	HeaderAPIKey    = "X-API-Key"
	HeaderTimestamp = "X-Timestamp"
	HeaderSignature = "X-Signature"

	maxSignedBody = 1 << 20
)

var (
	errMissingCredentials = errors.New("missing credentials")
	errInvalidCredentials = errors.New("invalid credentials")
	// errSignatureRejected covers a valid key whose request signature or
	// timestamp does not check out.
	errSignatureRejected = errors.New("request signature rejected")
)

// Principal is the authenticated caller.
type Principal struct {
	ClientID string
	Role     string
	Method   string // api_key | signature | jwt
}

func (p *Principal) IsAdmin() bool { return p != nil && p.Role == RoleAdmin }

type AuthConfig struct {
	APIKeys   map[string]string // secret -> client id
	AdminIDs  []string
	JWTSecret string
	JWTIssuer string
	JWTTTL    time.Duration

	SigningSecret string
	SignatureSkew time.Duration
}

// AuthManager accepts static API keys, signed requests and short-lived HS256
// tokens side by side.
type AuthManager struct {
	keys   map[string]string
	admins map[string]struct{}
	secret []byte
	issuer string
	ttl    time.Duration
	reqSig *security.HMACSigner // nil disables signed requests
	skew   time.Duration
	now    func() time.Time
}

func NewAuthManager(cfg AuthConfig) *AuthManager {
	admins := make(map[string]struct{}, len(cfg.AdminIDs))
	for _, id := range cfg.AdminIDs {
		admins[id] = struct{}{}
	}
	ttl := cfg.JWTTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	skew := cfg.SignatureSkew
	if skew <= 0 {
		skew = 5 * time.Minute
	}
	var reqSig *security.HMACSigner
	if cfg.SigningSecret != "" {
		reqSig, _ = security.NewHMACSigner(cfg.SigningSecret)
	}
	return &AuthManager{
		keys:   cfg.APIKeys,
		admins: admins,
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.JWTIssuer,
		ttl:    ttl,
		reqSig: reqSig,
		skew:   skew,
		now:    time.Now,
	}
}

type ClientClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// CanMint reports whether a signing secret is configured.
func (a *AuthManager) CanMint() bool { return len(a.secret) > 0 }

func (a *AuthManager) roleFor(clientID string) string {
	if _, ok := a.admins[clientID]; ok {
		return RoleAdmin
	}
	return RoleClient
}

// Mint issues a token for p that expires after the configured TTL.
func (a *AuthManager) Mint(p *Principal) (string, time.Time, error) {
	if !a.CanMint() {
		return "", time.Time{}, errors.New("jwt secret not configured")
	}
	now := a.now()
	exp := now.Add(a.ttl)
	claims := ClientClaims{
		Role: p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   p.ClientID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Authenticate accepts a signed request (X-API-Key, X-Timestamp,
// X-Signature) or "Authorization: Bearer <api-key|jwt>".
func (a *AuthManager) Authenticate(r *http.Request) (*Principal, error) {
	if r.Header.Get(HeaderSignature) != "" {
		return a.verifySigned(r)
	}
	hdr := strings.TrimSpace(r.Header.Get("Authorization"))
	if hdr == "" {
		return nil, errMissingCredentials
	}
	if len(hdr) < 7 || !strings.EqualFold(hdr[:7], "bearer ") {
		return nil, errInvalidCredentials
	}
	tok := strings.TrimSpace(hdr[7:])
	if tok == "" {
		return nil, errInvalidCredentials
	}
	if id, ok := a.lookupKey(tok); ok {
		return &Principal{ClientID: id, Role: a.roleFor(id), Method: "api_key"}, nil
	}
	if a.CanMint() && strings.Count(tok, ".") == 2 {
		return a.parse(tok)
	}
	return nil, errInvalidCredentials
}

// SigningPayload is the byte string a signed request covers:
// method, path, raw body and millisecond timestamp joined by newlines.
func SigningPayload(method, path string, body []byte, tsMillis int64) []byte {
	var b bytes.Buffer
	b.WriteString(method)
	b.WriteByte('\n')
	b.WriteString(path)
	b.WriteByte('\n')
	b.Write(body)
	b.WriteByte('\n')
	b.WriteString(strconv.FormatInt(tsMillis, 10))
	return b.Bytes()
}

// verifySigned checks the key, the timestamp window and the HMAC over the raw
// body, then restores the body for the handler.
func (a *AuthManager) verifySigned(r *http.Request) (*Principal, error) {
	if a.reqSig == nil {
		return nil, errInvalidCredentials
	}
	id, ok := a.lookupKey(strings.TrimSpace(r.Header.Get(HeaderAPIKey)))
	if !ok {
		return nil, errInvalidCredentials
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(r.Header.Get(HeaderTimestamp)), 10, 64)
	if err != nil {
		return nil, errInvalidCredentials
	}
	skew := a.now().UnixMilli() - ts
	if skew < 0 {
		skew = -skew
	}
	if skew > a.skew.Milliseconds() {
		return nil, errSignatureRejected
	}

	var body []byte
	if r.Body != nil {
		body, err = io.ReadAll(io.LimitReader(r.Body, maxSignedBody+1))
		if err != nil || len(body) > maxSignedBody {
			return nil, errSignatureRejected
		}
		_ = r.Body.Close()
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	if !a.reqSig.Verify(SigningPayload(r.Method, r.URL.Path, body, ts), r.Header.Get(HeaderSignature)) {
		return nil, errSignatureRejected
	}
	return &Principal{ClientID: id, Role: a.roleFor(id), Method: "signature"}, nil
}

func (a *AuthManager) lookupKey(tok string) (string, bool) {
	if tok == "" {
		return "", false
	}
	var id string
	found := false
	for key, client := range a.keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(tok)) == 1 {
			id, found = client, true
		}
	}
	return id, found
}

func (a *AuthManager) parse(tok string) (*Principal, error) {
	claims := &ClientClaims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !tkn.Valid || claims.Subject == "" {
		return nil, errInvalidCredentials
	}
	role := claims.Role
	if role != RoleAdmin {
		role = RoleClient
	}
	return &Principal{ClientID: claims.Subject, Role: role, Method: "jwt"}, nil
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the caller attached by the auth middleware.
func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}
