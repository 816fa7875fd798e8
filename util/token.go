package util

import (
	"errors"
	"fmt"
	"time"

	"github.com/morf1ng/105site/config"
	"github.com/morf1ng/105site/logutils"

	jwt "github.com/golang-jwt/jwt/v5"
)

type TokenConf struct {
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	AccessTokenSecret  string
	RefreshTokenSecret string
}

func NewTokenConf(cfg *config.Config) *TokenConf {
	return &TokenConf{
		AccessTokenExpiry:  time.Duration(cfg.Auth.AccessTokenExpiryMinute) * time.Minute,
		RefreshTokenExpiry: time.Duration(cfg.Auth.RefreshTokenExpiryHour) * time.Hour,
		AccessTokenSecret:  cfg.Auth.AccessTokenSecret,
		RefreshTokenSecret: cfg.Auth.RefreshTokenSecret,
	}
}

// TokenKind tells access tokens and refresh tokens apart, so one cannot be
// presented in place of the other.
type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

type (
	JWTClaims struct {
		UserID uint      `json:"user_id"`
		Roles  []string  `json:"roles"`
		Kind   TokenKind `json:"typ"`
		jwt.RegisteredClaims
	}
	JWTMessage struct {
		UserID uint     `json:"userID"` // User ID
		Roles  []string `json:"roles"`  // Role names, e.g. ["admin"]
	}
)

var ErrTokenKind = errors.New("token kind mismatch")

type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewTokenManager(conf *TokenConf) *TokenManager {
	refreshSecret := conf.RefreshTokenSecret
	if refreshSecret == "" {
		refreshSecret = conf.AccessTokenSecret
	}
	return &TokenManager{
		accessSecret:  []byte(conf.AccessTokenSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     conf.AccessTokenExpiry,
		refreshTTL:    conf.RefreshTokenExpiry,
	}
}

func (tm *TokenManager) secret(kind TokenKind) []byte {
	if kind == RefreshToken {
		return tm.refreshSecret
	}
	return tm.accessSecret
}

func (tm *TokenManager) createToken(msg *JWTMessage, kind TokenKind, ttl time.Duration) (string, error) {
	now := time.Now()
	roles := msg.Roles
	if roles == nil {
		roles = []string{}
	}
	claims := &JWTClaims{
		UserID: msg.UserID,
		Roles:  roles,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secret(kind))
}

// CreateTokens creates a new access token and a new refresh token
func (tm *TokenManager) CreateTokens(msg *JWTMessage) (
	accessToken string, refreshToken string, err error) {
	accessToken, err = tm.createToken(msg, AccessToken, tm.accessTTL)
	if err != nil {
		logutils.Log.Error(err)
		return "", "", err
	}
	refreshToken, err = tm.createToken(msg, RefreshToken, tm.refreshTTL)
	if err != nil {
		logutils.Log.Error(err)
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

// CheckToken validates signature, expiry and kind of requestToken.
func (tm *TokenManager) CheckToken(requestToken string, kind TokenKind) (JWTMessage, error) {
	claims := JWTClaims{}
	_, err := jwt.ParseWithClaims(requestToken, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return tm.secret(kind), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return JWTMessage{}, err
	}
	if claims.Kind != kind {
		return JWTMessage{}, ErrTokenKind
	}
	return JWTMessage{
		UserID: claims.UserID,
		Roles:  claims.Roles,
	}, nil
}
