package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/linesmerrill/lcm-policing/config"
	"github.com/linesmerrill/lcm-policing/gateway"
)

// Cookie names read by the middleware
const (
	AccessTokenCookie = "lcm_access_token"
	DeviceCookie      = "lcm_device"
	DeviceHeader      = "X-Device-ID"
)

const deviceCookieMaxAge = 365 * 24 * time.Hour

var errMissingSubject = errors.New("token has no subject")

// Identify reads the caller's bearer token and attaches the resulting Identity and
// the token itself to the request context, so remote calls run as the caller. A
// request without a token continues signed out. With a secret the token's HS256
// signature is verified; without one the claims are trusted as the backend will
// check the token again on every call.
func Identify(secret string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			userID, err := Subject(token, secret)
			if err != nil {
				config.ErrorStatus("invalid access token", http.StatusUnauthorized, w, err)
				return
			}
			ctx := WithIdentity(r.Context(), Identity{UserID: userID, Token: token})
			ctx = gateway.WithAccessToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(AccessTokenCookie); err == nil {
		return c.Value
	}
	return ""
}

// Subject returns the user id carried in the token's sub claim. The HS256 signature is
// checked only when secret is set.
func Subject(token, secret string) (string, error) {
	claims := jwt.MapClaims{}
	if secret != "" {
		_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			return "", err
		}
	} else if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", err
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return "", err
	}
	if sub == "" {
		return "", errMissingSubject
	}
	return sub, nil
}

// Device gives every caller a stable device id. Local decisions are partitioned by it.
// The id comes from the X-Device-ID header, else the device cookie; a missing or
// malformed id is replaced by a fresh one and set as the cookie.
func Device(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(DeviceHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = ""
			if c, err := r.Cookie(DeviceCookie); err == nil {
				if _, err := uuid.Parse(c.Value); err == nil {
					id = c.Value
				}
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     DeviceCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   int(deviceCookieMaxAge / time.Second),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(WithDevice(r.Context(), id)))
	})
}
