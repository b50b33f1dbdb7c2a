package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/lcm-policing/gateway"
	"github.com/linesmerrill/lcm-policing/models"
)

func signed(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func captureIdentity(got *Identity, token *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = IdentityFrom(r.Context())
		*token = gateway.AccessToken(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestIdentify(t *testing.T) {
	good := signed(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{"sub": "user-1"})
	wrongKey := signed(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": "user-1"})
	noSub := signed(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{"role": "authenticated"})

	tests := []struct {
		name       string
		secret     string
		header     string
		cookie     string
		wantStatus int
		wantUser   string
	}{
		{name: "no token is signed out", secret: "secret", wantStatus: http.StatusOK},
		{name: "verified bearer", secret: "secret", header: "Bearer " + good, wantStatus: http.StatusOK, wantUser: "user-1"},
		{name: "scheme is case-insensitive", secret: "secret", header: "bearer " + good, wantStatus: http.StatusOK, wantUser: "user-1"},
		{name: "wrong signature", secret: "secret", header: "Bearer " + wrongKey, wantStatus: http.StatusUnauthorized},
		{name: "missing subject", secret: "secret", header: "Bearer " + noSub, wantStatus: http.StatusUnauthorized},
		{name: "garbage token", secret: "secret", header: "Bearer not-a-jwt", wantStatus: http.StatusUnauthorized},
		{name: "unverified without secret", header: "Bearer " + wrongKey, wantStatus: http.StatusOK, wantUser: "user-1"},
		{name: "cookie token", secret: "secret", cookie: good, wantStatus: http.StatusOK, wantUser: "user-1"},
		{name: "non bearer scheme is ignored", secret: "secret", header: "Basic abc", wantStatus: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Identity
			var token string
			req := httptest.NewRequest(http.MethodGet, "/policing", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: tt.cookie})
			}
			rr := httptest.NewRecorder()

			Identify(tt.secret)(captureIdentity(&got, &token)).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantUser, got.UserID)
			assert.Equal(t, tt.wantUser != "", got.SignedIn())
			if tt.wantUser != "" {
				assert.Equal(t, got.Token, token)
			}
		})
	}
}

func TestDevice(t *testing.T) {
	existing := uuid.NewString()
	tests := []struct {
		name      string
		header    string
		cookie    string
		want      string
		setCookie bool
	}{
		{name: "new device gets a cookie", setCookie: true},
		{name: "cookie is reused", cookie: existing, want: existing},
		{name: "header wins", header: existing, cookie: uuid.NewString(), want: existing},
		{name: "malformed cookie is replaced", cookie: "../etc", setCookie: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := Device(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = DeviceFrom(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/policing", nil)
			if tt.header != "" {
				req.Header.Set(DeviceHeader, tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: DeviceCookie, Value: tt.cookie})
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			_, err := uuid.Parse(got)
			require.NoError(t, err)
			if tt.want != "" {
				assert.Equal(t, tt.want, got)
			}
			cookies := rr.Result().Cookies()
			if tt.setCookie {
				require.Len(t, cookies, 1)
				assert.Equal(t, DeviceCookie, cookies[0].Name)
				assert.Equal(t, got, cookies[0].Value)
				assert.True(t, cookies[0].HttpOnly)
			} else {
				assert.Empty(t, cookies)
			}
		})
	}
}

func TestParseDeepLink(t *testing.T) {
	tests := []struct {
		query    string
		wantOpen bool
		wantID   string
	}{
		{query: "incident=42&src=notif", wantOpen: true, wantID: "42"},
		{query: "incident=42&src=NOTIF", wantOpen: true, wantID: "42"},
		{query: "incident=7b0c6a4e-1111-4c1e-9a9a-123456789abc&src=Notif", wantOpen: true, wantID: "7b0c6a4e-1111-4c1e-9a9a-123456789abc"},
		{query: "incident=42", wantID: "42"},
		{query: "incident=42&src=email", wantID: "42"},
		{query: "src=notif"},
		{query: "incident=%20&src=notif"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)
			link, open := ParseDeepLink(q)
			assert.Equal(t, tt.wantOpen, open)
			assert.Equal(t, tt.wantID, link.IncidentID.String())
		})
	}
}

func TestParseDeepLink_NumericIDKeepsWireForm(t *testing.T) {
	link, _ := ParseDeepLink(url.Values{"incident": {"42"}, "src": {"notif"}})
	b, err := link.IncidentID.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "42", string(b))
	assert.True(t, link.IncidentID.Equal(models.IDFromToken("42")))
}

func TestTimeoutMiddleware(t *testing.T) {
	t.Run("fast handler passes through", func(t *testing.T) {
		h := TimeoutMiddleware(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusCreated)
			io.WriteString(w, "ok")
		}))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/policing", nil))

		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, "ok", rr.Body.String())
		assert.Equal(t, "text/html", rr.Header().Get("Content-Type"))
	})

	t.Run("slow handler times out", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		h := TimeoutMiddleware(20 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
			io.WriteString(w, "late")
		}))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/policing", nil))

		assert.Equal(t, http.StatusGatewayTimeout, rr.Code)
		assert.Contains(t, rr.Body.String(), "request timeout")
	})

	t.Run("websockets are not wrapped", func(t *testing.T) {
		var deadline bool
		h := TimeoutMiddleware(time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, deadline = r.Context().Deadline()
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ws/notifications", nil))
		assert.False(t, deadline)
	})
}

func TestTimeoutWriter_DropsLateWrites(t *testing.T) {
	tw := &timeoutWriter{w: httptest.NewRecorder(), h: make(http.Header), timedOut: true}
	_, err := tw.Write([]byte("late"))
	assert.True(t, errors.Is(err, http.ErrHandlerTimeout))
}

func TestMetricsMiddleware(t *testing.T) {
	mc := GetMetrics()
	before := mc.Summary()

	r := mux.NewRouter()
	r.Use(MetricsMiddleware)
	r.HandleFunc("/incidents/{id}", func(w http.ResponseWriter, req *http.Request) {
		RecordRemoteCall(req.Context(), "get_incident_detail", 5*time.Millisecond, nil)
		RecordRemoteCall(req.Context(), "get_incident_resolution_state", 5*time.Millisecond, errors.New("boom"))
		w.WriteHeader(http.StatusNotFound)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/incidents/42", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	_, err := uuid.Parse(rr.Header().Get(RequestIDHeader))
	assert.NoError(t, err)

	after := mc.Summary()
	assert.Equal(t, before.TotalRequests+1, after.TotalRequests)
	assert.Equal(t, before.TotalErrors+1, after.TotalErrors)

	var route *RouteMetrics
	for i := range after.Routes {
		if after.Routes[i].Route == "/incidents/{id}" {
			route = &after.Routes[i]
		}
	}
	require.NotNil(t, route)
	assert.Equal(t, http.MethodGet, route.Method)
	assert.GreaterOrEqual(t, route.RemoteCalls, int64(2))
	assert.GreaterOrEqual(t, route.RemoteTime, 10*time.Millisecond)
}

func TestRecordRemoteCall_OutsideRequest(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordRemoteCall(context.Background(), "get_verify_queue", time.Millisecond, nil)
	})
}

func TestResponseWriter_KeepsFirstStatus(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}
	rw.WriteHeader(http.StatusBadGateway)
	rw.WriteHeader(http.StatusOK)
	assert.Equal(t, http.StatusBadGateway, rw.statusCode)
}
