package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"studentslife/pkg/errutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
	zap.ReplaceGlobals(zap.NewNop())
}

func newRouter() *gin.Engine {
	r := gin.New()
	r.Use(Identity(), Error())
	return r
}

func TestErrorRendersBaseError(t *testing.T) {
	r := newRouter()
	r.GET("/missing", func(c *gin.Context) {
		_ = c.Error(errutil.NotFound("code not found", nil))
	})
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(errors.New("db exploded"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	var body map[string]map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, string(errutil.StatusNotFound), body["error"]["code"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotContains(t, w.Body.String(), "db exploded")
}

func TestIdentity(t *testing.T) {
	r := newRouter()
	r.GET("/whoami", RequirePartner(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"partner": PartnerID(c), "channel": Channel(c)})
	})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(HeaderPartnerID, " partner-1 ")
	req.Header.Set(HeaderAPIKey, "scanner_abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"partner":"partner-1","channel":"scanner"}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimitPerPartner(t *testing.T) {
	r := newRouter()
	r.POST("/redeem", RateLimit(1, 2), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	call := func(partner string) int {
		req := httptest.NewRequest(http.MethodPost, "/redeem", nil)
		req.Header.Set(HeaderPartnerID, partner)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	require.Equal(t, http.StatusOK, call("partner-1"))
	require.Equal(t, http.StatusOK, call("partner-1"))
	require.Equal(t, http.StatusTooManyRequests, call("partner-1"))
	require.Equal(t, http.StatusOK, call("partner-2"))
}

func TestRateLimitDisabled(t *testing.T) {
	r := newRouter()
	r.POST("/redeem", RateLimit(0, 0), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/redeem", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
}

func TestKeyedLimiterForgetsIdleKeys(t *testing.T) {
	l := newKeyedLimiter(1, 1)
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	require.True(t, l.allow("a"))
	require.False(t, l.allow("a"))

	now = now.Add(limiterIdleTTL + time.Minute)
	require.True(t, l.allow("b"))
	require.NotContains(t, l.entries, "a")
}

func TestRequirePartnerParam(t *testing.T) {
	r := newRouter()
	r.POST("/partners/:partner_id/things", RequirePartnerParam("partner_id"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	call := func(partner string) int {
		req := httptest.NewRequest(http.MethodPost, "/partners/partner-1/things", nil)
		if partner != "" {
			req.Header.Set(HeaderPartnerID, partner)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	require.Equal(t, http.StatusUnauthorized, call(""))
	require.Equal(t, http.StatusForbidden, call("partner-2"))
	require.Equal(t, http.StatusNoContent, call("partner-1"))

	req := httptest.NewRequest(http.MethodPost, "/partners/partner-1/things", nil)
	req.Header.Set(HeaderClientID, "client-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
