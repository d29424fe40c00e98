package middleware

import (
	"strings"

	"studentslife/pkg/errutil"

	"github.com/gin-gonic/gin"
)

// Identity headers are set by the gateway after authentication.
const (
	HeaderPartnerID = "X-Partner-ID"
	HeaderClientID  = "X-Client-ID"
	HeaderAPIKey    = "X-Api-Key"
)

const (
	partnerKey = "identity.partner_id"
	clientKey  = "identity.client_id"
	channelKey = "identity.channel"
)

const (
	ChannelScanner = "scanner"
	ChannelPortal  = "portal"
	ChannelApp     = "app"
	ChannelAPI     = "api"
)

// deriveChannel guesses where a request came from by its api key prefix.
func deriveChannel(key string) string {
	switch {
	case strings.HasPrefix(key, "scanner_"):
		return ChannelScanner
	case strings.HasPrefix(key, "portal_"):
		return ChannelPortal
	case strings.HasPrefix(key, "app_"):
		return ChannelApp
	default:
		return ChannelAPI
	}
}

func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(partnerKey, strings.TrimSpace(c.GetHeader(HeaderPartnerID)))
		c.Set(clientKey, strings.TrimSpace(c.GetHeader(HeaderClientID)))
		c.Set(channelKey, deriveChannel(c.GetHeader(HeaderAPIKey)))
		c.Next()
	}
}

// RequirePartner rejects requests without an authenticated partner.
func RequirePartner() gin.HandlerFunc {
	return func(c *gin.Context) {
		if PartnerID(c) == "" {
			_ = c.Error(errutil.Unauthorized("partner identity is required", nil))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireClient rejects requests without an authenticated client.
func RequireClient() gin.HandlerFunc {
	return func(c *gin.Context) {
		if ClientID(c) == "" {
			_ = c.Error(errutil.Unauthorized("client identity is required", nil))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequirePartnerParam rejects requests whose authenticated partner is not
// the one named by the path parameter.
func RequirePartnerParam(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := PartnerID(c)
		switch {
		case caller == "":
			_ = c.Error(errutil.Unauthorized("partner identity is required", nil))
		case caller != c.Param(param):
			_ = c.Error(errutil.Forbidden("partner mismatch", nil))
		default:
			c.Next()
			return
		}
		c.Abort()
	}
}

func PartnerID(c *gin.Context) string {
	return c.GetString(partnerKey)
}

func ClientID(c *gin.Context) string {
	return c.GetString(clientKey)
}

func Channel(c *gin.Context) string {
	if ch := c.GetString(channelKey); ch != "" {
		return ch
	}
	return ChannelAPI
}
