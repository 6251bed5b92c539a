package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	corsMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	corsHeaders = "Content-Type, Authorization, " + RequestIDHeader
	corsExpose  = "Retry-After, " + RequestIDHeader
)

// originSet matches request origins against the configured list. Entries may
// be exact ("https://site.org"), a subdomain wildcard ("https://*.site.org")
// or "*".
type originSet struct {
	any      bool
	exact    map[string]struct{}
	suffixes []string // "https://" + "." + domain
}

func parseOrigins(s string) originSet {
	set := originSet{exact: make(map[string]struct{})}
	for _, o := range strings.Split(s, ",") {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		switch {
		case o == "":
		case o == "*":
			set.any = true
		case strings.Contains(o, "://*."):
			scheme, host, _ := strings.Cut(o, "://*")
			set.suffixes = append(set.suffixes, scheme+"://"+host)
		default:
			set.exact[o] = struct{}{}
		}
	}
	if len(set.exact) == 0 && len(set.suffixes) == 0 {
		set.any = true
	}
	return set
}

func (s originSet) allow(origin string) bool {
	if _, ok := s.exact[origin]; ok {
		return true
	}
	for _, suf := range s.suffixes {
		scheme, domain, _ := strings.Cut(suf, "://")
		rest, ok := strings.CutPrefix(origin, scheme+"://")
		if ok && strings.HasSuffix(rest, domain) && len(rest) > len(domain) {
			return true
		}
	}
	return false
}

// CORS lets the public site and the admin dashboard call the API from their
// own origins. allowedOrigins is a comma-separated list; empty or "*" allows all.
func CORS(allowedOrigins string) gin.HandlerFunc {
	origins := parseOrigins(allowedOrigins)
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		h := c.Writer.Header()
		switch {
		case origins.any:
			h.Set("Access-Control-Allow-Origin", "*")
		case origin != "" && origins.allow(origin):
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
		default:
			origin = ""
		}
		if origins.any || origin != "" {
			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", corsHeaders)
			h.Set("Access-Control-Expose-Headers", corsExpose)
			h.Set("Access-Control-Max-Age", "86400")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
