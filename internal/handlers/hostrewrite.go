package handlers

import (
	"net"
	"net/http"
	"strings"
)

// HostRewrite maps tracking-subdomain hosts onto the tracking route before
// routing happens: a request for "abc.example.com/anything" is served as
// "/r/abc". Requests for the apex or www pass through untouched.
func HostRewrite(baseDomain string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sub, ok := trackingSubdomain(r.Host, baseDomain); ok {
			r.URL.Path = "/r/" + sub
			r.URL.RawQuery = ""
		}
		next.ServeHTTP(w, r)
	})
}

func trackingSubdomain(host, baseDomain string) (string, bool) {
	if baseDomain == "" {
		return "", false
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(host)

	if host == baseDomain || !strings.HasSuffix(host, "."+baseDomain) {
		return "", false
	}

	sub := strings.TrimSuffix(host, "."+baseDomain)
	if sub == "www" || strings.Contains(sub, ".") {
		return "", false
	}
	return sub, true
}
