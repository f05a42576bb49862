package mapping

import (
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/deepaksharma/spancore/core/attributes"
)

// targetFor picks the dependency target by priority: peer.service, the
// server host, the host of the full URL, then the peer name and peer ip.
// Default ports for the scheme are dropped from host:port compositions.
func targetFor(r *attrReader, scheme string) string {
	if v, ok := r.str(attributes.PeerService); ok {
		return v
	}
	if host, ok := r.str(attributes.HostKeys...); ok {
		port, _ := r.int(attributes.HostPortKeys...)
		return joinHostPort(host, port, scheme)
	}
	if raw, ok := r.str(attributes.URLFullKeys...); ok {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return raw
		}
		if scheme == "" {
			scheme = u.Scheme
		}
		return joinHostPort(u.Host, 0, scheme)
	}
	for _, key := range []string{attributes.NetPeerName, attributes.NetPeerIP, attributes.NetworkPeerAddress} {
		if host, ok := r.str(key); ok {
			port, _ := r.int(attributes.PeerPortKeys...)
			return joinHostPort(host, port, scheme)
		}
	}
	return ""
}

// joinHostPort composes host and port. host may already carry a port, in
// which case port is ignored.
func joinHostPort(host string, port int64, scheme string) string {
	if h, p, err := net.SplitHostPort(host); err == nil {
		host = h
		if n, err := strconv.ParseInt(p, 10, 64); err == nil {
			port = n
		}
	}
	if port <= 0 || isDefaultPort(port, scheme) {
		if strings.Contains(host, ":") {
			return "[" + host + "]"
		}
		return host
	}
	return net.JoinHostPort(host, strconv.FormatInt(port, 10))
}

func isDefaultPort(port int64, scheme string) bool {
	switch strings.ToLower(scheme) {
	case "http":
		return port == 80
	case "https":
		return port == 443
	case "":
		return port == 80 || port == 443
	}
	return false
}

// urlScheme returns the scheme, consuming the scheme attributes. The full URL
// is only peeked at.
func urlScheme(r *attrReader) string {
	if scheme, ok := r.strFamily(attributes.URLSchemeKeys...); ok {
		return scheme
	}
	if _, v, ok := r.attrs.Lookup(attributes.URLFullKeys...); ok {
		if u, err := url.Parse(v.AsString()); err == nil {
			return u.Scheme
		}
	}
	return ""
}

// requestURL returns the full URL of an incoming request, composing it from
// scheme, host and target when the full URL attribute is missing.
func requestURL(r *attrReader) string {
	if v, ok := r.str(attributes.URLFullKeys...); ok {
		return v
	}
	host, ok := r.str(attributes.HostKeys...)
	if !ok {
		return ""
	}
	scheme, _ := r.str(attributes.URLSchemeKeys...)
	if scheme == "" {
		scheme = "http"
	}
	port, _ := r.int(attributes.HostPortKeys...)
	path, _ := r.str(attributes.URLPathKeys...)
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return scheme + "://" + joinHostPort(host, port, scheme) + path
}

// httpOperationName builds "METHOD path". For requests an http.route wins
// over the path. The path comes from the URL, falling back to the raw URL
// when it cannot be parsed, then to the url.path attribute.
func httpOperationName(r *attrReader, rawURL string, preferRoute bool) (string, bool) {
	method, ok := r.str(attributes.HTTPMethodKeys...)
	if !ok {
		return "", false
	}

	var path string
	if preferRoute {
		path, _ = r.str(attributes.HTTPRoute)
	}
	if path == "" && rawURL != "" {
		path = pathOf(rawURL)
	}
	if path == "" {
		path, _ = r.str(attributes.URLPathKeys...)
		if i := strings.IndexByte(path, '?'); i >= 0 {
			path = path[:i]
		}
	}
	if path == "" {
		return "", false
	}
	return strings.ToUpper(method) + " " + path, true
}

func pathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if u.Path == "" {
		return "/"
	}
	return u.Path
}
