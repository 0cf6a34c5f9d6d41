package firebase

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	firebase "firebase.google.com/go"
	"google.golang.org/api/option"
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

var privateRanges = []*net.IPNet{
	parseCIDR("10.0.0.0/8"),
	parseCIDR("172.16.0.0/12"),
	parseCIDR("192.168.0.0/16"),
	parseCIDR("127.0.0.0/8"),
	parseCIDR("169.254.0.0/16"),
	parseCIDR("0.0.0.0/8"),
	parseCIDR("::1/128"),
	parseCIDR("fc00::/7"),
	parseCIDR("fe80::/10"),
}

// NewApp initializes Firebase. credentials is either inline JSON or a file
// path; empty means application default credentials.
func NewApp(ctx context.Context, credentials string) (*firebase.App, error) {
	var opts []option.ClientOption
	switch {
	case strings.HasPrefix(credentials, "{"):
		opts = append(opts, option.WithCredentialsJSON([]byte(credentials)))
	case credentials != "":
		opts = append(opts, option.WithCredentialsFile(credentials))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase init failed: %w", err)
	}
	return app, nil
}

// sanitizeFilename removes special characters from object names and limits length.
func sanitizeFilename(filename string) string {
	sanitized := unsafeFilenameChars.ReplaceAllString(filename, "_")
	if len(sanitized) > 100 {
		sanitized = sanitized[:100]
	}
	if sanitized == "" || sanitized == "." || sanitized == ".." {
		sanitized = "file"
	}
	return sanitized
}

func isPrivateIP(ip net.IP) bool {
	for _, network := range privateRanges {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

func parseCIDR(cidr string) *net.IPNet {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(fmt.Sprintf("invalid CIDR: %s", cidr))
	}
	return network
}

// validateExternalURL rejects URLs we must not fetch: non-http schemes,
// localhost and hosts that resolve to private addresses.
func validateExternalURL(ctx context.Context, rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL scheme '%s' is not allowed; only http and https are permitted", parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("URL has no hostname")
	}
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("requests to localhost are not allowed")
	}

	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return fmt.Errorf("failed to resolve hostname '%s': %w", host, err)
	}
	for _, addr := range addrs {
		if isPrivateIP(addr.IP) {
			return fmt.Errorf("URL resolves to private IP address %s, which is not allowed", addr.IP.String())
		}
	}
	return nil
}
