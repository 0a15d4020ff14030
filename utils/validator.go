package utils

import (
	"net"
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

// ValidateDestination checks that an affiliate link destination is a URL we
// are willing to redirect visitors to.
func ValidateDestination(rawURL string) error {
	if rawURL == "" {
		return ErrEmptyURL
	}

	parsedURL, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return ErrInvalidURL
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return ErrInvalidScheme
	}

	if parsedURL.Host == "" {
		return ErrEmptyHost
	}

	hostname := parsedURL.Hostname()

	if isLocalhost(hostname) {
		return ErrLocalhostNotAllowed
	}

	if isPrivateIP(hostname) {
		return ErrPrivateIPNotAllowed
	}

	return nil
}

// isLocalhost checks if the hostname is localhost or loopback
func isLocalhost(hostname string) bool {
	localhost := []string{"localhost", "127.0.0.1", "::1", "0.0.0.0"}
	hostname = strings.ToLower(hostname)

	for _, local := range localhost {
		if hostname == local {
			return true
		}
	}

	return false
}

// isPrivateIP checks if the hostname is a private IP address
func isPrivateIP(hostname string) bool {
	ip := net.ParseIP(hostname)
	if ip == nil {
		// Not an IP literal; skip resolution, link creation should not
		// stall on DNS.
		return false
	}

	privateRanges := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"169.254.0.0/16", // Link-local
		"fc00::/7",       // IPv6 ULA
		"fe80::/10",      // IPv6 Link-local
	}

	for _, cidr := range privateRanges {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if ipNet.Contains(ip) {
			return true
		}
	}

	return false
}

var (
	slugFormat = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*[a-zA-Z0-9]$`)
	pureNumber = regexp.MustCompile(`^[0-9]+$`)
)

// reservedSlugs are path segments the service itself owns.
var reservedSlugs = map[string]bool{
	"api":     true,
	"admin":   true,
	"health":  true,
	"cache":   true,
	"l":       true,
	"assets":  true,
	"static":  true,
	"metrics": true,
}

// ValidateSlug validates a custom slug for affiliate links.
// Rules:
// - Length between minLength and maxLength
// - Characters: a-z, A-Z, 0-9, -, _
// - Must start and end with alphanumeric
// - Cannot be a reserved word or purely numeric
func ValidateSlug(slug string, minLength, maxLength int) error {
	if len(slug) < minLength {
		return ErrSlugTooShort
	}
	if len(slug) > maxLength {
		return ErrSlugTooLong
	}

	firstChar := rune(slug[0])
	if !unicode.IsLetter(firstChar) && !unicode.IsDigit(firstChar) {
		return ErrSlugInvalidStart
	}

	lastChar := rune(slug[len(slug)-1])
	if !unicode.IsLetter(lastChar) && !unicode.IsDigit(lastChar) {
		return ErrSlugInvalidEnd
	}

	if !slugFormat.MatchString(slug) {
		return ErrSlugInvalidFormat
	}

	if pureNumber.MatchString(slug) {
		return ErrSlugPureNumber
	}

	if reservedSlugs[strings.ToLower(slug)] {
		return ErrSlugReserved
	}

	return nil
}
