package logger

import (
	"net/url"
	"strings"
)

// SanitizedEmail masks an address for logging: "user@example.com" becomes
// "u***@*******.com". Only the first character and the TLD survive.
func SanitizedEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return "[invalid-email]"
	}

	if len(local) > 1 {
		local = local[:1] + "***"
	}

	if dot := strings.LastIndexByte(domain, '.'); dot > 0 {
		masked := []byte(domain)
		for i := 0; i < dot; i++ {
			if masked[i] != '.' {
				masked[i] = '*'
			}
		}
		domain = string(masked)
	}

	return local + "@" + domain
}

// SanitizedKey masks any email embedded in a rate limit key such as "ip:email"
func SanitizedKey(key string) string {
	if !strings.Contains(key, "@") {
		return key
	}
	parts := strings.Split(key, ":")
	for i, p := range parts {
		if strings.Contains(p, "@") {
			parts[i] = SanitizedEmail(p)
		}
	}
	return strings.Join(parts, ":")
}

var sensitiveParams = []string{"password", "token", "secret", "email", "auth"}

// SanitizeQueryString reports whether a raw query names a sensitive
// parameter. Unparseable queries are treated as sensitive.
func SanitizeQueryString(rawQuery string) bool {
	if rawQuery == "" {
		return false
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return true
	}
	for name := range values {
		name = strings.ToLower(name)
		for _, s := range sensitiveParams {
			if strings.Contains(name, s) {
				return true
			}
		}
	}
	return false
}
