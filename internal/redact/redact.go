package redact

import (
	"net/url"
	"regexp"
	"strings"
)

const placeholder = "[REDACTED]"

var secretPatterns = []*regexp.Regexp{
	// Google API keys
	regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`),
	// key=... in query strings
	regexp.MustCompile(`([?&](?:key|api_key|apikey)=)[^&\s"']+`),
	// api_key: "..." style assignments
	regexp.MustCompile(`(?i)(api[_-]?key|apikey|x-goog-api-key)("?\s*[:=]\s*["']?)[A-Za-z0-9/+=_-]{16,}`),
	// Bearer tokens
	regexp.MustCompile(`(?i)(Bearer\s+)[A-Za-z0-9._-]{20,}`),
}

// Secrets replaces credential-shaped substrings in text with [REDACTED].
// Prefixes such as "key=" are kept so the output stays readable.
func Secrets(text string) string {
	result := text
	for _, pat := range secretPatterns {
		result = pat.ReplaceAllStringFunc(result, func(match string) string {
			sub := pat.FindStringSubmatch(match)
			if len(sub) > 1 {
				prefix := strings.Join(sub[1:], "")
				if strings.HasPrefix(match, prefix) {
					return prefix + placeholder
				}
			}
			return placeholder
		})
	}
	return result
}

// Value removes every occurrence of secret from text, then applies Secrets.
// An empty secret only applies Secrets.
func Value(text, secret string) string {
	if secret != "" {
		text = strings.ReplaceAll(text, secret, placeholder)
	}
	return Secrets(text)
}

// URL returns rawURL with credential query parameters replaced.
func URL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.RawQuery == "" {
		return Secrets(rawURL)
	}
	params := strings.Split(u.RawQuery, "&")
	for i, p := range params {
		name, _, found := strings.Cut(p, "=")
		if !found {
			continue
		}
		switch strings.ToLower(name) {
		case "key", "api_key", "apikey":
			params[i] = name + "=" + placeholder
		}
	}
	u.RawQuery = strings.Join(params, "&")
	return u.String()
}
