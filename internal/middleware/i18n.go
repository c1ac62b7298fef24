package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"golang.org/x/text/language"

	"server/internal/infra/geoip"
)

const LocaleKey contextKey = "locale"

var supportedLocales = []language.Tag{
	language.English,
	language.Indonesian,
	language.Japanese,
	language.Korean,
}

var localeMatcher = language.NewMatcher(supportedLocales)

// countryLocale maps a few countries with a clear dominant language. The
// matcher handles everything else.
var countryLocale = map[string]string{
	"ID": "id",
	"JP": "ja",
	"KR": "ko",
}

// I18N resolves the request locale and stores it in the context. Priority:
// explicit X-Locale header, Accept-Language negotiation, then a GeoIP
// country hint. resolver may be nil.
func I18N(defaultLocale string, resolver geoip.CountryResolver) func(http.Handler) http.Handler {
	if defaultLocale == "" {
		defaultLocale = "en"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			locale := resolveLocale(r, defaultLocale, resolver)
			ctx := context.WithValue(r.Context(), LocaleKey, locale)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolveLocale(r *http.Request, defaultLocale string, resolver geoip.CountryResolver) string {
	if raw := strings.TrimSpace(r.Header.Get("X-Locale")); raw != "" {
		if tag, err := language.Parse(raw); err == nil {
			matched, _, _ := localeMatcher.Match(tag)
			base, _ := matched.Base()
			return base.String()
		}
	}

	if accept := r.Header.Get("Accept-Language"); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
			matched, _, conf := localeMatcher.Match(tags...)
			if conf > language.No {
				base, _ := matched.Base()
				return base.String()
			}
		}
	}

	if resolver != nil {
		if code, err := resolver.CountryCode(clientIP(r)); err == nil {
			if locale, ok := countryLocale[code]; ok {
				return locale
			}
		}
	}

	return defaultLocale
}

func clientIP(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		first, _, _ := strings.Cut(xf, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// LocaleFromContext returns the negotiated locale, or "en" when the
// middleware did not run.
func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LocaleKey).(string); ok && v != "" {
		return v
	}
	return "en"
}
