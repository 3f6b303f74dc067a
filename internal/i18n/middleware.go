package i18n

import "net/http"

// langCookieName lets a user pin their interface language across requests.
const langCookieName = "lang"

// Middleware injects a localizer into every request context. The language
// is taken from the lang cookie, then the Accept-Language header, then the
// configured default.
func Middleware(defaultLang string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			langs := make([]string, 0, 3)
			if c, err := r.Cookie(langCookieName); err == nil && c.Value != "" {
				langs = append(langs, c.Value)
			}
			if accept := r.Header.Get("Accept-Language"); accept != "" {
				langs = append(langs, accept)
			}
			langs = append(langs, defaultLang)

			loc := NewLocalizer(langs...)
			ctx := WithLocalizer(r.Context(), loc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
