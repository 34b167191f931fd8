package i18n

import "net/http"

// Middleware injects a localizer into every request context. The server's
// configured language is the default; a lang query parameter overrides it
// per request, which is how the WS route picks a language since browser
// WebSocket clients cannot set Accept-Language.
func Middleware(defaultLang string) func(http.Handler) http.Handler {
	def := NewLocalizer(defaultLang)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loc := def
			if lang := r.URL.Query().Get("lang"); lang != "" {
				loc = NewLocalizer(lang, defaultLang)
			}
			next.ServeHTTP(w, r.WithContext(WithLocalizer(r.Context(), loc)))
		})
	}
}
