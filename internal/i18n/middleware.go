package i18n

import "net/http"

// Middleware injects a localizer into every request context. The configured
// language wins; the browser's Accept-Language is used for messages it lacks.
func (c *Catalog) Middleware(lang string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loc := c.NewLocalizer(lang, r.Header.Get("Accept-Language"))
			ctx := WithLocalizer(r.Context(), loc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
