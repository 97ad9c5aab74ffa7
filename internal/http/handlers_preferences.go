package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"despesas/internal/log"
)

// ThemeKey is the namespaced preference key of the colour theme.
const ThemeKey = "fp_theme_v1"

const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

type themeResponse struct {
	Theme  string `json:"theme"`
	Source string `json:"source"`
}

func validTheme(t string) bool {
	return t == ThemeLight || t == ThemeDark
}

// clientHintTheme reads Sec-CH-Prefers-Color-Scheme, which browsers send
// quoted.
func clientHintTheme(r *http.Request) (string, bool) {
	v := strings.ToLower(strings.Trim(strings.TrimSpace(r.Header.Get("Sec-CH-Prefers-Color-Scheme")), `"`))
	if validTheme(v) {
		return v, true
	}
	return "", false
}

// handleGetTheme answers with the stored theme, else the client hint, else
// light.
func (s *Server) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := NewJSONResponse().
		Header("Accept-CH", "Sec-CH-Prefers-Color-Scheme").
		Header("Vary", "Sec-CH-Prefers-Color-Scheme")

	if s.prefs != nil {
		stored, ok, err := s.prefs.GetPreference(ctx, ThemeKey)
		if err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Reading theme preference failed", log.FieldError, err)
		} else if ok && validTheme(stored) {
			resp.Payload(themeResponse{Theme: stored, Source: "stored"}).Write(w)
			return
		}
	}

	if hint, ok := clientHintTheme(r); ok {
		resp.Payload(themeResponse{Theme: hint, Source: "client_hint"}).Write(w)
		return
	}
	resp.Payload(themeResponse{Theme: ThemeLight, Source: "default"}).Write(w)
}

func (s *Server) handlePutTheme(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.prefs == nil {
		ServiceUnavailableError("preferências indisponíveis").Write(w)
		return
	}

	var body struct {
		Theme string `json:"theme"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, 4096)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		BadRequestError("formato de requisição inválido").Write(w)
		return
	}
	theme := strings.ToLower(strings.TrimSpace(body.Theme))
	if !validTheme(theme) {
		UnprocessableEntityError(`tema deve ser "light" ou "dark"`).Write(w)
		return
	}

	if err := s.prefs.SetPreference(ctx, ThemeKey, theme); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Saving theme preference failed", log.FieldError, err)
		InternalServerError("falha ao salvar preferência").Write(w)
		return
	}
	NewJSONResponse().Payload(themeResponse{Theme: theme, Source: "stored"}).Write(w)
}
