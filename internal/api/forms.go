package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"anomidate/internal/models"
)

// swipeFilters is the filter form as the user typed it, echoed back into the
// swipe page.
type swipeFilters struct {
	AgeMin    string
	AgeMax    string
	Gender    string
	Playstyle string
}

// parseFilters reads the candidate filters from the query string. Bounds that
// are not whole numbers are ignored.
func parseFilters(q url.Values) (models.CandidateFilters, swipeFilters) {
	form := swipeFilters{
		AgeMin:    strings.TrimSpace(q.Get("age_min")),
		AgeMax:    strings.TrimSpace(q.Get("age_max")),
		Gender:    strings.TrimSpace(q.Get("gender")),
		Playstyle: strings.TrimSpace(q.Get("playstyle")),
	}

	filters := models.CandidateFilters{
		Gender:    form.Gender,
		Playstyle: form.Playstyle,
	}
	if n, ok := parseOptionalInt(form.AgeMin); ok {
		filters.AgeMin = &n
	} else {
		form.AgeMin = ""
	}
	if n, ok := parseOptionalInt(form.AgeMax); ok {
		filters.AgeMax = &n
	} else {
		form.AgeMax = ""
	}
	return filters, form
}

// encode renders the filters back into a query string, omitting empty ones.
func (f swipeFilters) encode() string {
	q := url.Values{}
	for key, value := range map[string]string{
		"age_min":   f.AgeMin,
		"age_max":   f.AgeMax,
		"gender":    f.Gender,
		"playstyle": f.Playstyle,
	} {
		if value != "" {
			q.Set(key, value)
		}
	}
	return q.Encode()
}

func parseOptionalInt(raw string) (int, bool) {
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
