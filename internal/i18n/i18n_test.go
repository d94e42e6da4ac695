package i18n

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func localized(t *testing.T, langs ...string) context.Context {
	t.Helper()
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return WithLocalizer(context.Background(), c.NewLocalizer(langs...))
}

func TestTranslateEnglish(t *testing.T) {
	ctx := localized(t, "en")

	if got := T(ctx, "AppTitle"); got != "Autograder" {
		t.Errorf("T(AppTitle) = %q, want 'Autograder'", got)
	}
	if got := T(ctx, "Gradebook"); got != "Gradebook" {
		t.Errorf("T(Gradebook) = %q, want 'Gradebook'", got)
	}
}

func TestTranslateRussian(t *testing.T) {
	ctx := localized(t, "ru")

	if got := T(ctx, "AppTitle"); got != "Автопроверка" {
		t.Errorf("T(AppTitle) = %q, want 'Автопроверка'", got)
	}
	if got := T(ctx, "Gradebook"); got != "Журнал оценок" {
		t.Errorf("T(Gradebook) = %q, want 'Журнал оценок'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	tests := []struct {
		lang  string
		count int
		want  string
	}{
		{"en", 1, "1 submission"},
		{"en", 5, "5 submissions"},
		{"ru", 1, "1 ответ"},
		{"ru", 3, "3 ответа"},
		{"ru", 5, "5 ответов"},
		{"ru", 21, "21 ответ"},
	}
	for _, tt := range tests {
		ctx := localized(t, tt.lang)
		if got := Tp(ctx, "SubmissionCount", tt.count); got != tt.want {
			t.Errorf("%s: Tp(SubmissionCount, %d) = %q, want %q", tt.lang, tt.count, got, tt.want)
		}
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := localized(t, "en")

	got := Td(ctx, "AnsweredOf", map[string]any{"Answered": 2, "Total": 3})
	if got != "2 of 3 graded" {
		t.Errorf("Td(AnsweredOf) = %q, want '2 of 3 graded'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := localized(t, "en")

	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestNoLocalizer(t *testing.T) {
	if got := T(context.Background(), "AppTitle"); got != "AppTitle" {
		t.Errorf("T without localizer = %q, want the message ID", got)
	}
}

func TestLocalesHaveSameKeys(t *testing.T) {
	keys := func(name string) map[string]bool {
		data, err := localeFS.ReadFile("locales/" + name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("parse %s: %v", name, err)
		}
		out := make(map[string]bool, len(m))
		for k := range m {
			out[k] = true
		}
		return out
	}

	en, ru := keys("en.json"), keys("ru.json")
	for k := range en {
		if !ru[k] {
			t.Errorf("ru.json is missing %q", k)
		}
	}
	for k := range ru {
		if !en[k] {
			t.Errorf("en.json is missing %q", k)
		}
	}
}

func TestSupported(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for lang, want := range map[string]bool{"en": true, "ru": true, "ru-RU": true, "de": false, "???": false} {
		if got := c.Supported(lang); got != want {
			t.Errorf("Supported(%q) = %v, want %v", lang, got, want)
		}
	}
}

func TestMiddleware(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	var got string
	h := c.Middleware("ru")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "Submit")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got != "Отправить" {
		t.Errorf("translated through middleware = %q, want 'Отправить'", got)
	}
}
