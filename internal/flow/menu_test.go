package flow

import (
	"strings"
	"testing"

	"github.com/karuna-es/karunabot/internal/models"
)

func testMenuConfig() *models.MenuConfig {
	return &models.MenuConfig{
		WelcomeMessage: "Bienvenido al restaurante",
		FooterMessage:  "Responde con el numero de tu opcion",
		Options: []models.MenuOption{
			{Label: "Ver menu", Response: "Aqui esta nuestro menu del dia"},
			{Label: "Reservar mesa", Response: "Con gusto, para cuantas personas?"},
			{Label: "Horarios", Response: "Abrimos de 9:00 a 22:00"},
		},
	}
}

func TestRenderMenu(t *testing.T) {
	text := RenderMenu(testMenuConfig())

	if !strings.HasPrefix(text, "Bienvenido al restaurante\n\n") {
		t.Errorf("expected welcome header, got %q", text)
	}
	for _, line := range []string{"1. Ver menu", "2. Reservar mesa", "3. Horarios"} {
		if !strings.Contains(text, line) {
			t.Errorf("expected option line %q in %q", line, text)
		}
	}
	if !strings.HasSuffix(text, "Responde con el numero de tu opcion") {
		t.Errorf("expected footer at end, got %q", text)
	}
}

func TestSelectOption(t *testing.T) {
	cfg := testMenuConfig()

	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"1", "Aqui esta nuestro menu del dia", true},
		{"3", "Abrimos de 9:00 a 22:00", true},
		{" 2 ", "Con gusto, para cuantas personas?", true},
		{"0", "", false},
		{"4", "", false},
		{"-1", "", false},
		{"dos", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := SelectOption(cfg, tt.input)
		if ok != tt.ok || got != tt.want {
			t.Errorf("SelectOption(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}
