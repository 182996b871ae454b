package business

import (
	"errors"
	"strings"
	"testing"
)

func TestResolveService(t *testing.T) {
	catalog := DefaultCatalog()

	tests := []struct {
		in     string
		wantID string
	}{
		{"corte de cabello", "corte-cabello"},
		{"Corte de Cabello!", "corte-cabello"},
		{"quiero un corte de niño", "corte-nino"},
		{"corte de nino", "corte-nino"},
		{"cortes", "corte-cabello"},
		{"quiero corte y barba", "paquete-corte-barba"},
		{"delineado de corte por favor", "delineado-corte"},
		{"Exfoliacion", "exfoliacion"},
		{"mascarilla de colágeno", "mascarilla-colageno"},
		{"1", "corte-cabello"},
		{"12", "manicure"},
		{"uñas", "manicure"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			svc, ok := catalog.Resolve(tt.in)
			if !ok {
				t.Fatalf("Resolve(%q) found nothing, want %s", tt.in, tt.wantID)
			}
			if svc.ID != tt.wantID {
				t.Errorf("Resolve(%q) = %s, want %s", tt.in, svc.ID, tt.wantID)
			}
		})
	}
}

func TestResolveServiceMisses(t *testing.T) {
	catalog := DefaultCatalog()
	for _, in := range []string{"", "hola", "13", "0", "tatuaje", "mascarilla"} {
		if svc, ok := catalog.Resolve(in); ok {
			t.Errorf("Resolve(%q) = %s, want no match", in, svc.ID)
		}
	}
}

func TestRenderGroupsByCategory(t *testing.T) {
	out := DefaultCatalog().Render()

	for _, want := range []string{"*Cortes*", "*Barba*", "*Paquetes*", "*Faciales*", "*Manos*", "1. Corte de cabello: 250 MXN (30 min)", "12. Manicure: 200 MXN (30 min)"} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() missing %q", want)
		}
	}
	if strings.Index(out, "*Cortes*") > strings.Index(out, "*Barba*") {
		t.Error("categories rendered out of order")
	}
}

func TestLoadCatalog(t *testing.T) {
	raw := `[
		{"id":"fade","name":"fade","price":"300 MXN","duration_minutes":45,"category":"Cortes","aliases":["degradado"]},
		{"id":"ceja","name":"arreglo de ceja","price":"80 MXN","duration_minutes":15}
	]`
	catalog, err := LoadCatalog(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	svc, ok := catalog.Resolve("degradado")
	if !ok || svc.ID != "fade" {
		t.Fatalf("Resolve(degradado) = %v, %v", svc, ok)
	}
	if svc.Duration().Minutes() != 45 {
		t.Errorf("Duration = %s, want 45m", svc.Duration())
	}
	ceja, _ := catalog.Get("ceja")
	if ceja.Category != "Otros" {
		t.Errorf("default category = %q, want Otros", ceja.Category)
	}
}

func TestLoadCatalogRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"empty":        `[]`,
		"no duration":  `[{"id":"a","name":"a","price":"1"}]`,
		"duplicate id": `[{"id":"a","name":"a","duration_minutes":30},{"id":"a","name":"b","duration_minutes":30}]`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadCatalog(strings.NewReader(raw))
			if !errors.Is(err, ErrInvalidCatalog) {
				t.Errorf("LoadCatalog err = %v, want ErrInvalidCatalog", err)
			}
		})
	}
	if _, err := LoadCatalog(strings.NewReader("{")); err == nil {
		t.Error("expected decode error")
	}
}
