package business

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/wolfman30/barberbot/pkg/textnorm"
)

// Service is a bookable offering.
type Service struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	PriceLabel      string   `json:"price"`
	DurationMinutes int      `json:"duration_minutes"`
	Category        string   `json:"category"`
	Aliases         []string `json:"aliases,omitempty"`
}

// Duration returns how long the service occupies the chair.
func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// DisplayName is the name with its first letter capitalized.
func (s Service) DisplayName() string {
	r, size := utf8.DecodeRuneInString(s.Name)
	if r == utf8.RuneError {
		return s.Name
	}
	return string(unicode.ToUpper(r)) + s.Name[size:]
}

var ErrInvalidCatalog = errors.New("business: invalid catalog")

// Catalog is the immutable list of services with a folded lookup index.
type Catalog struct {
	services   []Service
	byID       map[string]Service
	keys       map[string]string // folded name or alias -> service id
	categories []string
}

// NewCatalog validates the services and builds the lookup index.
// Services keep their given order; categories are listed in order of first appearance.
func NewCatalog(services []Service) (*Catalog, error) {
	if len(services) == 0 {
		return nil, fmt.Errorf("%w: no services", ErrInvalidCatalog)
	}
	c := &Catalog{
		byID: make(map[string]Service, len(services)),
		keys: make(map[string]string),
	}
	seenCategory := make(map[string]struct{})
	for _, svc := range services {
		if svc.ID == "" || strings.TrimSpace(svc.Name) == "" {
			return nil, fmt.Errorf("%w: service requires id and name", ErrInvalidCatalog)
		}
		if svc.DurationMinutes <= 0 {
			return nil, fmt.Errorf("%w: service %q has no duration", ErrInvalidCatalog, svc.ID)
		}
		if _, dup := c.byID[svc.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate service id %q", ErrInvalidCatalog, svc.ID)
		}
		if svc.Category == "" {
			svc.Category = "Otros"
		}
		c.services = append(c.services, svc)
		c.byID[svc.ID] = svc
		if _, ok := seenCategory[svc.Category]; !ok {
			seenCategory[svc.Category] = struct{}{}
			c.categories = append(c.categories, svc.Category)
		}
		c.keys[normalizeServiceKey(svc.Name)] = svc.ID
		for _, alias := range svc.Aliases {
			key := normalizeServiceKey(alias)
			if key == "" {
				continue
			}
			if _, taken := c.keys[key]; !taken {
				c.keys[key] = svc.ID
			}
		}
	}
	return c, nil
}

// LoadCatalog decodes a JSON array of services.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var services []Service
	if err := json.NewDecoder(r).Decode(&services); err != nil {
		return nil, fmt.Errorf("business: decode catalog: %w", err)
	}
	return NewCatalog(services)
}

// LoadCatalogFile reads a catalog from path.
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("business: open catalog: %w", err)
	}
	defer f.Close()
	return LoadCatalog(f)
}

// Get returns the service with the given id.
func (c *Catalog) Get(id string) (Service, bool) {
	svc, ok := c.byID[id]
	return svc, ok
}

// Resolve finds the service a free-form message refers to. It accepts the list
// number shown by Render, an exact name or alias, a plural form, or a message
// containing a name or alias (the longest match wins).
func (c *Catalog) Resolve(text string) (Service, bool) {
	key := normalizeServiceKey(text)
	if key == "" {
		return Service{}, false
	}
	if n, err := strconv.Atoi(key); err == nil {
		if n >= 1 && n <= len(c.services) {
			return c.services[n-1], true
		}
		return Service{}, false
	}
	if id, ok := c.keys[key]; ok {
		return c.byID[id], true
	}
	if strings.HasSuffix(key, "s") {
		if id, ok := c.keys[strings.TrimSuffix(key, "s")]; ok {
			return c.byID[id], true
		}
	}

	padded := " " + key + " "
	bestID := ""
	bestLen := 0
	for k, id := range c.keys {
		if !strings.Contains(padded, " "+k+" ") && !strings.Contains(padded, " "+k+"s ") {
			continue
		}
		if len(k) > bestLen || (len(k) == bestLen && id < bestID) {
			bestID = id
			bestLen = len(k)
		}
	}
	if bestID == "" {
		return Service{}, false
	}
	return c.byID[bestID], true
}

// Render lists the services grouped by category and numbered for selection.
func (c *Catalog) Render() string {
	var b strings.Builder
	b.WriteString("✂️ *Nuestros servicios:*\n")
	for _, category := range c.categories {
		fmt.Fprintf(&b, "\n*%s*\n", category)
		for i, svc := range c.services {
			if svc.Category != category {
				continue
			}
			fmt.Fprintf(&b, "%d. %s: %s (%d min)\n", i+1, svc.DisplayName(), svc.PriceLabel, svc.DurationMinutes)
		}
	}
	b.WriteString("\nResponde con el nombre o el número del servicio que deseas.")
	return b.String()
}

func normalizeServiceKey(s string) string {
	return textnorm.Fold(textnorm.StripPunctuation(strings.TrimSpace(s)))
}

// DefaultCatalog returns the shop's built-in price list.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultServices)
	if err != nil {
		panic(err)
	}
	return c
}

var defaultServices = []Service{
	{ID: "corte-cabello", Name: "corte de cabello", PriceLabel: "250 MXN", DurationMinutes: 30, Category: "Cortes", Aliases: []string{"corte", "corte de pelo", "cabello"}},
	{ID: "corte-dama", Name: "corte de dama", PriceLabel: "250 MXN", DurationMinutes: 30, Category: "Cortes", Aliases: []string{"dama"}},
	{ID: "corte-nino", Name: "corte de niño", PriceLabel: "200 MXN", DurationMinutes: 30, Category: "Cortes", Aliases: []string{"niño", "corte infantil"}},
	{ID: "delineado-corte", Name: "delineado de corte", PriceLabel: "110 MXN", DurationMinutes: 15, Category: "Cortes", Aliases: []string{"delineado"}},
	{ID: "corte-barba", Name: "corte de barba", PriceLabel: "250 MXN", DurationMinutes: 30, Category: "Barba", Aliases: []string{"barba"}},
	{ID: "barba-expres", Name: "barba expres", PriceLabel: "250 MXN", DurationMinutes: 30, Category: "Barba", Aliases: []string{"barba express"}},
	{ID: "paquete-corte-barba", Name: "paquete corte y barba", PriceLabel: "420 MXN", DurationMinutes: 60, Category: "Paquetes", Aliases: []string{"corte y barba"}},
	{ID: "paquete-mascarilla-exfoliacion", Name: "paquete mascarilla y exfoliación", PriceLabel: "220 MXN", DurationMinutes: 45, Category: "Paquetes", Aliases: []string{"mascarilla y exfoliacion"}},
	{ID: "exfoliacion", Name: "exfoliación", PriceLabel: "120 MXN", DurationMinutes: 30, Category: "Faciales"},
	{ID: "mascarilla-black", Name: "mascarilla black", PriceLabel: "150 MXN", DurationMinutes: 30, Category: "Faciales", Aliases: []string{"black"}},
	{ID: "mascarilla-colageno", Name: "mascarilla de colageno", PriceLabel: "170 MXN", DurationMinutes: 30, Category: "Faciales", Aliases: []string{"colageno"}},
	{ID: "manicure", Name: "manicure", PriceLabel: "200 MXN", DurationMinutes: 30, Category: "Manos", Aliases: []string{"uñas"}},
}
