// Package intent maps inbound messages onto the fixed set of commands the assistant understands.
package intent

import (
	"github.com/wolfman30/barberbot/pkg/textnorm"
)

// Intent is a recognized command.
type Intent string

const (
	Unknown          Intent = "unknown"
	Reset            Intent = "reset"
	Cancel           Intent = "cancel"
	Reschedule       Intent = "reschedule"
	ShowAvailability Intent = "show_availability"
	Greeting         Intent = "greeting"
	Services         Intent = "services"
	Book             Intent = "book"
)

// Global reports whether the intent is honored in every conversation state.
func (i Intent) Global() bool {
	switch i {
	case Reset, Cancel, Reschedule, ShowAvailability:
		return true
	default:
		return false
	}
}

type rule struct {
	intent  Intent
	exact   bool
	phrases []string
}

// Classifier matches folded text against keyword rules in priority order.
type Classifier struct {
	rules  []rule
	affirm map[string]struct{}
	deny   map[string]struct{}
}

// NewClassifier returns a classifier with the shop's Spanish keywords.
func NewClassifier() *Classifier {
	return &Classifier{
		rules: []rule{
			{intent: Reset, exact: true, phrases: []string{"reiniciar", "reset", "comenzar de nuevo", "empezar de nuevo"}},
			{intent: Cancel, phrases: []string{"cancelar cita", "cancelar mi cita", "cancelar la cita"}},
			{intent: Reschedule, phrases: []string{"reprogramar cita", "reprogramar mi cita", "cambiar cita", "cambiar mi cita"}},
			{intent: Reschedule, exact: true, phrases: []string{"reprogramar"}},
			{intent: ShowAvailability, phrases: []string{"horarios disponibles", "ver horarios"}},
			{intent: Greeting, phrases: []string{"hola", "holi", "buenos dias", "buenas tardes", "buenas noches", "buen dia"}},
			{intent: Services, phrases: []string{"servicio", "servicios", "precio", "precios", "que hacen"}},
			{intent: Book, phrases: []string{"agendar", "agendame", "reservar", "cita", "citas"}},
		},
		affirm: set("si", "confirmo", "aceptar", "acepto", "ok"),
		deny:   set("no", "cancelar", "back", "regresar"),
	}
}

// Classify returns the highest-priority intent found in text.
func (c *Classifier) Classify(text string) Intent {
	folded := textnorm.FoldWords(text)
	if folded == "" {
		return Unknown
	}
	for _, r := range c.rules {
		for _, phrase := range r.phrases {
			if r.exact && folded == phrase {
				return r.intent
			}
			if !r.exact && textnorm.ContainsPhrase(folded, phrase) {
				return r.intent
			}
		}
	}
	return Unknown
}

// IsGreetingOnly reports whether the whole message is a greeting with nothing else in it.
func (c *Classifier) IsGreetingOnly(text string) bool {
	folded := textnorm.FoldWords(text)
	for _, r := range c.rules {
		if r.intent != Greeting {
			continue
		}
		for _, phrase := range r.phrases {
			if folded == phrase {
				return true
			}
		}
	}
	return false
}

// IsAffirmative reports whether text is exactly a confirmation word.
func (c *Classifier) IsAffirmative(text string) bool {
	_, ok := c.affirm[textnorm.FoldWords(text)]
	return ok
}

// IsNegative reports whether text is exactly a refusal word.
func (c *Classifier) IsNegative(text string) bool {
	_, ok := c.deny[textnorm.FoldWords(text)]
	return ok
}

func set(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
