// internal/selectors/selectors.go
package selectors

import (
	"fmt"
	"strconv"
	"strings"
)

// Phase names one stage of a storefront workflow.
type Phase string

const (
	PhaseVariant          Phase = "variant"
	PhaseAddToCart        Phase = "add_to_cart"
	PhaseCartVerification Phase = "cart_verification"
	PhaseCartDeletion     Phase = "cart_deletion"
	PhaseCheckout         Phase = "checkout"
	PhaseCheckoutFetch    Phase = "checkout_fetch"
)

// Placeholder marks where a template selector takes its argument.
const Placeholder = "{}"

// Group maps operation names to queries for a single phase.
type Group map[string]Query

// Get returns the primary expression for key, or "" when the key is absent.
func (g Group) Get(key string) string {
	return g[key].First()
}

// List returns every fallback expression for key.
func (g Group) List(key string) []string {
	return g[key].All()
}

// Query returns the raw query for key.
func (g Group) Query(key string) Query {
	return g[key]
}

// Has reports whether key is configured with a usable expression.
func (g Group) Has(key string) bool {
	return !g[key].Empty()
}

// Template substitutes arg into the placeholder of the expression for key.
func (g Group) Template(key string, arg any) string {
	var s string
	switch v := arg.(type) {
	case int:
		s = strconv.Itoa(v)
	case string:
		s = v
	default:
		s = fmt.Sprint(v)
	}
	return strings.ReplaceAll(g.Get(key), Placeholder, s)
}

// File is the on-disk description of one storefront.
type File struct {
	BotName     string          `json:"bot_name" yaml:"bot_name"`
	CheckoutURL string          `json:"checkout_url" yaml:"checkout_url"`
	Bag         string          `json:"bag" yaml:"bag"`
	Selectors   map[Phase]Group `json:"selectors" yaml:"selectors"`
}

// Set is the immutable collection of loaded storefront selector files. It is
// safe for concurrent readers.
type Set struct {
	files map[string]File
}

// New builds a set from already decoded files. Bot names are case-insensitive.
func New(files ...File) (*Set, error) {
	s := &Set{files: make(map[string]File, len(files))}
	for _, f := range files {
		name := strings.ToLower(strings.TrimSpace(f.BotName))
		if name == "" {
			return nil, fmt.Errorf("selector file is missing bot_name")
		}
		if _, dup := s.files[name]; dup {
			return nil, fmt.Errorf("duplicate selector file for %q", name)
		}
		if f.Selectors == nil {
			f.Selectors = map[Phase]Group{}
		}
		s.files[name] = f
	}
	return s, nil
}

func (s *Set) lookup(storefront string) (File, error) {
	if s == nil {
		return File{}, fmt.Errorf("no selectors loaded")
	}
	f, ok := s.files[strings.ToLower(storefront)]
	if !ok {
		return File{}, fmt.Errorf("no selectors found for storefront %q", storefront)
	}
	return f, nil
}

// Phase returns the selector group of storefront for phase. A phase missing
// from the file yields an empty group.
func (s *Set) Phase(storefront string, phase Phase) (Group, error) {
	f, err := s.lookup(storefront)
	if err != nil {
		return nil, err
	}
	g := f.Selectors[phase]
	if g == nil {
		g = Group{}
	}
	return g, nil
}

// CheckoutURL returns the checkout page of storefront.
func (s *Set) CheckoutURL(storefront string) (string, error) {
	f, err := s.lookup(storefront)
	if err != nil {
		return "", err
	}
	return f.CheckoutURL, nil
}

// BagURL returns the cart page of storefront.
func (s *Set) BagURL(storefront string) (string, error) {
	f, err := s.lookup(storefront)
	if err != nil {
		return "", err
	}
	return f.Bag, nil
}

// Storefronts lists the loaded bot names.
func (s *Set) Storefronts() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.files))
	for n := range s.files {
		names = append(names, n)
	}
	return names
}
