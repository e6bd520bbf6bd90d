// internal/adapter/factory.go
package adapter

import (
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/xkilldash9x/cartwright/internal/config"
	"github.com/xkilldash9x/cartwright/internal/errs"
	"github.com/xkilldash9x/cartwright/internal/selectors"
)

// Storefront identities. Each one names both a selector file and an adapter.
const (
	Dutchie    = "dutchie"
	IHeartJane = "iheartjane"
	Leafly     = "leafly"
)

// storefronts maps a domain fragment to the storefront it identifies, in
// match order.
var storefronts = []struct {
	domain string
	name   string
}{
	{"dutchie.com", Dutchie},
	{"iheartjane.com", IHeartJane},
	{"leafly.com", Leafly},
}

// StorefrontOf resolves the storefront serving productURL.
func StorefrontOf(productURL string) (string, error) {
	for _, s := range storefronts {
		if strings.Contains(productURL, s.domain) {
			return s.name, nil
		}
	}
	return "", errs.New(errs.Invalid, errs.ReasonUnsupportedStorefront, "Unsupported domain")
}

// Domain returns the registrable domain of rawURL, e.g. "dutchie.com" for
// "https://dutchie.com/embedded-menu/x". Carts may not mix domains.
func Domain(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", errs.New(errs.Invalid, errs.ReasonNone, "Invalid product URL", errs.WithCause(err))
	}
	host := u.Hostname()
	if host == "" {
		return "", errs.Newf(errs.Invalid, errs.ReasonNone, "Invalid product URL %q", rawURL)
	}
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// Single-label hosts such as localhost have no registrable domain.
		return host, nil
	}
	return d, nil
}

// Factory builds adapters over one selector set. Construction is cheap, so
// callers build one per operation.
type Factory struct {
	sel       *selectors.Set
	timeouts  config.TimeoutConfig
	uploadDir string
	logger    *zap.Logger
}

func NewFactory(sel *selectors.Set, timeouts config.TimeoutConfig, uploadDir string, logger *zap.Logger) *Factory {
	return &Factory{
		sel:       sel,
		timeouts:  timeouts,
		uploadDir: uploadDir,
		logger:    logger.Named("adapter"),
	}
}

// ForURL returns the adapter for the storefront serving productURL.
func (f *Factory) ForURL(productURL string) (Adapter, error) {
	name, err := StorefrontOf(productURL)
	if err != nil {
		return nil, err
	}
	return f.ForStorefront(name)
}

// ForStorefront returns the adapter for a storefront identity.
func (f *Factory) ForStorefront(name string) (Adapter, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	var build func(*engine) Adapter
	switch name {
	case Dutchie:
		build = newDutchie
	case IHeartJane:
		build = func(e *engine) Adapter { return newJane(e, iheartjaneStyle) }
	case Leafly:
		build = func(e *engine) Adapter { return newJane(e, leaflyStyle) }
	default:
		return nil, errs.Newf(errs.Invalid, errs.ReasonUnsupportedStorefront, "Unsupported storefront %q", name)
	}
	e, err := newEngine(f.sel, name, f.timeouts, f.uploadDir, f.logger)
	if err != nil {
		return nil, errs.New(errs.Internal, errs.ReasonNone, "Selectors unavailable for "+name, errs.WithCause(err))
	}
	return build(e), nil
}
