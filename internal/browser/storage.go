// internal/browser/storage.go
package browser

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	json "github.com/json-iterator/go"
)

// StorageState is the serialisable browsing identity of a context. The rest of
// the system treats its encoding as opaque bytes.
type StorageState struct {
	Cookies []Cookie       `json:"cookies"`
	Origins []OriginStorage `json:"origins"`
}

// Cookie is a browser cookie. Expires is seconds since the epoch, -1 for session cookies.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// OriginStorage holds the local storage entries of one origin.
type OriginStorage struct {
	Origin       string            `json:"origin"`
	LocalStorage map[string]string `json:"localStorage"`
}

// DecodeStorageState parses a stored blob. An empty blob or JSON null is a fresh identity.
func DecodeStorageState(blob []byte) (StorageState, error) {
	var st StorageState
	trimmed := strings.TrimSpace(string(blob))
	if trimmed == "" || trimmed == "null" || trimmed == "{}" {
		return st, nil
	}
	if err := json.Unmarshal(blob, &st); err != nil {
		return StorageState{}, fmt.Errorf("failed to decode storage state: %w", err)
	}
	return st, nil
}

// Encode serialises the state.
func (s StorageState) Encode() ([]byte, error) {
	if s.Cookies == nil {
		s.Cookies = []Cookie{}
	}
	if s.Origins == nil {
		s.Origins = []OriginStorage{}
	}
	return json.Marshal(s)
}

// cookieParams converts stored cookies for Storage.setCookies.
func (s StorageState) cookieParams() []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if c.SameSite != "" {
			p.SameSite = network.CookieSameSite(c.SameSite)
		}
		if c.Expires > 0 {
			sec := int64(c.Expires)
			nsec := int64((c.Expires - float64(sec)) * float64(time.Second))
			t := cdp.TimeSinceEpoch(time.Unix(sec, nsec))
			p.Expires = &t
		}
		params = append(params, p)
	}
	return params
}

// localStorageScript seeds local storage for every stored origin on each new document.
func (s StorageState) localStorageScript() string {
	if len(s.Origins) == 0 {
		return ""
	}
	byOrigin := make(map[string]map[string]string, len(s.Origins))
	for _, o := range s.Origins {
		if len(o.LocalStorage) > 0 {
			byOrigin[o.Origin] = o.LocalStorage
		}
	}
	if len(byOrigin) == 0 {
		return ""
	}
	return fmt.Sprintf(`(function(){
  const data = %s;
  const entries = data[window.location.origin];
  if (!entries) return;
  try {
    for (const [k, v] of Object.entries(entries)) {
      if (window.localStorage.getItem(k) === null) window.localStorage.setItem(k, v);
    }
  } catch (e) {}
})();`, jsLiteral(byOrigin))
}

func fromNetworkCookies(cookies []*network.Cookie) []Cookie {
	out := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		if c == nil {
			continue
		}
		expires := c.Expires
		if c.Session {
			expires = -1
		}
		out = append(out, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		})
	}
	return out
}

// browserExecutor returns a context whose commands go to the browser endpoint
// rather than the tab, as the Storage domain requires.
func browserExecutor(ctx context.Context) (context.Context, cdp.BrowserContextID, error) {
	c := chromedp.FromContext(ctx)
	if c == nil || c.Browser == nil {
		return nil, "", chromedp.ErrInvalidContext
	}
	return cdp.WithExecutor(ctx, c.Browser), c.BrowserContextID, nil
}

// restoreState applies cookies and local storage to a freshly created tab.
func restoreState(ctx context.Context, st StorageState) error {
	if len(st.Cookies) > 0 {
		bctx, id, err := browserExecutor(ctx)
		if err != nil {
			return err
		}
		if err := storage.SetCookies(st.cookieParams()).WithBrowserContextID(id).Do(bctx); err != nil {
			return fmt.Errorf("failed to restore cookies: %w", err)
		}
	}
	if script := st.localStorageScript(); script != "" {
		if _, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx); err != nil {
			return fmt.Errorf("failed to install local storage seed: %w", err)
		}
	}
	return nil
}

// captureState reads the cookies of the whole browsing context and the local
// storage of the current document, merged over what was restored.
func captureState(ctx context.Context, restored StorageState) (StorageState, error) {
	bctx, id, err := browserExecutor(ctx)
	if err != nil {
		return StorageState{}, err
	}
	cookies, err := storage.GetCookies().WithBrowserContextID(id).Do(bctx)
	if err != nil {
		return StorageState{}, fmt.Errorf("failed to read cookies: %w", err)
	}

	var current struct {
		Origin  string            `json:"origin"`
		Entries map[string]string `json:"entries"`
	}
	err = evaluateValue(ctx, `(function(){
  const out = {origin: window.location.origin, entries: {}};
  try {
    for (let i = 0; i < window.localStorage.length; i++) {
      const k = window.localStorage.key(i);
      out.entries[k] = window.localStorage.getItem(k);
    }
  } catch (e) {}
  return out;
})()`, &current)
	if err != nil {
		return StorageState{}, fmt.Errorf("failed to read local storage: %w", err)
	}

	st := StorageState{Cookies: fromNetworkCookies(cookies)}
	for _, o := range restored.Origins {
		if o.Origin != current.Origin {
			st.Origins = append(st.Origins, o)
		}
	}
	if u, err := url.Parse(current.Origin); err == nil && (u.Scheme == "http" || u.Scheme == "https") && len(current.Entries) > 0 {
		st.Origins = append(st.Origins, OriginStorage{Origin: current.Origin, LocalStorage: current.Entries})
	}
	return st, nil
}
