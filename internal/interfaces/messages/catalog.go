// Package messages renders user-facing text in the configured language.
package messages

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"

	autherrors "github.com/pmaschool/authcore/internal/shared/errors"
)

// BaseLocale is used when a requested language has no catalog.
const BaseLocale = "en"

// Message keys used outside the error mapping.
const (
	KeyWelcome          = "login.welcome"
	KeyLoggedOut        = "logout.done"
	KeyPromptLogin      = "biometrics.prompt_login"
	KeyPromptEnable     = "biometrics.prompt_enable"
	KeyBiometricsOn     = "biometrics.enabled"
	KeyBiometricsOff    = "biometrics.disabled"
	KeySessionExpired   = "session.expired_alert"
	keyStaleCredentials = "error.stale_credentials"
)

//go:embed locales/*.yaml
var localesFS embed.FS

type localeFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

// Catalog holds every locale loaded from the embedded yaml files.
type Catalog struct {
	builder *catalog.Builder
	tags    []language.Tag
	matcher language.Matcher
	keys    map[language.Tag]map[string]bool
}

// Load parses the embedded locales.
func Load() (*Catalog, error) {
	return LoadFromFS(localesFS)
}

func LoadFromFS(fsys fs.FS) (*Catalog, error) {
	paths, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locales: %w", err)
	}
	sort.Strings(paths)

	base := language.Make(BaseLocale)
	c := &Catalog{
		builder: catalog.NewBuilder(catalog.Fallback(base)),
		keys:    make(map[language.Tag]map[string]bool),
	}
	// The base locale goes first so the matcher falls back to it.
	c.tags = append(c.tags, base)
	messagesByTag := make(map[language.Tag]map[string]string)

	for _, path := range paths {
		raw, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		var file localeFile
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		tag, err := language.Parse(strings.TrimSpace(file.Locale))
		if err != nil {
			return nil, fmt.Errorf("%s: invalid locale %q: %w", path, file.Locale, err)
		}
		if tag != base {
			c.tags = append(c.tags, tag)
		}
		keys := make(map[string]bool, len(file.Messages))
		for key, msg := range file.Messages {
			if err := c.builder.SetString(tag, key, msg); err != nil {
				return nil, fmt.Errorf("%s: key %q: %w", path, key, err)
			}
			keys[key] = true
		}
		c.keys[tag] = keys
		messagesByTag[tag] = file.Messages
	}

	baseMessages, ok := messagesByTag[base]
	if !ok {
		return nil, fmt.Errorf("base locale %s is not defined", BaseLocale)
	}
	// Untranslated keys render in the base locale.
	for tag, keys := range c.keys {
		for key, msg := range baseMessages {
			if keys[key] {
				continue
			}
			if err := c.builder.SetString(tag, key, msg); err != nil {
				return nil, fmt.Errorf("fallback key %q: %w", key, err)
			}
		}
	}
	c.matcher = language.NewMatcher(c.tags)
	return c, nil
}

// Printer formats messages for one language.
type Printer struct {
	tag     language.Tag
	printer *message.Printer
}

// Printer picks the closest supported language to lang.
func (c *Catalog) Printer(lang string) *Printer {
	_, idx, _ := c.matcher.Match(language.Make(lang))
	tag := c.tags[idx]
	return &Printer{
		tag:     tag,
		printer: message.NewPrinter(tag, message.Catalog(c.builder)),
	}
}

// Missing lists keys defined in the base locale but absent from lang.
func (c *Catalog) Missing(lang string) []string {
	tag := c.Printer(lang).tag
	var out []string
	for key := range c.keys[language.Make(BaseLocale)] {
		if !c.keys[tag][key] {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

func (p *Printer) Language() string {
	return p.tag.String()
}

func (p *Printer) Sprintf(key string, args ...any) string {
	return p.printer.Sprintf(key, args...)
}

// Error renders err for the user. Silent errors render as "".
func (p *Printer) Error(err error) string {
	if err == nil || autherrors.IsSilent(err) {
		return ""
	}
	if authErr := autherrors.GetAuthError(err); authErr != nil &&
		authErr.Type == autherrors.ErrorTypeInvalidCredentials &&
		authErr.Details == autherrors.DetailStaleCredentials {
		return p.Sprintf(keyStaleCredentials)
	}
	return p.Sprintf("error." + string(autherrors.KindOf(err)))
}
