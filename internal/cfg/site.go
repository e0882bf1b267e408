package cfg

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"

	"github.com/keithlinneman/docsite/internal/docpage"
	"github.com/keithlinneman/docsite/internal/pages"
)

// Site holds the presentation settings read from the optional site TOML
// file. Keys missing from the file keep their DefaultSite values.
type Site struct {
	Name    string        `koanf:"name"    validate:"required"`
	Docs    DocsSettings  `koanf:"docs"`
	Tools   ToolSettings  `koanf:"tools"`
	Staking StakingPage   `koanf:"staking"`
	Content ContentChecks `koanf:"content"`
}

type DocsSettings struct {
	HeaderOffset int    `koanf:"header_offset" validate:"gte=0,lte=400"`
	TOCMinLevel  int    `koanf:"toc_min_level" validate:"gte=1,lte=6"`
	TOCMaxLevel  int    `koanf:"toc_max_level" validate:"gte=1,lte=6,gtefield=TOCMinLevel"`
	HelpTitle    string `koanf:"help_title"`
	HelpLinks    []Link `koanf:"help_links"    validate:"dive"`
}

type Link struct {
	Label string `koanf:"label" validate:"required"`
	Href  string `koanf:"href"  validate:"required,uri|startswith=/"`
}

type ToolSettings struct {
	FetchTimeout time.Duration `koanf:"fetch_timeout" validate:"gte=0"`
	MaxBytes     int64         `koanf:"max_bytes"     validate:"gte=0"`
	UserAgent    string        `koanf:"user_agent"`
}

type StakingPage struct {
	Title       string `koanf:"title"       validate:"required"`
	Description string `koanf:"description"`
	Keywords    string `koanf:"keywords"`
}

// ContentChecks tunes bundle validation before a swap.
type ContentChecks struct {
	MinFiles            int  `koanf:"min_files"             validate:"gte=0"`
	SkipProvenance      bool `koanf:"skip_provenance"`
	AllowMissingModules bool `koanf:"allow_missing_modules"`
}

// DefaultSite returns the settings used when no site file is given.
func DefaultSite() Site {
	return Site{
		Name: "Docs",
		Docs: DocsSettings{
			HeaderOffset: 90,
			TOCMinLevel:  2,
			TOCMaxLevel:  3,
			HelpTitle:    "Need some help?",
			HelpLinks: []Link{
				{Label: "Join the community chat", Href: "/community"},
				{Label: "Open an issue", Href: "/community#issues"},
			},
		},
		Tools: ToolSettings{
			FetchTimeout: 15 * time.Second,
			MaxBytes:     4 << 20,
			UserAgent:    "docsite",
		},
		Staking: StakingPage{
			Title:       "Staking",
			Description: "Stake tokens with a pool to earn rewards and help secure the network.",
			Keywords:    "staking, liquidity, rewards, pools",
		},
		Content: ContentChecks{MinFiles: 3},
	}
}

// LoadSite reads the site TOML file at path over DefaultSite. An empty path
// returns the defaults.
func LoadSite(path string) (Site, error) {
	site := DefaultSite()
	if path == "" {
		return site, nil
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Site{}, oops.
				Code("CONFIG_NOT_FOUND").
				With("path", path).
				Hint("Create the file or drop the -site-config flag").
				Errorf("site config %q does not exist", path)
		}
		return Site{}, oops.Wrapf(err, "checking site config %q", path)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		return Site{}, oops.
			Code("CONFIG_INVALID").
			With("path", path).
			Hint("Fix TOML syntax in the site config").
			Wrapf(err, "loading site config from %q", path)
	}

	// slices decode element-wise over existing values, so a configured list
	// must start empty
	if k.Exists("docs.help_links") {
		site.Docs.HelpLinks = nil
	}
	if err := k.Unmarshal("", &site); err != nil {
		return Site{}, oops.
			Code("CONFIG_INVALID").
			With("path", path).
			Hint("Fix the site config structure").
			Wrapf(err, "decoding site config from %q", path)
	}

	if err := site.Validate(); err != nil {
		return Site{}, oops.With("path", path).Wrap(err)
	}
	return site, nil
}

// DocsPage returns the docs page renderer settings.
func (s Site) DocsPage() docpage.Settings {
	links := make([]docpage.Link, 0, len(s.Docs.HelpLinks))
	for _, l := range s.Docs.HelpLinks {
		links = append(links, docpage.Link{Label: l.Label, Href: l.Href})
	}
	return docpage.Settings{
		SiteName:     s.Name,
		HeaderOffset: s.Docs.HeaderOffset,
		TOCMinLevel:  s.Docs.TOCMinLevel,
		TOCMaxLevel:  s.Docs.TOCMaxLevel,
		HelpTitle:    s.Docs.HelpTitle,
		HelpLinks:    links,
	}
}

// StakingDefaults returns the staking page metadata.
func (s Site) StakingDefaults() pages.StakingDefaults {
	return pages.StakingDefaults(s.Staking)
}

// Validate reports the first invalid field.
func (s Site) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return oops.Code("CONFIG_INVALID").Wrapf(err, "validating site config")
	}
	fe := verrs[0]
	field := strings.TrimPrefix(fe.Namespace(), "Site.")
	return oops.
		Code("CONFIG_INVALID").
		With("field", field).
		Hint(siteHint(fe)).
		Errorf("invalid site config: %s failed %q", field, fe.Tag())
}

func siteHint(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Set a value for " + fe.Field()
	case "gtefield":
		return "toc_max_level must not be below toc_min_level"
	case "uri|startswith=/":
		return "Links must be absolute URLs or site paths starting with /"
	default:
		return "Check the allowed range for " + fe.Field()
	}
}
