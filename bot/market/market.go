package market

import (
	"fmt"
	"strings"
)

// Kind identifies one of the supported marketplaces. The set is closed:
// every Kind persisted in a session or carried in a callback payload must
// parse back through Parse.
type Kind string

const (
	Alibaba1688 Kind = "1688"
	Pinduoduo   Kind = "pinduoduo"
	Poizon      Kind = "poizon"
	Taobao      Kind = "taobao"
)

// Kinds returns all marketplaces in menu order.
func Kinds() []Kind {
	return []Kind{Alibaba1688, Pinduoduo, Poizon, Taobao}
}

// Parse resolves a marketplace identifier from a callback payload.
// Unknown identifiers are rejected so a stale or forged payload can
// never select a marketplace outside the closed set.
func Parse(s string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case Alibaba1688:
		return Alibaba1688, true
	case Pinduoduo:
		return Pinduoduo, true
	case Poizon:
		return Poizon, true
	case Taobao:
		return Taobao, true
	}
	return "", false
}

// Title returns the human-readable marketplace name used on menu buttons.
func (k Kind) Title() string {
	switch k {
	case Alibaba1688:
		return "1688"
	case Pinduoduo:
		return "Pinduoduo"
	case Poizon:
		return "Poizon"
	case Taobao:
		return "Taobao"
	}
	return string(k)
}

// Config carries the per-marketplace help texts. The values are business
// copy and always come from configuration, never from code.
type Config struct {
	Help1688      string `yaml:"help_1688" envconfig:"HELP_1688"`
	HelpPinduoduo string `yaml:"help_pinduoduo" envconfig:"HELP_PINDUODUO"`
	HelpPoizon    string `yaml:"help_poizon" envconfig:"HELP_POIZON"`
	HelpTaobao    string `yaml:"help_taobao" envconfig:"HELP_TAOBAO"`
}

// Catalog is the immutable marketplace table built once at startup.
type Catalog struct {
	help map[Kind]string
}

// NewCatalog validates the configured help texts and builds the catalog.
func NewCatalog(cfg Config) (*Catalog, error) {
	help := map[Kind]string{
		Alibaba1688: strings.TrimSpace(cfg.Help1688),
		Pinduoduo:   strings.TrimSpace(cfg.HelpPinduoduo),
		Poizon:      strings.TrimSpace(cfg.HelpPoizon),
		Taobao:      strings.TrimSpace(cfg.HelpTaobao),
	}
	for _, k := range Kinds() {
		if help[k] == "" {
			return nil, fmt.Errorf("marketplace %s: missing help text", k)
		}
	}
	return &Catalog{help: help}, nil
}

// Help returns the configured help text for the marketplace.
func (c *Catalog) Help(k Kind) (string, bool) {
	text, ok := c.help[k]
	return text, ok
}
