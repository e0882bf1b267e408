package pages

import (
	"github.com/keithlinneman/docsite/internal/layout"
)

// StakingDefaults is the document metadata of the staking section.
type StakingDefaults struct {
	Title       string
	Description string
	Keywords    string
}

// DefaultStaking returns the stock staking metadata.
func DefaultStaking() StakingDefaults {
	return StakingDefaults{
		Title:       "Staking",
		Description: "Stake tokens with a pool to earn rewards and help secure the network.",
		Keywords:    "staking, liquidity, rewards, pools",
	}
}

// StakingProps are the per-page inputs to the staking layout.
type StakingProps struct {
	Title       string
	Description string
	Keywords    string
	Subtitle    string
	Loading     bool
	IsHome      bool
}

// StakingHead composes the document head of a staking page. The home page
// uses the section title alone; other pages are "<section>: <page>".
// Missing description and keywords fall back to the section defaults.
func StakingHead(d StakingDefaults, p StakingProps) layout.Head {
	h := layout.Head{
		Title:       d.Title,
		Description: d.Description,
		Keywords:    d.Keywords,
		Theme:       "staking",
		Loading:     p.Loading,
	}
	if !p.IsHome {
		h.Title = d.Title + ": " + p.Title
	}
	if p.Description != "" {
		h.Description = p.Description
	}
	if p.Keywords != "" {
		h.Keywords = p.Keywords
	}
	return h
}
