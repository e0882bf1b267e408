package pages

import (
	"embed"
	"html/template"
	"io"

	"github.com/keithlinneman/docsite/internal/layout"
)

//go:embed templates/*.html
var templates embed.FS

// TeamView is the template data of the team page.
type TeamView struct {
	Head   layout.Head
	Roster Roster
}

// StakingView is the template data of a staking page.
type StakingView struct {
	Head     layout.Head
	Subtitle string
	Body     template.HTML
}

// Renderer writes the team and staking pages.
type Renderer struct {
	team    *template.Template
	staking *template.Template
	// TeamHead is the document head of the team page.
	TeamHead layout.Head
}

// NewRenderer parses the page templates.
func NewRenderer() (*Renderer, error) {
	team, err := layout.Extend(templates, "templates/team.html")
	if err != nil {
		return nil, err
	}
	staking, err := layout.Extend(templates, "templates/staking.html")
	if err != nil {
		return nil, err
	}
	return &Renderer{
		team:    team,
		staking: staking,
		TeamHead: layout.Head{
			Title:       "Our Team",
			Description: "The people building the protocol.",
			Theme:       "about",
		},
	}, nil
}

// RenderTeam writes the team page for roster.
func (r *Renderer) RenderTeam(w io.Writer, roster Roster) error {
	return layout.Execute(w, r.team, TeamView{Head: r.TeamHead, Roster: roster})
}

// RenderStaking writes a staking page.
func (r *Renderer) RenderStaking(w io.Writer, d StakingDefaults, p StakingProps, body template.HTML) error {
	return layout.Execute(w, r.staking, StakingView{
		Head:     StakingHead(d, p),
		Subtitle: p.Subtitle,
		Body:     body,
	})
}
