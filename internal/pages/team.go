// Package pages renders the site pages that sit beside the documentation:
// the team roster and the staking section.
package pages

import (
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
)

// Member is one person on the roster.
type Member struct {
	Name     string `json:"name" validate:"required"`
	Title    string `json:"title" validate:"required"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// Roster is team.json: the team and its advisors, in display order.
type Roster struct {
	Team     []Member `json:"team" validate:"dive"`
	Advisors []Member `json:"advisors" validate:"dive"`
}

// Len counts everyone on the roster.
func (r Roster) Len() int { return len(r.Team) + len(r.Advisors) }

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParseRoster decodes and validates team.json.
func ParseRoster(data []byte) (Roster, error) {
	var r Roster
	if err := json.Unmarshal(data, &r); err != nil {
		return Roster{}, oops.
			Code("CONFIG_INVALID").
			With("file", "team.json").
			Wrapf(err, "decoding team roster")
	}
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return Roster{}, oops.
				Code("CONFIG_INVALID").
				With("file", "team.json").
				With("field", fe.Namespace()).
				Hint("Every roster entry needs a name and a title").
				Errorf("invalid roster entry: %s failed %q", fe.Namespace(), fe.Tag())
		}
		return Roster{}, oops.Code("CONFIG_INVALID").Wrapf(err, "validating team roster")
	}
	return r, nil
}
