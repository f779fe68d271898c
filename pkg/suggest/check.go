package suggest

import (
	"fmt"

	"github.com/genea-app/genea/pkg/storage"
)

const (
	minParentAge  = 12
	maxSpouseDiff = 40
)

// Warning flags a relationship that is allowed but looks inconsistent.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CheckRelationship inspects the edge "p1 is t of p2" against the birth and
// death years of both persons. Unknown years produce no warnings.
func CheckRelationship(p1, p2 *storage.Person, t storage.RelationshipType) []Warning {
	var warnings []Warning

	switch t {
	case storage.RelationshipParent, storage.RelationshipChild:
		parent, child := p1, p2
		if t == storage.RelationshipChild {
			parent, child = p2, p1
		}

		parentBirth, childBirth := storage.YearOf(parent.BirthDate), storage.YearOf(child.BirthDate)
		if parentBirth > 0 && childBirth > 0 {
			switch gap := childBirth - parentBirth; {
			case gap <= 0:
				warnings = append(warnings, Warning{
					Code:    "parent_not_older",
					Message: fmt.Sprintf("%s was born in %d, not before %s (%d)", parent.FullName(), parentBirth, child.FullName(), childBirth),
				})
			case gap < minParentAge:
				warnings = append(warnings, Warning{
					Code:    "parent_too_young",
					Message: fmt.Sprintf("%s would have been %d when %s was born", parent.FullName(), gap, child.FullName()),
				})
			}
		}

		if parentDeath := storage.YearOf(parent.DeathDate); parentDeath > 0 && childBirth > parentDeath {
			warnings = append(warnings, Warning{
				Code:    "born_after_parent_death",
				Message: fmt.Sprintf("%s was born in %d, after %s died in %d", child.FullName(), childBirth, parent.FullName(), parentDeath),
			})
		}

	case storage.RelationshipSpouse, storage.RelationshipExSpouse:
		y1, y2 := storage.YearOf(p1.BirthDate), storage.YearOf(p2.BirthDate)
		if y1 > 0 && y2 > 0 && abs(y1-y2) > maxSpouseDiff {
			warnings = append(warnings, Warning{
				Code:    "large_age_gap",
				Message: fmt.Sprintf("%s and %s were born %d years apart", p1.FullName(), p2.FullName(), abs(y1-y2)),
			})
		}
	}

	return warnings
}
