package suggest

import (
	"cmp"
	"slices"

	"github.com/genea-app/genea/pkg/storage"
)

const (
	// DefaultMinScore is the lowest score a suggestion needs to be returned.
	DefaultMinScore = 40
	// DefaultLimit is how many suggestions are returned when Options.Limit is zero.
	DefaultLimit = 20

	sameSurnameScore      = 40
	similarSurnameScore   = 25
	surnameSimilarity     = 0.8
	siblingGapScore       = 20
	parentGapScore        = 25
	grandparentGapScore   = 15
	samePlaceScore        = 15
	sameProvinceScore     = 10
	maidenNameMatchScore  = 10
	highConfidenceScore   = 70
	mediumConfidenceScore = 55
)

// Kind is the relationship a suggestion proposes between two persons.
type Kind string

const (
	KindSibling     Kind = "sibling"
	KindParent      Kind = "parent"
	KindGrandparent Kind = "grandparent"
	KindSpouse      Kind = "spouse"
	KindRelative    Kind = "relative"
)

// RelationshipType maps k to the storage edge from Person1 to Person2, if one exists.
func (k Kind) RelationshipType() (storage.RelationshipType, bool) {
	switch k {
	case KindSibling:
		return storage.RelationshipSibling, true
	case KindParent:
		return storage.RelationshipParent, true
	case KindSpouse:
		return storage.RelationshipSpouse, true
	default:
		return "", false
	}
}

// Suggestion proposes that Person1 is Kind of Person2. For parent and
// grandparent suggestions Person1 is the older person.
type Suggestion struct {
	Person1ID  string   `json:"person1_id"`
	Person2ID  string   `json:"person2_id"`
	Kind       Kind     `json:"suggested_relationship"`
	Score      int      `json:"score"`
	Confidence string   `json:"confidence"`
	Reasons    []string `json:"reasons"`
}

// Options tunes SuggestRelationships.
type Options struct {
	// MinScore drops weaker pairs; zero means DefaultMinScore.
	MinScore int
	// Limit caps the result; zero means DefaultLimit and a negative value disables the cap.
	Limit int
}

// SuggestRelationships scores every pair of persons that is not already
// connected by a relationship and returns the pairs worth reviewing, best first.
func SuggestRelationships(persons []*storage.Person, relationships []*storage.Relationship, opts Options) []Suggestion {
	if opts.MinScore == 0 {
		opts.MinScore = DefaultMinScore
	}
	if opts.Limit == 0 {
		opts.Limit = DefaultLimit
	}

	related := make(map[[2]string]struct{}, len(relationships))
	for _, r := range relationships {
		related[pairKey(r.Person1ID, r.Person2ID)] = struct{}{}
	}

	var out []Suggestion
	for i := 0; i < len(persons); i++ {
		for j := i + 1; j < len(persons); j++ {
			a, b := persons[i], persons[j]
			if a.ID == b.ID {
				continue
			}
			if _, ok := related[pairKey(a.ID, b.ID)]; ok {
				continue
			}
			s, ok := scorePair(a, b)
			if !ok || s.Score < opts.MinScore {
				continue
			}
			out = append(out, s)
		}
	}

	slices.SortFunc(out, func(x, y Suggestion) int {
		if c := cmp.Compare(y.Score, x.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(x.Person1ID, y.Person1ID); c != 0 {
			return c
		}
		return cmp.Compare(x.Person2ID, y.Person2ID)
	})

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}

func pairKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

func scorePair(a, b *storage.Person) (Suggestion, bool) {
	if a.ID > b.ID {
		a, b = b, a
	}

	s := Suggestion{Person1ID: a.ID, Person2ID: b.ID, Kind: KindRelative}

	lastA, lastB := Normalize(a.LastName), Normalize(b.LastName)
	if lastA != "" && lastB != "" {
		switch {
		case lastA == lastB:
			s.Score += sameSurnameScore
			s.Reasons = append(s.Reasons, "same surname")
		case Similarity(lastA, lastB) >= surnameSimilarity:
			s.Score += similarSurnameScore
			s.Reasons = append(s.Reasons, "similar surname")
		}
	}

	maidenMatch := matchesMaiden(a, lastB) || matchesMaiden(b, lastA)
	if maidenMatch {
		s.Score += maidenNameMatchScore
		s.Reasons = append(s.Reasons, "maiden name matches surname")
	}

	yearA, yearB := storage.YearOf(a.BirthDate), storage.YearOf(b.BirthDate)
	if yearA > 0 && yearB > 0 {
		older, younger := a, b
		gap := yearB - yearA
		if gap < 0 {
			older, younger = b, a
			gap = -gap
		}

		switch {
		case gap <= 12:
			s.Score += siblingGapScore
			s.Kind = KindSibling
			s.Reasons = append(s.Reasons, "birth years close enough for siblings")
		case gap >= 16 && gap <= 45:
			s.Score += parentGapScore
			s.Kind = KindParent
			s.Person1ID, s.Person2ID = older.ID, younger.ID
			s.Reasons = append(s.Reasons, "birth year gap fits parent and child")
		case gap >= 46 && gap <= 80:
			s.Score += grandparentGapScore
			s.Kind = KindGrandparent
			s.Person1ID, s.Person2ID = older.ID, younger.ID
			s.Reasons = append(s.Reasons, "birth year gap fits grandparent and grandchild")
		}
	}

	// Sharing a surname that one of them married into points to spouses, not siblings.
	if s.Kind == KindSibling && lastA == lastB && (marriedInto(a) || marriedInto(b)) {
		s.Kind = KindSpouse
		s.Reasons = append(s.Reasons, "surname taken by marriage")
	}

	placeA, placeB := Normalize(a.BirthPlace), Normalize(b.BirthPlace)
	if placeA != "" && placeB != "" {
		if placeA == placeB {
			s.Score += samePlaceScore
			s.Reasons = append(s.Reasons, "same birth place")
		} else if pa := ProvinceOf(a.BirthPlace); pa != "" && pa == ProvinceOf(b.BirthPlace) {
			s.Score += sameProvinceScore
			s.Reasons = append(s.Reasons, "born in the same province")
		}
	}

	if s.Score == 0 {
		return s, false
	}
	s.Confidence = confidence(s.Score)
	return s, true
}

func matchesMaiden(p *storage.Person, otherSurname string) bool {
	maiden := Normalize(p.MaidenName)
	return maiden != "" && maiden == otherSurname
}

// marriedInto reports whether p carries a surname other than the one p was born with.
func marriedInto(p *storage.Person) bool {
	maiden := Normalize(p.MaidenName)
	return maiden != "" && maiden != Normalize(p.LastName)
}

func confidence(score int) string {
	switch {
	case score >= highConfidenceScore:
		return "high"
	case score >= mediumConfidenceScore:
		return "medium"
	default:
		return "low"
	}
}
