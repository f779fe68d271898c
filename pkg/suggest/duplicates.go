package suggest

import (
	"cmp"
	"math"
	"slices"

	"github.com/genea-app/genea/pkg/storage"
)

const (
	DefaultDuplicateThreshold = 0.8

	sameBirthDateBoost  = 0.1
	sameBirthPlaceBoost = 0.05
	birthYearPenalty    = 0.3
	birthYearTolerance  = 2
)

// Duplicate is a pair of records that probably describe the same person.
type Duplicate struct {
	Person1ID string   `json:"person1_id"`
	Person2ID string   `json:"person2_id"`
	Score     float64  `json:"score"`
	Reasons   []string `json:"reasons"`
}

// FindDuplicates compares full names of every pair. A pair is reported when
// both the name similarity and the adjusted score reach threshold; a
// non-positive threshold means DefaultDuplicateThreshold.
func FindDuplicates(persons []*storage.Person, threshold float64) []Duplicate {
	if threshold <= 0 {
		threshold = DefaultDuplicateThreshold
	}

	var out []Duplicate
	for i := 0; i < len(persons); i++ {
		for j := i + 1; j < len(persons); j++ {
			a, b := persons[i], persons[j]
			if a.ID == b.ID {
				continue
			}
			if a.ID > b.ID {
				a, b = b, a
			}

			nameScore := Similarity(a.FullName(), b.FullName())
			if nameScore < threshold {
				continue
			}

			d := Duplicate{Person1ID: a.ID, Person2ID: b.ID, Score: nameScore}
			d.Reasons = append(d.Reasons, "similar full name")

			if a.BirthDate != "" && a.BirthDate == b.BirthDate {
				d.Score += sameBirthDateBoost
				d.Reasons = append(d.Reasons, "same birth date")
			}
			if pa := Normalize(a.BirthPlace); pa != "" && pa == Normalize(b.BirthPlace) {
				d.Score += sameBirthPlaceBoost
				d.Reasons = append(d.Reasons, "same birth place")
			}

			yearA, yearB := storage.YearOf(a.BirthDate), storage.YearOf(b.BirthDate)
			if yearA > 0 && yearB > 0 && abs(yearA-yearB) > birthYearTolerance {
				d.Score -= birthYearPenalty
				d.Reasons = append(d.Reasons, "birth years differ")
			}

			d.Score = math.Round(min(max(d.Score, 0), 1)*100) / 100
			if d.Score < threshold {
				continue
			}
			out = append(out, d)
		}
	}

	slices.SortFunc(out, func(x, y Duplicate) int {
		if c := cmp.Compare(y.Score, x.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(x.Person1ID, y.Person1ID); c != 0 {
			return c
		}
		return cmp.Compare(x.Person2ID, y.Person2ID)
	})
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
