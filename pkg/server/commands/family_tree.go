package commands

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	serverErrors "github.com/genea-app/genea/pkg/server/errors"
	"github.com/genea-app/genea/pkg/storage"
	"github.com/genea-app/genea/pkg/suggest"
)

const topSurnames = 10

// FamilyReader is the part of the datastore needed to load a whole family.
type FamilyReader interface {
	GetFamily(ctx context.Context, id string) (*storage.Family, error)
	ListMembers(ctx context.Context, familyID string) ([]*storage.FamilyMember, error)
	ListPersons(ctx context.Context, familyID string, filter storage.PersonFilter, opts storage.PaginationOptions) ([]*storage.Person, string, error)
	ListRelationships(ctx context.Context, familyID string, filter storage.RelationshipFilter) ([]*storage.Relationship, error)
	ListMedia(ctx context.Context, familyID string, filter storage.MediaFilter, opts storage.PaginationOptions) ([]*storage.Media, string, error)
}

type FamilyTree struct {
	Family        *storage.Family         `json:"family"`
	Persons       []*storage.Person       `json:"persons"`
	Relationships []*storage.Relationship `json:"relationships"`
}

type SurnameCount struct {
	Surname string `json:"surname"`
	Count   int    `json:"count"`
}

type FamilyStats struct {
	TotalPersons        int                              `json:"total_persons"`
	LivingPersons       int                              `json:"living_persons"`
	DeceasedPersons     int                              `json:"deceased_persons"`
	Genders             map[storage.Gender]int           `json:"genders"`
	TotalRelationships  int                              `json:"total_relationships"`
	RelationshipsByType map[storage.RelationshipType]int `json:"relationships_by_type"`
	TotalMedia          int                              `json:"total_media"`
	TotalMembers        int                              `json:"total_members"`
	EarliestBirthYear   int                              `json:"earliest_birth_year,omitempty"`
	LatestBirthYear     int                              `json:"latest_birth_year,omitempty"`
	TopSurnames         []SurnameCount                   `json:"top_surnames"`
	BirthProvinces      map[string]int                   `json:"birth_provinces"`
}

// allRows lifts the page size limit.
var allRows = storage.PaginationOptions{}

// FamilyTreeQuery loads the data of a whole family concurrently.
type FamilyTreeQuery struct {
	datastore FamilyReader
}

func NewFamilyTreeQuery(datastore FamilyReader) *FamilyTreeQuery {
	return &FamilyTreeQuery{datastore: datastore}
}

// Tree returns every person of the family and the relationships between them.
func (q *FamilyTreeQuery) Tree(ctx context.Context, familyID string) (*FamilyTree, error) {
	ctx, span := tracer.Start(ctx, "FamilyTree", trace.WithAttributes(attribute.String("family_id", familyID)))
	defer span.End()

	tree := &FamilyTree{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		family, err := q.datastore.GetFamily(gctx, familyID)
		tree.Family = family
		return err
	})
	g.Go(func() error {
		persons, _, err := q.datastore.ListPersons(gctx, familyID, storage.PersonFilter{}, allRows)
		tree.Persons = persons
		return err
	})
	g.Go(func() error {
		relationships, err := q.datastore.ListRelationships(gctx, familyID, storage.RelationshipFilter{})
		tree.Relationships = relationships
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, serverErrors.HandleError("failed to load the family tree", err)
	}

	if tree.Persons == nil {
		tree.Persons = []*storage.Person{}
	}
	if tree.Relationships == nil {
		tree.Relationships = []*storage.Relationship{}
	}
	return tree, nil
}

// Stats summarises the family's persons, relationships, media and members.
func (q *FamilyTreeQuery) Stats(ctx context.Context, familyID string) (*FamilyStats, error) {
	ctx, span := tracer.Start(ctx, "FamilyStats", trace.WithAttributes(attribute.String("family_id", familyID)))
	defer span.End()

	var (
		persons       []*storage.Person
		relationships []*storage.Relationship
		media         []*storage.Media
		members       []*storage.FamilyMember
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		persons, _, err = q.datastore.ListPersons(gctx, familyID, storage.PersonFilter{}, allRows)
		return err
	})
	g.Go(func() (err error) {
		relationships, err = q.datastore.ListRelationships(gctx, familyID, storage.RelationshipFilter{})
		return err
	})
	g.Go(func() (err error) {
		media, _, err = q.datastore.ListMedia(gctx, familyID, storage.MediaFilter{}, allRows)
		return err
	})
	g.Go(func() (err error) {
		members, err = q.datastore.ListMembers(gctx, familyID)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, serverErrors.HandleError("failed to compute family statistics", err)
	}

	stats := &FamilyStats{
		TotalPersons:        len(persons),
		Genders:             map[storage.Gender]int{},
		TotalRelationships:  len(relationships),
		RelationshipsByType: map[storage.RelationshipType]int{},
		TotalMedia:          len(media),
		TotalMembers:        len(members),
		TopSurnames:         []SurnameCount{},
		BirthProvinces:      map[string]int{},
	}

	surnames := map[string]int{}
	for _, p := range persons {
		if p.IsLiving {
			stats.LivingPersons++
		} else {
			stats.DeceasedPersons++
		}

		gender := p.Gender
		if gender == "" {
			gender = storage.GenderUnknown
		}
		stats.Genders[gender]++

		if year := storage.YearOf(p.BirthDate); year > 0 {
			if stats.EarliestBirthYear == 0 || year < stats.EarliestBirthYear {
				stats.EarliestBirthYear = year
			}
			if year > stats.LatestBirthYear {
				stats.LatestBirthYear = year
			}
		}

		if p.LastName != "" {
			surnames[p.LastName]++
		}
		if province := suggest.ProvinceOf(p.BirthPlace); province != "" {
			stats.BirthProvinces[province]++
		}
	}

	for _, r := range relationships {
		stats.RelationshipsByType[r.Type]++
	}

	for surname, count := range surnames {
		stats.TopSurnames = append(stats.TopSurnames, SurnameCount{Surname: surname, Count: count})
	}
	sort.Slice(stats.TopSurnames, func(i, j int) bool {
		a, b := stats.TopSurnames[i], stats.TopSurnames[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Surname < b.Surname
	})
	if len(stats.TopSurnames) > topSurnames {
		stats.TopSurnames = stats.TopSurnames[:topSurnames]
	}

	return stats, nil
}
