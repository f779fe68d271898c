package commands

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	serverErrors "github.com/genea-app/genea/pkg/server/errors"
	"github.com/genea-app/genea/pkg/storage"
	"github.com/genea-app/genea/pkg/suggest"
)

// SuggestionsQuery runs the suggestion heuristics over a whole family.
type SuggestionsQuery struct {
	datastore          FamilyReader
	limit              int
	duplicateThreshold float64
}

type SuggestionsQueryOption func(*SuggestionsQuery)

func WithSuggestionLimit(limit int) SuggestionsQueryOption {
	return func(q *SuggestionsQuery) {
		q.limit = limit
	}
}

func WithDuplicateThreshold(threshold float64) SuggestionsQueryOption {
	return func(q *SuggestionsQuery) {
		q.duplicateThreshold = threshold
	}
}

func NewSuggestionsQuery(datastore FamilyReader, opts ...SuggestionsQueryOption) *SuggestionsQuery {
	q := &SuggestionsQuery{
		datastore:          datastore,
		limit:              suggest.DefaultLimit,
		duplicateThreshold: suggest.DefaultDuplicateThreshold,
	}

	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Relationships suggests relationships between persons of the family that
// are not related yet. minScore of zero uses the default.
func (q *SuggestionsQuery) Relationships(ctx context.Context, familyID string, minScore int) ([]suggest.Suggestion, error) {
	ctx, span := tracer.Start(ctx, "SuggestRelationships", trace.WithAttributes(attribute.String("family_id", familyID)))
	defer span.End()

	var (
		persons       []*storage.Person
		relationships []*storage.Relationship
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
	if err := g.Wait(); err != nil {
		return nil, serverErrors.HandleError("failed to compute suggestions", err)
	}

	suggestions := suggest.SuggestRelationships(persons, relationships, suggest.Options{
		MinScore: minScore,
		Limit:    q.limit,
	})
	span.SetAttributes(attribute.Int("suggestions", len(suggestions)))

	if suggestions == nil {
		suggestions = []suggest.Suggestion{}
	}
	return suggestions, nil
}

// Duplicates returns pairs of persons of the family that likely describe the same individual.
func (q *SuggestionsQuery) Duplicates(ctx context.Context, familyID string) ([]suggest.Duplicate, error) {
	ctx, span := tracer.Start(ctx, "FindDuplicates", trace.WithAttributes(attribute.String("family_id", familyID)))
	defer span.End()

	persons, _, err := q.datastore.ListPersons(ctx, familyID, storage.PersonFilter{}, allRows)
	if err != nil {
		return nil, serverErrors.HandleError("failed to compute duplicates", err)
	}

	duplicates := suggest.FindDuplicates(persons, q.duplicateThreshold)
	if duplicates == nil {
		duplicates = []suggest.Duplicate{}
	}
	return duplicates, nil
}
