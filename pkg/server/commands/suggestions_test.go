package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/genea-app/genea/pkg/storage"
	"github.com/genea-app/genea/pkg/storage/memory"
	"github.com/genea-app/genea/pkg/suggest"
)

func TestSuggestionsQuery(t *testing.T) {
	ctx := context.Background()
	ds := memory.New()
	family := seedFamily(t, ds, "Rossi", nil)

	father := seedPerson(t, ds, family.ID, storage.Person{FirstName: "Mario", LastName: "Rossi", BirthDate: "1920", BirthPlace: "Rosario"})
	son := seedPerson(t, ds, family.ID, storage.Person{FirstName: "Luigi", LastName: "Rossi", BirthDate: "1950", BirthPlace: "Rosario"})
	seedPerson(t, ds, family.ID, storage.Person{FirstName: "Mario", LastName: "Rosi", BirthDate: "1920"})

	query := NewSuggestionsQuery(ds)

	suggestions, err := query.Relationships(ctx, family.ID, 0)
	require.NoError(t, err)
	require.NotEmpty(t, suggestions)

	var found bool
	for _, s := range suggestions {
		if s.Person1ID == father.ID && s.Person2ID == son.ID {
			found = true
			require.Equal(t, suggest.KindParent, s.Kind)
		}
	}
	require.True(t, found)

	t.Run("related_pairs_are_skipped", func(t *testing.T) {
		_, err := ds.CreateRelationship(ctx, &storage.Relationship{
			ID: newID(t), FamilyID: family.ID, Person1ID: father.ID, Person2ID: son.ID, Type: storage.RelationshipParent,
		})
		require.NoError(t, err)

		suggestions, err := query.Relationships(ctx, family.ID, 0)
		require.NoError(t, err)
		for _, s := range suggestions {
			require.False(t, s.Person1ID == father.ID && s.Person2ID == son.ID)
		}
	})

	t.Run("limit", func(t *testing.T) {
		suggestions, err := NewSuggestionsQuery(ds, WithSuggestionLimit(1)).Relationships(ctx, family.ID, 1)
		require.NoError(t, err)
		require.Len(t, suggestions, 1)
	})

	t.Run("duplicates", func(t *testing.T) {
		duplicates, err := query.Duplicates(ctx, family.ID)
		require.NoError(t, err)
		require.Len(t, duplicates, 1)
		require.GreaterOrEqual(t, duplicates[0].Score, suggest.DefaultDuplicateThreshold)
	})

	t.Run("empty_family", func(t *testing.T) {
		empty := seedFamily(t, ds, "Genea", nil)
		suggestions, err := query.Relationships(ctx, empty.ID, 0)
		require.NoError(t, err)
		require.NotNil(t, suggestions)
	})
}
