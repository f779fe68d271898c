package suggest

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/genea-app/genea/pkg/storage"
)

func person(id, first, last string, gender storage.Gender, birth, place string) *storage.Person {
	return &storage.Person{
		ID:         id,
		FirstName:  first,
		LastName:   last,
		Gender:     gender,
		BirthDate:  birth,
		BirthPlace: place,
	}
}

func TestSuggestRelationships(t *testing.T) {
	juan := person("01A", "Juan", "Pérez", storage.GenderMale, "1950", "Rosario, Santa Fe")
	carlos := person("01B", "Carlos", "Pérez", storage.GenderMale, "1978-05", "Rosario, Santa Fe")
	ana := person("01C", "Ana", "Perez", storage.GenderFemale, "1953-02-11", "Santa Fe")
	lucia := person("01D", "Lucía", "Gómez", storage.GenderFemale, "2001", "Madrid")

	persons := []*storage.Person{juan, carlos, ana, lucia}
	existing := []*storage.Relationship{
		{ID: "r1", Person1ID: ana.ID, Person2ID: juan.ID, Type: storage.RelationshipSibling},
	}

	got := SuggestRelationships(persons, existing, Options{})

	expected := []Suggestion{
		{
			Person1ID:  juan.ID,
			Person2ID:  carlos.ID,
			Kind:       KindParent,
			Score:      80,
			Confidence: "high",
		},
		{
			Person1ID:  ana.ID,
			Person2ID:  carlos.ID,
			Kind:       KindParent,
			Score:      75,
			Confidence: "high",
		},
	}
	if diff := cmp.Diff(expected, got, cmpopts.IgnoreFields(Suggestion{}, "Reasons")); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, []string{"same surname", "birth year gap fits parent and child", "same birth place"}, got[0].Reasons)
	require.Contains(t, got[1].Reasons, "born in the same province")

	t.Run("limit", func(t *testing.T) {
		limited := SuggestRelationships(persons, existing, Options{Limit: 1})
		require.Len(t, limited, 1)
		require.Equal(t, juan.ID, limited[0].Person1ID)
	})

	t.Run("existing_relationship_in_either_direction_is_skipped", func(t *testing.T) {
		all := SuggestRelationships(persons, nil, Options{Limit: -1})
		require.Len(t, all, 3)

		reversed := []*storage.Relationship{{Person1ID: carlos.ID, Person2ID: juan.ID, Type: storage.RelationshipChild}}
		for _, s := range SuggestRelationships(persons, reversed, Options{Limit: -1}) {
			require.False(t, s.Person1ID == juan.ID && s.Person2ID == carlos.ID)
		}
	})
}

func TestSuggestRelationshipsSpouseHint(t *testing.T) {
	roberto := person("01E", "Roberto", "Díaz", storage.GenderMale, "1940", "")
	maria := person("01F", "María", "Díaz", storage.GenderFemale, "1943", "")
	maria.MaidenName = "Fernández"

	got := SuggestRelationships([]*storage.Person{maria, roberto}, nil, Options{})
	require.Len(t, got, 1)
	require.Equal(t, KindSpouse, got[0].Kind)
	require.Equal(t, 60, got[0].Score)
	require.Equal(t, "medium", got[0].Confidence)
	require.Contains(t, got[0].Reasons, "surname taken by marriage")

	typ, ok := got[0].Kind.RelationshipType()
	require.True(t, ok)
	require.Equal(t, storage.RelationshipSpouse, typ)

	t.Run("ignores_gender", func(t *testing.T) {
		ana := person("01Q", "Ana", "Díaz", storage.GenderFemale, "1941", "")
		ana.MaidenName = "Sosa"
		unknown := person("01R", "Alex", "Díaz", storage.GenderUnknown, "1944", "")

		got := SuggestRelationships([]*storage.Person{maria, ana, unknown}, nil, Options{Limit: -1})
		require.Len(t, got, 3)
		for _, s := range got {
			require.Equal(t, KindSpouse, s.Kind, s.Person1ID+" "+s.Person2ID)
		}
	})
}

func TestSuggestRelationshipsMaidenName(t *testing.T) {
	rosa := person("01G", "Rosa", "López", storage.GenderFemale, "1960", "")
	rosa.MaidenName = "Sosa"
	pedro := person("01H", "Pedro", "Sosa", storage.GenderMale, "1930", "")

	require.Empty(t, SuggestRelationships([]*storage.Person{rosa, pedro}, nil, Options{}))

	got := SuggestRelationships([]*storage.Person{rosa, pedro}, nil, Options{MinScore: 30})
	require.Len(t, got, 1)
	require.Equal(t, pedro.ID, got[0].Person1ID)
	require.Equal(t, KindParent, got[0].Kind)
	require.Equal(t, 35, got[0].Score)
	require.Equal(t, "low", got[0].Confidence)
	require.Contains(t, got[0].Reasons, "maiden name matches surname")
}

func TestKindRelationshipType(t *testing.T) {
	_, ok := KindGrandparent.RelationshipType()
	require.False(t, ok)
	_, ok = KindRelative.RelationshipType()
	require.False(t, ok)

	typ, ok := KindSibling.RelationshipType()
	require.True(t, ok)
	require.Equal(t, storage.RelationshipSibling, typ)
}
