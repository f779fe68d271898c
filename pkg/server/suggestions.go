package server

import (
	"context"
	"net/http"

	httpmiddleware "github.com/genea-app/genea/pkg/middleware/http"
	"github.com/genea-app/genea/pkg/server/commands"
	serverErrors "github.com/genea-app/genea/pkg/server/errors"
	"github.com/genea-app/genea/pkg/storage"
	"github.com/genea-app/genea/pkg/suggest"
)

const maxSuggestionScore = 200

// authorizeSuggestions lets viewers of licensed families run the heuristics.
func (s *Server) authorizeSuggestions(ctx context.Context, familyID string) error {
	if _, err := s.authorize(ctx, familyID, storage.RoleViewer); err != nil {
		return err
	}
	if err := s.licenses.Require(ctx, familyID); err != nil {
		return serverErrors.HandleError("", err)
	}
	return nil
}

func (s *Server) suggestions() *commands.SuggestionsQuery {
	return commands.NewSuggestionsQuery(s.datastore,
		commands.WithSuggestionLimit(s.suggestionLimit),
		commands.WithDuplicateThreshold(s.duplicateThreshold),
	)
}

func (s *Server) SuggestRelationships(ctx context.Context, familyID string, minScore int) ([]suggest.Suggestion, error) {
	if err := s.authorizeSuggestions(ctx, familyID); err != nil {
		return nil, err
	}
	return s.suggestions().Relationships(ctx, familyID, minScore)
}

func (s *Server) FindDuplicates(ctx context.Context, familyID string) ([]suggest.Duplicate, error) {
	if err := s.authorizeSuggestions(ctx, familyID); err != nil {
		return nil, err
	}
	return s.suggestions().Duplicates(ctx, familyID)
}

func (s *Server) handleSuggestRelationships(w http.ResponseWriter, r *http.Request) {
	minScore, err := intFromQuery(r, "min_score", 1, maxSuggestionScore)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	suggestions, err := s.SuggestRelationships(r.Context(), r.PathValue("familyID"), minScore)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteData(w, http.StatusOK, suggestions)
}

func (s *Server) handleFindDuplicates(w http.ResponseWriter, r *http.Request) {
	duplicates, err := s.FindDuplicates(r.Context(), r.PathValue("familyID"))
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteData(w, http.StatusOK, duplicates)
}
