package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/genea-app/genea/pkg/blob"
	httpmiddleware "github.com/genea-app/genea/pkg/middleware/http"
	"github.com/genea-app/genea/pkg/server/commands"
	serverErrors "github.com/genea-app/genea/pkg/server/errors"
	"github.com/genea-app/genea/pkg/storage"
)

const (
	maxMediaTitleLength = 200
	sniffLength         = 512
)

type UpdateMediaRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	// PersonID attaches the media to a person; the empty string detaches it.
	PersonID *string `json:"person_id"`
}

func (s *Server) authorizeMedia(ctx context.Context, mediaID string, minRole storage.Role) (*storage.Media, error) {
	media, err := s.datastore.GetMedia(ctx, mediaID)
	if err != nil {
		return nil, notFound("media", err)
	}

	if _, err := s.authorize(ctx, media.FamilyID, minRole); err != nil {
		if errors.Is(err, serverErrors.NotAFamilyMember) {
			return nil, serverErrors.ResourceNotFound("media")
		}
		return nil, err
	}
	return media, nil
}

// UploadMedia stores an upload for a family holding a license.
func (s *Server) UploadMedia(ctx context.Context, req *commands.UploadMediaRequest) (*storage.Media, error) {
	ctx, span := tracer.Start(ctx, "UploadMedia")
	defer span.End()

	member, err := s.authorizeUpload(ctx, req.FamilyID)
	if err != nil {
		return nil, err
	}
	return s.uploadMedia(ctx, member, req)
}

// authorizeUpload checks that the caller may add media to the family.
func (s *Server) authorizeUpload(ctx context.Context, familyID string) (*storage.FamilyMember, error) {
	member, err := s.authorize(ctx, familyID, storage.RoleEditor)
	if err != nil {
		return nil, err
	}
	if err := s.licenses.Require(ctx, familyID); err != nil {
		return nil, serverErrors.HandleError("", err)
	}
	return member, nil
}

func (s *Server) uploadMedia(ctx context.Context, member *storage.FamilyMember, req *commands.UploadMediaRequest) (*storage.Media, error) {
	if req.Size > s.maxUploadSize {
		return nil, serverErrors.RequestTooLarge
	}
	if utf8.RuneCountInString(req.Title) > maxMediaTitleLength {
		return nil, serverErrors.ValidationFailed("title: must be at most %d characters", maxMediaTitleLength)
	}
	req.UploadedBy = member.UserID

	media, err := commands.NewUploadMediaCommand(s.datastore, s.blobStore,
		commands.WithUploadMediaLogger(s.logger),
		commands.WithUploadMediaClock(s.now),
	).Execute(ctx, req)
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, commands.Event{
		FamilyID: req.FamilyID,
		Type:     storage.NotificationMediaUploaded,
		Title:    "New media uploaded",
		Message:  fmt.Sprintf("%s was added to the family archive", media.FileName),
		ActorID:  member.UserID,
	})

	return media, nil
}

func (s *Server) ListMedia(ctx context.Context, familyID string, filter storage.MediaFilter, opts storage.PaginationOptions) ([]*storage.Media, string, error) {
	ctx, span := tracer.Start(ctx, "ListMedia")
	defer span.End()

	if _, err := s.authorize(ctx, familyID, storage.RoleViewer); err != nil {
		return nil, "", err
	}

	media, token, err := s.datastore.ListMedia(ctx, familyID, filter, opts)
	if err != nil {
		return nil, "", serverErrors.HandleError("", err)
	}
	if media == nil {
		media = []*storage.Media{}
	}
	return media, token, nil
}

func (s *Server) GetMedia(ctx context.Context, mediaID string) (*storage.Media, error) {
	ctx, span := tracer.Start(ctx, "GetMedia")
	defer span.End()

	return s.authorizeMedia(ctx, mediaID, storage.RoleViewer)
}

func (s *Server) UpdateMedia(ctx context.Context, mediaID string, req *UpdateMediaRequest) (*storage.Media, error) {
	ctx, span := tracer.Start(ctx, "UpdateMedia")
	defer span.End()

	media, err := s.authorizeMedia(ctx, mediaID, storage.RoleEditor)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		media.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		media.Description = strings.TrimSpace(*req.Description)
	}
	if req.PersonID != nil {
		media.PersonID = strings.TrimSpace(*req.PersonID)
		if media.PersonID != "" {
			if _, err := s.familyPerson(ctx, media.FamilyID, media.PersonID, "person_id"); err != nil {
				return nil, err
			}
		}
	}
	if utf8.RuneCountInString(media.Title) > maxMediaTitleLength {
		return nil, serverErrors.ValidationFailed("title: must be at most %d characters", maxMediaTitleLength)
	}

	updated, err := s.datastore.UpdateMedia(ctx, media)
	if err != nil {
		return nil, notFound("media", err)
	}
	return updated, nil
}

// DeleteMedia removes the media record and then its content. A failure to
// delete the content is logged and does not fail the request.
func (s *Server) DeleteMedia(ctx context.Context, mediaID string) error {
	ctx, span := tracer.Start(ctx, "DeleteMedia")
	defer span.End()

	media, err := s.authorizeMedia(ctx, mediaID, storage.RoleAdmin)
	if err != nil {
		return err
	}

	if err := s.datastore.DeleteMedia(ctx, mediaID); err != nil {
		return notFound("media", err)
	}

	if err := s.blobStore.Delete(ctx, media.StorageKey); err != nil && !errors.Is(err, blob.ErrNotFound) {
		s.logger.WarnWithContext(ctx, "failed to delete media content",
			zap.String("media_id", mediaID),
			zap.String("key", media.StorageKey),
			zap.Error(err),
		)
	}
	return nil
}

// MediaContent opens the stored content of a media item. The caller closes it.
// When ifNoneMatch matches the stored ETag the content is not opened and the
// returned reader is nil.
func (s *Server) MediaContent(ctx context.Context, mediaID, ifNoneMatch string) (*storage.Media, io.ReadCloser, error) {
	ctx, span := tracer.Start(ctx, "MediaContent")
	defer span.End()

	media, err := s.authorizeMedia(ctx, mediaID, storage.RoleViewer)
	if err != nil {
		return nil, nil, err
	}

	if etagMatches(ifNoneMatch, media.ETag) {
		return media, nil, nil
	}

	content, _, err := s.blobStore.Get(ctx, media.StorageKey)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, nil, serverErrors.ResourceNotFound("media content")
		}
		return nil, nil, serverErrors.HandleError("failed to read media content", err)
	}
	return media, content, nil
}

// etagMatches reports whether an If-None-Match header value names etag.
// Weak validators compare equal to strong ones.
func etagMatches(header, etag string) bool {
	if header == "" || etag == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		candidate = strings.TrimPrefix(candidate, "W/")
		if strings.Trim(candidate, `"`) == etag {
			return true
		}
	}
	return false
}

// detectContentType returns the declared content type, or sniffs one from
// the first bytes of file when none useful was declared.
func detectContentType(declared string, file io.ReadSeeker) (string, error) {
	if declared != "" && declared != "application/octet-stream" {
		return declared, nil
	}

	head := make([]byte, sniffLength)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(head[:n]), nil
}

func (s *Server) handleUploadMedia(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "UploadMedia")
	defer span.End()

	familyID := r.PathValue("familyID")
	member, err := s.authorizeUpload(ctx, familyID)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize+multipartMemoryBuffer)
	if err := r.ParseMultipartForm(multipartMemoryBuffer); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			httpmiddleware.WriteError(w, r, serverErrors.RequestTooLarge)
			return
		}
		httpmiddleware.WriteError(w, r, serverErrors.ValidationFailed("expected a multipart form with a file field"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		httpmiddleware.WriteError(w, r, serverErrors.ValidationFailed("file is required"))
		return
	}
	defer file.Close()

	contentType, err := detectContentType(header.Header.Get("Content-Type"), file)
	if err != nil {
		httpmiddleware.WriteError(w, r, serverErrors.HandleError("failed to read the uploaded file", err))
		return
	}

	media, err := s.uploadMedia(ctx, member, &commands.UploadMediaRequest{
		FamilyID:    familyID,
		PersonID:    strings.TrimSpace(r.FormValue("person_id")),
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		FileName:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Content:     file,
	})
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteData(w, http.StatusCreated, media)
}

func (s *Server) handleListMedia(w http.ResponseWriter, r *http.Request) {
	opts, err := paginationFromQuery(r)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	filter := storage.MediaFilter{PersonID: r.URL.Query().Get("person_id")}
	media, token, err := s.ListMedia(r.Context(), r.PathValue("familyID"), filter, opts)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteList(w, media, token)
}

func (s *Server) handleGetMedia(w http.ResponseWriter, r *http.Request) {
	media, err := s.GetMedia(r.Context(), r.PathValue("mediaID"))
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteData(w, http.StatusOK, media)
}

func (s *Server) handleUpdateMedia(w http.ResponseWriter, r *http.Request) {
	var req UpdateMediaRequest
	if err := httpmiddleware.DecodeJSON(r, &req); err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	media, err := s.UpdateMedia(r.Context(), r.PathValue("mediaID"), &req)
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteData(w, http.StatusOK, media)
}

func (s *Server) handleDeleteMedia(w http.ResponseWriter, r *http.Request) {
	if err := s.DeleteMedia(r.Context(), r.PathValue("mediaID")); err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}
	httpmiddleware.WriteNoContent(w)
}

func (s *Server) handleMediaContent(w http.ResponseWriter, r *http.Request) {
	media, content, err := s.MediaContent(r.Context(), r.PathValue("mediaID"), r.Header.Get("If-None-Match"))
	if err != nil {
		httpmiddleware.WriteError(w, r, err)
		return
	}

	if media.ETag != "" {
		w.Header().Set("ETag", strconv.Quote(media.ETag))
		w.Header().Set("Cache-Control", "private, no-cache")
	}
	if content == nil {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	defer content.Close()

	w.Header().Set("Content-Type", media.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(media.Size, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": media.FileName}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, content); err != nil {
		s.logger.WarnWithContext(r.Context(), "failed to stream media content",
			zap.String("media_id", media.ID),
			zap.Error(err),
		)
	}
}
