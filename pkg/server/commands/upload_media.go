package commands

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/genea-app/genea/pkg/blob"
	"github.com/genea-app/genea/pkg/id"
	"github.com/genea-app/genea/pkg/logger"
	serverErrors "github.com/genea-app/genea/pkg/server/errors"
	"github.com/genea-app/genea/pkg/storage"
	"github.com/genea-app/genea/pkg/telemetry"
)

var tracer = otel.Tracer("genea/pkg/server/commands")

// AllowedMediaTypes are the content types accepted for upload.
var AllowedMediaTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"application/pdf": true,
	"audio/mpeg":      true,
	"video/mp4":       true,
}

const maxFileNameLength = 255

// MediaDatastore is the part of the datastore the UploadMediaCommand uses.
type MediaDatastore interface {
	GetPerson(ctx context.Context, id string) (*storage.Person, error)
	CreateMedia(ctx context.Context, media *storage.Media) (*storage.Media, error)
}

type UploadMediaRequest struct {
	FamilyID    string
	PersonID    string
	Title       string
	Description string
	FileName    string
	ContentType string
	Size        int64
	Content     io.Reader
	UploadedBy  string
}

// UploadMediaCommand stores the content of an upload in the blob store and
// records it in the datastore. If the record cannot be written the stored
// blob is deleted again.
type UploadMediaCommand struct {
	datastore MediaDatastore
	blobStore blob.Store
	logger    logger.Logger
	now       func() time.Time
}

type UploadMediaCommandOption func(*UploadMediaCommand)

func WithUploadMediaLogger(l logger.Logger) UploadMediaCommandOption {
	return func(c *UploadMediaCommand) {
		c.logger = l
	}
}

func WithUploadMediaClock(now func() time.Time) UploadMediaCommandOption {
	return func(c *UploadMediaCommand) {
		c.now = now
	}
}

func NewUploadMediaCommand(datastore MediaDatastore, blobStore blob.Store, opts ...UploadMediaCommandOption) *UploadMediaCommand {
	c := &UploadMediaCommand{
		datastore: datastore,
		blobStore: blobStore,
		logger:    logger.NewNoopLogger(),
		now:       func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *UploadMediaCommand) Execute(ctx context.Context, req *UploadMediaRequest) (*storage.Media, error) {
	ctx, span := tracer.Start(ctx, "UploadMedia", trace.WithAttributes(
		attribute.String("family_id", req.FamilyID),
		attribute.String("content_type", req.ContentType),
		attribute.Int64("size", req.Size),
	))
	defer span.End()

	fileName, err := sanitizeFileName(req.FileName)
	if err != nil {
		return nil, err
	}

	contentType := normalizeContentType(req.ContentType)
	if !AllowedMediaTypes[contentType] {
		return nil, serverErrors.ValidationFailed("content type %q is not allowed", req.ContentType)
	}

	if req.PersonID != "" {
		person, err := c.datastore.GetPerson(ctx, req.PersonID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, serverErrors.ValidationFailed("person %q does not exist", req.PersonID)
			}
			return nil, serverErrors.HandleError("", err)
		}
		if person.FamilyID != req.FamilyID {
			return nil, serverErrors.ValidationFailed("person %q does not belong to this family", req.PersonID)
		}
	}

	mediaID, err := id.NewStringFromTime(c.now())
	if err != nil {
		return nil, serverErrors.HandleError("", err)
	}

	key := MediaKey(req.FamilyID, mediaID, fileName)
	object, err := c.blobStore.Put(ctx, key, req.Content, req.Size, contentType)
	if err != nil {
		return nil, serverErrors.HandleError("failed to store the uploaded file", err)
	}

	media, err := c.datastore.CreateMedia(ctx, &storage.Media{
		ID:          mediaID,
		FamilyID:    req.FamilyID,
		PersonID:    req.PersonID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		FileName:    fileName,
		ContentType: contentType,
		Size:        object.Size,
		StorageKey:  object.Key,
		ETag:        object.ETag,
		UploadedBy:  req.UploadedBy,
	})
	if err != nil {
		telemetry.TraceError(span, err)
		// the blob would otherwise be orphaned
		if deleteErr := c.blobStore.Delete(context.WithoutCancel(ctx), object.Key); deleteErr != nil {
			c.logger.ErrorWithContext(ctx, "failed to delete blob after media write failure",
				zap.String("key", object.Key),
				zap.Error(deleteErr),
			)
		}
		return nil, serverErrors.HandleError("failed to save media", err)
	}

	return media, nil
}

// MediaKey is the blob key the content of a media item is stored under.
func MediaKey(familyID, mediaID, fileName string) string {
	return path.Join("families", familyID, "media", mediaID+path.Ext(fileName))
}

func sanitizeFileName(name string) (string, error) {
	name = strings.TrimSpace(path.Base(strings.ReplaceAll(name, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		return "", serverErrors.ValidationFailed("file name is required")
	}
	if len(name) > maxFileNameLength {
		return "", serverErrors.ValidationFailed("file name must be at most %d characters", maxFileNameLength)
	}
	return name, nil
}

func normalizeContentType(contentType string) string {
	contentType, _, _ = strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(contentType))
}
