// Package server implements the Genea REST API on top of a datastore, a blob
// store and the license service.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/genea-app/genea/internal/authn"
	"github.com/genea-app/genea/pkg/blob"
	"github.com/genea-app/genea/pkg/license"
	"github.com/genea-app/genea/pkg/logger"
	"github.com/genea-app/genea/pkg/middleware"
	httpmiddleware "github.com/genea-app/genea/pkg/middleware/http"
	"github.com/genea-app/genea/pkg/server/commands"
	"github.com/genea-app/genea/pkg/server/health"
	"github.com/genea-app/genea/pkg/storage"
	"github.com/genea-app/genea/pkg/suggest"
)

const (
	DefaultInvitationTTL  = 7 * 24 * time.Hour
	DefaultMaxUploadSize  = 20 << 20
	DefaultMaxPageSize    = 100
	invitationPathPrefix  = "/invitations/"
	multipartMemoryBuffer = 1 << 20
)

var tracer = otel.Tracer("genea/pkg/server")

// A Server implements the Genea service backend as an HTTP server.
type Server struct {
	logger        logger.Logger
	datastore     storage.GeneaDatastore
	blobStore     blob.Store
	licenses      *license.Service
	ownsLicenses  bool
	notifier      *commands.Notifier
	authenticator authn.Authenticator

	invitationTTL       time.Duration
	baseURL             string
	maxUploadSize       int64
	suggestionLimit     int
	duplicateThreshold  float64
	notificationWorkers int
	notificationBacklog int
	now                 func() time.Time
}

type ServerOption func(s *Server)

func WithDatastore(ds storage.GeneaDatastore) ServerOption {
	return func(s *Server) {
		s.datastore = ds
	}
}

func WithBlobStore(store blob.Store) ServerOption {
	return func(s *Server) {
		s.blobStore = store
	}
}

func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

// WithLicenseService sets the license gate. Without it the server builds one
// with the default free families.
func WithLicenseService(l *license.Service) ServerOption {
	return func(s *Server) {
		s.licenses = l
	}
}

// WithAuthenticator sets how API callers are authenticated. Without it every
// caller is the anonymous subject.
func WithAuthenticator(a authn.Authenticator) ServerOption {
	return func(s *Server) {
		s.authenticator = a
	}
}

func WithInvitationTTL(ttl time.Duration) ServerOption {
	return func(s *Server) {
		s.invitationTTL = ttl
	}
}

// WithBaseURL sets the public URL invitation links are built from.
func WithBaseURL(url string) ServerOption {
	return func(s *Server) {
		s.baseURL = url
	}
}

func WithMaxUploadSize(size int64) ServerOption {
	return func(s *Server) {
		s.maxUploadSize = size
	}
}

func WithSuggestionLimit(limit int) ServerOption {
	return func(s *Server) {
		s.suggestionLimit = limit
	}
}

func WithDuplicateThreshold(threshold float64) ServerOption {
	return func(s *Server) {
		s.duplicateThreshold = threshold
	}
}

func WithNotificationWorkers(workers int) ServerOption {
	return func(s *Server) {
		s.notificationWorkers = workers
	}
}

func WithNotificationBacklog(backlog int) ServerOption {
	return func(s *Server) {
		s.notificationBacklog = backlog
	}
}

func WithClock(now func() time.Time) ServerOption {
	return func(s *Server) {
		s.now = now
	}
}

// NewServerWithOpts returns a new server.
// You must call Close on it after you are done using it.
func NewServerWithOpts(opts ...ServerOption) (*Server, error) {
	s := &Server{
		logger:              logger.NewNoopLogger(),
		invitationTTL:       DefaultInvitationTTL,
		maxUploadSize:       DefaultMaxUploadSize,
		suggestionLimit:     suggest.DefaultLimit,
		duplicateThreshold:  suggest.DefaultDuplicateThreshold,
		notificationWorkers: commands.DefaultNotificationWorkers,
		notificationBacklog: commands.DefaultNotificationBacklog,
		now:                 func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.datastore == nil {
		return nil, errors.New("a datastore must be provided")
	}
	if s.blobStore == nil {
		return nil, errors.New("a blob store must be provided")
	}
	if s.invitationTTL <= 0 {
		return nil, errors.New("invitation TTL must be positive")
	}
	if s.duplicateThreshold <= 0 || s.duplicateThreshold > 1 {
		return nil, errors.New("duplicate threshold must be in (0, 1]")
	}
	if s.authenticator == nil {
		s.authenticator = &authn.NoopAuthenticator{}
	}

	if s.licenses == nil {
		licenses, err := license.New(s.datastore, license.WithLogger(s.logger))
		if err != nil {
			return nil, err
		}
		s.licenses = licenses
		s.ownsLicenses = true
	}

	s.notifier = commands.NewNotifier(s.datastore,
		commands.WithNotifierLogger(s.logger),
		commands.WithNotifierWorkers(s.notificationWorkers),
		commands.WithNotifierBacklog(s.notificationBacklog),
		commands.WithNotifierClock(s.now),
	)

	return s, nil
}

// Close waits for pending notifications and releases the resources the server created.
func (s *Server) Close() {
	s.notifier.Close()
	if s.ownsLicenses {
		s.licenses.Close()
	}
}

// IsReady reports whether the datastore can serve requests.
func (s *Server) IsReady(ctx context.Context) (bool, error) {
	status, err := s.datastore.IsReady(ctx)
	if err != nil {
		return false, err
	}

	if status.IsReady {
		return true, nil
	}

	s.logger.WarnWithContext(ctx, "datastore is not ready", zap.Any("status", status.Message))
	return false, nil
}

type handlerFunc func(w http.ResponseWriter, r *http.Request)

func (s *Server) handle(mux *http.ServeMux, pattern string, h handlerFunc) {
	mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.SetRoute(r.Context(), pattern)
		h(w, r)
	}))
}

// Handler returns the HTTP handler serving /healthz and the authenticated /api routes.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()

	s.handle(api, "POST /api/families", s.handleCreateFamily)
	s.handle(api, "GET /api/families", s.handleListFamilies)
	s.handle(api, "GET /api/families/{familyID}", s.handleGetFamily)
	s.handle(api, "PUT /api/families/{familyID}", s.handleUpdateFamily)
	s.handle(api, "DELETE /api/families/{familyID}", s.handleDeleteFamily)
	s.handle(api, "GET /api/families/{familyID}/members", s.handleListMembers)
	s.handle(api, "PUT /api/families/{familyID}/members/{userID}", s.handleUpdateMember)
	s.handle(api, "DELETE /api/families/{familyID}/members/{userID}", s.handleRemoveMember)
	s.handle(api, "GET /api/families/{familyID}/tree", s.handleFamilyTree)
	s.handle(api, "GET /api/families/{familyID}/stats", s.handleFamilyStats)

	s.handle(api, "POST /api/families/{familyID}/persons", s.handleCreatePerson)
	s.handle(api, "GET /api/families/{familyID}/persons", s.handleListPersons)
	s.handle(api, "GET /api/persons/{personID}", s.handleGetPerson)
	s.handle(api, "PUT /api/persons/{personID}", s.handleUpdatePerson)
	s.handle(api, "DELETE /api/persons/{personID}", s.handleDeletePerson)

	s.handle(api, "POST /api/relationships", s.handleCreateRelationship)
	s.handle(api, "GET /api/families/{familyID}/relationships", s.handleListRelationships)
	s.handle(api, "GET /api/relationships/{relationshipID}", s.handleGetRelationship)
	s.handle(api, "PUT /api/relationships/{relationshipID}", s.handleUpdateRelationship)
	s.handle(api, "DELETE /api/relationships/{relationshipID}", s.handleDeleteRelationship)

	s.handle(api, "POST /api/families/{familyID}/media", s.handleUploadMedia)
	s.handle(api, "GET /api/families/{familyID}/media", s.handleListMedia)
	s.handle(api, "GET /api/media/{mediaID}", s.handleGetMedia)
	s.handle(api, "PUT /api/media/{mediaID}", s.handleUpdateMedia)
	s.handle(api, "DELETE /api/media/{mediaID}", s.handleDeleteMedia)
	s.handle(api, "GET /api/media/{mediaID}/content", s.handleMediaContent)

	s.handle(api, "POST /api/families/{familyID}/invitations", s.handleCreateInvitation)
	s.handle(api, "GET /api/families/{familyID}/invitations", s.handleListInvitations)
	s.handle(api, "GET /api/invitations/{token}", s.handleGetInvitation)
	s.handle(api, "POST /api/invitations/{token}/accept", s.handleAcceptInvitation)
	s.handle(api, "POST /api/invitations/{token}/decline", s.handleDeclineInvitation)
	s.handle(api, "DELETE /api/invitations/{invitationID}", s.handleRevokeInvitation)

	s.handle(api, "GET /api/notifications", s.handleListNotifications)
	s.handle(api, "GET /api/notifications/unread-count", s.handleUnreadCount)
	s.handle(api, "POST /api/notifications/read-all", s.handleMarkAllRead)
	s.handle(api, "POST /api/notifications/{notificationID}/read", s.handleMarkRead)
	s.handle(api, "DELETE /api/notifications/{notificationID}", s.handleDeleteNotification)

	s.handle(api, "GET /api/license/status/{familyID}", s.handleLicenseStatus)
	s.handle(api, "POST /api/license/trial/{familyID}", s.handleStartTrial)
	s.handle(api, "POST /api/license/activate/{familyID}", s.handleActivateLicense)
	s.handle(api, "POST /api/license/cancel/{familyID}", s.handleCancelLicense)
	s.handle(api, "GET /api/license/free-families", s.handleFreeFamilies)

	s.handle(api, "GET /api/families/{familyID}/suggestions/relationships", s.handleSuggestRelationships)
	s.handle(api, "GET /api/families/{familyID}/suggestions/duplicates", s.handleFindDuplicates)

	root := http.NewServeMux()
	s.handle(root, "GET /healthz", (&health.Checker{TargetService: s}).ServeHTTP)
	root.Handle("/api/", httpmiddleware.AuthnHandler(httpmiddleware.RouteHandler(api), s.authenticator))

	return httpmiddleware.RouteHandler(root)
}
