// Package memory provides an ephemeral in-process implementation of
// [storage.GeneaDatastore], used for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/genea-app/genea/pkg/storage"
)

var tracer = otel.Tracer("genea/pkg/storage/memory")

// StorageOption defines a function type used for configuring a [MemoryBackend] instance.
type StorageOption func(dataStore *MemoryBackend)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) StorageOption {
	return func(ds *MemoryBackend) { ds.now = now }
}

// MemoryBackend keeps every table in maps guarded by a single lock, so
// multi-table writes (cascading deletes, accepting an invitation) are atomic.
// Instances may be safely shared by multiple go-routines.
type MemoryBackend struct {
	mu  sync.RWMutex
	now func() time.Time

	families      map[string]*storage.Family
	members       map[string]map[string]*storage.FamilyMember // family id => user id => member
	persons       map[string]*storage.Person
	relationships map[string]*storage.Relationship
	media         map[string]*storage.Media
	invitations   map[string]*storage.Invitation
	notifications map[string]*storage.Notification
	licenses      map[string]*storage.License
}

// Ensures that [MemoryBackend] implements the [storage.GeneaDatastore] interface.
var _ storage.GeneaDatastore = (*MemoryBackend)(nil)

// New creates a new [MemoryBackend] given the options.
func New(opts ...StorageOption) *MemoryBackend {
	ds := &MemoryBackend{
		now:           func() time.Time { return time.Now().UTC() },
		families:      make(map[string]*storage.Family),
		members:       make(map[string]map[string]*storage.FamilyMember),
		persons:       make(map[string]*storage.Person),
		relationships: make(map[string]*storage.Relationship),
		media:         make(map[string]*storage.Media),
		invitations:   make(map[string]*storage.Invitation),
		notifications: make(map[string]*storage.Notification),
		licenses:      make(map[string]*storage.License),
	}

	for _, opt := range opts {
		opt(ds)
	}

	return ds
}

// Close does not do anything for [MemoryBackend].
func (s *MemoryBackend) Close() {}

// IsReady see [storage.GeneaDatastore].IsReady.
func (s *MemoryBackend) IsReady(context.Context) (storage.ReadinessStatus, error) {
	return storage.ReadinessStatus{IsReady: true}, nil
}

func copyOf[T any](v *T) *T {
	c := *v
	return &c
}

func copyAll[T any](vs []*T) []*T {
	out := make([]*T, 0, len(vs))
	for _, v := range vs {
		out = append(out, copyOf(v))
	}
	return out
}

// CreateFamily see [storage.FamilyBackend].CreateFamily.
func (s *MemoryBackend) CreateFamily(ctx context.Context, family *storage.Family, owner *storage.FamilyMember) (*storage.Family, error) {
	_, span := tracer.Start(ctx, "memory.CreateFamily")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.families[family.ID]; ok {
		return nil, storage.ErrCollision
	}

	now := s.now()
	f := copyOf(family)
	f.CreatedAt = now
	f.UpdatedAt = now
	s.families[f.ID] = f

	m := copyOf(owner)
	m.FamilyID = f.ID
	m.JoinedAt = now
	s.members[f.ID] = map[string]*storage.FamilyMember{m.UserID: m}

	return copyOf(f), nil
}

// GetFamily see [storage.FamilyBackend].GetFamily.
func (s *MemoryBackend) GetFamily(ctx context.Context, id string) (*storage.Family, error) {
	_, span := tracer.Start(ctx, "memory.GetFamily")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.families[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyOf(f), nil
}

// ListFamiliesForUser see [storage.FamilyBackend].ListFamiliesForUser.
func (s *MemoryBackend) ListFamiliesForUser(ctx context.Context, userID string, opts storage.PaginationOptions) ([]*storage.Family, string, error) {
	_, span := tracer.Start(ctx, "memory.ListFamiliesForUser")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var families []*storage.Family
	for familyID, members := range s.members {
		if _, ok := members[userID]; ok {
			families = append(families, s.families[familyID])
		}
	}

	page, token, err := storage.Paginate(families, func(f *storage.Family) string { return f.ID }, opts)
	if err != nil {
		return nil, "", err
	}
	return copyAll(page), token, nil
}

// UpdateFamily see [storage.FamilyBackend].UpdateFamily.
func (s *MemoryBackend) UpdateFamily(ctx context.Context, family *storage.Family) (*storage.Family, error) {
	_, span := tracer.Start(ctx, "memory.UpdateFamily")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.families[family.ID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	existing.Name = family.Name
	existing.Description = family.Description
	existing.UpdatedAt = s.now()

	return copyOf(existing), nil
}

// DeleteFamily see [storage.FamilyBackend].DeleteFamily.
func (s *MemoryBackend) DeleteFamily(ctx context.Context, id string) error {
	_, span := tracer.Start(ctx, "memory.DeleteFamily")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.families[id]; !ok {
		return storage.ErrNotFound
	}

	delete(s.families, id)
	delete(s.members, id)
	for k, p := range s.persons {
		if p.FamilyID == id {
			delete(s.persons, k)
		}
	}
	for k, r := range s.relationships {
		if r.FamilyID == id {
			delete(s.relationships, k)
		}
	}
	for k, m := range s.media {
		if m.FamilyID == id {
			delete(s.media, k)
		}
	}
	for k, i := range s.invitations {
		if i.FamilyID == id {
			delete(s.invitations, k)
		}
	}
	for k, n := range s.notifications {
		if n.FamilyID == id {
			delete(s.notifications, k)
		}
	}
	for k, l := range s.licenses {
		if l.FamilyID == id {
			delete(s.licenses, k)
		}
	}
	return nil
}

// AddMember see [storage.MemberBackend].AddMember.
func (s *MemoryBackend) AddMember(ctx context.Context, member *storage.FamilyMember) error {
	_, span := tracer.Start(ctx, "memory.AddMember")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.addMemberLocked(member)
}

func (s *MemoryBackend) addMemberLocked(member *storage.FamilyMember) error {
	if _, ok := s.families[member.FamilyID]; !ok {
		return storage.ErrInvalidReference
	}
	members := s.members[member.FamilyID]
	if members == nil {
		members = make(map[string]*storage.FamilyMember)
		s.members[member.FamilyID] = members
	}
	if _, ok := members[member.UserID]; ok {
		return storage.ErrCollision
	}

	m := copyOf(member)
	m.JoinedAt = s.now()
	members[m.UserID] = m
	return nil
}

// GetMember see [storage.MemberBackend].GetMember.
func (s *MemoryBackend) GetMember(ctx context.Context, familyID, userID string) (*storage.FamilyMember, error) {
	_, span := tracer.Start(ctx, "memory.GetMember")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.members[familyID][userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyOf(m), nil
}

// ListMembers see [storage.MemberBackend].ListMembers.
func (s *MemoryBackend) ListMembers(ctx context.Context, familyID string) ([]*storage.FamilyMember, error) {
	_, span := tracer.Start(ctx, "memory.ListMembers")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	members := make([]*storage.FamilyMember, 0, len(s.members[familyID]))
	for _, m := range s.members[familyID] {
		members = append(members, copyOf(m))
	}
	sort.Slice(members, func(i, j int) bool {
		if !members[i].JoinedAt.Equal(members[j].JoinedAt) {
			return members[i].JoinedAt.Before(members[j].JoinedAt)
		}
		return members[i].UserID < members[j].UserID
	})
	return members, nil
}

// UpdateMemberRole see [storage.MemberBackend].UpdateMemberRole.
func (s *MemoryBackend) UpdateMemberRole(ctx context.Context, familyID, userID string, role storage.Role) error {
	_, span := tracer.Start(ctx, "memory.UpdateMemberRole")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[familyID][userID]
	if !ok {
		return storage.ErrNotFound
	}
	if role != storage.RoleOwner && s.isLastOwner(m) {
		return storage.ErrLastOwner
	}
	m.Role = role
	return nil
}

// isLastOwner must be called with s.mu held.
func (s *MemoryBackend) isLastOwner(m *storage.FamilyMember) bool {
	if m.Role != storage.RoleOwner {
		return false
	}
	owners := 0
	for _, other := range s.members[m.FamilyID] {
		if other.Role == storage.RoleOwner {
			owners++
		}
	}
	return owners <= 1
}

// RemoveMember see [storage.MemberBackend].RemoveMember.
func (s *MemoryBackend) RemoveMember(ctx context.Context, familyID, userID string) error {
	_, span := tracer.Start(ctx, "memory.RemoveMember")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[familyID][userID]
	if !ok {
		return storage.ErrNotFound
	}
	if s.isLastOwner(m) {
		return storage.ErrLastOwner
	}
	delete(s.members[familyID], userID)
	return nil
}

// CreatePerson see [storage.PersonBackend].CreatePerson.
func (s *MemoryBackend) CreatePerson(ctx context.Context, person *storage.Person) (*storage.Person, error) {
	_, span := tracer.Start(ctx, "memory.CreatePerson")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.families[person.FamilyID]; !ok {
		return nil, storage.ErrInvalidReference
	}
	if _, ok := s.persons[person.ID]; ok {
		return nil, storage.ErrCollision
	}

	now := s.now()
	p := copyOf(person)
	p.CreatedAt = now
	p.UpdatedAt = now
	s.persons[p.ID] = p

	return copyOf(p), nil
}

// GetPerson see [storage.PersonBackend].GetPerson.
func (s *MemoryBackend) GetPerson(ctx context.Context, id string) (*storage.Person, error) {
	_, span := tracer.Start(ctx, "memory.GetPerson")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.persons[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyOf(p), nil
}

func matchPerson(p *storage.Person, filter storage.PersonFilter) bool {
	if filter.Living != nil && p.IsLiving != *filter.Living {
		return false
	}
	if filter.Search == "" {
		return true
	}
	return storage.MatchesSearch(p, filter.Search)
}

// ListPersons see [storage.PersonBackend].ListPersons.
func (s *MemoryBackend) ListPersons(ctx context.Context, familyID string, filter storage.PersonFilter, opts storage.PaginationOptions) ([]*storage.Person, string, error) {
	_, span := tracer.Start(ctx, "memory.ListPersons")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var persons []*storage.Person
	for _, p := range s.persons {
		if p.FamilyID == familyID && matchPerson(p, filter) {
			persons = append(persons, p)
		}
	}

	page, token, err := storage.Paginate(persons, func(p *storage.Person) string { return p.ID }, opts)
	if err != nil {
		return nil, "", err
	}
	return copyAll(page), token, nil
}

// UpdatePerson see [storage.PersonBackend].UpdatePerson.
func (s *MemoryBackend) UpdatePerson(ctx context.Context, person *storage.Person) (*storage.Person, error) {
	_, span := tracer.Start(ctx, "memory.UpdatePerson")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.persons[person.ID]
	if !ok {
		return nil, storage.ErrNotFound
	}

	p := copyOf(person)
	p.FamilyID = existing.FamilyID
	p.CreatedBy = existing.CreatedBy
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.now()
	s.persons[p.ID] = p

	return copyOf(p), nil
}

// DeletePerson see [storage.PersonBackend].DeletePerson.
func (s *MemoryBackend) DeletePerson(ctx context.Context, id string) error {
	_, span := tracer.Start(ctx, "memory.DeletePerson")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.persons[id]; !ok {
		return storage.ErrNotFound
	}

	delete(s.persons, id)
	for k, r := range s.relationships {
		if r.Involves(id) {
			delete(s.relationships, k)
		}
	}
	for _, m := range s.media {
		if m.PersonID == id {
			m.PersonID = ""
		}
	}
	return nil
}

// CreateRelationship see [storage.RelationshipBackend].CreateRelationship.
func (s *MemoryBackend) CreateRelationship(ctx context.Context, rel *storage.Relationship) (*storage.Relationship, error) {
	_, span := tracer.Start(ctx, "memory.CreateRelationship")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.families[rel.FamilyID]; !ok {
		return nil, storage.ErrInvalidReference
	}
	if _, ok := s.persons[rel.Person1ID]; !ok {
		return nil, storage.ErrInvalidReference
	}
	if _, ok := s.persons[rel.Person2ID]; !ok {
		return nil, storage.ErrInvalidReference
	}
	for _, existing := range s.relationships {
		if existing.ID == rel.ID ||
			(existing.Person1ID == rel.Person1ID && existing.Person2ID == rel.Person2ID && existing.Type == rel.Type) {
			return nil, storage.ErrCollision
		}
	}

	r := copyOf(rel)
	r.CreatedAt = s.now()
	s.relationships[r.ID] = r

	return copyOf(r), nil
}

// GetRelationship see [storage.RelationshipBackend].GetRelationship.
func (s *MemoryBackend) GetRelationship(ctx context.Context, id string) (*storage.Relationship, error) {
	_, span := tracer.Start(ctx, "memory.GetRelationship")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.relationships[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyOf(r), nil
}

// ListRelationships see [storage.RelationshipBackend].ListRelationships.
func (s *MemoryBackend) ListRelationships(ctx context.Context, familyID string, filter storage.RelationshipFilter) ([]*storage.Relationship, error) {
	_, span := tracer.Start(ctx, "memory.ListRelationships")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var rels []*storage.Relationship
	for _, r := range s.relationships {
		if r.FamilyID != familyID {
			continue
		}
		if filter.PersonID != "" && !r.Involves(filter.PersonID) {
			continue
		}
		rels = append(rels, r)
	}

	sort.Slice(rels, func(i, j int) bool { return rels[i].ID < rels[j].ID })
	return copyAll(rels), nil
}

// UpdateRelationship see [storage.RelationshipBackend].UpdateRelationship.
func (s *MemoryBackend) UpdateRelationship(ctx context.Context, rel *storage.Relationship) (*storage.Relationship, error) {
	_, span := tracer.Start(ctx, "memory.UpdateRelationship")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.relationships[rel.ID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	for _, other := range s.relationships {
		if other.ID != rel.ID && other.Person1ID == existing.Person1ID &&
			other.Person2ID == existing.Person2ID && other.Type == rel.Type {
			return nil, storage.ErrCollision
		}
	}

	existing.Type = rel.Type
	existing.StartDate = rel.StartDate
	existing.EndDate = rel.EndDate
	existing.Notes = rel.Notes

	return copyOf(existing), nil
}

// DeleteRelationship see [storage.RelationshipBackend].DeleteRelationship.
func (s *MemoryBackend) DeleteRelationship(ctx context.Context, id string) error {
	_, span := tracer.Start(ctx, "memory.DeleteRelationship")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.relationships[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.relationships, id)
	return nil
}

// CreateMedia see [storage.MediaBackend].CreateMedia.
func (s *MemoryBackend) CreateMedia(ctx context.Context, media *storage.Media) (*storage.Media, error) {
	_, span := tracer.Start(ctx, "memory.CreateMedia")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.families[media.FamilyID]; !ok {
		return nil, storage.ErrInvalidReference
	}
	if media.PersonID != "" {
		if _, ok := s.persons[media.PersonID]; !ok {
			return nil, storage.ErrInvalidReference
		}
	}
	if _, ok := s.media[media.ID]; ok {
		return nil, storage.ErrCollision
	}

	m := copyOf(media)
	m.CreatedAt = s.now()
	s.media[m.ID] = m

	return copyOf(m), nil
}

// GetMedia see [storage.MediaBackend].GetMedia.
func (s *MemoryBackend) GetMedia(ctx context.Context, id string) (*storage.Media, error) {
	_, span := tracer.Start(ctx, "memory.GetMedia")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.media[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyOf(m), nil
}

// ListMedia see [storage.MediaBackend].ListMedia.
func (s *MemoryBackend) ListMedia(ctx context.Context, familyID string, filter storage.MediaFilter, opts storage.PaginationOptions) ([]*storage.Media, string, error) {
	_, span := tracer.Start(ctx, "memory.ListMedia")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []*storage.Media
	for _, m := range s.media {
		if m.FamilyID != familyID {
			continue
		}
		if filter.PersonID != "" && m.PersonID != filter.PersonID {
			continue
		}
		items = append(items, m)
	}

	page, token, err := storage.Paginate(items, func(m *storage.Media) string { return m.ID }, opts)
	if err != nil {
		return nil, "", err
	}
	return copyAll(page), token, nil
}

// UpdateMedia see [storage.MediaBackend].UpdateMedia.
func (s *MemoryBackend) UpdateMedia(ctx context.Context, media *storage.Media) (*storage.Media, error) {
	_, span := tracer.Start(ctx, "memory.UpdateMedia")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.media[media.ID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if media.PersonID != "" {
		if _, ok := s.persons[media.PersonID]; !ok {
			return nil, storage.ErrInvalidReference
		}
	}

	existing.Title = media.Title
	existing.Description = media.Description
	existing.PersonID = media.PersonID

	return copyOf(existing), nil
}

// DeleteMedia see [storage.MediaBackend].DeleteMedia.
func (s *MemoryBackend) DeleteMedia(ctx context.Context, id string) error {
	_, span := tracer.Start(ctx, "memory.DeleteMedia")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.media[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.media, id)
	return nil
}

// CreateInvitation see [storage.InvitationBackend].CreateInvitation.
func (s *MemoryBackend) CreateInvitation(ctx context.Context, inv *storage.Invitation) (*storage.Invitation, error) {
	_, span := tracer.Start(ctx, "memory.CreateInvitation")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.families[inv.FamilyID]; !ok {
		return nil, storage.ErrInvalidReference
	}
	for _, existing := range s.invitations {
		if existing.ID == inv.ID || existing.Token == inv.Token {
			return nil, storage.ErrCollision
		}
	}

	i := copyOf(inv)
	i.CreatedAt = s.now()
	s.invitations[i.ID] = i

	return copyOf(i), nil
}

// GetInvitation see [storage.InvitationBackend].GetInvitation.
func (s *MemoryBackend) GetInvitation(ctx context.Context, id string) (*storage.Invitation, error) {
	_, span := tracer.Start(ctx, "memory.GetInvitation")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.invitations[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyOf(i), nil
}

// GetInvitationByToken see [storage.InvitationBackend].GetInvitationByToken.
func (s *MemoryBackend) GetInvitationByToken(ctx context.Context, token string) (*storage.Invitation, error) {
	_, span := tracer.Start(ctx, "memory.GetInvitationByToken")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, i := range s.invitations {
		if i.Token == token {
			return copyOf(i), nil
		}
	}
	return nil, storage.ErrNotFound
}

// ListInvitations see [storage.InvitationBackend].ListInvitations.
func (s *MemoryBackend) ListInvitations(ctx context.Context, familyID string) ([]*storage.Invitation, error) {
	_, span := tracer.Start(ctx, "memory.ListInvitations")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var invs []*storage.Invitation
	for _, i := range s.invitations {
		if i.FamilyID == familyID {
			invs = append(invs, i)
		}
	}
	sort.Slice(invs, func(i, j int) bool { return invs[i].ID < invs[j].ID })
	return copyAll(invs), nil
}

// UpdateInvitationStatus see [storage.InvitationBackend].UpdateInvitationStatus.
func (s *MemoryBackend) UpdateInvitationStatus(ctx context.Context, id string, status storage.InvitationStatus, at time.Time) error {
	_, span := tracer.Start(ctx, "memory.UpdateInvitationStatus")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.invitations[id]
	if !ok || i.Status != storage.InvitationPending {
		return storage.ErrNotFound
	}
	i.Status = status
	i.RespondedAt = &at
	return nil
}

// AcceptInvitation see [storage.InvitationBackend].AcceptInvitation.
func (s *MemoryBackend) AcceptInvitation(ctx context.Context, id string, member *storage.FamilyMember, at time.Time) error {
	_, span := tracer.Start(ctx, "memory.AcceptInvitation")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.invitations[id]
	if !ok || i.Status != storage.InvitationPending {
		return storage.ErrNotFound
	}
	if err := s.addMemberLocked(member); err != nil {
		return err
	}
	i.Status = storage.InvitationAccepted
	i.RespondedAt = &at
	return nil
}

// CreateNotifications see [storage.NotificationBackend].CreateNotifications.
func (s *MemoryBackend) CreateNotifications(ctx context.Context, notifications []*storage.Notification) error {
	_, span := tracer.Start(ctx, "memory.CreateNotifications")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range notifications {
		if _, ok := s.notifications[n.ID]; ok {
			return storage.ErrCollision
		}
	}

	now := s.now()
	for _, n := range notifications {
		c := copyOf(n)
		c.CreatedAt = now
		s.notifications[c.ID] = c
	}
	return nil
}

// ListNotifications see [storage.NotificationBackend].ListNotifications. Newest first.
func (s *MemoryBackend) ListNotifications(ctx context.Context, userID string, filter storage.NotificationFilter, opts storage.PaginationOptions) ([]*storage.Notification, string, error) {
	_, span := tracer.Start(ctx, "memory.ListNotifications")
	defer span.End()

	if err := storage.ValidateContinuationToken(opts.From); err != nil {
		return nil, "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []*storage.Notification
	for _, n := range s.notifications {
		if n.UserID != userID || (filter.UnreadOnly && n.Read) {
			continue
		}
		if opts.From != "" && n.ID >= opts.From {
			continue
		}
		items = append(items, n)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })

	token := ""
	if opts.PageSize > 0 && len(items) > opts.PageSize {
		items = items[:opts.PageSize]
		token = items[len(items)-1].ID
	}
	return copyAll(items), token, nil
}

func (s *MemoryBackend) ownedNotification(userID, id string) (*storage.Notification, error) {
	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return nil, storage.ErrNotFound
	}
	return n, nil
}

// MarkNotificationRead see [storage.NotificationBackend].MarkNotificationRead.
func (s *MemoryBackend) MarkNotificationRead(ctx context.Context, userID, id string) error {
	_, span := tracer.Start(ctx, "memory.MarkNotificationRead")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.ownedNotification(userID, id)
	if err != nil {
		return err
	}
	n.Read = true
	return nil
}

// MarkAllNotificationsRead see [storage.NotificationBackend].MarkAllNotificationsRead.
func (s *MemoryBackend) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	_, span := tracer.Start(ctx, "memory.MarkAllNotificationsRead")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	var updated int64
	for _, n := range s.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			updated++
		}
	}
	return updated, nil
}

// DeleteNotification see [storage.NotificationBackend].DeleteNotification.
func (s *MemoryBackend) DeleteNotification(ctx context.Context, userID, id string) error {
	_, span := tracer.Start(ctx, "memory.DeleteNotification")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.ownedNotification(userID, id); err != nil {
		return err
	}
	delete(s.notifications, id)
	return nil
}

// CountUnreadNotifications see [storage.NotificationBackend].CountUnreadNotifications.
func (s *MemoryBackend) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	_, span := tracer.Start(ctx, "memory.CountUnreadNotifications")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

// CreateLicense see [storage.LicenseBackend].CreateLicense.
func (s *MemoryBackend) CreateLicense(ctx context.Context, license *storage.License) (*storage.License, error) {
	_, span := tracer.Start(ctx, "memory.CreateLicense")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.families[license.FamilyID]; !ok {
		return nil, storage.ErrInvalidReference
	}
	if _, ok := s.licenses[license.ID]; ok {
		return nil, storage.ErrCollision
	}
	if license.Plan == storage.TrialPlan {
		for _, other := range s.licensesOf(license.FamilyID) {
			if other.Plan == storage.TrialPlan {
				return nil, storage.ErrCollision
			}
		}
	}

	l := copyOf(license)
	l.CreatedAt = s.now()
	s.licenses[l.ID] = l

	return copyOf(l), nil
}

func (s *MemoryBackend) licensesOf(familyID string) []*storage.License {
	var out []*storage.License
	for _, l := range s.licenses {
		if l.FamilyID == familyID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetLatestLicense see [storage.LicenseBackend].GetLatestLicense.
func (s *MemoryBackend) GetLatestLicense(ctx context.Context, familyID string) (*storage.License, error) {
	_, span := tracer.Start(ctx, "memory.GetLatestLicense")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	licenses := s.licensesOf(familyID)
	if len(licenses) == 0 {
		return nil, storage.ErrNotFound
	}
	return copyOf(licenses[len(licenses)-1]), nil
}

// ListLicenses see [storage.LicenseBackend].ListLicenses.
func (s *MemoryBackend) ListLicenses(ctx context.Context, familyID string) ([]*storage.License, error) {
	_, span := tracer.Start(ctx, "memory.ListLicenses")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	return copyAll(s.licensesOf(familyID)), nil
}

// UpdateLicenseStatus see [storage.LicenseBackend].UpdateLicenseStatus.
func (s *MemoryBackend) UpdateLicenseStatus(ctx context.Context, id string, status storage.LicenseStatus) error {
	_, span := tracer.Start(ctx, "memory.UpdateLicenseStatus")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.licenses[id]
	if !ok {
		return storage.ErrNotFound
	}
	l.Status = status
	return nil
}
