package storage

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Role is the membership level a user holds in a family.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

var roleRank = map[Role]int{
	RoleViewer: 1,
	RoleEditor: 2,
	RoleAdmin:  3,
	RoleOwner:  4,
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r grants at least the permissions of other.
func (r Role) AtLeast(other Role) bool {
	return roleRank[r] >= roleRank[other] && r.Valid()
}

type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderOther   Gender = "other"
	GenderUnknown Gender = "unknown"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther, GenderUnknown:
		return true
	}
	return false
}

// RelationshipType describes the edge from Person1 to Person2. "parent" means
// Person1 is a parent of Person2; "child" means Person1 is a child of Person2.
type RelationshipType string

const (
	RelationshipParent   RelationshipType = "parent"
	RelationshipChild    RelationshipType = "child"
	RelationshipSpouse   RelationshipType = "spouse"
	RelationshipExSpouse RelationshipType = "ex_spouse"
	RelationshipSibling  RelationshipType = "sibling"
)

func (t RelationshipType) Valid() bool {
	switch t {
	case RelationshipParent, RelationshipChild, RelationshipSpouse, RelationshipExSpouse, RelationshipSibling:
		return true
	}
	return false
}

// Inverse returns the type of the same edge seen from Person2.
func (t RelationshipType) Inverse() RelationshipType {
	switch t {
	case RelationshipParent:
		return RelationshipChild
	case RelationshipChild:
		return RelationshipParent
	default:
		return t
	}
}

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
	InvitationRevoked  InvitationStatus = "revoked"
	// InvitationExpired is never stored; it is reported for pending invitations past ExpiresAt.
	InvitationExpired InvitationStatus = "expired"
)

type LicenseStatus string

const (
	LicenseActive    LicenseStatus = "active"
	LicenseTrial     LicenseStatus = "trial"
	LicenseExpired   LicenseStatus = "expired"
	LicenseCancelled LicenseStatus = "cancelled"
)

type NotificationType string

const (
	NotificationInvitationAccepted NotificationType = "invitation_accepted"
	NotificationPersonAdded        NotificationType = "person_added"
	NotificationMediaUploaded      NotificationType = "media_uploaded"
	NotificationRoleChanged        NotificationType = "role_changed"
	NotificationLicenseChanged     NotificationType = "license_changed"
)

type Family struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type FamilyMember struct {
	FamilyID string    `json:"family_id"`
	UserID   string    `json:"user_id"`
	Email    string    `json:"email,omitempty"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

type Person struct {
	ID         string    `json:"id"`
	FamilyID   string    `json:"family_id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	MaidenName string    `json:"maiden_name,omitempty"`
	Gender     Gender    `json:"gender"`
	BirthDate  string    `json:"birth_date,omitempty"`
	BirthPlace string    `json:"birth_place,omitempty"`
	DeathDate  string    `json:"death_date,omitempty"`
	DeathPlace string    `json:"death_place,omitempty"`
	IsLiving   bool      `json:"is_living"`
	Occupation string    `json:"occupation,omitempty"`
	Biography  string    `json:"biography,omitempty"`
	CreatedBy  string    `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// FullName joins first and last name.
func (p *Person) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

type Relationship struct {
	ID        string           `json:"id"`
	FamilyID  string           `json:"family_id"`
	Person1ID string           `json:"person1_id"`
	Person2ID string           `json:"person2_id"`
	Type      RelationshipType `json:"relationship_type"`
	StartDate string           `json:"start_date,omitempty"`
	EndDate   string           `json:"end_date,omitempty"`
	Notes     string           `json:"notes,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// Involves reports whether personID is either endpoint.
func (r *Relationship) Involves(personID string) bool {
	return r.Person1ID == personID || r.Person2ID == personID
}

// Equivalent reports whether other describes the same edge, possibly from the other side.
func (r *Relationship) Equivalent(other *Relationship) bool {
	if r.Person1ID == other.Person1ID && r.Person2ID == other.Person2ID {
		return r.Type == other.Type
	}
	if r.Person1ID == other.Person2ID && r.Person2ID == other.Person1ID {
		return r.Type == other.Type.Inverse()
	}
	return false
}

type Media struct {
	ID          string    `json:"id"`
	FamilyID    string    `json:"family_id"`
	PersonID    string    `json:"person_id,omitempty"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	StorageKey  string    `json:"-"`
	// ETag is the content digest reported by the blob store.
	ETag        string    `json:"etag,omitempty"`
	UploadedBy  string    `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
}

type Invitation struct {
	ID          string           `json:"id"`
	FamilyID    string           `json:"family_id"`
	Email       string           `json:"email"`
	Role        Role             `json:"role"`
	Token       string           `json:"token,omitempty"`
	Status      InvitationStatus `json:"status"`
	InvitedBy   string           `json:"invited_by"`
	ExpiresAt   time.Time        `json:"expires_at"`
	CreatedAt   time.Time        `json:"created_at"`
	RespondedAt *time.Time       `json:"responded_at,omitempty"`
}

// EffectiveStatus reports InvitationExpired for a pending invitation past its expiry.
func (i *Invitation) EffectiveStatus(now time.Time) InvitationStatus {
	if i.Status == InvitationPending && !now.Before(i.ExpiresAt) {
		return InvitationExpired
	}
	return i.Status
}

type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	FamilyID  string           `json:"family_id,omitempty"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

// TrialPlan is the plan of a family's one trial license.
const TrialPlan = "trial"

type License struct {
	ID        string        `json:"id"`
	FamilyID  string        `json:"family_id"`
	Status    LicenseStatus `json:"status"`
	Plan      string        `json:"plan"`
	StartsAt  time.Time     `json:"starts_at"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// Grants reports whether the license currently unlocks gated features.
func (l *License) Grants(now time.Time) bool {
	if l.Status != LicenseActive && l.Status != LicenseTrial {
		return false
	}
	if now.Before(l.StartsAt) {
		return false
	}
	return l.ExpiresAt == nil || now.Before(*l.ExpiresAt)
}

// ParsePartialDate validates a genealogical date of the form YYYY, YYYY-MM or
// YYYY-MM-DD and returns its year. The empty string yields year 0 and no error.
func ParsePartialDate(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	var layout string
	switch len(s) {
	case 4:
		layout = "2006"
	case 7:
		layout = "2006-01"
	case 10:
		layout = "2006-01-02"
	default:
		return 0, fmt.Errorf("date %q must be YYYY, YYYY-MM or YYYY-MM-DD", s)
	}

	if _, err := time.Parse(layout, s); err != nil {
		return 0, fmt.Errorf("date %q must be YYYY, YYYY-MM or YYYY-MM-DD", s)
	}

	year, _ := strconv.Atoi(s[:4])
	return year, nil
}

// YearOf returns the year of a partial date, or 0 when it is empty or malformed.
func YearOf(s string) int {
	year, err := ParsePartialDate(s)
	if err != nil {
		return 0
	}
	return year
}
