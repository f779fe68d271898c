package sqlcommon

import (
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/genea-app/genea/pkg/storage"
)

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

var (
	familyColumns = []string{"id", "name", "description", "created_by", "created_at", "updated_at"}
	memberColumns = []string{"family_id", "user_id", "email", "role", "joined_at"}
	personColumns = []string{
		"id", "family_id", "first_name", "last_name", "maiden_name", "gender",
		"birth_date", "birth_place", "death_date", "death_place", "is_living",
		"occupation", "biography", "created_by", "created_at", "updated_at",
	}
	relationshipColumns = []string{
		"id", "family_id", "person1_id", "person2_id", "relationship_type",
		"start_date", "end_date", "notes", "created_at",
	}
	mediaColumns = []string{
		"id", "family_id", "person_id", "title", "description", "file_name",
		"content_type", "size", "storage_key", "etag", "uploaded_by", "created_at",
	}
	invitationColumns = []string{
		"id", "family_id", "email", "role", "token", "status", "invited_by",
		"expires_at", "created_at", "responded_at",
	}
	notificationColumns = []string{"id", "user_id", "family_id", "type", "title", "message", "is_read", "created_at"}
	licenseColumns      = []string{"id", "family_id", "status", "plan", "starts_at", "expires_at", "created_at"}
)

func prefixed(alias string, columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = alias + "." + c
	}
	return out
}

func scanFamily(row sq.RowScanner) (*storage.Family, error) {
	var f storage.Family
	err := row.Scan(&f.ID, &f.Name, &f.Description, &f.CreatedBy, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	f.CreatedAt = f.CreatedAt.UTC()
	f.UpdatedAt = f.UpdatedAt.UTC()
	return &f, nil
}

func scanMember(row sq.RowScanner) (*storage.FamilyMember, error) {
	var m storage.FamilyMember
	var role string
	if err := row.Scan(&m.FamilyID, &m.UserID, &m.Email, &role, &m.JoinedAt); err != nil {
		return nil, err
	}
	m.Role = storage.Role(role)
	m.JoinedAt = m.JoinedAt.UTC()
	return &m, nil
}

func scanPerson(row sq.RowScanner) (*storage.Person, error) {
	var p storage.Person
	var gender string
	err := row.Scan(
		&p.ID, &p.FamilyID, &p.FirstName, &p.LastName, &p.MaidenName, &gender,
		&p.BirthDate, &p.BirthPlace, &p.DeathDate, &p.DeathPlace, &p.IsLiving,
		&p.Occupation, &p.Biography, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Gender = storage.Gender(gender)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func scanRelationship(row sq.RowScanner) (*storage.Relationship, error) {
	var r storage.Relationship
	var relType string
	err := row.Scan(&r.ID, &r.FamilyID, &r.Person1ID, &r.Person2ID, &relType,
		&r.StartDate, &r.EndDate, &r.Notes, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.Type = storage.RelationshipType(relType)
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}

func scanMedia(row sq.RowScanner) (*storage.Media, error) {
	var m storage.Media
	var personID sql.NullString
	err := row.Scan(&m.ID, &m.FamilyID, &personID, &m.Title, &m.Description, &m.FileName,
		&m.ContentType, &m.Size, &m.StorageKey, &m.ETag, &m.UploadedBy, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.PersonID = personID.String
	m.CreatedAt = m.CreatedAt.UTC()
	return &m, nil
}

func scanInvitation(row sq.RowScanner) (*storage.Invitation, error) {
	var i storage.Invitation
	var role, status string
	var respondedAt sql.NullTime
	err := row.Scan(&i.ID, &i.FamilyID, &i.Email, &role, &i.Token, &status, &i.InvitedBy,
		&i.ExpiresAt, &i.CreatedAt, &respondedAt)
	if err != nil {
		return nil, err
	}
	i.Role = storage.Role(role)
	i.Status = storage.InvitationStatus(status)
	i.ExpiresAt = i.ExpiresAt.UTC()
	i.CreatedAt = i.CreatedAt.UTC()
	i.RespondedAt = timePtr(respondedAt)
	return &i, nil
}

func scanNotification(row sq.RowScanner) (*storage.Notification, error) {
	var n storage.Notification
	var familyID sql.NullString
	var nType string
	err := row.Scan(&n.ID, &n.UserID, &familyID, &nType, &n.Title, &n.Message, &n.Read, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	n.FamilyID = familyID.String
	n.Type = storage.NotificationType(nType)
	n.CreatedAt = n.CreatedAt.UTC()
	return &n, nil
}

func scanLicense(row sq.RowScanner) (*storage.License, error) {
	var l storage.License
	var status string
	var expiresAt sql.NullTime
	err := row.Scan(&l.ID, &l.FamilyID, &status, &l.Plan, &l.StartsAt, &expiresAt, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	l.Status = storage.LicenseStatus(status)
	l.StartsAt = l.StartsAt.UTC()
	l.ExpiresAt = timePtr(expiresAt)
	l.CreatedAt = l.CreatedAt.UTC()
	return &l, nil
}

// collect drains rows with scan and closes them.
func collect[T any](rows *sql.Rows, scan func(sq.RowScanner) (*T, error)) ([]*T, error) {
	defer rows.Close()

	var out []*T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
