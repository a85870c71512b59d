package consent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/srizd/clinishare/backend/internal/graphdb"
)

// AccessEvent is one recorded access of a patient's data, as mirrored in the
// graph.
type AccessEvent struct {
	Accessor    string    `json:"accessor"`
	Action      string    `json:"action"`
	Institution string    `json:"institution,omitempty"`
	Count       int64     `json:"count"`
	LastAt      time.Time `json:"lastAt"`
}

// Grant is an active consent edge from a patient to an institution.
type Grant struct {
	Institution string    `json:"institution"`
	GrantedAt   time.Time `json:"grantedAt"`
}

// Repository mirrors consent grants and data accesses into the graph so that
// "who can see whom" questions stay answerable without scanning the audit
// collection.
type Repository struct {
	client graphdb.Client
}

// New instantiates a Repository backed by the supplied graph client.
func New(client graphdb.Client) *Repository {
	return &Repository{client: client}
}

// UpsertParticipant ensures a participant node exists with the latest role.
func (r *Repository) UpsertParticipant(ctx context.Context, address, role string) error {
	if address == "" {
		return errors.New("participant address is required")
	}

	_, err := r.client.RunWrite(ctx, upsertParticipantCypher, map[string]any{
		"address": address,
		"role":    role,
	})
	if err != nil {
		return fmt.Errorf("upsert participant %s: %w", address, err)
	}
	return nil
}

// GrantConsent records that the patient allows the institution to access
// their records. Granting twice refreshes the timestamp.
func (r *Repository) GrantConsent(ctx context.Context, patient, institution string, at time.Time) error {
	if patient == "" || institution == "" {
		return errors.New("patient and institution are required")
	}

	_, err := r.client.RunWrite(ctx, grantConsentCypher, map[string]any{
		"patient":     patient,
		"institution": institution,
		"grantedAt":   formatTime(at),
	})
	if err != nil {
		return fmt.Errorf("grant consent %s -> %s: %w", patient, institution, err)
	}
	return nil
}

// RevokeConsent removes the consent edge. Revoking a consent that does not
// exist is a no-op.
func (r *Repository) RevokeConsent(ctx context.Context, patient, institution string) error {
	if patient == "" || institution == "" {
		return errors.New("patient and institution are required")
	}

	_, err := r.client.RunWrite(ctx, revokeConsentCypher, map[string]any{
		"patient":     patient,
		"institution": institution,
	})
	if err != nil {
		return fmt.Errorf("revoke consent %s -> %s: %w", patient, institution, err)
	}
	return nil
}

// RecordAccess mirrors an audited access into the graph, bumping the edge
// counter and refreshing the last-seen timestamp.
func (r *Repository) RecordAccess(ctx context.Context, accessor, patient, action, institution string, at time.Time) error {
	if accessor == "" || patient == "" {
		return errors.New("accessor and patient are required")
	}

	_, err := r.client.RunWrite(ctx, recordAccessCypher, map[string]any{
		"accessor":    accessor,
		"patient":     patient,
		"action":      action,
		"institution": institution,
		"at":          formatTime(at),
	})
	if err != nil {
		return fmt.Errorf("record access %s -> %s: %w", accessor, patient, err)
	}
	return nil
}

// HasConsent reports whether an active consent edge exists from the patient
// to the institution.
func (r *Repository) HasConsent(ctx context.Context, patient, institution string) (bool, error) {
	rows, err := r.client.RunRead(ctx, hasConsentCypher, map[string]any{
		"patient":     patient,
		"institution": institution,
	})
	if err != nil {
		return false, fmt.Errorf("check consent %s -> %s: %w", patient, institution, err)
	}
	return len(rows) > 0 && rows[0].Int64("total") > 0, nil
}

// ConsentedInstitutions lists the institutions the patient currently consents
// to, most recent grant first.
func (r *Repository) ConsentedInstitutions(ctx context.Context, patient string) ([]Grant, error) {
	if patient == "" {
		return nil, errors.New("patient address is required")
	}

	rows, err := r.client.RunRead(ctx, consentedInstitutionsCypher, map[string]any{
		"patient": patient,
	})
	if err != nil {
		return nil, fmt.Errorf("list consents for %s: %w", patient, err)
	}

	grants := make([]Grant, 0, len(rows))
	for _, row := range rows {
		grant := Grant{Institution: row.String("institution")}
		if ts := parseTime(row["grantedAt"]); ts != nil {
			grant.GrantedAt = *ts
		}
		grants = append(grants, grant)
	}
	return grants, nil
}

// AccessHistory returns the aggregated access edges pointing at a patient.
func (r *Repository) AccessHistory(ctx context.Context, patient string) ([]AccessEvent, error) {
	if patient == "" {
		return nil, errors.New("patient address is required")
	}

	rows, err := r.client.RunRead(ctx, accessHistoryCypher, map[string]any{
		"patient": patient,
	})
	if err != nil {
		return nil, fmt.Errorf("access history for %s: %w", patient, err)
	}

	events := make([]AccessEvent, 0, len(rows))
	for _, row := range rows {
		event := AccessEvent{
			Accessor:    row.String("accessor"),
			Action:      row.String("action"),
			Institution: row.String("institution"),
			Count:       row.Int64("count"),
		}
		if ts := parseTime(row["lastAt"]); ts != nil {
			event.LastAt = *ts
		}
		events = append(events, event)
	}
	return events, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(val any) *time.Time {
	switch v := val.(type) {
	case time.Time:
		return &v
	case string:
		if v == "" {
			return nil
		}
		if parsed, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return &parsed
		}
		if parsed, err := time.Parse(time.RFC3339, v); err == nil {
			return &parsed
		}
	}
	return nil
}

const upsertParticipantCypher = `
MERGE (p:Participant {address: $address})
SET p.role = $role
RETURN p.address AS address
`

const grantConsentCypher = `
MERGE (p:Participant {address: $patient})
MERGE (i:Institution {name: $institution})
MERGE (p)-[c:CONSENTS_TO]->(i)
SET c.grantedAt = $grantedAt
RETURN i.name AS institution
`

const revokeConsentCypher = `
MATCH (p:Participant {address: $patient})-[c:CONSENTS_TO]->(i:Institution {name: $institution})
DELETE c
`

const recordAccessCypher = `
MERGE (a:Participant {address: $accessor})
MERGE (p:Participant {address: $patient})
MERGE (a)-[acc:ACCESSED {action: $action}]->(p)
SET acc.count = coalesce(acc.count, 0) + 1,
    acc.lastAt = $at,
    acc.institution = $institution
RETURN acc.count AS count
`

const hasConsentCypher = `
MATCH (p:Participant {address: $patient})-[c:CONSENTS_TO]->(i:Institution {name: $institution})
RETURN count(c) AS total
`

const consentedInstitutionsCypher = `
MATCH (p:Participant {address: $patient})-[c:CONSENTS_TO]->(i:Institution)
RETURN i.name AS institution,
       c.grantedAt AS grantedAt
ORDER BY c.grantedAt DESC
`

const accessHistoryCypher = `
MATCH (a:Participant)-[acc:ACCESSED]->(p:Participant {address: $patient})
RETURN a.address AS accessor,
       acc.action AS action,
       acc.institution AS institution,
       acc.count AS count,
       acc.lastAt AS lastAt
ORDER BY acc.lastAt DESC
`
