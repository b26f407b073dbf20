package directory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository serves the gated payloads owned by the profile and requirement services.
type Repository interface {
	TutorContact(ctx context.Context, tutorID string) (TutorContact, error)
	Requirement(ctx context.Context, id string) (Requirement, error)
	SaveTutor(ctx context.Context, contact TutorContact) error
	SaveRequirement(ctx context.Context, req Requirement) error
	RequirementsByStudent(ctx context.Context, studentID string) ([]Requirement, error)
}

// PostgresRepository reads payloads from PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed directory.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// TutorContact fetches the contact details of a tutor.
func (r *PostgresRepository) TutorContact(ctx context.Context, tutorID string) (TutorContact, error) {
	var c TutorContact
	err := r.db.QueryRow(ctx, `SELECT tutor_id, name, mobile, email FROM tutor_contacts WHERE tutor_id = $1`, tutorID).
		Scan(&c.TutorID, &c.Name, &c.Mobile, &c.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TutorContact{}, ErrTutorNotFound
		}
		return TutorContact{}, err
	}
	return c, nil
}

const requirementSelect = `SELECT id, student_id, student_name, subject, grade, location, budget,
            description, contact_phone, contact_email, created_at
        FROM requirements`

// maxStudentRequirements caps the "my requirements" listing.
const maxStudentRequirements = 100

// Requirement fetches a requirement including its contact details.
func (r *PostgresRepository) Requirement(ctx context.Context, id string) (Requirement, error) {
	req, err := scanRequirement(r.db.QueryRow(ctx, requirementSelect+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Requirement{}, ErrRequirementNotFound
	}
	return req, err
}

// RequirementsByStudent lists a student's own requirements, newest first.
func (r *PostgresRepository) RequirementsByStudent(ctx context.Context, studentID string) ([]Requirement, error) {
	rows, err := r.db.Query(ctx, requirementSelect+` WHERE student_id = $1 ORDER BY created_at DESC LIMIT $2`,
		studentID, maxStudentRequirements)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reqs := []Requirement{}
	for rows.Next() {
		req, err := scanRequirement(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

func scanRequirement(row pgx.Row) (Requirement, error) {
	var req Requirement
	if err := row.Scan(&req.ID, &req.StudentID, &req.StudentName, &req.Subject, &req.Grade, &req.Location, &req.Budget,
		&req.Description, &req.ContactPhone, &req.ContactEmail, &req.CreatedAt); err != nil {
		return Requirement{}, err
	}
	req.CreatedAt = req.CreatedAt.UTC()
	return req, nil
}

// SaveTutor upserts a tutor's contact details.
func (r *PostgresRepository) SaveTutor(ctx context.Context, c TutorContact) error {
	_, err := r.db.Exec(ctx, `INSERT INTO tutor_contacts (tutor_id, name, mobile, email)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (tutor_id) DO UPDATE SET name = EXCLUDED.name, mobile = EXCLUDED.mobile, email = EXCLUDED.email`,
		c.TutorID, c.Name, c.Mobile, c.Email)
	return err
}

// SaveRequirement inserts or replaces a requirement.
func (r *PostgresRepository) SaveRequirement(ctx context.Context, req Requirement) error {
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx, `INSERT INTO requirements
            (id, student_id, student_name, subject, grade, location, budget, description, contact_phone, contact_email, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        ON CONFLICT (id) DO UPDATE SET subject = EXCLUDED.subject, grade = EXCLUDED.grade, location = EXCLUDED.location,
            budget = EXCLUDED.budget, description = EXCLUDED.description,
            contact_phone = EXCLUDED.contact_phone, contact_email = EXCLUDED.contact_email`,
		req.ID, req.StudentID, req.StudentName, req.Subject, req.Grade, req.Location, req.Budget,
		req.Description, req.ContactPhone, req.ContactEmail, req.CreatedAt.UTC())
	return err
}
