package unlock

import (
	"context"
	"errors"

	"github.com/tutorconnect/coin_ledger/internal/directory"
	"github.com/tutorconnect/coin_ledger/internal/ledger"
)

// Revealer owns the gated payload of one purpose. Check runs before any coins
// move; Reveal runs only after the debit has committed.
type Revealer interface {
	Check(ctx context.Context, targetID string) error
	Reveal(ctx context.Context, targetID string) (any, error)
}

type tutorContactRevealer struct{ dir directory.Repository }

func (r tutorContactRevealer) Check(ctx context.Context, tutorID string) error {
	_, err := r.dir.TutorContact(ctx, tutorID)
	return notFound(err, directory.ErrTutorNotFound)
}

func (r tutorContactRevealer) Reveal(ctx context.Context, tutorID string) (any, error) {
	c, err := r.dir.TutorContact(ctx, tutorID)
	if err != nil {
		return nil, err
	}
	return map[string]string{"mobile": c.Mobile, "email": c.Email}, nil
}

type requirementRevealer struct{ dir directory.Repository }

func (r requirementRevealer) Check(ctx context.Context, id string) error {
	_, err := r.dir.Requirement(ctx, id)
	return notFound(err, directory.ErrRequirementNotFound)
}

func (r requirementRevealer) Reveal(ctx context.Context, id string) (any, error) {
	req, err := r.dir.Requirement(ctx, id)
	if err != nil {
		return nil, err
	}
	return req, nil
}

// messageRevealer opens a conversation; the payload is the partner's id.
type messageRevealer struct{ dir directory.Repository }

func (r messageRevealer) Check(ctx context.Context, tutorID string) error {
	_, err := r.dir.TutorContact(ctx, tutorID)
	return notFound(err, directory.ErrTutorNotFound)
}

func (r messageRevealer) Reveal(_ context.Context, tutorID string) (any, error) {
	return map[string]string{"tutor_id": tutorID}, nil
}

// DirectoryRevealers wires every purpose to the directory that owns its payload.
func DirectoryRevealers(dir directory.Repository) map[string]Revealer {
	return map[string]Revealer{
		ledger.PurposeContactTutor:    tutorContactRevealer{dir: dir},
		ledger.PurposeViewRequirement: requirementRevealer{dir: dir},
		ledger.PurposeMessageTutor:    messageRevealer{dir: dir},
	}
}

func notFound(err, sentinel error) error {
	if errors.Is(err, sentinel) {
		return ErrTargetNotFound
	}
	return err
}
