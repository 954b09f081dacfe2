package accounts

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type AuthProfiles interface {
	repository.Repository[*AuthProfile]

	GetByVerificationToken(ctx context.Context, token uuid.UUID) (*AuthProfile, error)
	GetByVerificationTokenTx(ctx context.Context, tx bun.IDB, token uuid.UUID) (*AuthProfile, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*AuthProfile, error)
	GetByUserIDTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*AuthProfile, error)

	// ConsumeVerificationTokenTx is the conditional write that arbitrates
	// concurrent verification attempts: it flips email_verified and clears
	// the token only while the token is still present and the profile is
	// unverified. It reports how many rows it touched; zero means another
	// request won the race or the token never existed.
	ConsumeVerificationTokenTx(ctx context.Context, tx bun.IDB, token uuid.UUID) (int64, error)

	// RotateVerificationTokenTx overwrites the profile token, invalidating
	// whatever token was previously outstanding.
	RotateVerificationTokenTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (uuid.UUID, error)
}

type profiles struct {
	repository.Repository[*AuthProfile]
	db *bun.DB
}

var (
	_ AuthProfiles                        = (*profiles)(nil)
	_ repository.Repository[*AuthProfile] = (*profiles)(nil)
)

func NewAuthProfilesRepository(db *bun.DB) AuthProfiles {
	repo := repository.NewRepository[*AuthProfile](db, repository.ModelHandlers[*AuthProfile]{
		NewRecord: func() *AuthProfile { return &AuthProfile{} },
		GetID: func(p *AuthProfile) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *AuthProfile, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
	})

	return &profiles{
		Repository: repo,
		db:         db,
	}
}

func (p *profiles) GetByVerificationToken(ctx context.Context, token uuid.UUID) (*AuthProfile, error) {
	return p.GetByVerificationTokenTx(ctx, p.db, token)
}

func (p *profiles) GetByVerificationTokenTx(ctx context.Context, tx bun.IDB, token uuid.UUID) (*AuthProfile, error) {
	record := &AuthProfile{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.verification_token = ?", token).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"verification_token": token.String(),
				})
		}
		return nil, err
	}

	return record, nil
}

func (p *profiles) GetByUserID(ctx context.Context, userID uuid.UUID) (*AuthProfile, error) {
	return p.GetByUserIDTx(ctx, p.db, userID)
}

func (p *profiles) GetByUserIDTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*AuthProfile, error) {
	record := &AuthProfile{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"user_id": userID.String(),
				})
		}
		return nil, err
	}

	return record, nil
}

func (p *profiles) ConsumeVerificationTokenTx(ctx context.Context, tx bun.IDB, token uuid.UUID) (int64, error) {
	res, err := tx.NewUpdate().
		Model((*AuthProfile)(nil)).
		Set("email_verified = TRUE").
		Set("verification_token = NULL").
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("verification_token = ?", token).
		Where("email_verified = FALSE").
		Exec(ctx)

	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func (p *profiles) RotateVerificationTokenTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (uuid.UUID, error) {
	token := uuid.New()

	res, err := tx.NewUpdate().
		Model((*AuthProfile)(nil)).
		Set("verification_token = ?", token).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("user_id = ?", userID).
		Where("email_verified = FALSE").
		Exec(ctx)

	if err != nil {
		return uuid.Nil, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return uuid.Nil, err
	}

	if rows == 0 {
		return uuid.Nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"user_id": userID.String(),
			})
	}

	return token, nil
}
