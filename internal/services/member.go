package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dropspot/dropspot/internal/api/validate"
	"github.com/dropspot/dropspot/internal/auth"
	"github.com/dropspot/dropspot/internal/model"
	"github.com/dropspot/dropspot/internal/store"
)

// MemberService authenticates identity tokens into member records and guards
// against token replay: a token whose iat does not advance past the stored
// last login is rejected.
type MemberService struct {
	store    store.Store
	verifier auth.Verifier
}

func NewMemberService(s store.Store, v auth.Verifier) *MemberService {
	return &MemberService{store: s, verifier: v}
}

// Authenticate verifies the identity token and returns the member, creating
// the record on first login.
func (s *MemberService) Authenticate(ctx context.Context, token string) (*model.Member, error) {
	id, err := s.verifier.Verify(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, model.ErrInvalidInput)
	}

	existing, err := s.store.Members().GetByIssuer(ctx, id.Issuer)
	if errors.Is(err, model.ErrNotFound) {
		// Email is only consumed at account creation, so it is validated here
		// rather than on every login.
		if verr := validate.Email(id.Email); verr != nil {
			return nil, fmt.Errorf("%v: %w", verr, model.ErrInvalidInput)
		}
		created, createErr := s.store.Members().Create(ctx, &model.Member{
			MemberID:    uuid.NewString(),
			Issuer:      id.Issuer,
			Email:       id.Email,
			LastLoginAt: id.IssuedAt,
		})
		if createErr == nil {
			return created, nil
		}
		if !errors.Is(createErr, model.ErrAccountExists) {
			return nil, createErr
		}
		// Lost a concurrent first-login race; carry on as a returning login.
		existing, err = s.store.Members().GetByIssuer(ctx, id.Issuer)
	}
	if err != nil {
		return nil, err
	}

	if err := s.store.Members().RecordLogin(ctx, id.Issuer, id.IssuedAt); err != nil {
		return nil, err
	}
	existing.LastLoginAt = id.IssuedAt
	return existing, nil
}

func (s *MemberService) Get(ctx context.Context, memberID string) (*model.Member, error) {
	return s.store.Members().GetByID(ctx, memberID)
}

func (s *MemberService) List(ctx context.Context) ([]*model.Member, error) {
	return s.store.Members().List(ctx)
}
