package service

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/casebros/case-engine/internal/errs"
	"github.com/casebros/case-engine/internal/model"
	"github.com/casebros/case-engine/internal/repository"
)

type fakeUsers struct {
	byID map[uuid.UUID]*model.User

	createErr error
	getErr    error
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func (f *fakeUsers) Create(_ context.Context, u *model.User, _ []byte) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, e := range f.byID {
		if e.Username == u.Username {
			return errs.ErrAlreadyExists
		}
	}
	if f.byID == nil {
		f.byID = map[uuid.UUID]*model.User{}
	}
	cp := *u
	f.byID[u.ID] = &cp
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeUsers) ClaimBonus(_ context.Context, id uuid.UUID, amountCents int64, cooldown time.Duration, now time.Time, _ []byte) (int64, error) {
	u, ok := f.byID[id]
	if !ok {
		return 0, errs.ErrNotFound
	}
	if u.LastBonusClaimAt != nil && now.Before(u.LastBonusClaimAt.Add(cooldown)) {
		return 0, errs.ErrCooldown
	}
	u.GemsCents += amountCents
	t := now
	u.LastBonusClaimAt = &t
	return u.GemsCents, nil
}

func seedUser(f *fakeUsers, gems int64) *model.User {
	id, _ := uuid.NewV4()
	u := &model.User{ID: id, Username: "bro", GemsCents: gems}
	if f.byID == nil {
		f.byID = map[uuid.UUID]*model.User{}
	}
	f.byID[id] = u
	return u
}

func TestBonusClaim_OK(t *testing.T) {
	t.Parallel()

	users := &fakeUsers{}
	u := seedUser(users, 1000)
	svc := NewBonusService(users, BonusConfig{MinCents: 200, MaxCents: 400, Cooldown: time.Hour}, zap.NewNop())

	c, err := svc.Claim(context.Background(), u.ID)
	require.NoError(t, err)
	require.GreaterOrEqual(t, c.AmountCents, int64(200))
	require.LessOrEqual(t, c.AmountCents, int64(400))
	require.Equal(t, 1000+c.AmountCents, c.NewBalanceCents)

	_, err = svc.Claim(context.Background(), u.ID)
	require.ErrorIs(t, err, errs.ErrCooldown)
}

func TestBonusClaim_FixedAmount(t *testing.T) {
	t.Parallel()

	users := &fakeUsers{}
	u := seedUser(users, 0)
	svc := NewBonusService(users, BonusConfig{MinCents: 300, MaxCents: 300, Cooldown: time.Hour}, zap.NewNop())

	c, err := svc.Claim(context.Background(), u.ID)
	require.NoError(t, err)
	require.Equal(t, int64(300), c.AmountCents)
}

func TestBonusState(t *testing.T) {
	t.Parallel()

	users := &fakeUsers{}
	u := seedUser(users, 0)
	svc := NewBonusService(users, BonusConfig{Cooldown: time.Hour}, zap.NewNop())

	st, err := svc.State(context.Background(), u.ID)
	require.NoError(t, err)
	require.True(t, st.CanClaim)
	require.Nil(t, st.NextClaimAt)

	recent := time.Now().UTC().Add(-time.Minute)
	u.LastBonusClaimAt = &recent
	st, err = svc.State(context.Background(), u.ID)
	require.NoError(t, err)
	require.False(t, st.CanClaim)
	require.NotNil(t, st.NextClaimAt)

	old := time.Now().UTC().Add(-2 * time.Hour)
	u.LastBonusClaimAt = &old
	st, err = svc.State(context.Background(), u.ID)
	require.NoError(t, err)
	require.True(t, st.CanClaim)
}

func TestBonus_UnknownUser(t *testing.T) {
	t.Parallel()

	svc := NewBonusService(&fakeUsers{}, BonusConfig{}, zap.NewNop())
	id, _ := uuid.NewV4()
	_, err := svc.State(context.Background(), id)
	require.ErrorIs(t, err, errs.ErrNotFound)
	_, err = svc.Claim(context.Background(), id)
	require.ErrorIs(t, err, errs.ErrNotFound)
}
