package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/civicms/go-auth"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestUserProviderVerifyIdentity(t *testing.T) {
	ctx := context.Background()
	mockTracker := new(MockUserTracker)

	provider := auth.NewUserProvider(mockTracker)

	passwordHash, err := auth.HashPassword("password123")
	assert.NoError(t, err)

	adminRole := &auth.Role{ID: uuid.New(), Name: auth.RoleAdmin}

	t.Run("Successful verification", func(t *testing.T) {
		userID := uuid.New()
		user := &auth.User{
			ID:           userID,
			Email:        "test@example.com",
			PasswordHash: passwordHash,
			Roles:        []*auth.Role{adminRole},
			Enabled:      true,
		}

		mockTracker.On("GetByIdentifier", ctx, "test@example.com").Return(user, nil).Once()
		mockTracker.On("TrackSucccessfulLogin", ctx, user).Return(nil).Once()

		identity, err := provider.VerifyIdentity(ctx, "test@example.com", "password123")

		assert.NoError(t, err)
		assert.NotNil(t, identity)
		assert.Equal(t, userID.String(), identity.ID())
		assert.Equal(t, "test@example.com", identity.Email())
		assert.Equal(t, auth.RoleAdmin, identity.Role())

		mockTracker.AssertExpectations(t)
	})

	t.Run("Invalid password", func(t *testing.T) {
		user := &auth.User{
			ID:           uuid.New(),
			Email:        "test@example.com",
			PasswordHash: passwordHash,
			Enabled:      true,
		}

		mockTracker.On("GetByIdentifier", ctx, "test@example.com").Return(user, nil).Once()
		mockTracker.On("TrackAttemptedLogin", ctx, user).Return(nil).Once()

		identity, err := provider.VerifyIdentity(ctx, "test@example.com", "wrong_password")

		assert.Nil(t, identity)
		assert.Equal(t, auth.ErrMismatchedHashAndPassword, err)

		mockTracker.AssertExpectations(t)
	})

	t.Run("Unknown account produces the same error as a bad password", func(t *testing.T) {
		mockTracker.On("GetByIdentifier", ctx, "nonexistent@example.com").
			Return(nil, repository.NewRecordNotFound()).Once()

		identity, err := provider.VerifyIdentity(ctx, "nonexistent@example.com", "password123")

		assert.Nil(t, identity)
		assert.Equal(t, auth.ErrMismatchedHashAndPassword, err)

		mockTracker.AssertExpectations(t)
	})

	t.Run("Store failure is surfaced", func(t *testing.T) {
		mockTracker.On("GetByIdentifier", ctx, "broken@example.com").
			Return(nil, errors.New("connection refused")).Once()

		identity, err := provider.VerifyIdentity(ctx, "broken@example.com", "password123")

		assert.Nil(t, identity)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to retrieve user")

		mockTracker.AssertExpectations(t)
	})

	t.Run("Too many login attempts", func(t *testing.T) {
		now := time.Now()
		user := &auth.User{
			ID:             uuid.New(),
			Email:          "test@example.com",
			PasswordHash:   passwordHash,
			LoginAttempts:  auth.MaxLoginAttempts + 1,
			LoginAttemptAt: &now,
		}

		mockTracker.On("GetByIdentifier", ctx, "test@example.com").Return(user, nil).Once()

		identity, err := provider.VerifyIdentity(ctx, "test@example.com", "password123")

		assert.Nil(t, identity)
		assert.Equal(t, auth.ErrTooManyLoginAttempts, err)

		mockTracker.AssertExpectations(t)
	})

	t.Run("Login attempts cooldown expired", func(t *testing.T) {
		userID := uuid.New()
		oldAttempt := time.Now().Add(-48 * time.Hour)
		user := &auth.User{
			ID:             userID,
			Email:          "test@example.com",
			PasswordHash:   passwordHash,
			LoginAttempts:  auth.MaxLoginAttempts + 1,
			LoginAttemptAt: &oldAttempt,
		}

		mockTracker.On("GetByIdentifier", ctx, "test@example.com").Return(user, nil).Once()
		mockTracker.On("TrackSucccessfulLogin", ctx, mock.MatchedBy(func(u *auth.User) bool {
			return u.ID == userID && u.LoginAttempts == 0 // attempts reset
		})).Return(nil).Once()

		identity, err := provider.VerifyIdentity(ctx, "test@example.com", "password123")

		assert.NoError(t, err)
		assert.NotNil(t, identity)
		assert.Equal(t, userID.String(), identity.ID())

		mockTracker.AssertExpectations(t)
	})
}

func TestUserProviderFindIdentityByIdentifier(t *testing.T) {
	ctx := context.Background()
	mockTracker := new(MockUserTracker)

	provider := auth.NewUserProvider(mockTracker)

	t.Run("User found", func(t *testing.T) {
		userID := uuid.New()
		user := &auth.User{
			ID:    userID,
			Email: "test@example.com",
		}

		mockTracker.On("GetByIdentifier", ctx, "test@example.com").Return(user, nil).Once()

		identity, err := provider.FindIdentityByIdentifier(ctx, "test@example.com")

		assert.NoError(t, err)
		assert.NotNil(t, identity)
		assert.Equal(t, userID.String(), identity.ID())
		assert.Equal(t, "test@example.com", identity.Email())
		// no assigned roles falls back to the default
		assert.Equal(t, auth.RoleUser, identity.Role())

		mockTracker.AssertExpectations(t)
	})

	t.Run("User not found", func(t *testing.T) {
		mockTracker.On("GetByIdentifier", ctx, "nonexistent@example.com").
			Return(nil, repository.NewRecordNotFound()).Once()

		identity, err := provider.FindIdentityByIdentifier(ctx, "nonexistent@example.com")

		assert.Error(t, err)
		assert.Nil(t, identity)

		mockTracker.AssertExpectations(t)
	})
}

func TestUserPrimaryRole(t *testing.T) {
	t.Run("highest ranked role wins", func(t *testing.T) {
		user := &auth.User{
			Roles: []*auth.Role{
				{Name: auth.RoleUser},
				{Name: auth.RoleAdmin},
				{Name: auth.RoleEditor},
			},
		}

		assert.Equal(t, auth.RoleAdmin, user.PrimaryRole())
	})

	t.Run("defaults when no role assigned", func(t *testing.T) {
		user := &auth.User{}

		assert.Equal(t, auth.RoleUser, user.PrimaryRole())
	})
}
