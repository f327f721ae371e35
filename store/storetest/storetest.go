// Package storetest holds the behavioural suite every
// accountcore.CredentialStore adapter must pass.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/accountcore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) accountcore.CredentialStore

// Run executes the conformance suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("CreateAssignsID", func(t *testing.T) { testCreateAssignsID(t, newStore(t)) })
	t.Run("CreateDuplicate", func(t *testing.T) { testCreateDuplicate(t, newStore(t)) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("UpdatePersists", func(t *testing.T) { testUpdatePersists(t, newStore(t)) })
	t.Run("UpdateAbortsOnError", func(t *testing.T) { testUpdateAbortsOnError(t, newStore(t)) })
	t.Run("UpdateMissing", func(t *testing.T) { testUpdateMissing(t, newStore(t)) })
	t.Run("ReturnedCopiesAreIsolated", func(t *testing.T) { testIsolation(t, newStore(t)) })
	t.Run("ConcurrentUpdates", func(t *testing.T) { testConcurrentUpdates(t, newStore(t)) })
}

func sample(identity string) accountcore.Account {
	return accountcore.Account{
		Identity:       identity,
		CredentialHash: "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$a2V5",
		DisplayName:    "Sample",
		Role:           "member",
		CreatedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func testCreateAssignsID(t *testing.T, s accountcore.CredentialStore) {
	ctx := context.Background()

	created, err := s.Create(ctx, sample("ada@example.com"))
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "ada@example.com", created.Identity)
	assert.False(t, created.Verified)

	byIdentity, err := s.GetByIdentity(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byIdentity.ID)
	assert.Equal(t, "Sample", byIdentity.DisplayName)
	assert.Equal(t, "member", byIdentity.Role)
	assert.Equal(t, created.CredentialHash, byIdentity.CredentialHash)

	byID, err := s.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", byID.Identity)

	other, err := s.Create(ctx, sample("bob@example.com"))
	require.NoError(t, err)
	assert.NotEqual(t, created.ID, other.ID)
}

func testCreateDuplicate(t *testing.T, s accountcore.CredentialStore) {
	ctx := context.Background()

	_, err := s.Create(ctx, sample("ada@example.com"))
	require.NoError(t, err)

	_, err = s.Create(ctx, sample("ada@example.com"))
	require.ErrorIs(t, err, accountcore.ErrAlreadyExists)
}

func testGetMissing(t *testing.T, s accountcore.CredentialStore) {
	ctx := context.Background()

	_, err := s.GetByIdentity(ctx, "ghost@example.com")
	require.ErrorIs(t, err, accountcore.ErrAccountNotFound)

	_, err = s.GetByID(ctx, "12345")
	require.ErrorIs(t, err, accountcore.ErrAccountNotFound)
}

func testUpdatePersists(t *testing.T, s accountcore.CredentialStore) {
	ctx := context.Background()
	created, err := s.Create(ctx, sample("ada@example.com"))
	require.NoError(t, err)

	expires := time.Date(2026, 1, 2, 3, 19, 5, 0, time.UTC)
	updated, err := s.Update(ctx, "ada@example.com", func(a *accountcore.Account) error {
		a.Challenge = &accountcore.OTPChallenge{CodeHash: "abc123", ExpiresAt: expires, Attempts: 2}
		a.TokenEpoch = 7
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, updated.Challenge)
	assert.Equal(t, 2, updated.Challenge.Attempts)

	got, err := s.GetByIdentity(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, uint32(7), got.TokenEpoch)
	require.NotNil(t, got.Challenge)
	assert.Equal(t, "abc123", got.Challenge.CodeHash)
	assert.True(t, expires.Equal(got.Challenge.ExpiresAt))

	_, err = s.Update(ctx, "ada@example.com", func(a *accountcore.Account) error {
		a.Verified = true
		a.Challenge = nil
		return nil
	})
	require.NoError(t, err)

	got, err = s.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, got.Verified)
	assert.Nil(t, got.Challenge)
}

func testUpdateAbortsOnError(t *testing.T, s accountcore.CredentialStore) {
	ctx := context.Background()
	_, err := s.Create(ctx, sample("ada@example.com"))
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = s.Update(ctx, "ada@example.com", func(a *accountcore.Account) error {
		a.Verified = true
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetByIdentity(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.False(t, got.Verified)
}

func testUpdateMissing(t *testing.T, s accountcore.CredentialStore) {
	called := false
	_, err := s.Update(context.Background(), "ghost@example.com", func(*accountcore.Account) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, accountcore.ErrAccountNotFound)
	assert.False(t, called)
}

func testIsolation(t *testing.T, s accountcore.CredentialStore) {
	ctx := context.Background()
	_, err := s.Create(ctx, sample("ada@example.com"))
	require.NoError(t, err)
	_, err = s.Update(ctx, "ada@example.com", func(a *accountcore.Account) error {
		a.Challenge = &accountcore.OTPChallenge{CodeHash: "abc", Attempts: 1}
		return nil
	})
	require.NoError(t, err)

	got, err := s.GetByIdentity(ctx, "ada@example.com")
	require.NoError(t, err)
	got.Challenge.Attempts = 99
	got.Verified = true

	again, err := s.GetByIdentity(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, again.Challenge.Attempts)
	assert.False(t, again.Verified)
}

func testConcurrentUpdates(t *testing.T, s accountcore.CredentialStore) {
	ctx := context.Background()
	_, err := s.Create(ctx, sample("ada@example.com"))
	require.NoError(t, err)

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, "ada@example.com", func(a *accountcore.Account) error {
				a.TokenEpoch++
				return nil
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.GetByIdentity(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, uint32(workers), got.TokenEpoch)
}
