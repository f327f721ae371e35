package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/accountcore"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const recordVersionV1 = 1

var errUnsupportedVersion = errors.New("unsupported account record version")

// createLua atomically inserts an account and its id index.
// KEYS[1] = account key
// KEYS[2] = id index key
// ARGV[1] = encoded account
// ARGV[2] = identity
//
// Returns 1 on insert, 0 when the identity already exists.
var createLua = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('SET', KEYS[2], ARGV[2])
return 1
`)

type record struct {
	Version int                 `json:"v"`
	Account accountcore.Account `json:"account"`
}

// Options tunes a Store.
type Options struct {
	// Prefix namespaces every key. Defaults to "acct".
	Prefix string
	// MaxRetries bounds optimistic retries in Update. Defaults to 64.
	MaxRetries int
	// Now supplies creation timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Store is a Redis-backed credential store.
type Store struct {
	redis      redis.UniversalClient
	prefix     string
	maxRetries int
	now        func() time.Time
}

// New returns a Store using redisClient.
func New(redisClient redis.UniversalClient, opts Options) *Store {
	if opts.Prefix == "" {
		opts.Prefix = "acct"
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 64
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		redis:      redisClient,
		prefix:     opts.Prefix,
		maxRetries: opts.MaxRetries,
		now:        opts.Now,
	}
}

func (s *Store) accountKey(identity string) string {
	return s.prefix + ":acct:" + identity
}

func (s *Store) idKey(id string) string {
	return s.prefix + ":id:" + id
}

func (s *Store) Create(ctx context.Context, account accountcore.Account) (accountcore.Account, error) {
	stored := account.Clone()
	stored.ID = uuid.NewString()
	now := s.now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = stored.CreatedAt
	}

	encoded, err := encodeAccount(stored)
	if err != nil {
		return accountcore.Account{}, err
	}

	inserted, err := createLua.Run(ctx, s.redis,
		[]string{s.accountKey(stored.Identity), s.idKey(stored.ID)},
		encoded, stored.Identity,
	).Int()
	if err != nil {
		return accountcore.Account{}, fmt.Errorf("%w: %v", accountcore.ErrStoreUnavailable, err)
	}
	if inserted == 0 {
		return accountcore.Account{}, accountcore.ErrAlreadyExists
	}
	return stored, nil
}

func (s *Store) GetByIdentity(ctx context.Context, identity string) (accountcore.Account, error) {
	data, err := s.redis.Get(ctx, s.accountKey(identity)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return accountcore.Account{}, accountcore.ErrAccountNotFound
		}
		return accountcore.Account{}, fmt.Errorf("%w: %v", accountcore.ErrStoreUnavailable, err)
	}
	return decodeAccount(data)
}

func (s *Store) GetByID(ctx context.Context, id string) (accountcore.Account, error) {
	identity, err := s.redis.Get(ctx, s.idKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return accountcore.Account{}, accountcore.ErrAccountNotFound
		}
		return accountcore.Account{}, fmt.Errorf("%w: %v", accountcore.ErrStoreUnavailable, err)
	}
	return s.GetByIdentity(ctx, identity)
}

// Update applies fn inside a WATCH/MULTI transaction. On contention the
// account is re-read and fn runs again.
func (s *Store) Update(ctx context.Context, identity string, fn func(*accountcore.Account) error) (accountcore.Account, error) {
	key := s.accountKey(identity)

	for i := 0; i < s.maxRetries; i++ {
		var (
			updated accountcore.Account
			fnErr   error
		)

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			current, err := decodeAccount(data)
			if err != nil {
				return err
			}

			work := current.Clone()
			if fnErr = fn(&work); fnErr != nil {
				return fnErr
			}
			work.ID = current.ID
			work.Identity = current.Identity
			work.CreatedAt = current.CreatedAt

			encoded, err := encodeAccount(work)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, 0)
				return nil
			})
			if err != nil {
				return err
			}

			updated = work
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			switch {
			case fnErr != nil:
				return accountcore.Account{}, fnErr
			case errors.Is(err, redis.Nil):
				return accountcore.Account{}, accountcore.ErrAccountNotFound
			case errors.Is(err, errUnsupportedVersion):
				return accountcore.Account{}, err
			default:
				return accountcore.Account{}, fmt.Errorf("%w: %v", accountcore.ErrStoreUnavailable, err)
			}
		}

		return updated, nil
	}

	return accountcore.Account{}, fmt.Errorf("%w: update contention on %q", accountcore.ErrStoreUnavailable, identity)
}

func encodeAccount(a accountcore.Account) ([]byte, error) {
	return json.Marshal(record{Version: recordVersionV1, Account: a})
}

func decodeAccount(data []byte) (accountcore.Account, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return accountcore.Account{}, fmt.Errorf("decode account record: %w", err)
	}
	if rec.Version != recordVersionV1 {
		return accountcore.Account{}, fmt.Errorf("%w: %d", errUnsupportedVersion, rec.Version)
	}
	return rec.Account, nil
}
