package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/calbot/internal/common"
	"github.com/dmitrijs2005/calbot/internal/logging"
	"github.com/dmitrijs2005/calbot/internal/server/auth"
	"github.com/dmitrijs2005/calbot/internal/server/identity"
	"github.com/dmitrijs2005/calbot/internal/server/models"
	"github.com/dmitrijs2005/calbot/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/calbot/internal/server/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ repomanager.RepositoryManager = (*storetest.Manager)(nil)

// --- helpers ---

func newUserService(t *testing.T, pool *storetest.Runner, rm *storetest.Manager) *UserService {
	t.Helper()
	iss, err := auth.NewIssuer([]byte("k"), time.Hour)
	require.NoError(t, err)
	return NewUserService(pool, rm, iss, logging.Discard())
}

func seedUser(t *testing.T, rm *storetest.Manager, email, hash string) string {
	t.Helper()
	id := identity.DeriveID(identity.NormalizeEmail(email))
	raw, err := models.EncodeUserBag(models.UserBag{Email: identity.NormalizeEmail(email), PasswordHash: hash})
	require.NoError(t, err)
	rm.UsersStore.Put(&models.Row{GroupID: id, EntityID: id, Bag: raw, CreatedAt: time.Now(), UpdatedAt: time.Now()})
	return id
}

func TestRegister_Success(t *testing.T) {
	rm := storetest.NewManager()
	s := newUserService(t, &storetest.Runner{}, rm)

	sess, err := s.Register(context.Background(), "  Alice@Example.com ", "pw")
	require.NoError(t, err)

	want := identity.DeriveID("alice@example.com")
	assert.Equal(t, want, sess.User.ID)
	assert.Equal(t, want, sess.User.GroupID)
	assert.Equal(t, "alice@example.com", sess.User.Email)
	assert.NotEmpty(t, sess.Token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), sess.ExpiresAt, time.Minute)

	claims, err := s.Authenticate(context.Background(), sess.Token)
	require.NoError(t, err)
	assert.Equal(t, want, claims.Subject)
	assert.Equal(t, "alice@example.com", claims.Email)

	row, err := rm.UsersStore.FetchOne(context.Background(), want, want)
	require.NoError(t, err)
	bag, err := models.DecodeUserBag(row.Bag)
	require.NoError(t, err)
	ok, err := auth.VerifyPassword("pw", bag.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRegister_DuplicateWritesNothing(t *testing.T) {
	rm := storetest.NewManager()
	s := newUserService(t, &storetest.Runner{}, rm)

	_, err := s.Register(context.Background(), "bob@example.com", "pw")
	require.NoError(t, err)
	before, err := rm.UsersStore.FetchOne(context.Background(), identity.DeriveID("bob@example.com"), identity.DeriveID("bob@example.com"))
	require.NoError(t, err)
	writes := countCalls(rm.UsersStore.Calls(), "Insert", "Upsert")

	_, err = s.Register(context.Background(), "BOB@example.com ", "other")
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)

	assert.Equal(t, writes, countCalls(rm.UsersStore.Calls(), "Insert", "Upsert"))
	after, err := rm.UsersStore.FetchOne(context.Background(), before.GroupID, before.EntityID)
	require.NoError(t, err)
	assert.Equal(t, before.Bag, after.Bag)
	assert.Equal(t, 1, rm.UsersStore.Len())
}

func TestRegister_Validation(t *testing.T) {
	rm := storetest.NewManager()
	s := newUserService(t, &storetest.Runner{}, rm)

	_, err := s.Register(context.Background(), "", "")
	var ve *common.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.FieldErrors, "email")
	assert.Contains(t, ve.FieldErrors, "password")

	_, err = s.Register(context.Background(), "not-an-email", "pw")
	assert.ErrorIs(t, err, common.ErrorValidation)

	assert.Empty(t, rm.UsersStore.Calls())
}

func TestRegister_StorageUnavailable(t *testing.T) {
	rm := storetest.NewManager()
	s := newUserService(t, &storetest.Runner{Err: common.ErrPoolExhausted}, rm)

	_, err := s.Register(context.Background(), "a@b.c", "pw")
	assert.ErrorIs(t, err, common.ErrorStorageUnavailable)
	assert.Equal(t, "storage unavailable", err.Error())
}

func TestLogin_Success(t *testing.T) {
	rm := storetest.NewManager()
	s := newUserService(t, &storetest.Runner{}, rm)

	_, err := s.Register(context.Background(), "carol@example.com", "secret")
	require.NoError(t, err)

	sess, err := s.Login(context.Background(), "Carol@Example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, identity.DeriveID("carol@example.com"), sess.User.ID)
	assert.NotEmpty(t, sess.Token)
	assert.Zero(t, countCalls(rm.UsersStore.Calls(), "Upsert"))
}

func TestLogin_InvalidCredentialsIndistinguishable(t *testing.T) {
	rm := storetest.NewManager()
	s := newUserService(t, &storetest.Runner{}, rm)

	_, err := s.Register(context.Background(), "dave@example.com", "right")
	require.NoError(t, err)

	_, errWrong := s.Login(context.Background(), "dave@example.com", "wrong")
	_, errUnknown := s.Login(context.Background(), "nobody@example.com", "right")

	assert.ErrorIs(t, errWrong, common.ErrorInvalidCredentials)
	assert.ErrorIs(t, errUnknown, common.ErrorInvalidCredentials)
	assert.Equal(t, errWrong.Error(), errUnknown.Error())
}

func TestLogin_MalformedStoredHash(t *testing.T) {
	rm := storetest.NewManager()
	seedUser(t, rm, "eve@example.com", "not-a-phc-string")
	s := newUserService(t, &storetest.Runner{}, rm)

	_, err := s.Login(context.Background(), "eve@example.com", "pw")
	assert.ErrorIs(t, err, common.ErrorInvalidCredentials)
}

func TestLogin_RehashesOutdatedHash(t *testing.T) {
	rm := storetest.NewManager()
	old, err := auth.HashPasswordWithParams("pw", auth.Params{Memory: 8 * 1024, Time: 1, Threads: 1, SaltLen: 16, KeyLen: 32})
	require.NoError(t, err)
	id := seedUser(t, rm, "frank@example.com", old)
	s := newUserService(t, &storetest.Runner{}, rm)

	_, err = s.Login(context.Background(), "frank@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, 1, countCalls(rm.UsersStore.Calls(), "Upsert"))

	row, err := rm.UsersStore.FetchOne(context.Background(), id, id)
	require.NoError(t, err)
	bag, err := models.DecodeUserBag(row.Bag)
	require.NoError(t, err)
	assert.False(t, auth.NeedsRehash(bag.PasswordHash))
	assert.Equal(t, "frank@example.com", bag.Email)

	_, err = s.Login(context.Background(), "frank@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, 1, countCalls(rm.UsersStore.Calls(), "Upsert"))
}

func TestAuthenticate_InvalidToken(t *testing.T) {
	s := newUserService(t, &storetest.Runner{}, storetest.NewManager())

	_, err := s.Authenticate(context.Background(), "garbage")
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestGet(t *testing.T) {
	rm := storetest.NewManager()
	s := newUserService(t, &storetest.Runner{}, rm)

	sess, err := s.Register(context.Background(), "gina@example.com", "pw")
	require.NoError(t, err)

	u, err := s.Get(context.Background(), sess.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "gina@example.com", u.Email)

	_, err = s.Get(context.Background(), identity.DeriveID("missing@example.com"))
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = s.Get(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGet_StorageFailure(t *testing.T) {
	rm := storetest.NewManager()
	rm.UsersStore.Err = errors.New("db down")
	s := newUserService(t, &storetest.Runner{}, rm)

	_, err := s.Get(context.Background(), identity.DeriveID("a@b.c"))
	assert.ErrorIs(t, err, common.ErrorStorageUnavailable)
	assert.NotErrorIs(t, err, common.ErrorNotFound)
}

func countCalls(calls []string, names ...string) int {
	n := 0
	for _, c := range calls {
		for _, name := range names {
			if c == name {
				n++
			}
		}
	}
	return n
}
