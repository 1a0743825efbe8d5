package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mojzu/mz/pkg/kernel"
	"github.com/mojzu/mz/pkg/ptrx"
	"github.com/mojzu/mz/pkg/sso"
	"github.com/mojzu/mz/pkg/sso/csrf"
	"github.com/mojzu/mz/pkg/sso/password"
	"github.com/mojzu/mz/pkg/sso/ssoinfra"
	"github.com/mojzu/mz/pkg/sso/token"
	"github.com/mojzu/mz/pkg/sso/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeNotifier struct {
	mu             sync.Mutex
	err            error
	resetPassword  []ResetPasswordMessage
	updateEmail    []UpdateEmailMessage
	updatePassword []UpdatePasswordMessage
}

func (n *fakeNotifier) ResetPassword(_ context.Context, msg ResetPasswordMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resetPassword = append(n.resetPassword, msg)
	return n.err
}

func (n *fakeNotifier) UpdateEmail(_ context.Context, msg UpdateEmailMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updateEmail = append(n.updateEmail, msg)
	return n.err
}

func (n *fakeNotifier) UpdatePassword(_ context.Context, msg UpdatePasswordMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updatePassword = append(n.updatePassword, msg)
	return n.err
}

type opRecorder struct {
	mu  sync.Mutex
	ops map[string][]string
}

func (r *opRecorder) AuthOperation(operation, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[operation] = append(r.ops[operation], result)
}

const userPassword = "guess-this-passphrase"

var root = &kernel.AuthContext{KeyID: "root"}

type env struct {
	t        *testing.T
	ctx      context.Context
	driver   *ssoinfra.MemoryDriver
	notifier *fakeNotifier
	ops      *opRecorder
	svc      *Service
	service  *sso.Service
	service2 *sso.Service
	user     *sso.User
	tokenKey *sso.Key
	apiKey   *sso.Key
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		t:        t,
		ctx:      context.Background(),
		driver:   ssoinfra.NewMemoryDriver(),
		notifier: &fakeNotifier{},
		ops:      &opRecorder{ops: map[string][]string{}},
	}
	e.svc = NewService(
		e.driver,
		csrf.NewRegister(e.driver),
		password.NewEvaluator(),
		e.notifier,
		DefaultConfig(),
		WithHasher(password.NewHasher(bcrypt.MinCost)),
		WithObserver(e.ops),
	)

	var err error
	e.service, err = e.svc.ServiceCreate(e.ctx, e.audit(), root, ServiceCreateRequest{Name: "one"})
	require.NoError(t, err)
	e.service2, err = e.svc.ServiceCreate(e.ctx, e.audit(), root, ServiceCreateRequest{Name: "two"})
	require.NoError(t, err)

	e.user, _, err = e.svc.UserCreate(e.ctx, e.audit(), root, UserCreateRequest{Name: "User", Email: "User@Example.com", Password: ptrx.String(userPassword)})
	require.NoError(t, err)

	e.tokenKey = e.userKey(e.service, sso.KeyTypeToken)
	e.apiKey = e.userKey(e.service, sso.KeyTypeKey)
	return e
}

func (e *env) audit() *sso.AuditBuilder {
	return sso.NewAuditBuilder(sso.AuditMeta{UserAgent: "test", Remote: "127.0.0.1"})
}

func (e *env) userKey(service *sso.Service, keyType sso.KeyType) *sso.Key {
	e.t.Helper()
	serviceID, userID := service.ID, e.user.ID
	k, err := e.svc.KeyCreate(e.ctx, e.audit(), root, KeyCreateRequest{
		Name:      string(keyType),
		Type:      keyType,
		ServiceID: &serviceID,
		UserID:    &userID,
	})
	require.NoError(e.t, err)
	return k
}

func (e *env) login() *sso.UserToken {
	e.t.Helper()
	tok, _, err := e.svc.Login(e.ctx, e.audit(), e.service, "user@example.com", userPassword)
	require.NoError(e.t, err)
	return tok
}

func TestLogin(t *testing.T) {
	e := newEnv(t)

	audit := e.audit()
	tok, meta, err := e.svc.Login(e.ctx, audit, e.service, " USER@example.com", userPassword)
	require.NoError(t, err)
	assert.Equal(t, e.user.ID, tok.User.ID)
	assert.NotEmpty(t, tok.AccessToken)
	assert.NotEmpty(t, tok.RefreshToken)
	assert.True(t, tok.RefreshTokenExpires.After(tok.AccessTokenExpires))
	assert.NotNil(t, meta.Strength)
	assert.Nil(t, meta.Pwned)
	assert.Equal(t, []sso.AuditSubject{
		{Kind: sso.AuditKindUser, ID: string(e.user.ID)},
		{Kind: sso.AuditKindUserKey, ID: string(e.tokenKey.ID)},
	}, audit.Trail())

	_, _, err = e.svc.Login(e.ctx, e.audit(), e.service, "user@example.com", "wrong")
	assert.True(t, sso.IsCode(err, sso.CodeUserPasswordIncorrect))

	_, _, err = e.svc.Login(e.ctx, e.audit(), e.service, "nobody@example.com", userPassword)
	assert.True(t, sso.IsCode(err, sso.CodeUserNotFound))

	// The user holds no token key for the second service.
	_, _, err = e.svc.Login(e.ctx, e.audit(), e.service2, "user@example.com", userPassword)
	assert.True(t, sso.IsCode(err, sso.CodeKeyNotFound))

	assert.Equal(t, []string{"ok", "SSO_USER_PASSWORD_INCORRECT", "SSO_USER_NOT_FOUND", "SSO_KEY_NOT_FOUND"}, e.ops.ops["login"])
}

func TestTokenRefreshIsSingleUse(t *testing.T) {
	e := newEnv(t)
	tok := e.login()

	refreshed, err := e.svc.TokenRefresh(e.ctx, e.audit(), e.service, tok.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, tok.RefreshToken, refreshed.RefreshToken)

	_, err = e.svc.TokenRefresh(e.ctx, e.audit(), e.service, tok.RefreshToken)
	assert.True(t, sso.IsCode(err, sso.CodeCsrfNotFoundOrUsed))

	_, err = e.svc.TokenRefresh(e.ctx, e.audit(), e.service, refreshed.RefreshToken)
	assert.NoError(t, err)
}

func TestTokenRefreshConcurrentSingleWinner(t *testing.T) {
	e := newEnv(t)
	tok := e.login()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.svc.TokenRefresh(e.ctx, e.audit(), e.service, tok.RefreshToken); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestTokenTypeConfusion(t *testing.T) {
	e := newEnv(t)
	tok := e.login()

	_, err := e.svc.TokenRefresh(e.ctx, e.audit(), e.service, tok.AccessToken)
	assert.True(t, sso.IsCode(err, sso.CodeJwtInvalidOrExpired))

	_, err = e.svc.TokenVerify(e.ctx, e.audit(), e.service, tok.RefreshToken)
	assert.True(t, sso.IsCode(err, sso.CodeJwtInvalidOrExpired))

	_, err = e.svc.ResetPasswordConfirm(e.ctx, e.audit(), e.service, tok.RefreshToken, "another-passphrase")
	assert.True(t, sso.IsCode(err, sso.CodeJwtInvalidOrExpired))
}

func TestTokenVerifyOtherService(t *testing.T) {
	e := newEnv(t)
	tok := e.login()
	e.userKey(e.service2, sso.KeyTypeToken)

	partial, err := e.svc.TokenVerify(e.ctx, e.audit(), e.service, tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, e.user.ID, partial.User.ID)
	assert.Equal(t, tok.AccessTokenExpires.Unix(), partial.AccessTokenExpires.Unix())

	_, err = e.svc.TokenVerify(e.ctx, e.audit(), e.service2, tok.AccessToken)
	assert.True(t, sso.IsCode(err, sso.CodeJwtInvalidOrExpired))

	_, err = e.svc.TokenVerify(e.ctx, e.audit(), e.service, "not-a-token")
	assert.True(t, sso.IsCode(err, sso.CodeJwtInvalidOrExpired))
}

func TestTokenVerifyExpired(t *testing.T) {
	e := newEnv(t)
	tok := e.login()

	later := NewService(e.driver, csrf.NewRegister(e.driver), password.NewEvaluator(), e.notifier, DefaultConfig(),
		WithCodec(token.NewCodec(token.WithClock(func() time.Time { return time.Now().Add(2 * time.Hour) }))))
	_, err := later.TokenVerify(e.ctx, e.audit(), e.service, tok.AccessToken)
	assert.True(t, sso.IsCode(err, sso.CodeJwtInvalidOrExpired))

	_, err = later.TokenRefresh(e.ctx, e.audit(), e.service, tok.RefreshToken)
	assert.NoError(t, err)
}

func TestTokenRevoke(t *testing.T) {
	e := newEnv(t)
	tok := e.login()

	require.NoError(t, e.svc.TokenRevoke(e.ctx, e.audit(), e.service, tok.RefreshToken))

	_, err := e.svc.TokenVerify(e.ctx, e.audit(), e.service, tok.AccessToken)
	assert.True(t, sso.IsCode(err, sso.CodeKeyRevoked))

	_, _, err = e.svc.Login(e.ctx, e.audit(), e.service, "user@example.com", userPassword)
	assert.True(t, sso.IsCode(err, sso.CodeKeyRevoked))

	// A fresh token key restores access.
	e.userKey(e.service, sso.KeyTypeToken)
	e.login()
}

func TestResetPassword(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, e.svc.ResetPassword(e.ctx, e.audit(), e.service, "user@example.com"))
	require.Len(t, e.notifier.resetPassword, 1)
	msg := e.notifier.resetPassword[0]
	assert.Equal(t, e.user.ID, msg.User.ID)
	assert.Equal(t, "test", msg.Audit.UserAgent)

	meta, err := e.svc.ResetPasswordConfirm(e.ctx, e.audit(), e.service, msg.Token, "a-brand-new-passphrase")
	require.NoError(t, err)
	assert.NotNil(t, meta.Strength)

	_, err = e.svc.ResetPasswordConfirm(e.ctx, e.audit(), e.service, msg.Token, "yet-another-passphrase")
	assert.True(t, sso.IsCode(err, sso.CodeCsrfNotFoundOrUsed))

	user, err := e.driver.UserRead(e.ctx, sso.UserRead{ID: e.user.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.PasswordRevision)

	_, _, err = e.svc.Login(e.ctx, e.audit(), e.service, "user@example.com", userPassword)
	assert.True(t, sso.IsCode(err, sso.CodeUserPasswordIncorrect))
	_, _, err = e.svc.Login(e.ctx, e.audit(), e.service, "user@example.com", "a-brand-new-passphrase")
	assert.NoError(t, err)
}

func TestResetPasswordConfirmRejectedPasswordKeepsToken(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.svc.ResetPassword(e.ctx, e.audit(), e.service, "user@example.com"))
	tok := e.notifier.resetPassword[0].Token

	// bcrypt refuses passwords over 72 bytes.
	_, err := e.svc.ResetPasswordConfirm(e.ctx, e.audit(), e.service, tok, strings.Repeat("x", 80))
	assert.True(t, sso.IsCode(err, sso.CodeInvalidRequest))
	_, err = e.svc.ResetPasswordConfirm(e.ctx, e.audit(), e.service, tok, "")
	assert.True(t, sso.IsCode(err, sso.CodeInvalidRequest))

	_, err = e.svc.ResetPasswordConfirm(e.ctx, e.audit(), e.service, tok, "a-valid-new-passphrase")
	require.NoError(t, err)
	_, _, err = e.svc.Login(e.ctx, e.audit(), e.service, "user@example.com", "a-valid-new-passphrase")
	assert.NoError(t, err)
}

func TestUpdatePasswordRejectedPasswordChangesNothing(t *testing.T) {
	e := newEnv(t)
	key := e.apiKey.Value

	_, err := e.svc.UpdatePassword(e.ctx, e.audit(), e.service, UpdatePasswordRequest{
		Credential:  Credential{Key: &key},
		Password:    userPassword,
		NewPassword: strings.Repeat("x", 80),
	})
	assert.True(t, sso.IsCode(err, sso.CodeInvalidRequest))
	assert.Empty(t, e.notifier.updatePassword)

	n, err := e.driver.CsrfDeleteExpired(e.ctx, time.Now().Add(365*24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)
	_, _, err = e.svc.Login(e.ctx, e.audit(), e.service, "user@example.com", userPassword)
	assert.NoError(t, err)
}

func TestResetPasswordOtherService(t *testing.T) {
	e := newEnv(t)
	e.userKey(e.service2, sso.KeyTypeToken)

	require.NoError(t, e.svc.ResetPassword(e.ctx, e.audit(), e.service, "user@example.com"))
	tok := e.notifier.resetPassword[0].Token

	_, err := e.svc.ResetPasswordConfirm(e.ctx, e.audit(), e.service2, tok, "a-brand-new-passphrase")
	assert.True(t, sso.IsCode(err, sso.CodeJwtInvalidOrExpired))

	// The failed attempt must not have consumed the entry.
	_, err = e.svc.ResetPasswordConfirm(e.ctx, e.audit(), e.service, tok, "a-brand-new-passphrase")
	assert.NoError(t, err)
}

func TestResetPasswordNotifyFailure(t *testing.T) {
	e := newEnv(t)
	e.notifier.err = errors.New("queue full")

	err := e.svc.ResetPassword(e.ctx, e.audit(), e.service, "user@example.com")
	assert.True(t, sso.IsCode(err, sso.CodeNotifySend))
}

func TestUpdateEmail(t *testing.T) {
	e := newEnv(t)
	tok := e.login()

	err := e.svc.UpdateEmail(e.ctx, e.audit(), e.service, UpdateEmailRequest{
		Credential: Credential{Token: &tok.AccessToken},
		Password:   userPassword,
		NewEmail:   "New@Example.com",
	})
	require.NoError(t, err)
	require.Len(t, e.notifier.updateEmail, 1)
	msg := e.notifier.updateEmail[0]
	assert.Equal(t, "user@example.com", msg.OldEmail)
	assert.Equal(t, "new@example.com", msg.User.Email)

	_, _, err = e.svc.Login(e.ctx, e.audit(), e.service, "new@example.com", userPassword)
	require.NoError(t, err)

	require.NoError(t, e.svc.UpdateEmailRevoke(e.ctx, e.audit(), e.service, msg.RevokeToken))

	user, err := e.driver.UserRead(e.ctx, sso.UserRead{ID: e.user.ID})
	require.NoError(t, err)
	assert.False(t, user.Enabled)

	k, err := e.driver.KeyRead(e.ctx, sso.KeyReadUserValue{ServiceID: e.service.ID, Value: e.apiKey.Value, Type: sso.KeyTypeKey})
	require.NoError(t, err)
	assert.True(t, k.Revoked)

	_, _, err = e.svc.Login(e.ctx, e.audit(), e.service, "new@example.com", userPassword)
	assert.True(t, sso.IsCode(err, sso.CodeUserDisabled))
}

func TestUpdateEmailWithKey(t *testing.T) {
	e := newEnv(t)
	key := e.apiKey.Value

	err := e.svc.UpdateEmail(e.ctx, e.audit(), e.service, UpdateEmailRequest{
		Credential: Credential{Key: &key},
		Password:   "wrong",
		NewEmail:   "new@example.com",
	})
	assert.True(t, sso.IsCode(err, sso.CodeUserPasswordIncorrect))
	assert.Empty(t, e.notifier.updateEmail)

	err = e.svc.UpdateEmail(e.ctx, e.audit(), e.service, UpdateEmailRequest{
		Password: userPassword,
		NewEmail: "new@example.com",
	})
	assert.True(t, sso.IsCode(err, sso.CodeInvalidRequest))
}

func TestUpdateEmailConflict(t *testing.T) {
	e := newEnv(t)
	_, _, err := e.svc.UserCreate(e.ctx, e.audit(), root, UserCreateRequest{Email: "taken@example.com"})
	require.NoError(t, err)
	key := e.apiKey.Value

	err = e.svc.UpdateEmail(e.ctx, e.audit(), e.service, UpdateEmailRequest{
		Credential: Credential{Key: &key},
		Password:   userPassword,
		NewEmail:   "taken@example.com",
	})
	assert.True(t, sso.IsCode(err, sso.CodeUserEmailConflict))
	assert.Empty(t, e.notifier.updateEmail)

	// No revoke entry was left behind by the failed update.
	n, err := e.driver.CsrfDeleteExpired(e.ctx, time.Now().Add(365*24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpdatePassword(t *testing.T) {
	e := newEnv(t)
	key := e.apiKey.Value

	meta, err := e.svc.UpdatePassword(e.ctx, e.audit(), e.service, UpdatePasswordRequest{
		Credential:  Credential{Key: &key},
		Password:    userPassword,
		NewPassword: "an-updated-passphrase",
	})
	require.NoError(t, err)
	assert.NotNil(t, meta.Strength)
	require.Len(t, e.notifier.updatePassword, 1)
	assert.Equal(t, int64(1), e.notifier.updatePassword[0].User.PasswordRevision)

	_, _, err = e.svc.Login(e.ctx, e.audit(), e.service, "user@example.com", "an-updated-passphrase")
	require.NoError(t, err)

	revoke := e.notifier.updatePassword[0].RevokeToken
	require.NoError(t, e.svc.UpdatePasswordRevoke(e.ctx, e.audit(), e.service, revoke))

	err = e.svc.UpdatePasswordRevoke(e.ctx, e.audit(), e.service, revoke)
	assert.True(t, sso.IsCode(err, sso.CodeCsrfNotFoundOrUsed))

	user, err := e.driver.UserRead(e.ctx, sso.UserRead{ID: e.user.ID})
	require.NoError(t, err)
	assert.False(t, user.Enabled)

	_, err = e.svc.KeyVerify(e.ctx, e.audit(), e.service, key)
	assert.True(t, sso.IsCode(err, sso.CodeKeyRevoked))
}

func TestKeyVerifyAndRevoke(t *testing.T) {
	e := newEnv(t)

	uk, err := e.svc.KeyVerify(e.ctx, e.audit(), e.service, e.apiKey.Value)
	require.NoError(t, err)
	assert.Equal(t, e.user.ID, uk.User.ID)
	assert.Equal(t, e.apiKey.ID, uk.Key.ID)

	_, err = e.svc.KeyVerify(e.ctx, e.audit(), e.service2, e.apiKey.Value)
	assert.True(t, sso.IsCode(err, sso.CodeKeyNotFound))

	_, err = e.svc.KeyVerify(e.ctx, e.audit(), e.service, e.tokenKey.Value)
	assert.True(t, sso.IsCode(err, sso.CodeKeyNotFound))

	require.NoError(t, e.svc.KeyRevoke(e.ctx, e.audit(), e.service, e.apiKey.Value))
	require.NoError(t, e.svc.KeyRevoke(e.ctx, e.audit(), e.service, e.apiKey.Value))

	_, err = e.svc.KeyVerify(e.ctx, e.audit(), e.service, e.apiKey.Value)
	assert.True(t, sso.IsCode(err, sso.CodeKeyRevoked))
}

func TestTotpVerify(t *testing.T) {
	e := newEnv(t)
	k := e.userKey(e.service, sso.KeyTypeTotp)

	code, err := totp.NewVerifier().Generate(k.Value)
	require.NoError(t, err)
	require.NoError(t, e.svc.TotpVerify(e.ctx, e.audit(), e.service, e.user.ID, code))

	wrong := "000000"
	if code == wrong {
		wrong = "999999"
	}
	err = e.svc.TotpVerify(e.ctx, e.audit(), e.service, e.user.ID, wrong)
	assert.True(t, sso.IsCode(err, sso.CodeTotpInvalid))

	err = e.svc.TotpVerify(e.ctx, e.audit(), e.service2, e.user.ID, code)
	assert.True(t, sso.IsCode(err, sso.CodeKeyNotFound))
}

func TestCsrf(t *testing.T) {
	e := newEnv(t)

	entry, err := e.svc.CsrfCreate(e.ctx, e.audit(), e.service, 0)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), entry.ExpiresAt, time.Minute)

	err = e.svc.CsrfVerify(e.ctx, e.audit(), e.service2, entry.Key)
	assert.True(t, sso.IsCode(err, sso.CodeCsrfNotFoundOrUsed))

	// A foreign service cannot burn the entry.
	require.NoError(t, e.svc.CsrfVerify(e.ctx, e.audit(), e.service, entry.Key))

	entry, err = e.svc.CsrfCreate(e.ctx, e.audit(), e.service, time.Minute)
	require.NoError(t, err)
	require.NoError(t, e.svc.CsrfVerify(e.ctx, e.audit(), e.service, entry.Key))
	err = e.svc.CsrfVerify(e.ctx, e.audit(), e.service, entry.Key)
	assert.True(t, sso.IsCode(err, sso.CodeCsrfNotFoundOrUsed))
}
