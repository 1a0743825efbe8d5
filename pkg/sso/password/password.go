// Package password produces advisory metadata about passwords and hashes
// them for storage.
package password

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"github.com/mojzu/mz/pkg/asyncx"
	"github.com/mojzu/mz/pkg/logx"
	"github.com/mojzu/mz/pkg/ptrx"
	"github.com/mojzu/mz/pkg/sso"
	"github.com/nbutton23/zxcvbn-go"
)

// PwnedClient fetches the k-anonymity range for a 5 character SHA-1 prefix.
// The body is newline separated SUFFIX:COUNT records.
type PwnedClient interface {
	Range(ctx context.Context, prefix string) (string, error)
}

// Observer receives the outcome of each pwned lookup: "pwned", "clean",
// "error" or "disabled".
type Observer interface {
	PwnedLookup(result string)
}

type Option func(*Evaluator)

// WithPwned enables the pwned corpus check through client.
func WithPwned(client PwnedClient) Option {
	return func(e *Evaluator) { e.pwned = client }
}

func WithObserver(o Observer) Option {
	return func(e *Evaluator) { e.observer = o }
}

// Evaluator computes sso.UserPasswordMeta. It never fails the caller.
type Evaluator struct {
	pwned    PwnedClient
	observer Observer
}

func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Meta scores password and checks it against the pwned corpus concurrently.
// A nil password yields empty metadata.
func (e *Evaluator) Meta(ctx context.Context, password *string) sso.UserPasswordMeta {
	if password == nil {
		return sso.UserPasswordMeta{}
	}
	pw := *password

	strength := asyncx.Run(ctx, func(context.Context) (int, error) {
		return Strength(pw)
	})
	pwned := asyncx.Run(ctx, func(ctx context.Context) (bool, error) {
		return e.Pwned(ctx, pw)
	})

	var meta sso.UserPasswordMeta
	if score, err := strength.Await(ctx); err != nil {
		logx.WithError(err).Warn("password strength unavailable")
	} else {
		meta.Strength = ptrx.Of(score)
	}

	found, err := pwned.Await(ctx)
	switch {
	case err == nil:
		meta.Pwned = ptrx.Of(found)
		if found {
			e.observe("pwned")
		} else {
			e.observe("clean")
		}
	case sso.IsCode(err, sso.CodePwnedDisabled):
		e.observe("disabled")
	default:
		logx.WithError(err).Warn("pwned passwords lookup failed")
		e.observe("error")
	}
	return meta
}

func (e *Evaluator) observe(result string) {
	if e.observer != nil {
		e.observer.PwnedLookup(result)
	}
}

// Strength returns the zxcvbn score of password, 0 to 4.
func Strength(password string) (int, error) {
	if strings.TrimSpace(password) == "" {
		return 0, sso.ErrInvalidRequest("password is blank")
	}
	return zxcvbn.PasswordStrength(password, nil).Score, nil
}

// Pwned reports whether password appears in the pwned corpus. Only the
// first five hex characters of its SHA-1 digest leave the process.
func (e *Evaluator) Pwned(ctx context.Context, password string) (bool, error) {
	if e.pwned == nil {
		return false, sso.ErrPwnedDisabled()
	}
	sum := sha1.Sum([]byte(password))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix, suffix := digest[:5], digest[5:]

	body, err := e.pwned.Range(ctx, prefix)
	if err != nil {
		return false, err
	}
	return rangeContains(body, suffix), nil
}

func rangeContains(body, suffix string) bool {
	for _, line := range strings.Split(body, "\n") {
		candidate, _, _ := strings.Cut(strings.TrimSpace(line), ":")
		if strings.EqualFold(candidate, suffix) {
			return true
		}
	}
	return false
}
