// Package totp verifies time based one time passwords.
package totp

import (
	"encoding/base32"
	"strings"
	"time"

	"github.com/mojzu/mz/pkg/sso"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// DefaultOpts are RFC 6238 defaults with one step of skew either side.
var DefaultOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

type Verifier struct {
	opts totp.ValidateOpts
	now  func() time.Time
}

type Option func(*Verifier)

func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

func NewVerifier(opts ...Option) *Verifier {
	v := &Verifier{opts: DefaultOpts, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks code against a base32 secret. A malformed secret is reported
// as TotpSecretInvalid, distinct from a wrong code.
func (v *Verifier) Verify(secret, code string) error {
	secret = normalize(secret)
	if _, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(secret); err != nil || secret == "" {
		return sso.ErrTotpSecretInvalid(err)
	}
	ok, err := totp.ValidateCustom(strings.TrimSpace(code), secret, v.now().UTC(), v.opts)
	if err != nil || !ok {
		return sso.ErrTotpInvalid()
	}
	return nil
}

// Generate returns the current code for secret.
func (v *Verifier) Generate(secret string) (string, error) {
	code, err := totp.GenerateCodeCustom(normalize(secret), v.now().UTC(), v.opts)
	if err != nil {
		return "", sso.ErrTotpSecretInvalid(err)
	}
	return code, nil
}

// NewSecret returns a random base32 secret suitable for a TOTP key.
func NewSecret(issuer, account string) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      uint(DefaultOpts.Period),
		Digits:      DefaultOpts.Digits,
		Algorithm:   DefaultOpts.Algorithm,
	})
	if err != nil {
		return "", err
	}
	return key.Secret(), nil
}

func normalize(secret string) string {
	return strings.TrimRight(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(secret), " ", "")), "=")
}
