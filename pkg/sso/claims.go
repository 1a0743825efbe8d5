package sso

// ClaimType is carried inside every token and names the flow the token is
// valid for. Decoding always checks it.
type ClaimType string

const (
	ClaimAccessToken               ClaimType = "access_token"
	ClaimRefreshToken              ClaimType = "refresh_token"
	ClaimResetPasswordToken        ClaimType = "reset_password_token"
	ClaimUpdateEmailRevokeToken    ClaimType = "update_email_revoke_token"
	ClaimUpdatePasswordRevokeToken ClaimType = "update_password_revoke_token"
)

func (c ClaimType) Valid() bool {
	switch c {
	case ClaimAccessToken, ClaimRefreshToken, ClaimResetPasswordToken,
		ClaimUpdateEmailRevokeToken, ClaimUpdatePasswordRevokeToken:
		return true
	}
	return false
}

// CsrfBound reports whether tokens of this type embed a CSRF key.
func (c ClaimType) CsrfBound() bool {
	return c.Valid() && c != ClaimAccessToken
}
