package notifxses

import "github.com/mojzu/mz/pkg/errx"

var sesErrors = errx.NewRegistry("NOTIFX_SES")

var (
	ErrSendFailed = sesErrors.Register("SEND_FAILED", errx.TypeExternal, 500, "SES send email failed")
	ErrConfig     = sesErrors.Register("CONFIG", errx.TypeInternal, 500, "SES client could not be configured")
)
