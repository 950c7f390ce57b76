package notifxses

import "github.com/Abraxas-365/auralis/pkg/errx"

var sesErrors = errx.NewRegistry("NOTIFX_SES")

var (
	ErrSendFailed = sesErrors.Register("SEND_FAILED", errx.TypeExternal, 500, "SES send email failed")
)
