package authinfra

import "github.com/mojzu/mz/pkg/notifx"

const (
	TemplateResetPassword  = "reset_password"
	TemplateUpdateEmail    = "update_email"
	TemplateUpdatePassword = "update_password"
)

// emailData is passed to every template.
type emailData struct {
	ServiceName string
	UserName    string
	Email       string
	OldEmail    string
	URL         string
	Token       string
	Remote      string
	UserAgent   string
}

var defaultTemplates = map[string]notifx.EmailTemplate{
	TemplateResetPassword: {
		Subject: "{{.ServiceName}}: Reset password request",
		Text: `Hi {{.UserName}},

A password reset was requested for {{.Email}} from {{.Remote}} ({{.UserAgent}}).

Open the link below to choose a new password:
{{.URL}}

If you did not request this you can ignore this email.
`,
		HTML: `<p>Hi {{.UserName}},</p>
<p>A password reset was requested for {{.Email}} from {{.Remote}} ({{.UserAgent}}).</p>
<p><a href="{{.URL}}">Choose a new password</a></p>
<p>If you did not request this you can ignore this email.</p>
`,
	},
	TemplateUpdateEmail: {
		Subject: "{{.ServiceName}}: Email address changed",
		Text: `Hi {{.UserName}},

The email address of your account was changed from {{.OldEmail}} to {{.Email}} from {{.Remote}} ({{.UserAgent}}).

If you did not make this change, open the link below to lock your account:
{{.URL}}
`,
		HTML: `<p>Hi {{.UserName}},</p>
<p>The email address of your account was changed from {{.OldEmail}} to {{.Email}} from {{.Remote}} ({{.UserAgent}}).</p>
<p>If you did not make this change, <a href="{{.URL}}">lock your account</a>.</p>
`,
	},
	TemplateUpdatePassword: {
		Subject: "{{.ServiceName}}: Password changed",
		Text: `Hi {{.UserName}},

The password of your account {{.Email}} was changed from {{.Remote}} ({{.UserAgent}}).

If you did not make this change, open the link below to lock your account:
{{.URL}}
`,
		HTML: `<p>Hi {{.UserName}},</p>
<p>The password of your account {{.Email}} was changed from {{.Remote}} ({{.UserAgent}}).</p>
<p>If you did not make this change, <a href="{{.URL}}">lock your account</a>.</p>
`,
	},
}

// RegisterTemplates adds the notification templates to client.
func RegisterTemplates(client *notifx.Client) error {
	for name, t := range defaultTemplates {
		if err := client.RegisterTemplate(name, t); err != nil {
			return err
		}
	}
	return nil
}
