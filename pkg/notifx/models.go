package notifx

// EmailMessage is a rendered email ready for a provider.
type EmailMessage struct {
	From     string   `json:"from"`
	To       []string `json:"to"`
	ReplyTo  string   `json:"reply_to,omitempty"`
	Subject  string   `json:"subject"`
	TextBody string   `json:"text_body,omitempty"`
	HTMLBody string   `json:"html_body,omitempty"`
	// Tags are passed to providers that support message tagging.
	Tags map[string]string `json:"tags,omitempty"`
}

// EmailTemplate is the source of one kind of email. Subject and Text are
// text/templates and HTML is an html/template.
type EmailTemplate struct {
	Subject string
	Text    string
	HTML    string
}

// Rendered is the output of a template.
type Rendered struct {
	Subject  string
	TextBody string
	HTMLBody string
}
