package account

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"github.com/nerrad567/gray-logic-accounts/internal/mail"
)

// API routes quoted in mail when no web origin is known.
const (
	routeVerifyEmail   = "/api/v1/accounts/verify-email"
	routeResetPassword = "/api/v1/accounts/reset-password"
	routeForgot        = "/api/v1/accounts/forgot-password"
)

// Subjects of outgoing mail.
const (
	subjectVerify            = "Sign-up Verification - Verify Email"
	subjectAlreadyRegistered = "Sign-up Verification - Email Already Registered"
	subjectReset             = "Sign-up Verification - Reset Password"
)

var mailTemplates = template.Must(template.New("mail").Parse(`
{{define "verify"}}<h4>Verify Email</h4>
<p>Thanks for registering!</p>
{{if .Link}}<p>Please click the below link to verify your email address:</p>
<p><a href="{{.Link}}">{{.Link}}</a></p>
{{else}}<p>Please use the below token to verify your email address with the <code>{{.Route}}</code> api route:</p>
<p><code>{{.Token}}</code></p>
{{end}}{{end}}

{{define "already-registered"}}<h4>Email Already Registered</h4>
<p>Your email <strong>{{.Email}}</strong> is already registered.</p>
{{if .Link}}<p>If you don't know your password please visit the <a href="{{.Link}}">forgot password</a> page.</p>
{{else}}<p>If you don't know your password you can reset it via the <code>{{.Route}}</code> api route.</p>
{{end}}{{end}}

{{define "reset"}}<h4>Reset Password Email</h4>
{{if .Link}}<p>Please click the below link to reset your password, the link will be valid for {{.Validity}}:</p>
<p><a href="{{.Link}}">{{.Link}}</a></p>
{{else}}<p>Please use the below token to reset your password with the <code>{{.Route}}</code> api route. It is valid for {{.Validity}}:</p>
<p><code>{{.Token}}</code></p>
{{end}}{{end}}
`))

type mailData struct {
	Email    string
	Token    string
	Link     string
	Route    string
	Validity string
}

// verificationMessage builds the mail sent after a fresh registration.
func verificationMessage(to, token, origin string) (mail.Message, error) {
	data := mailData{Token: token, Route: routeVerifyEmail}
	if origin != "" {
		data.Link = originLink(origin, "/account/verify-email", token)
	}
	return render(to, subjectVerify, "verify", data)
}

// alreadyRegisteredMessage builds the mail sent when someone registers with
// an address that already has an account.
func alreadyRegisteredMessage(to, origin string) (mail.Message, error) {
	data := mailData{Email: to, Route: routeForgot}
	if origin != "" {
		data.Link = originLink(origin, "/account/forgot-password", "")
	}
	return render(to, subjectAlreadyRegistered, "already-registered", data)
}

// resetMessage builds the forgot-password mail.
func resetMessage(to, token, origin, validity string) (mail.Message, error) {
	data := mailData{Token: token, Route: routeResetPassword, Validity: validity}
	if origin != "" {
		data.Link = originLink(origin, "/account/reset-password", token)
	}
	return render(to, subjectReset, "reset", data)
}

func render(to, subject, name string, data mailData) (mail.Message, error) {
	var buf bytes.Buffer
	if err := mailTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return mail.Message{}, fmt.Errorf("rendering %s mail: %w", name, err)
	}
	return mail.Message{To: to, Subject: subject, HTML: strings.TrimSpace(buf.String())}, nil
}

func originLink(origin, path, token string) string {
	link := strings.TrimRight(origin, "/") + path
	if token != "" {
		link += "?token=" + url.QueryEscape(token)
	}
	return link
}
