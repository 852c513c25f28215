package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"
)

// 邮件主题，对外兼容面，勿随意修改
const (
	SubjectRegistration    = "Visitor Registration Confirmation"
	SubjectApproval        = "Visitor Request Approved - Gate Pass Attached"
	SubjectRejection       = "Visitor Request Update"
	SubjectApprovalRequest = "New Visitor Approval Request"
)

type emailTemplate struct {
	subject string
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

type emailData struct {
	Name           string
	Visitor        VisitorSummary
	Reason         string
	GatePassNumber string
	QRPayload      string
	ValidUntil     string
	Link           string
	DashboardURL   string
}

// Renderer 将邮件事件渲染为 Message
type Renderer struct {
	frontendURL string
	loc         *time.Location
	templates   map[Kind]emailTemplate
}

// NewRenderer frontendURL 用于拼接通行证下载链接
func NewRenderer(frontendURL string, loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	r := &Renderer{
		frontendURL: strings.TrimRight(frontendURL, "/"),
		loc:         loc,
		templates:   make(map[Kind]emailTemplate),
	}
	r.add(KindRegistrationEmail, SubjectRegistration, registrationText, registrationHTML)
	r.add(KindApprovalEmail, SubjectApproval, approvalText, approvalHTML)
	r.add(KindRejectionEmail, SubjectRejection, rejectionText, rejectionHTML)
	r.add(KindApprovalRequestEmail, SubjectApprovalRequest, approvalRequestText, approvalRequestHTML)
	return r
}

func (r *Renderer) add(kind Kind, subject, text, html string) {
	r.templates[kind] = emailTemplate{
		subject: subject,
		text:    texttemplate.Must(texttemplate.New(string(kind)).Parse(text)),
		html:    htmltemplate.Must(htmltemplate.New(string(kind)).Parse(html)),
	}
}

// Render 非邮件事件返回错误
func (r *Renderer) Render(e Event) (Message, error) {
	tpl, ok := r.templates[e.Kind]
	if !ok {
		return Message{}, fmt.Errorf("no email template for %q", e.Kind)
	}

	data := emailData{
		Name:         e.Audience.Name,
		Visitor:      e.Visitor,
		Reason:       e.Reason,
		DashboardURL: r.frontendURL + "/dashboard",
	}
	if e.Credential != nil {
		data.GatePassNumber = e.Credential.Number
		data.QRPayload = e.Credential.QRPayload
		data.ValidUntil = e.Credential.ValidUntil.In(r.loc).Format("02 Jan 2006 15:04 MST")
		data.Link = r.frontendURL + "/gate-pass/" + e.Credential.Number
	}

	var text, html bytes.Buffer
	if err := tpl.text.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("render %s text: %w", e.Kind, err)
	}
	if err := tpl.html.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render %s html: %w", e.Kind, err)
	}

	return Message{
		To:      e.Audience.Email,
		ToName:  e.Audience.Name,
		Subject: tpl.subject,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

const registrationText = `Dear {{.Name}},

Your visit request for {{.Visitor.VisitDate}} has been received and is awaiting approval{{if .Visitor.HostName}} from {{.Visitor.HostName}}{{end}}.
You will receive another email once it has been reviewed.

SafePass`

const registrationHTML = `<p>Dear {{.Name}},</p>
<p>Your visit request for <b>{{.Visitor.VisitDate}}</b> has been received and is awaiting approval{{if .Visitor.HostName}} from {{.Visitor.HostName}}{{end}}.</p>
<p>You will receive another email once it has been reviewed.</p>
<p>SafePass</p>`

const approvalText = `Dear {{.Name}},

Your visit on {{.Visitor.VisitDate}} has been approved.

Gate pass number: {{.GatePassNumber}}
Valid until: {{.ValidUntil}}
Download your gate pass: {{.Link}}

Verification code:
{{.QRPayload}}

Present the gate pass at the security desk on arrival.

SafePass`

const approvalHTML = `<p>Dear {{.Name}},</p>
<p>Your visit on <b>{{.Visitor.VisitDate}}</b> has been approved.</p>
<table>
<tr><td>Gate pass number</td><td><b>{{.GatePassNumber}}</b></td></tr>
<tr><td>Valid until</td><td>{{.ValidUntil}}</td></tr>
</table>
<p><a href="{{.Link}}">Download your gate pass</a></p>
<p style="font-family:monospace;word-break:break-all">{{.QRPayload}}</p>
<p>Present the gate pass at the security desk on arrival.</p>
<p>SafePass</p>`

const rejectionText = `Dear {{.Name}},

We regret to inform you that your visit request for {{.Visitor.VisitDate}} could not be approved.{{if .Reason}}
Reason: {{.Reason}}{{end}}

SafePass`

const rejectionHTML = `<p>Dear {{.Name}},</p>
<p>We regret to inform you that your visit request for <b>{{.Visitor.VisitDate}}</b> could not be approved.</p>
{{if .Reason}}<p>Reason: {{.Reason}}</p>{{end}}
<p>SafePass</p>`

const approvalRequestText = `Dear {{.Name}},

{{.Visitor.Name}} has requested to visit you on {{.Visitor.VisitDate}}.
Review the request: {{.DashboardURL}}

SafePass`

const approvalRequestHTML = `<p>Dear {{.Name}},</p>
<p><b>{{.Visitor.Name}}</b> has requested to visit you on <b>{{.Visitor.VisitDate}}</b>.</p>
<p><a href="{{.DashboardURL}}">Review the request</a></p>
<p>SafePass</p>`
