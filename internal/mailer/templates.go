package mailer

import (
	"bytes"
	"html/template"
)

var (
	resetOTPTemplate = template.Must(template.New("reset_otp").Parse(
		`<p>Hello {{.Name}},</p><p>Your password reset code is <b>{{.Code}}</b>. It expires in {{.TTL}}.</p>`))
	resetLinkTemplate = template.Must(template.New("reset_link").Parse(
		`<p>Hello {{.Name}},</p><p>Follow <a href="{{.Link}}">this link</a> to reset your password. It expires in {{.TTL}}.</p>`))
	registrationTemplate = template.Must(template.New("registration").Parse(
		`<p>Hello {{.Name}},</p><p>An account with role {{.Role}} was created for {{.Email}}. Sign in at <a href="{{.Link}}">{{.Link}}</a>.</p>`))
	taskUpdateTemplate = template.Must(template.New("task_update").Parse(
		`<p>Task <b>{{.Title}}</b> ({{.TaskID}}): {{.Summary}}.</p>{{if .Comment}}<p>Comment: {{.Comment}}</p>{{end}}`))
)

type ResetOTPData struct {
	Name string
	Code string
	TTL  string
}

type ResetLinkData struct {
	Name string
	Link string
	TTL  string
}

type RegistrationData struct {
	Name  string
	Email string
	Role  string
	Link  string
}

type TaskUpdateData struct {
	TaskID  string
	Title   string
	Summary string
	Comment string
}

func ResetOTP(to string, data ResetOTPData) (Message, error) {
	return render(to, "Password reset code", resetOTPTemplate, data)
}

func ResetLink(to string, data ResetLinkData) (Message, error) {
	return render(to, "Password reset", resetLinkTemplate, data)
}

func Registration(to string, data RegistrationData) (Message, error) {
	return render(to, "Your account has been created", registrationTemplate, data)
}

func TaskUpdate(to string, data TaskUpdateData) (Message, error) {
	return render(to, "Task update: "+data.Title, taskUpdateTemplate, data)
}

func render(to, subject string, tpl *template.Template, data interface{}) (Message, error) {
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: subject, Body: buf.String()}, nil
}
