package services

import (
	"html"
	"regexp"
	"strings"

	"github.com/BradenHooton/subsignature/internal/models"
)

const NotificationSubject = "Your New Email Signature"

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9_\-]`)
	phoneNoise          = regexp.MustCompile(`[^0-9+]`)
	htmlTags            = regexp.MustCompile(`<[^>]*>`)
)

// RenderSignature substitutes the record's fields into the template's placeholders.
// Values are HTML-escaped; placeholders the record has no field for are left untouched.
// Dispatch and preview both render through here.
func RenderSignature(tpl string, sig *models.Signature) string {
	r := strings.NewReplacer(
		"{{NAME}}", html.EscapeString(sig.Name),
		"{{ROLE}}", html.EscapeString(sig.Role),
		"{{EMAIL}}", html.EscapeString(sig.Email),
		"{{PHONE_CLEAN}}", phoneNoise.ReplaceAllString(sig.Phone, ""),
		"{{PHONE}}", html.EscapeString(sig.Phone),
	)
	return r.Replace(tpl)
}

// AttachmentFilename derives "<safe_name>_<template>" from a display name, e.g.
// "John Doe" + "signature_default.html" -> "John_Doe_signature_default.html"
func AttachmentFilename(displayName, templateName string) string {
	safe := strings.ReplaceAll(displayName, " ", "_")
	safe = unsafeFilenameChars.ReplaceAllString(safe, "")
	return safe + "_" + templateName
}

// NotificationBody is the HTML message wrapped around a rendered signature
func NotificationBody(sig *models.Signature, attachment, rendered string) string {
	var b strings.Builder
	b.WriteString("<h3>Hello " + html.EscapeString(sig.Name) + ",</h3>")
	b.WriteString("<p>Your new signature is attached as <strong>" + html.EscapeString(attachment) + "</strong>.</p>")
	b.WriteString("<p>Please open the attachment in your browser, copy everything (Ctrl+A, Ctrl+C), " +
		"and paste it into your email signature settings.</p>")
	b.WriteString("<hr><h4>Preview:</h4>")
	b.WriteString("<div style='border:1px dashed #ccc; padding:10px;'>" + rendered + "</div>")
	return b.String()
}

// PlainText is a tag-stripped fallback for clients that do not render HTML
func PlainText(body string) string {
	return html.UnescapeString(htmlTags.ReplaceAllString(body, ""))
}

// BuildNotification assembles the message for one signature record
func BuildNotification(sig *models.Signature, tpl string) Message {
	rendered := RenderSignature(tpl, sig)
	name := AttachmentFilename(sig.Name, sig.Template)
	body := NotificationBody(sig, name, rendered)

	return Message{
		To:       sig.Email,
		Subject:  NotificationSubject,
		HTMLBody: body,
		TextBody: PlainText(body),
		Attachments: []Attachment{
			{Name: name, Content: []byte(rendered), ContentType: "text/html"},
		},
	}
}
