// internal/workers/application/send-notification/templates.go
package sendnotification

import (
	"bytes"
	"fmt"
	"text/template"
)

type messageTemplate struct {
	subject *template.Template
	body    *template.Template
	sms     *template.Template
}

type rawTemplate struct {
	subject, body, sms string
}

var builtinTemplates = map[string]rawTemplate{
	TypeApplicationSubmitted: {
		subject: "GACP application {{.applicationNo}} received",
		body: "Dear {{.applicantName}},\n\nYour GACP certification application {{.applicationNo}} " +
			"for {{.plantId}} has been received and is waiting for document review.\n",
		sms: "GACP: application {{.applicationNo}} received.",
	},
	TypeRevisionRequired: {
		subject: "GACP application {{.applicationNo}} needs revision",
		body: "Dear {{.applicantName}},\n\nThe reviewer asked for changes to application {{.applicationNo}}." +
			"{{with .note}}\n\nReviewer note: {{.}}{{end}}\n",
		sms: "GACP: application {{.applicationNo}} needs revision. Please check your email.",
	},
	TypePaymentPending: {
		subject: "GACP application {{.applicationNo}}: payment due",
		body: "Dear {{.applicantName}},\n\nA payment{{with .amount}} of {{.}} THB{{end}} is due for " +
			"application {{.applicationNo}}.{{with .invoiceNo}} Invoice: {{.}}.{{end}}\n",
		sms: "GACP: payment due for application {{.applicationNo}}.",
	},
	TypePaymentVerified: {
		subject: "GACP application {{.applicationNo}}: payment confirmed",
		body:    "Dear {{.applicantName}},\n\nYour payment for application {{.applicationNo}} has been verified.\n",
		sms:     "GACP: payment confirmed for {{.applicationNo}}.",
	},
	TypeAuditScheduled: {
		subject: "GACP application {{.applicationNo}}: audit scheduled",
		body: "Dear {{.applicantName}},\n\nAn {{with .auditMode}}{{.}} {{end}}audit for application " +
			"{{.applicationNo}} is scheduled{{with .auditDate}} on {{.}}{{end}}.\n",
		sms: "GACP: audit scheduled for {{.applicationNo}}{{with .auditDate}} on {{.}}{{end}}.",
	},
	TypeCertificateIssued: {
		subject: "GACP certificate issued for {{.applicationNo}}",
		body: "Dear {{.applicantName}},\n\nCongratulations. The GACP certificate for application " +
			"{{.applicationNo}} has been issued.{{with .certificateNo}} Certificate number: {{.}}.{{end}}\n",
		sms: "GACP: certificate issued for {{.applicationNo}}.",
	},
	TypeApplicationRejected: {
		subject: "GACP application {{.applicationNo}} was not approved",
		body: "Dear {{.applicantName}},\n\nApplication {{.applicationNo}} was not approved." +
			"{{with .note}}\n\nReason: {{.}}{{end}}\n",
		sms: "GACP: application {{.applicationNo}} was not approved.",
	},
}

func parseTemplates() (map[string]messageTemplate, error) {
	out := make(map[string]messageTemplate, len(builtinTemplates))
	for name, raw := range builtinTemplates {
		var (
			mt  messageTemplate
			err error
		)
		if mt.subject, err = parse(name+".subject", raw.subject); err != nil {
			return nil, err
		}
		if mt.body, err = parse(name+".body", raw.body); err != nil {
			return nil, err
		}
		if mt.sms, err = parse(name+".sms", raw.sms); err != nil {
			return nil, err
		}
		out[name] = mt
	}
	return out, nil
}

func parse(name, text string) (*template.Template, error) {
	t, err := template.New(name).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	return t, nil
}

func render(t *template.Template, data map[string]interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
