package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	texttemplate "text/template"

	"casewatch/api_outliers/internal/cases"
)

// Subject is the subject line of the batch alert email.
const Subject = "TWFL WAF Outlier Cases Alert"

const (
	heading = "TWFL WAF Outlier Cases Alert"
	intro   = "Your attention is needed on the case , currently at TWFL >  3.5-days threshold for WAF. " +
		"Quick review and next steps implementation would help maintain our service quality and customer satisfaction:"
	footer = "Note: Click on the Case ID numbers above to view the cases in Command Center."
)

// Columns is the fixed column order shared by every tabular rendering.
var Columns = []string{"Case ID", "Agent Login", "Ops Site", "Total Time", "Status Code"}

// FormatDuration renders a total time with exactly one fractional digit.
func FormatDuration(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

type documentData struct {
	Heading string
	Intro   string
	Footer  string
	Columns []string
	Cases   []cases.CaseRecord
}

func newDocumentData(records []cases.CaseRecord) documentData {
	return documentData{
		Heading: heading,
		Intro:   intro,
		Footer:  footer,
		Columns: Columns,
		Cases:   records,
	}
}

var (
	htmlTemplate = template.Must(template.New("outlier_email").
		Funcs(template.FuncMap{"duration": FormatDuration}).
		Parse(outlierEmailTemplate))
	textTemplate = texttemplate.Must(texttemplate.New("outlier_digest").
		Funcs(texttemplate.FuncMap{"duration": FormatDuration}).
		Parse(outlierDigestTemplate))
)

// HTML renders the alert email document. Field values are escaped.
func HTML(records []cases.CaseRecord) (string, error) {
	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, newDocumentData(records)); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}

// Text renders the plain-text digest, one block per case.
func Text(records []cases.CaseRecord) (string, error) {
	var buf bytes.Buffer
	if err := textTemplate.Execute(&buf, newDocumentData(records)); err != nil {
		return "", fmt.Errorf("render text: %w", err)
	}
	return buf.String(), nil
}

const outlierEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Heading}}</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <h2 style="color: #2c3e50;">{{.Heading}}</h2>
    <p>{{.Intro}}</p>
    <table style="border-collapse: collapse; width: 100%; margin-top: 20px;">
        <tr style="background-color: #f2f2f2;">
{{- range .Columns}}
            <th style="border: 1px solid #ddd; padding: 8px; text-align: left;">{{.}}</th>
{{- end}}
        </tr>
{{- range .Cases}}
        <tr>
            <td style="border: 1px solid #ddd; padding: 8px;"><a href="{{.CaseURL}}" style="color: #0066c0; text-decoration: none;">{{.CaseID}}</a></td>
            <td style="border: 1px solid #ddd; padding: 8px;">{{.AgentLogin}}</td>
            <td style="border: 1px solid #ddd; padding: 8px;">{{.OpsSite}}</td>
            <td style="border: 1px solid #ddd; padding: 8px;">{{duration .TotalTime}}</td>
            <td style="border: 1px solid #ddd; padding: 8px;">{{.StatusCode}}</td>
        </tr>
{{- end}}
    </table>
    <p style="margin-top: 20px; color: #666; font-size: 12px;">{{.Footer}}</p>
</body>
</html>
`

const outlierDigestTemplate = `{{.Heading}}

{{.Intro}}

{{range .Cases -}}
Case ID: {{.CaseID}} - {{.CaseURL}}
Agent: {{.AgentLogin}}, Site: {{.OpsSite}}, Time: {{duration .TotalTime}}s

{{end -}}
{{.Footer}}
`
