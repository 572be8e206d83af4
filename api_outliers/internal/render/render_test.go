package render

import (
	"encoding/json"
	"slices"
	"strings"
	"testing"

	"casewatch/api_outliers/internal/cases"
)

func sampleRecords() []cases.CaseRecord {
	return []cases.CaseRecord{
		{CaseID: "C-2", CaseURL: "https://cc.example.com/C-2", AgentLogin: "bob", OpsSite: "DUB", TotalTime: 4, StatusCode: "PMA"},
		{CaseID: "C-3", CaseURL: "https://cc.example.com/C-3", AgentLogin: "carol", OpsSite: "IAD", TotalTime: 9.94, StatusCode: "RES"},
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[float64]string{
		4:       "4.0",
		4.2:     "4.2",
		9.96:    "10.0",
		3.51:    "3.5",
		123.456: "123.5",
	}
	for in, want := range tests {
		if got := FormatDuration(in); got != want {
			t.Errorf("FormatDuration(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestHTMLTable(t *testing.T) {
	out, err := HTML(sampleRecords())
	if err != nil {
		t.Fatalf("render html: %v", err)
	}

	for _, want := range []string{
		"<h2 style=\"color: #2c3e50;\">TWFL WAF Outlier Cases Alert</h2>",
		`<a href="https://cc.example.com/C-2" style="color: #0066c0; text-decoration: none;">C-2</a>`,
		">4.0</td>",
		">9.9</td>",
		"Note: Click on the Case ID numbers above to view the cases in Command Center.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected html to contain %q", want)
		}
	}

	last := -1
	for _, col := range Columns {
		idx := strings.Index(out, ">"+col+"</th>")
		if idx <= last {
			t.Errorf("column %q out of order", col)
		}
		last = idx
	}
	if strings.Index(out, ">C-2</a>") > strings.Index(out, ">C-3</a>") {
		t.Errorf("expected C-2 before C-3")
	}
}

func TestHTMLEscapesFieldValues(t *testing.T) {
	records := []cases.CaseRecord{{
		CaseID:     "<script>alert(1)</script>",
		CaseURL:    "javascript:alert(1)",
		AgentLogin: "o'neil & co",
		OpsSite:    "<b>SEA</b>",
		TotalTime:  5,
		StatusCode: "WIP",
	}}

	out, err := HTML(records)
	if err != nil {
		t.Fatalf("render html: %v", err)
	}
	for _, banned := range []string{"<script>", "<b>SEA</b>", `href="javascript:`} {
		if strings.Contains(out, banned) {
			t.Errorf("expected %q to be escaped", banned)
		}
	}
	for _, want := range []string{"&lt;script&gt;alert(1)&lt;/script&gt;", "o&#39;neil &amp; co"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected escaped value %q", want)
		}
	}
}

func TestTextDigest(t *testing.T) {
	out, err := Text(sampleRecords())
	if err != nil {
		t.Fatalf("render text: %v", err)
	}

	if !strings.HasPrefix(out, "TWFL WAF Outlier Cases Alert\n\n") {
		t.Errorf("unexpected digest heading: %q", out)
	}
	for _, want := range []string{
		"Case ID: C-2 - https://cc.example.com/C-2\nAgent: bob, Site: DUB, Time: 4.0s\n\n",
		"Case ID: C-3 - https://cc.example.com/C-3\nAgent: carol, Site: IAD, Time: 9.9s\n\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected digest to contain %q", want)
		}
	}
	if !strings.HasSuffix(out, "Command Center.\n") {
		t.Errorf("expected digest to end with the footer")
	}
	if strings.Contains(out, "&amp;") {
		t.Errorf("digest must not be html escaped")
	}
}

func TestRenderersAreDeterministic(t *testing.T) {
	records := sampleRecords()

	html1, err1 := HTML(records)
	html2, err2 := HTML(records)
	if err1 != nil || err2 != nil || html1 != html2 {
		t.Fatalf("html output differs between runs")
	}

	text1, err1 := Text(records)
	text2, err2 := Text(records)
	if err1 != nil || err2 != nil || text1 != text2 {
		t.Fatalf("text output differs between runs")
	}

	if Payload(records[0], "example.com") != Payload(records[0], "example.com") {
		t.Fatalf("payload differs between runs")
	}
}

func TestRenderEmptySet(t *testing.T) {
	out, err := HTML(nil)
	if err != nil {
		t.Fatalf("render html: %v", err)
	}
	if strings.Contains(out, "<td") {
		t.Errorf("expected no table rows")
	}

	text, err := Text(nil)
	if err != nil {
		t.Fatalf("render text: %v", err)
	}
	if strings.Contains(text, "Case ID:") {
		t.Errorf("expected no digest entries")
	}
}

func TestPayload(t *testing.T) {
	p := Payload(sampleRecords()[1], "example.com")

	if want := "Quick Actions Needed:\n• Review case: [Case Link]https://cc.example.com/C-3\n• Update any related tickets\n• Drive next steps\n"; p.Message != want {
		t.Errorf("unexpected message %q", p.Message)
	}
	if want := "Case Details:\n• Status: RES\n"; p.CaseDetails != want {
		t.Errorf("unexpected case details %q", p.CaseDetails)
	}
	if p.TotalTime != "9.9" {
		t.Errorf("expected total time 9.9, got %q", p.TotalTime)
	}
	if p.User != "carol@example.com" {
		t.Errorf("expected user carol@example.com, got %q", p.User)
	}

	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	var fields map[string]string
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	got := make([]string, 0, len(fields))
	for k := range fields {
		got = append(got, k)
	}
	slices.Sort(got)
	if want := []string{"Case_details", "Total_time", "message", "user"}; !slices.Equal(got, want) {
		t.Fatalf("expected payload keys %v, got %v", want, got)
	}
}

func TestAgentHandle(t *testing.T) {
	for _, domain := range []string{"example.com", "@example.com"} {
		if got := AgentHandle("bob", domain); got != "bob@example.com" {
			t.Errorf("AgentHandle(bob, %q) = %q", domain, got)
		}
	}
}
