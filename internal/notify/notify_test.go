package notify

import (
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestDisabledMailerSkips(t *testing.T) {
	m := New("", "a@b", []string{"c@d"}, zap.NewNop())
	m.send = func(addr, from string, to []string, msg []byte) error {
		t.Fatal("send called on disabled mailer")
		return nil
	}
	if m.Enabled() {
		t.Error("mailer with no host reports enabled")
	}
	if err := m.SendSummary(Summary{}); err != nil {
		t.Errorf("SendSummary: %v", err)
	}
}

func TestSendSummary(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg string

	m := New("relay.example.com:25", "audits@example.com", []string{"ops@example.com"}, zap.NewNop())
	m.send = func(addr, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)
		return nil
	}

	s := Summary{
		OrgName:        "FieldWorks",
		NetworksTotal:  12,
		NetworksFailed: 1,
		BadClients:     4,
		Blocked:        3,
		ReportPath:     "/reports/FieldWorks_clients_08-30-2026",
		Elapsed:        93 * time.Second,
	}
	if err := m.SendSummary(s); err != nil {
		t.Fatalf("SendSummary: %v", err)
	}

	if gotAddr != "relay.example.com:25" {
		t.Errorf("addr = %q", gotAddr)
	}
	if gotFrom != "audits@example.com" {
		t.Errorf("from = %q", gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "ops@example.com" {
		t.Errorf("to = %v", gotTo)
	}
	for _, want := range []string{
		"Subject: Client audit for FieldWorks: 4 flagged",
		"Networks scanned: 12 (1 failed)",
		"Blocked: 3",
		"Report: /reports/FieldWorks_clients_08-30-2026",
		"Elapsed: 1m33s",
	} {
		if !strings.Contains(gotMsg, want) {
			t.Errorf("message missing %q\n%s", want, gotMsg)
		}
	}
}

func TestSendFailureSurfaces(t *testing.T) {
	m := New("relay:25", "a@b", []string{"c@d"}, zap.NewNop())
	m.send = func(addr, from string, to []string, msg []byte) error {
		return errors.New("connection refused")
	}
	if err := m.SendSummary(Summary{}); err == nil {
		t.Error("SendSummary should surface relay errors")
	}
}
