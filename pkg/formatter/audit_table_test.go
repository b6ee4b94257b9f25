package formatter

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/ranas-mukminov/cloud-iam-optimizer/internal/models"
)

func TestFormatAuditTableRiskyFirst(t *testing.T) {
	audits := []models.UserAudit{
		{User: models.User{UserName: "alice"}, MFAEnabled: true},
		{User: models.User{UserName: "bob"}, MFAEnabled: true, Privilege: models.PrivilegeFinding{ManagedAdmin: true}},
	}

	var buf bytes.Buffer
	FormatAuditTable(&buf, audits, time.Now(), time.Second)

	out := buf.String()
	if !strings.Contains(out, "alice") || !strings.Contains(out, "bob") {
		t.Fatalf("missing users in output:\n%s", out)
	}
	if strings.Index(out, "bob") > strings.Index(out, "alice") {
		t.Errorf("risky user should render first:\n%s", out)
	}
}

func TestFormatAuditTableLeavesInputOrder(t *testing.T) {
	audits := []models.UserAudit{
		{User: models.User{UserName: "alice"}, MFAEnabled: true},
		{User: models.User{UserName: "bob"}, MFAEnabled: true, Privilege: models.PrivilegeFinding{ManagedAdmin: true}},
		{User: models.User{UserName: "carol"}},
	}

	var buf bytes.Buffer
	FormatAuditTable(&buf, audits, time.Now(), time.Second)

	// Callers rely on the engine's name ordering after rendering
	for i, want := range []string{"alice", "bob", "carol"} {
		if audits[i].User.UserName != want {
			t.Fatalf("audits[%d] = %q, want %q", i, audits[i].User.UserName, want)
		}
	}
}

func TestFormatKeys(t *testing.T) {
	if got := formatKeys(nil); got != "none" {
		t.Errorf("formatKeys(nil) = %q", got)
	}
	keys := []models.AccessKeyInfo{{KeyID: "a"}, {KeyID: "b", IsOld: true}}
	if got := formatKeys(keys); got != "2 (1 old)" {
		t.Errorf("formatKeys = %q", got)
	}
}

func TestFormatAdminVia(t *testing.T) {
	if got := formatAdminVia(models.PrivilegeFinding{}); got != "-" {
		t.Errorf("formatAdminVia(zero) = %q", got)
	}
	both := models.PrivilegeFinding{ManagedAdmin: true, InlineAdmin: true}
	if got := formatAdminVia(both); got != "inline, managed" {
		t.Errorf("formatAdminVia(both) = %q", got)
	}
}
