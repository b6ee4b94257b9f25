package formatter

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ranas-mukminov/cloud-iam-optimizer/internal/models"
	"github.com/ranas-mukminov/cloud-iam-optimizer/pkg/audit"
	"github.com/ranas-mukminov/cloud-iam-optimizer/pkg/utils"
)

// statusRank orders statuses for display, riskiest first
var statusRank = map[models.Status]int{
	models.StatusCheckFailed: 0,
	models.StatusAdminInline: 1,
	models.StatusAdmin:       2,
	models.StatusNoMFA:       3,
	models.StatusOldKeys:     4,
	models.StatusOK:          5,
}

// FormatAuditTable writes the per-user audit results in a table format
func FormatAuditTable(writer io.Writer, audits []models.UserAudit, scanTime time.Time, scanDuration time.Duration) {
	if len(audits) == 0 {
		fmt.Fprintln(writer, "No IAM users found.")
		return
	}

	// Sort a copy risky-first, then alphabetically; the caller's slice
	// keeps its order
	sorted := make([]models.UserAudit, len(audits))
	copy(sorted, audits)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri := statusRank[audit.ResolveStatus(sorted[i])]
		rj := statusRank[audit.ResolveStatus(sorted[j])]
		if ri != rj {
			return ri < rj
		}
		return sorted[i].User.UserName < sorted[j].User.UserName
	})

	w := tabwriter.NewWriter(writer, 0, 8, 2, ' ', 0)

	fmt.Fprintf(w, "Scan time: %s (completed in %.2f seconds)\n",
		scanTime.Format("2006-01-02 15:04:05"),
		scanDuration.Seconds())

	fmt.Fprintln(w, "USER NAME\tCREATED\tMFA\tACCESS KEYS\tADMIN VIA\tERRORS\tSTATUS")

	for _, a := range sorted {
		createdStr := "Unknown"
		if a.User.CreateDate != nil {
			createdStr = utils.FormatDate(*a.User.CreateDate)
		}

		mfaStatus := "No"
		if a.MFAEnabled {
			mfaStatus = "Yes"
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			a.User.UserName,
			createdStr,
			mfaStatus,
			formatKeys(a.AccessKeys),
			formatAdminVia(a.Privilege),
			len(a.Errors),
			audit.ResolveStatus(a),
		)
	}

	w.Flush()
}

// formatKeys summarizes a user's access keys, e.g. "2 (1 old)"
func formatKeys(keys []models.AccessKeyInfo) string {
	if len(keys) == 0 {
		return "none"
	}

	old := 0
	for _, k := range keys {
		if k.IsOld {
			old++
		}
	}

	if old == 0 {
		return fmt.Sprintf("%d", len(keys))
	}
	return fmt.Sprintf("%d (%d old)", len(keys), old)
}

// formatAdminVia names how full admin privilege is reached, if at all
func formatAdminVia(p models.PrivilegeFinding) string {
	var via []string
	if p.InlineAdmin {
		via = append(via, "inline")
	}
	if p.ManagedAdmin {
		via = append(via, "managed")
	}
	if len(via) == 0 {
		return "-"
	}
	return strings.Join(via, ", ")
}

// PrintAuditSummary prints per-status counts and remediation hints for
// users that need attention
func PrintAuditSummary(writer io.Writer, audits []models.UserAudit) {
	if len(audits) == 0 {
		return
	}

	counts := map[models.Status]int{}
	for _, a := range audits {
		counts[audit.ResolveStatus(a)]++
	}

	fmt.Fprintf(writer, "\nSummary: %d users audited", len(audits))
	for _, s := range []models.Status{
		models.StatusCheckFailed,
		models.StatusAdminInline,
		models.StatusAdmin,
		models.StatusNoMFA,
		models.StatusOldKeys,
		models.StatusOK,
	} {
		if counts[s] > 0 {
			fmt.Fprintf(writer, ", %d %s", counts[s], s)
		}
	}
	fmt.Fprintln(writer)

	for _, a := range audits {
		switch audit.ResolveStatus(a) {
		case models.StatusCheckFailed:
			fmt.Fprintf(writer, "  %s: could not be fully verified (%s)\n",
				a.User.UserName, a.Errors[0].Error())
		case models.StatusAdminInline:
			fmt.Fprintf(writer, "  %s: inline policy grants full admin; revoke by editing the policy document\n",
				a.User.UserName)
		case models.StatusAdmin:
			fmt.Fprintf(writer, "  %s: AdministratorAccess attached; consider scoping down\n",
				a.User.UserName)
		case models.StatusNoMFA:
			fmt.Fprintf(writer, "  %s: no MFA device; enable MFA for this user\n",
				a.User.UserName)
		case models.StatusOldKeys:
			fmt.Fprintf(writer, "  %s: stale access key (oldest created %s); rotate it\n",
				a.User.UserName, oldestKeyAge(a.AccessKeys))
		}
	}
}

func oldestKeyAge(keys []models.AccessKeyInfo) string {
	var oldest *time.Time
	for _, k := range keys {
		if k.IsOld && k.CreateDate != nil {
			if oldest == nil || k.CreateDate.Before(*oldest) {
				oldest = k.CreateDate
			}
		}
	}
	if oldest == nil {
		return "unknown"
	}
	return humanize.Time(*oldest)
}
