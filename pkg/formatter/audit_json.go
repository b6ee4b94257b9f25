package formatter

import (
	"encoding/json"
	"io"
	"time"

	"github.com/ranas-mukminov/cloud-iam-optimizer/internal/models"
	"github.com/ranas-mukminov/cloud-iam-optimizer/pkg/audit"
)

// AuditReportJSON is the machine-readable audit report
type AuditReportJSON struct {
	GeneratedAt string           `json:"generated_at"`
	TotalUsers  int              `json:"total_users"`
	Summary     map[string]int   `json:"summary"`
	Results     []UserResultJSON `json:"results"`
}

// UserResultJSON is one user's audit outcome in JSON
type UserResultJSON struct {
	UserName   string          `json:"user_name"`
	ARN        string          `json:"arn"`
	Created    string          `json:"created,omitempty"`
	MFAEnabled bool            `json:"mfa_enabled"`
	AccessKeys []AccessKeyJSON `json:"access_keys"`
	Privilege  PrivilegeJSON   `json:"privilege"`
	Errors     []CheckErrJSON  `json:"errors,omitempty"`
	Status     models.Status   `json:"status"`
}

type AccessKeyJSON struct {
	KeyID   string `json:"access_key_id"`
	Created string `json:"created,omitempty"`
	Status  string `json:"status"`
	AgeDays int    `json:"age_days"`
	IsOld   bool   `json:"is_old"`
}

type PrivilegeJSON struct {
	ManagedAdmin    bool     `json:"managed_admin"`
	InlineAdmin     bool     `json:"inline_admin"`
	Groups          []string `json:"groups,omitempty"`
	ManagedPolicies []string `json:"managed_policies,omitempty"`
	InlinePolicies  []string `json:"inline_policies,omitempty"`
}

type CheckErrJSON struct {
	Check   string `json:"check"`
	Class   string `json:"class"`
	Message string `json:"message"`
}

// WriteAuditJSON writes the full audit report as indented JSON
func WriteAuditJSON(writer io.Writer, audits []models.UserAudit, generatedAt time.Time) error {
	report := AuditReportJSON{
		GeneratedAt: generatedAt.UTC().Format(time.RFC3339),
		TotalUsers:  len(audits),
		Summary:     map[string]int{},
		Results:     make([]UserResultJSON, 0, len(audits)),
	}

	for _, a := range audits {
		status := audit.ResolveStatus(a)
		report.Summary[string(status)]++

		result := UserResultJSON{
			UserName:   a.User.UserName,
			ARN:        a.User.ARN,
			MFAEnabled: a.MFAEnabled,
			AccessKeys: make([]AccessKeyJSON, 0, len(a.AccessKeys)),
			Privilege: PrivilegeJSON{
				ManagedAdmin:    a.Privilege.ManagedAdmin,
				InlineAdmin:     a.Privilege.InlineAdmin,
				Groups:          a.Privilege.Groups,
				ManagedPolicies: a.Privilege.ManagedNames,
				InlinePolicies:  a.Privilege.InlineNames,
			},
			Status: status,
		}

		if a.User.CreateDate != nil {
			result.Created = a.User.CreateDate.UTC().Format(time.RFC3339)
		}

		for _, k := range a.AccessKeys {
			keyJSON := AccessKeyJSON{
				KeyID:   k.KeyID,
				Status:  string(k.Status),
				AgeDays: k.AgeDays,
				IsOld:   k.IsOld,
			}
			if k.CreateDate != nil {
				keyJSON.Created = k.CreateDate.UTC().Format(time.RFC3339)
			}
			result.AccessKeys = append(result.AccessKeys, keyJSON)
		}

		for _, ce := range a.Errors {
			result.Errors = append(result.Errors, CheckErrJSON{
				Check:   string(ce.Check),
				Class:   string(ce.Class),
				Message: ce.Message,
			})
		}

		report.Results = append(report.Results, result)
	}

	enc := json.NewEncoder(writer)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
