package audit

import "github.com/ranas-mukminov/cloud-iam-optimizer/internal/models"

// ResolveStatus reduces one audit record to its risk status. Precedence is
// fixed: an unverified user must never look clean, so check failures
// dominate everything; inline admin outranks managed admin because it has
// to be revoked by editing a document rather than detaching a policy; a
// credential without MFA outranks one that is merely old.
func ResolveStatus(record models.UserAudit) models.Status {
	for _, ce := range record.Errors {
		if ce.Class != models.ErrClassNotFound {
			return models.StatusCheckFailed
		}
	}

	switch {
	case record.Privilege.InlineAdmin:
		return models.StatusAdminInline
	case record.Privilege.ManagedAdmin:
		return models.StatusAdmin
	case !record.MFAEnabled:
		return models.StatusNoMFA
	case record.HasOldKeys():
		return models.StatusOldKeys
	default:
		return models.StatusOK
	}
}
