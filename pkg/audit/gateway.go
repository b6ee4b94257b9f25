// Package audit implements the IAM security audit engine: user enumeration,
// concurrent per-user checks (MFA, access key age, privilege escalation),
// and deterministic risk status resolution.
package audit

import (
	"context"

	"github.com/ranas-mukminov/cloud-iam-optimizer/internal/models"
)

// Gateway is the identity-provider capability consumed by the engine.
// Implementations must be safe for concurrent use; errors should carry a
// classification recoverable through models.ClassOf.
type Gateway interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	ListMFADevices(ctx context.Context, userName string) ([]string, error)
	ListAccessKeys(ctx context.Context, userName string) ([]models.AccessKeyInfo, error)
	ListGroupsForUser(ctx context.Context, userName string) ([]string, error)
	ListAttachedUserPolicies(ctx context.Context, userName string) ([]string, error)
	ListAttachedGroupPolicies(ctx context.Context, groupName string) ([]string, error)
	ListUserPolicyNames(ctx context.Context, userName string) ([]string, error)
	ListGroupPolicyNames(ctx context.Context, groupName string) ([]string, error)
	GetUserPolicyDocument(ctx context.Context, userName, policyName string) (string, error)
	GetGroupPolicyDocument(ctx context.Context, groupName, policyName string) (string, error)
}
