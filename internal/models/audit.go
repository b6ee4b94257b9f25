package models

import (
	"errors"
	"time"
)

// User represents an IAM user enumerated at the start of an audit run
type User struct {
	UserName   string     // IAM user name
	UserID     string     // IAM user ID
	ARN        string     // Full ARN of the user
	CreateDate *time.Time // When the user was created
}

// AccessKeyStatus is the provider-reported state of an access key
type AccessKeyStatus string

const (
	AccessKeyActive   AccessKeyStatus = "Active"
	AccessKeyInactive AccessKeyStatus = "Inactive"
)

// AccessKeyInfo represents one access key of a user, with its age computed
// against the single timestamp captured at the start of the audit run
type AccessKeyInfo struct {
	KeyID      string          // Access key ID
	CreateDate *time.Time      // When the key was created
	Status     AccessKeyStatus // Active or Inactive
	AgeDays    int             // Whole days since creation
	IsOld      bool            // Active and strictly older than the threshold
}

// PrivilegeFinding reports whether a user can reach full administrator
// privilege, split by how the privilege is granted. Inline full access is
// the worse signal: revoking it means editing a policy document by hand
// rather than detaching a managed policy.
type PrivilegeFinding struct {
	ManagedAdmin bool     // AdministratorAccess attached directly or via a group
	InlineAdmin  bool     // Inline policy (direct or via a group) allows * on *
	Groups       []string // Group memberships inspected
	ManagedNames []string // Managed policy names seen (direct + groups)
	InlineNames  []string // Inline policy names seen (direct + groups)
}

// CheckKind identifies which audit check produced a finding or error
type CheckKind string

const (
	CheckMFA       CheckKind = "mfa"
	CheckKeys      CheckKind = "keys"
	CheckPrivilege CheckKind = "privilege"
)

// ErrorClass classifies a failed call against the IAM API
type ErrorClass string

const (
	ErrClassTransient  ErrorClass = "transient"  // throttled, worth retrying
	ErrClassPermission ErrorClass = "permission" // caller lacks rights
	ErrClassNotFound   ErrorClass = "not_found"  // entity absent (often benign)
	ErrClassMalformed  ErrorClass = "malformed"  // unparseable response or document
	ErrClassUnknown    ErrorClass = "unknown"
)

// CheckError associates a failed check with its classification. A recorded
// CheckError means the user could not be fully verified.
type CheckError struct {
	Check   CheckKind  // Which check failed
	Class   ErrorClass // Why it failed
	Message string     // Underlying error text
}

func (e CheckError) Error() string {
	return string(e.Check) + " check failed (" + string(e.Class) + "): " + e.Message
}

// ErrorClass lets ClassOf recover the classification from a wrapped chain
func (e CheckError) ErrorClass() ErrorClass {
	return e.Class
}

// classed is implemented by errors that carry their own classification
type classed interface {
	ErrorClass() ErrorClass
}

// ClassOf walks the error chain looking for a carried classification.
// Errors without one are ErrClassUnknown.
func ClassOf(err error) ErrorClass {
	for err != nil {
		if c, ok := err.(classed); ok {
			return c.ErrorClass()
		}
		err = errors.Unwrap(err)
	}
	return ErrClassUnknown
}

// UserAudit is the complete audit record for one IAM user. Every enumerated
// user yields exactly one UserAudit, even when all of its checks failed.
type UserAudit struct {
	User       User
	MFAEnabled bool
	AccessKeys []AccessKeyInfo
	Privilege  PrivilegeFinding
	Errors     []CheckError
}

// HasOldKeys reports whether any access key is flagged old
func (a UserAudit) HasOldKeys() bool {
	for _, k := range a.AccessKeys {
		if k.IsOld {
			return true
		}
	}
	return false
}

// Status is the final risk classification for one user
type Status string

const (
	StatusOK          Status = "OK"
	StatusNoMFA       Status = "NO_MFA"
	StatusOldKeys     Status = "OLD_KEYS"
	StatusAdmin       Status = "ADMIN"
	StatusAdminInline Status = "ADMIN_INLINE"
	StatusCheckFailed Status = "CHECK_FAILED"
)
