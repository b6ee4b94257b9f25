package audit

import (
	"context"
	"time"

	log "github.com/charmbracelet/log"

	"github.com/ranas-mukminov/cloud-iam-optimizer/internal/models"
	"github.com/ranas-mukminov/cloud-iam-optimizer/pkg/utils"
)

// runner executes the three audit checks for single users. The gateway
// handle is shared read-only across workers; now is captured once per run
// so every key age is computed against the same instant.
type runner struct {
	gw        Gateway
	exec      *Executor
	now       time.Time
	threshold int
}

// checkMFA reports whether the user has at least one MFA device. A
// not-found answer means no MFA is configured, which is a normal state,
// not a check failure.
func (r *runner) checkMFA(ctx context.Context, userName string) (bool, []models.CheckError) {
	serials, err := r.listStrings(ctx, "ListMFADevices", func(ctx context.Context) ([]string, error) {
		return r.gw.ListMFADevices(ctx, userName)
	})
	if err != nil {
		if models.ClassOf(err) == models.ErrClassNotFound {
			return false, nil
		}
		return false, []models.CheckError{{
			Check:   models.CheckMFA,
			Class:   models.ClassOf(err),
			Message: err.Error(),
		}}
	}

	return len(serials) > 0, nil
}

// checkAccessKeys returns every access key with its age against the run
// timestamp. All keys are reported; only Active keys strictly older than
// the threshold are flagged old.
func (r *runner) checkAccessKeys(ctx context.Context, userName string) ([]models.AccessKeyInfo, []models.CheckError) {
	var keys []models.AccessKeyInfo
	err := r.exec.Do(ctx, "ListAccessKeys", func(ctx context.Context) error {
		k, err := r.gw.ListAccessKeys(ctx, userName)
		if err != nil {
			return err
		}
		keys = k
		return nil
	})
	if err != nil {
		if models.ClassOf(err) == models.ErrClassNotFound {
			return nil, nil
		}
		return nil, []models.CheckError{{
			Check:   models.CheckKeys,
			Class:   models.ClassOf(err),
			Message: err.Error(),
		}}
	}

	for i := range keys {
		if keys[i].CreateDate == nil {
			continue
		}
		keys[i].AgeDays = utils.AgeInDays(*keys[i].CreateDate, r.now)
		keys[i].IsOld = keys[i].Status == models.AccessKeyActive && keys[i].AgeDays > r.threshold
	}

	return keys, nil
}

// checkPrivilege decides whether the user can reach full administrator
// privilege through any of four paths: managed policies attached directly
// or via groups, and inline policies embedded directly or on groups. All
// paths are walked even after a match because the managed and inline
// findings are reported independently.
func (r *runner) checkPrivilege(ctx context.Context, userName string) (models.PrivilegeFinding, []models.CheckError) {
	var finding models.PrivilegeFinding
	var errs []models.CheckError

	record := func(err error) {
		if err == nil {
			return
		}
		// Absent entities are a normal data state for this check
		if models.ClassOf(err) == models.ErrClassNotFound {
			return
		}
		errs = append(errs, models.CheckError{
			Check:   models.CheckPrivilege,
			Class:   models.ClassOf(err),
			Message: err.Error(),
		})
	}

	// Path 1: managed policies attached directly
	direct, err := r.listStrings(ctx, "ListAttachedUserPolicies", func(ctx context.Context) ([]string, error) {
		return r.gw.ListAttachedUserPolicies(ctx, userName)
	})
	record(err)
	finding.ManagedNames = append(finding.ManagedNames, direct...)

	// Path 2: managed policies via group membership
	groups, err := r.listStrings(ctx, "ListGroupsForUser", func(ctx context.Context) ([]string, error) {
		return r.gw.ListGroupsForUser(ctx, userName)
	})
	record(err)
	finding.Groups = groups

	for _, group := range groups {
		names, err := r.listStrings(ctx, "ListAttachedGroupPolicies", func(ctx context.Context) ([]string, error) {
			return r.gw.ListAttachedGroupPolicies(ctx, group)
		})
		record(err)
		finding.ManagedNames = append(finding.ManagedNames, names...)
	}

	for _, name := range finding.ManagedNames {
		if name == AdminPolicyName {
			finding.ManagedAdmin = true
			break
		}
	}

	// Path 3: inline policies embedded on the user
	userInline, err := r.listStrings(ctx, "ListUserPolicies", func(ctx context.Context) ([]string, error) {
		return r.gw.ListUserPolicyNames(ctx, userName)
	})
	record(err)
	finding.InlineNames = append(finding.InlineNames, userInline...)

	for _, name := range userInline {
		doc, err := r.getDocument(ctx, "GetUserPolicy", func(ctx context.Context) (string, error) {
			return r.gw.GetUserPolicyDocument(ctx, userName, name)
		})
		if err != nil {
			record(err)
			continue
		}
		if r.documentMatches(userName, name, doc) {
			finding.InlineAdmin = true
		}
	}

	// Path 4: inline policies embedded on the user's groups
	for _, group := range groups {
		groupInline, err := r.listStrings(ctx, "ListGroupPolicies", func(ctx context.Context) ([]string, error) {
			return r.gw.ListGroupPolicyNames(ctx, group)
		})
		record(err)
		finding.InlineNames = append(finding.InlineNames, groupInline...)

		for _, name := range groupInline {
			doc, err := r.getDocument(ctx, "GetGroupPolicy", func(ctx context.Context) (string, error) {
				return r.gw.GetGroupPolicyDocument(ctx, group, name)
			})
			if err != nil {
				record(err)
				continue
			}
			if r.documentMatches(group, name, doc) {
				finding.InlineAdmin = true
			}
		}
	}

	return finding, errs
}

// documentMatches runs the wildcard test on one inline policy document.
// A document that fails to parse counts as a non-match for that document
// only; the rest of the evaluation carries on.
func (r *runner) documentMatches(owner, policyName, doc string) bool {
	match, err := documentGrantsFullAccess(doc)
	if err != nil {
		log.Warn("skipping unparseable inline policy", "owner", owner, "policy", policyName, "error", err)
		return false
	}
	return match
}

func (r *runner) listStrings(ctx context.Context, op string, fn func(ctx context.Context) ([]string, error)) ([]string, error) {
	var out []string
	err := r.exec.Do(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (r *runner) getDocument(ctx context.Context, op string, fn func(ctx context.Context) (string, error)) (string, error) {
	var out string
	err := r.exec.Do(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
