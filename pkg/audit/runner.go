package audit

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ranas-mukminov/cloud-iam-optimizer/internal/models"
)

// auditUser runs the three checks for one user and always returns a
// complete record. Failures never escape this boundary: they are recorded
// as CheckErrors with every other field left at its fail-safe zero value,
// so a broken check can never present a user as secure.
func (r *runner) auditUser(ctx context.Context, user models.User) models.UserAudit {
	var (
		mfaEnabled bool
		mfaErrs    []models.CheckError
		keys       []models.AccessKeyInfo
		keyErrs    []models.CheckError
		finding    models.PrivilegeFinding
		privErrs   []models.CheckError
	)

	// The checks are independent and only read the shared gateway, so they
	// run concurrently. Each one writes to its own result slots.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer catchPanic(models.CheckMFA, &mfaErrs)
		mfaEnabled, mfaErrs = r.checkMFA(gctx, user.UserName)
		return nil
	})

	g.Go(func() error {
		defer catchPanic(models.CheckKeys, &keyErrs)
		keys, keyErrs = r.checkAccessKeys(gctx, user.UserName)
		return nil
	})

	g.Go(func() error {
		defer catchPanic(models.CheckPrivilege, &privErrs)
		finding, privErrs = r.checkPrivilege(gctx, user.UserName)
		return nil
	})

	g.Wait() //nolint:errcheck // the checks never return errors

	record := models.UserAudit{
		User:       user,
		MFAEnabled: mfaEnabled,
		AccessKeys: keys,
		Privilege:  finding,
	}
	record.Errors = append(record.Errors, mfaErrs...)
	record.Errors = append(record.Errors, keyErrs...)
	record.Errors = append(record.Errors, privErrs...)

	return record
}

// catchPanic converts a panicking check into a recorded failure
func catchPanic(kind models.CheckKind, errs *[]models.CheckError) {
	if p := recover(); p != nil {
		*errs = append(*errs, models.CheckError{
			Check:   kind,
			Class:   models.ErrClassUnknown,
			Message: fmt.Sprintf("panic: %v", p),
		})
	}
}
