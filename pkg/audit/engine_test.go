package audit

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ranas-mukminov/cloud-iam-optimizer/internal/models"
)

func TestRunAuditsEveryUserExactlyOnce(t *testing.T) {
	const userCount = 25

	users := make([]models.User, 0, userCount)
	for i := 0; i < userCount; i++ {
		users = append(users, models.User{UserName: fmt.Sprintf("user-%02d", i)})
	}

	var mfaCalls int32
	gw := &fakeGateway{
		listUsers: func(ctx context.Context) ([]models.User, error) {
			return users, nil
		},
		listMFADevices: func(ctx context.Context, user string) ([]string, error) {
			atomic.AddInt32(&mfaCalls, 1)
			return []string{"serial"}, nil
		},
	}

	for _, workers := range []int{1, 4, 50} {
		workers := workers
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			atomic.StoreInt32(&mfaCalls, 0)

			engine := New(gw, Config{Workers: workers})
			audits, err := engine.Run(context.Background())
			require.NoError(t, err)
			require.Len(t, audits, userCount)

			seen := map[string]bool{}
			for _, a := range audits {
				assert.False(t, seen[a.User.UserName], "duplicate record for %s", a.User.UserName)
				seen[a.User.UserName] = true
			}

			// Results are re-sorted by user name after collection
			for i := 1; i < len(audits); i++ {
				assert.Less(t, audits[i-1].User.UserName, audits[i].User.UserName)
			}

			assert.EqualValues(t, userCount, atomic.LoadInt32(&mfaCalls))
		})
	}
}

func TestRunEnumerationFailureIsFatal(t *testing.T) {
	gw := &fakeGateway{
		listUsers: func(ctx context.Context) ([]models.User, error) {
			return nil, classedError{class: models.ErrClassPermission, msg: "AccessDenied"}
		},
	}

	engine := New(gw, Config{})
	audits, err := engine.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, audits)
}

func TestRunRetriesTransientEnumeration(t *testing.T) {
	var calls int32
	gw := &fakeGateway{
		listUsers: func(ctx context.Context) ([]models.User, error) {
			if atomic.AddInt32(&calls, 1) <= 2 {
				return nil, classedError{class: models.ErrClassTransient, msg: "Throttling"}
			}
			return []models.User{{UserName: "alice"}}, nil
		},
		listMFADevices: func(ctx context.Context, user string) ([]string, error) {
			return []string{"serial"}, nil
		},
	}

	engine := New(gw, Config{RetryAttempts: 3})
	audits, err := engine.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestRunNoUsers(t *testing.T) {
	gw := &fakeGateway{}

	engine := New(gw, Config{})
	audits, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, audits)
}

// End-to-end over a small account: every combination of findings resolves
// to its expected status.
func TestRunScenario(t *testing.T) {
	now := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	key10d := now.AddDate(0, 0, -10)
	key30d := now.AddDate(0, 0, -30)
	key120d := now.AddDate(0, 0, -120)

	gw := &fakeGateway{
		listUsers: func(ctx context.Context) ([]models.User, error) {
			return []models.User{
				{UserName: "alice"},
				{UserName: "bob"},
				{UserName: "carol"},
				{UserName: "dave"},
			}, nil
		},
		listMFADevices: func(ctx context.Context, user string) ([]string, error) {
			switch user {
			case "bob":
				return nil, nil
			case "dave":
				return nil, classedError{class: models.ErrClassPermission, msg: "AccessDenied"}
			default:
				return []string{"serial"}, nil
			}
		},
		listAccessKeys: func(ctx context.Context, user string) ([]models.AccessKeyInfo, error) {
			switch user {
			case "alice":
				return []models.AccessKeyInfo{{KeyID: "AKIAALICE", CreateDate: &key10d, Status: models.AccessKeyActive}}, nil
			case "bob":
				return []models.AccessKeyInfo{{KeyID: "AKIABOB", CreateDate: &key120d, Status: models.AccessKeyActive}}, nil
			case "carol":
				return []models.AccessKeyInfo{{KeyID: "AKIACAROL", CreateDate: &key30d, Status: models.AccessKeyActive}}, nil
			default:
				return []models.AccessKeyInfo{{KeyID: "AKIADAVE", CreateDate: &key10d, Status: models.AccessKeyActive}}, nil
			}
		},
		listGroups: func(ctx context.Context, user string) ([]string, error) {
			if user == "alice" {
				return []string{"ops"}, nil
			}
			return nil, nil
		},
		groupPolicyNames: func(ctx context.Context, group string) ([]string, error) {
			return []string{"ops-full"}, nil
		},
		groupPolicyDoc: func(ctx context.Context, group, name string) (string, error) {
			return `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Action":"*","Resource":"*"}]}`, nil
		},
	}

	engine := New(gw, Config{Workers: 2})
	engine.nowFn = func() time.Time { return now }

	audits, err := engine.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, audits, 4)

	byName := map[string]models.UserAudit{}
	for _, a := range audits {
		byName[a.User.UserName] = a
	}

	// alice: MFA on, fresh key, but an inline group policy grants * on *
	assert.Equal(t, models.StatusAdminInline, ResolveStatus(byName["alice"]))
	assert.True(t, byName["alice"].MFAEnabled)

	// bob: missing MFA outranks his 120-day-old key
	assert.Equal(t, models.StatusNoMFA, ResolveStatus(byName["bob"]))
	assert.True(t, byName["bob"].HasOldKeys())

	// carol: nothing to report
	assert.Equal(t, models.StatusOK, ResolveStatus(byName["carol"]))

	// dave: the MFA check was denied, so he cannot be called clean
	assert.Equal(t, models.StatusCheckFailed, ResolveStatus(byName["dave"]))
	require.Len(t, byName["dave"].Errors, 1)
	assert.Equal(t, models.CheckMFA, byName["dave"].Errors[0].Check)
}

func TestRunStopsDispatchOnCancel(t *testing.T) {
	const userCount = 50

	users := make([]models.User, 0, userCount)
	for i := 0; i < userCount; i++ {
		users = append(users, models.User{UserName: fmt.Sprintf("user-%02d", i)})
	}

	ctx, cancel := context.WithCancel(context.Background())

	var audited int32
	gw := &fakeGateway{
		listUsers: func(ctx context.Context) ([]models.User, error) {
			return users, nil
		},
		listMFADevices: func(ctx context.Context, user string) ([]string, error) {
			if atomic.AddInt32(&audited, 1) == 3 {
				cancel()
			}
			return []string{"serial"}, nil
		},
	}

	engine := New(gw, Config{Workers: 2})
	audits, err := engine.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, len(audits), userCount)
}
