package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/ekskul-api/internal/models"
	appErrors "github.com/noah-isme/ekskul-api/pkg/errors"
)

func newTestUserService(store *memStore) *UserService {
	return NewUserService(userStore{store}, activityStore{store}, nil, nil)
}

func TestProfileIncludesEnrollmentsAndHistory(t *testing.T) {
	store := newMemStore()
	store.addUser("s1", "Sari", models.RoleStudent)
	store.addActivity("a1", models.CategorySports, 5)
	store.addEvent("e1", "a1", 10)
	ctx := context.Background()
	_, err := activityStore{store}.Enroll(ctx, "a1", "s1")
	require.NoError(t, err)
	_, err = ledgerStore{store}.Mark(ctx, models.MarkAttendance{EventID: "e1", ActivityID: "a1", StudentID: "s1", Status: models.AttendancePresent, Points: 10})
	require.NoError(t, err)

	profile, err := newTestUserService(store).Profile(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 10, profile.Points)
	require.Len(t, profile.EnrolledActivities, 1)
	assert.Equal(t, "a1", profile.EnrolledActivities[0].ID)
	require.Len(t, profile.AttendanceHistory, 1)
	record := profile.AttendanceHistory[0]
	assert.Equal(t, 10, record.PointsEarned)
	require.NotNil(t, record.EventTitle)
	assert.Equal(t, "Event e1", *record.EventTitle)
	require.NotNil(t, record.ActivityName)
	assert.Equal(t, "Activity a1", *record.ActivityName)

	_, err = newTestUserService(store).Profile(ctx, "ghost")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestProfileEmptyCollections(t *testing.T) {
	store := newMemStore()
	store.addUser("s1", "Sari", models.RoleStudent)

	profile, err := newTestUserService(store).Profile(context.Background(), "s1")
	require.NoError(t, err)
	assert.NotNil(t, profile.EnrolledActivities)
	assert.NotNil(t, profile.AttendanceHistory)
}

func TestProvisionCreatesApprovedUser(t *testing.T) {
	store := newMemStore()
	svc := newTestUserService(store)
	ctx := context.Background()

	user, err := svc.Provision(ctx, ProvisionUserRequest{Name: "Bu Rina", Email: " Rina@School.test ", Password: "secret1", Role: models.RoleCoordinator}, bcrypt.MinCost)
	require.NoError(t, err)
	assert.Equal(t, "rina@school.test", user.Email)
	assert.Equal(t, models.RoleStatusApproved, user.RoleStatus)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret1")))
	require.Len(t, store.audits, 1)
	assert.Equal(t, models.AuditActionUserCreate, store.audits[0].Action)

	_, err = svc.Provision(ctx, ProvisionUserRequest{Name: "Dup", Email: "rina@school.test", Password: "secret1", Role: models.RoleStudent}, bcrypt.MinCost)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	_, err = svc.Provision(ctx, ProvisionUserRequest{Name: "Bad", Email: "bad", Password: "1", Role: models.RoleStudent}, bcrypt.MinCost)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestSetRoleStatus(t *testing.T) {
	store := newMemStore()
	store.addUser("c1", "Coordinator", models.RoleCoordinator).RoleStatus = models.RoleStatusPending
	svc := newTestUserService(store)
	ctx := context.Background()

	user, err := svc.SetRoleStatus(ctx, "C1@school.test", models.RoleStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, models.RoleStatusApproved, user.RoleStatus)
	require.Len(t, store.audits, 1)
	assert.JSONEq(t, `{"from":"pending","to":"approved"}`, store.audits[0].Payload)

	_, err = svc.SetRoleStatus(ctx, "ghost@school.test", models.RoleStatusRejected)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = svc.SetRoleStatus(ctx, "c1@school.test", "banned")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestReconcilePointsCorrectsDrift(t *testing.T) {
	store := newMemStore()
	store.addUser("s1", "Sari", models.RoleStudent).Points = 99
	store.addUser("s2", "Budi", models.RoleStudent)

	n, err := newTestUserService(store).ReconcilePoints(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Zero(t, store.points("s1"))
}
