package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ekskul-api/internal/models"
	"github.com/noah-isme/ekskul-api/internal/service"
)

type fakeAdmin struct {
	provisioned service.ProvisionUserRequest
	status      map[string]models.RoleStatus
}

func (f *fakeAdmin) Provision(_ context.Context, req service.ProvisionUserRequest, _ int) (*models.User, error) {
	f.provisioned = req
	return &models.User{ID: "u1", Email: req.Email, Role: req.Role}, nil
}

func (f *fakeAdmin) SetRoleStatus(_ context.Context, email string, status models.RoleStatus) (*models.User, error) {
	if f.status == nil {
		f.status = map[string]models.RoleStatus{}
	}
	f.status[email] = status
	return &models.User{Email: email, RoleStatus: status}, nil
}

func (f *fakeAdmin) ReconcilePoints(context.Context) (int64, error) { return 2, nil }

func staticPassword() (string, error) { return "secret1", nil }

func TestDispatchAddUser(t *testing.T) {
	admin := &fakeAdmin{}
	var out bytes.Buffer

	err := dispatch(context.Background(), admin, "adduser", []string{"-email", "rina@school.test", "-name", "Rina", "-role", "coordinator"}, &out, staticPassword)
	require.NoError(t, err)
	assert.Equal(t, "secret1", admin.provisioned.Password)
	assert.Equal(t, models.RoleCoordinator, admin.provisioned.Role)
	assert.Contains(t, out.String(), "created rina@school.test")
}

func TestDispatchApproveAndReject(t *testing.T) {
	admin := &fakeAdmin{}
	var out bytes.Buffer
	ctx := context.Background()

	require.NoError(t, dispatch(ctx, admin, "approve", []string{"-email", "a@school.test"}, &out, staticPassword))
	require.NoError(t, dispatch(ctx, admin, "reject", []string{"-email", "b@school.test"}, &out, staticPassword))
	assert.Equal(t, models.RoleStatusApproved, admin.status["a@school.test"])
	assert.Equal(t, models.RoleStatusRejected, admin.status["b@school.test"])

	assert.Error(t, dispatch(ctx, admin, "approve", nil, &out, staticPassword))
}

func TestDispatchReconcileAndUnknown(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, dispatch(context.Background(), &fakeAdmin{}, "reconcile-points", nil, &out, staticPassword))
	assert.Contains(t, out.String(), "corrected points for 2 user(s)")

	assert.Error(t, dispatch(context.Background(), &fakeAdmin{}, "explode", nil, &out, staticPassword))
}
