package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/ekskul-api/internal/models"
	"github.com/noah-isme/ekskul-api/internal/repository"
	appErrors "github.com/noah-isme/ekskul-api/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateRoleStatus(ctx context.Context, email string, status models.RoleStatus) error
	History(ctx context.Context, userID string) ([]models.AttendanceRecord, error)
	ReconcilePoints(ctx context.Context) (int64, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type studentActivityReader interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.Activity, error)
}

// ProvisionUserRequest creates an approved account without self-registration.
type ProvisionUserRequest struct {
	Name     string          `validate:"required"`
	Email    string          `validate:"required,email"`
	Password string          `validate:"required,min=6"`
	Role     models.UserRole `validate:"required,oneof=student admin coordinator"`
}

// UserService serves profiles and the operator-side account workflow.
type UserService struct {
	repo       userRepository
	activities studentActivityReader
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, activities studentActivityReader, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, activities: activities, validator: validate, logger: logger}
}

// Profile returns the user with enrolled activities and attendance history.
func (s *UserService) Profile(ctx context.Context, id string) (*models.UserProfile, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "User not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	activities, err := s.activities.ListByStudent(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrolled activities")
	}
	history, err := s.repo.History(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance history")
	}
	if activities == nil {
		activities = []models.Activity{}
	}
	if history == nil {
		history = []models.AttendanceRecord{}
	}
	return &models.UserProfile{User: *user, EnrolledActivities: activities, AttendanceHistory: history}, nil
}

// Provision creates an approved account of any role.
func (s *UserService) Provision(ctx context.Context, req ProvisionUserRequest, cost int) (*models.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), cost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         req.Role,
		RoleStatus:   models.RoleStatusApproved,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "User already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	s.audit(ctx, models.AuditActionUserCreate, user.ID, map[string]interface{}{"email": user.Email, "role": user.Role})
	return user, nil
}

// SetRoleStatus approves or rejects a requested role.
func (s *UserService) SetRoleStatus(ctx context.Context, email string, status models.RoleStatus) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if status != models.RoleStatusApproved && status != models.RoleStatusRejected && status != models.RoleStatusPending {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role status")
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "User not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	previous := user.RoleStatus

	if err := s.repo.UpdateRoleStatus(ctx, email, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "User not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update role status")
	}
	user.RoleStatus = status

	s.audit(ctx, models.AuditActionUserRoleStatus, user.ID, map[string]interface{}{"from": previous, "to": status})
	s.logger.Info("role status changed", zap.String("user_id", user.ID), zap.String("status", string(status)))
	return user, nil
}

// ReconcilePoints rebuilds missing history lines and recomputes balances.
func (s *UserService) ReconcilePoints(ctx context.Context) (int64, error) {
	n, err := s.repo.ReconcilePoints(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reconcile points")
	}
	s.logger.Info("points reconciled", zap.Int64("corrected_users", n))
	return n, nil
}

func (s *UserService) audit(ctx context.Context, action, userID string, payload map[string]interface{}) {
	raw, _ := json.Marshal(payload)
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		Action:     action,
		Resource:   "users",
		ResourceID: &userID,
		Payload:    string(raw),
		IPAddress:  "cli",
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
