package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ekskul-api/internal/dto"
	"github.com/noah-isme/ekskul-api/internal/middleware"
	"github.com/noah-isme/ekskul-api/internal/models"
	appErrors "github.com/noah-isme/ekskul-api/pkg/errors"
)

type fakeAuthSrv struct {
	resp *models.AuthResponse
	err  error
	last models.LoginRequest
}

func (f *fakeAuthSrv) Register(_ context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	return f.resp, f.err
}

func (f *fakeAuthSrv) Login(_ context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	f.last = req
	return f.resp, f.err
}

type fakeActivitySrv struct {
	list       []models.Activity
	hit        bool
	err        error
	registered []string
	creator    string
}

func (f *fakeActivitySrv) List(context.Context) ([]models.Activity, bool, error) {
	return f.list, f.hit, f.err
}

func (f *fakeActivitySrv) Get(_ context.Context, id string) (*models.Activity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Activity{ID: id}, nil
}

func (f *fakeActivitySrv) Create(_ context.Context, creatorID string, req models.CreateActivityRequest) (*models.Activity, error) {
	f.creator = creatorID
	return &models.Activity{ID: "a-new", Name: req.Name}, f.err
}

func (f *fakeActivitySrv) Update(_ context.Context, id string, _ models.UpdateActivityRequest) (*models.Activity, error) {
	return &models.Activity{ID: id}, f.err
}

func (f *fakeActivitySrv) Delete(context.Context, string) error { return f.err }

func (f *fakeActivitySrv) Register(_ context.Context, activityID, studentID string) (*models.Activity, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.registered = append(f.registered, activityID+":"+studentID)
	return &models.Activity{ID: activityID, CurrentEnrollment: 1}, nil
}

func (f *fakeActivitySrv) Unregister(context.Context, string, string) error { return f.err }

type fakeInsightSrv struct {
	board []dto.LeaderboardEntry
}

func (f *fakeInsightSrv) Recommendations(context.Context, string) ([]models.Activity, error) {
	return []models.Activity{}, nil
}

func (f *fakeInsightSrv) Analytics(_ context.Context, activityID string) (*dto.ActivityAnalyticsResponse, error) {
	return &dto.ActivityAnalyticsResponse{ActivityID: activityID}, nil
}

func (f *fakeInsightSrv) Leaderboard(context.Context) ([]dto.LeaderboardEntry, error) {
	return f.board, nil
}

type fakeEventSrv struct {
	attendErr error
}

func (f *fakeEventSrv) ListByActivity(context.Context, string) ([]models.Event, bool, error) {
	return []models.Event{{ID: "e1"}}, true, nil
}

func (f *fakeEventSrv) Get(_ context.Context, id string) (*models.Event, error) {
	return &models.Event{ID: id}, nil
}

func (f *fakeEventSrv) Create(_ context.Context, req models.CreateEventRequest) (*models.Event, error) {
	return &models.Event{ID: "e-new", ActivityID: req.ActivityID}, nil
}

func (f *fakeEventSrv) Attend(_ context.Context, eventID, _ string) (*models.Event, error) {
	if f.attendErr != nil {
		return nil, f.attendErr
	}
	return &models.Event{ID: eventID}, nil
}

func (f *fakeEventSrv) RegisterByQR(_ context.Context, token, _ string) (*models.Event, error) {
	return &models.Event{ID: "by-" + token}, nil
}

type fakeAttendanceSrv struct {
	marker string
	err    error
}

func (f *fakeAttendanceSrv) Mark(_ context.Context, eventID, markerID string, req models.MarkAttendanceRequest) (*models.MarkAttendanceResponse, error) {
	f.marker = markerID
	if f.err != nil {
		return nil, f.err
	}
	return &models.MarkAttendanceResponse{Message: "Attendance marked as present", Event: &models.Event{ID: eventID}}, nil
}

func newContext(method, target string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	c.Request = httptest.NewRequest(method, target, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	return c, rec
}

func withClaims(c *gin.Context, id string, role models.UserRole) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: id, Role: role, RoleStatus: models.RoleStatusApproved})
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	msg, _ := body["message"].(string)
	return msg
}

func TestAuthHandlerLoginMapsErrors(t *testing.T) {
	srv := &fakeAuthSrv{err: appErrors.Clone(appErrors.ErrForbidden, "Account pending approval")}
	h := NewAuthHandler(srv)

	c, rec := newContext(http.MethodPost, "/auth/login", models.LoginRequest{Email: "a@b.test", Password: "secret1"})
	h.Login(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Account pending approval", decodeMessage(t, rec))
	assert.Equal(t, "a@b.test", srv.last.Email)
}

func TestAuthHandlerRegisterCreated(t *testing.T) {
	h := NewAuthHandler(&fakeAuthSrv{resp: &models.AuthResponse{Token: "tok", User: models.UserInfo{ID: "u1"}}})

	c, rec := newContext(http.MethodPost, "/auth/register", models.RegisterRequest{Name: "Sari", Email: "s@b.test", Password: "secret1"})
	h.Register(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"token":"tok"`)
}

func TestAuthHandlerRejectsMalformedJSON(t *testing.T) {
	h := NewAuthHandler(&fakeAuthSrv{})

	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString("{"))
	c.Request.Header.Set("Content-Type", "application/json")
	h.Login(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActivityHandlerListSetsCacheHeader(t *testing.T) {
	h := NewActivityHandler(&fakeActivitySrv{list: []models.Activity{{ID: "a1"}}, hit: true}, &fakeInsightSrv{})

	c, rec := newContext(http.MethodGet, "/activities", nil)
	h.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get(middleware.CacheHeader))
	var out []models.Activity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "a1", out[0].ID)
}

func TestActivityHandlerRegisterUsesCaller(t *testing.T) {
	srv := &fakeActivitySrv{}
	h := NewActivityHandler(srv, &fakeInsightSrv{})

	c, rec := newContext(http.MethodPost, "/activities/a1/register", nil)
	c.Params = gin.Params{{Key: "id", Value: "a1"}}
	withClaims(c, "s1", models.RoleStudent)
	h.Register(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Registered successfully", decodeMessage(t, rec))
	assert.Equal(t, []string{"a1:s1"}, srv.registered)
}

func TestActivityHandlerRegisterFull(t *testing.T) {
	h := NewActivityHandler(&fakeActivitySrv{err: appErrors.Clone(appErrors.ErrFull, "Activity is full")}, &fakeInsightSrv{})

	c, rec := newContext(http.MethodPost, "/activities/a1/register", nil)
	c.Params = gin.Params{{Key: "id", Value: "a1"}}
	withClaims(c, "s1", models.RoleStudent)
	h.Register(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Activity is full", decodeMessage(t, rec))
}

func TestActivityHandlerRequiresClaims(t *testing.T) {
	h := NewActivityHandler(&fakeActivitySrv{}, &fakeInsightSrv{})

	c, rec := newContext(http.MethodPost, "/activities", models.CreateActivityRequest{Name: "Chess"})
	h.Create(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestActivityHandlerDeleteAck(t *testing.T) {
	h := NewActivityHandler(&fakeActivitySrv{}, &fakeInsightSrv{})

	c, rec := newContext(http.MethodDelete, "/activities/a1", nil)
	c.Params = gin.Params{{Key: "id", Value: "a1"}}
	h.Delete(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Activity deleted", decodeMessage(t, rec))
}

func TestEventHandlerMarkAttendance(t *testing.T) {
	srv := &fakeAttendanceSrv{}
	h := NewEventHandler(&fakeEventSrv{}, srv, &fakeInsightSrv{})

	c, rec := newContext(http.MethodPost, "/events/e1/attendance", models.MarkAttendanceRequest{StudentID: "s1", Status: models.AttendancePresent})
	c.Params = gin.Params{{Key: "id", Value: "e1"}}
	withClaims(c, "coord", models.RoleCoordinator)
	h.MarkAttendance(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Attendance marked as present", decodeMessage(t, rec))
	assert.Equal(t, "coord", srv.marker)
}

func TestEventHandlerMarkAttendanceDuplicate(t *testing.T) {
	srv := &fakeAttendanceSrv{err: appErrors.Clone(appErrors.ErrAlreadyMarked, "Attendance already marked for this student")}
	h := NewEventHandler(&fakeEventSrv{}, srv, &fakeInsightSrv{})

	c, rec := newContext(http.MethodPost, "/events/e1/attendance", models.MarkAttendanceRequest{StudentID: "s1"})
	c.Params = gin.Params{{Key: "id", Value: "e1"}}
	withClaims(c, "coord", models.RoleCoordinator)
	h.MarkAttendance(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Attendance already marked for this student", decodeMessage(t, rec))
}

func TestEventHandlerAttendNotFound(t *testing.T) {
	h := NewEventHandler(&fakeEventSrv{attendErr: appErrors.Clone(appErrors.ErrNotFound, "Event not found")}, &fakeAttendanceSrv{}, &fakeInsightSrv{})

	c, rec := newContext(http.MethodPost, "/events/e9/attend", nil)
	c.Params = gin.Params{{Key: "id", Value: "e9"}}
	withClaims(c, "s1", models.RoleStudent)
	h.Attend(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEventHandlerUnexpectedErrorIs500(t *testing.T) {
	h := NewEventHandler(&fakeEventSrv{attendErr: errors.New("boom")}, &fakeAttendanceSrv{}, &fakeInsightSrv{})

	c, rec := newContext(http.MethodPost, "/events/e1/attend", nil)
	withClaims(c, "s1", models.RoleStudent)
	h.Attend(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, decodeMessage(t, rec))
}

func TestUserHandlerLeaderboard(t *testing.T) {
	board := []dto.LeaderboardEntry{{Rank: 1, ID: "s30", Points: 30}, {Rank: 2, ID: "s20", Points: 20}}
	h := NewUserHandler(nil, nil, &fakeInsightSrv{board: board})

	c, rec := newContext(http.MethodGet, "/users/leaderboard/top", nil)
	h.Leaderboard(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var out []dto.LeaderboardEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, board, out)
}

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

func TestHealthHandlerReady(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/ready", nil)
	NewHealthHandler(nil, fakePinger{}).Ready(c)
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = newContext(http.MethodGet, "/ready", nil)
	NewHealthHandler(nil, fakePinger{err: errors.New("refused")}).Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	c, rec = newContext(http.MethodGet, "/metrics", nil)
	NewHealthHandler(nil, nil).Prometheus(c)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
