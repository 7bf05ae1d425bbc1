package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/ekskul-api/internal/models"
	"github.com/noah-isme/ekskul-api/internal/repository"
)

// memStore mimics the relational constraints the repositories rely on: the
// (event, student) key on attendance, the activity row lock on enrollment, and
// single-transaction point credits. One mutex stands in for the database.
type memStore struct {
	mu          sync.Mutex
	seq         int
	clock       time.Time
	users       map[string]*models.User
	activities  map[string]*models.Activity
	activityIDs []string
	enrollments map[string][]string
	events      map[string]*models.Event
	eventIDs    []string
	attendees   map[string][]string
	attendance  map[string][]models.AttendanceEntry
	history     map[string][]models.AttendanceRecord
	audits      []models.AuditLog
}

func newMemStore() *memStore {
	return &memStore{
		clock:       time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC),
		users:       map[string]*models.User{},
		activities:  map[string]*models.Activity{},
		enrollments: map[string][]string{},
		events:      map[string]*models.Event{},
		attendees:   map[string][]string{},
		attendance:  map[string][]models.AttendanceEntry{},
		history:     map[string][]models.AttendanceRecord{},
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s%d", prefix, m.seq)
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Minute)
	return m.clock
}

func (m *memStore) addUser(id, name string, role models.UserRole) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &models.User{ID: id, Name: name, Email: id + "@school.test", Role: role, RoleStatus: models.RoleStatusApproved, CreatedAt: m.tick()}
	m.users[id] = u
	return u
}

func (m *memStore) addActivity(id string, category models.ActivityCategory, capacity int) *models.Activity {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := &models.Activity{ID: id, Name: "Activity " + id, Category: category, MaxCapacity: capacity, PointsPerAttendance: models.DefaultPointsPerAttendance, CreatedAt: m.tick()}
	m.activities[id] = a
	m.activityIDs = append(m.activityIDs, id)
	return a
}

func (m *memStore) addEvent(id, activityID string, points int) *models.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	token := "qr-" + id
	e := &models.Event{ID: id, ActivityID: activityID, Title: "Event " + id, Date: m.tick(), PointsPerEvent: points, QRCode: &token}
	m.events[id] = e
	m.eventIDs = append(m.eventIDs, id)
	return e
}

func (m *memStore) points(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[userID].Points
}

func (m *memStore) historyOf(userID string) []models.AttendanceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.AttendanceRecord(nil), m.history[userID]...)
}

func (m *memStore) attendanceOf(eventID string) []models.AttendanceEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.AttendanceEntry(nil), m.attendance[eventID]...)
}

func (m *memStore) enrollment(activityID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activities[activityID].CurrentEnrollment
}

// summariesLocked joins student ids onto users like the repository queries do.
func (m *memStore) summariesLocked(ids []string) []models.StudentSummary {
	out := make([]models.StudentSummary, 0, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, models.StudentSummary{ID: u.ID, Name: u.Name, Email: u.Email})
		}
	}
	return out
}

func studentIDs(list []models.StudentSummary) []string {
	ids := make([]string, len(list))
	for i, s := range list {
		ids[i] = s.ID
	}
	return ids
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// activityStore exposes memStore through the activity repository contract.
type activityStore struct{ *memStore }

func (s activityStore) List(_ context.Context) ([]models.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Activity, 0, len(s.activityIDs))
	for _, id := range s.activityIDs {
		out = append(out, *s.activities[id])
	}
	return out, nil
}

func (s activityStore) FindByID(_ context.Context, id string) (*models.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.activities[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func (s activityStore) Create(_ context.Context, activity *models.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	activity.ID = s.nextID("act-")
	activity.CreatedAt = s.tick()
	cp := *activity
	s.activities[activity.ID] = &cp
	s.activityIDs = append(s.activityIDs, activity.ID)
	return nil
}

func (s activityStore) Update(_ context.Context, activity *models.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.activities[activity.ID]
	if !ok {
		return sql.ErrNoRows
	}
	if current.CurrentEnrollment > activity.MaxCapacity {
		return repository.ErrActivityFull
	}
	cp := *activity
	cp.CurrentEnrollment = current.CurrentEnrollment
	s.activities[activity.ID] = &cp
	return nil
}

func (s activityStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.activities[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.activities, id)
	delete(s.enrollments, id)
	for i, v := range s.activityIDs {
		if v == id {
			s.activityIDs = append(s.activityIDs[:i], s.activityIDs[i+1:]...)
			break
		}
	}
	for eid, e := range s.events {
		if e.ActivityID == id {
			delete(s.events, eid)
			delete(s.attendees, eid)
			delete(s.attendance, eid)
		}
	}
	return nil
}

func (s activityStore) Enroll(_ context.Context, activityID, studentID string) (*models.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.activities[activityID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if a.CurrentEnrollment >= a.MaxCapacity {
		return nil, repository.ErrActivityFull
	}
	if contains(s.enrollments[activityID], studentID) {
		return nil, repository.ErrAlreadyEnrolled
	}
	s.enrollments[activityID] = append(s.enrollments[activityID], studentID)
	a.CurrentEnrollment++
	cp := *a
	return &cp, nil
}

func (s activityStore) Unenroll(_ context.Context, activityID, studentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.activities[activityID]
	if !ok {
		return false, sql.ErrNoRows
	}
	list := s.enrollments[activityID]
	for i, v := range list {
		if v == studentID {
			s.enrollments[activityID] = append(list[:i], list[i+1:]...)
			if a.CurrentEnrollment > 0 {
				a.CurrentEnrollment--
			}
			return true, nil
		}
	}
	return false, nil
}

func (s activityStore) EnrolledStudents(_ context.Context, ids []string) (map[string][]models.StudentSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string][]models.StudentSummary{}
	for _, id := range ids {
		if list := s.enrollments[id]; len(list) > 0 {
			out[id] = s.summariesLocked(list)
		}
	}
	return out, nil
}

func (s activityStore) StudentIDs(_ context.Context, activityID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.enrollments[activityID]...), nil
}

func (s activityStore) ListByStudent(_ context.Context, studentID string) ([]models.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Activity
	for _, id := range s.activityIDs {
		if contains(s.enrollments[id], studentID) {
			out = append(out, *s.activities[id])
		}
	}
	return out, nil
}

func (s activityStore) Recommend(_ context.Context, studentID string, limit int) ([]models.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	categories := map[models.ActivityCategory]bool{}
	for _, id := range s.activityIDs {
		if contains(s.enrollments[id], studentID) {
			categories[s.activities[id].Category] = true
		}
	}
	var out []models.Activity
	for _, id := range s.activityIDs {
		a := s.activities[id]
		if !categories[a.Category] || contains(s.enrollments[id], studentID) {
			continue
		}
		out = append(out, *a)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// eventStore exposes memStore through the event repository contract.
type eventStore struct{ *memStore }

func (s eventStore) Create(_ context.Context, event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event.ID = s.nextID("evt-")
	event.CreatedAt = s.tick()
	cp := *event
	s.events[event.ID] = &cp
	s.eventIDs = append(s.eventIDs, event.ID)
	return nil
}

func (s eventStore) FindByID(_ context.Context, id string) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *e
	return &cp, nil
}

func (s eventStore) FindByQRToken(_ context.Context, token string) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e.QRCode != nil && *e.QRCode == token {
			cp := *e
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s eventStore) ListByActivity(_ context.Context, activityID string) ([]models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Event
	for _, id := range s.eventIDs {
		if e, ok := s.events[id]; ok && e.ActivityID == activityID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s eventStore) ListByAttendee(_ context.Context, userID string) ([]models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Event
	for _, id := range s.eventIDs {
		if e, ok := s.events[id]; ok && contains(s.attendees[id], userID) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s eventStore) UpcomingIDs(_ context.Context, activityID string, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, id := range s.eventIDs {
		if e, ok := s.events[id]; ok && e.ActivityID == activityID && !e.Date.Before(now) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s eventStore) AddAttendee(_ context.Context, eventID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[eventID]
	if !ok {
		return sql.ErrNoRows
	}
	if contains(s.attendees[eventID], userID) {
		return repository.ErrAlreadyAttending
	}
	if e.Capacity != nil && len(s.attendees[eventID]) >= *e.Capacity {
		return repository.ErrEventFull
	}
	s.attendees[eventID] = append(s.attendees[eventID], userID)
	return nil
}

func (s eventStore) Attendees(_ context.Context, ids []string) (map[string][]models.StudentSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string][]models.StudentSummary{}
	for _, id := range ids {
		if list := s.attendees[id]; len(list) > 0 {
			out[id] = s.summariesLocked(list)
		}
	}
	return out, nil
}

func (s eventStore) AttendanceEntries(_ context.Context, ids []string) (map[string][]models.AttendanceEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string][]models.AttendanceEntry{}
	for _, id := range ids {
		for _, entry := range s.attendance[id] {
			if summary := s.summariesLocked([]string{entry.StudentID}); len(summary) == 1 {
				entry.Student = &summary[0]
			}
			out[id] = append(out[id], entry)
		}
	}
	return out, nil
}

func (s eventStore) StatsByActivity(_ context.Context, activityID string) ([]models.EventAttendanceStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.EventAttendanceStats
	for _, id := range s.eventIDs {
		e, ok := s.events[id]
		if !ok || e.ActivityID != activityID {
			continue
		}
		row := models.EventAttendanceStats{EventID: id, Title: e.Title, Date: e.Date, RegisteredCount: len(s.attendees[id]), AttendanceCount: len(s.attendance[id])}
		for _, entry := range s.attendance[id] {
			if entry.Status == models.AttendancePresent {
				row.PresentCount++
			}
		}
		out = append(out, row)
	}
	return out, nil
}

// userStore exposes memStore through the user repository contract.
type userStore struct{ *memStore }

func (s userStore) FindByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (s userStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s userStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	user.ID = s.nextID("usr-")
	user.CreatedAt = s.tick()
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s userStore) UpdateRoleStatus(_ context.Context, email string, status models.RoleStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			u.RoleStatus = status
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s userStore) TopStudents(_ context.Context, limit int) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.User
	for _, u := range s.users {
		if u.Role == models.RoleStudent {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s userStore) History(_ context.Context, userID string) ([]models.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AttendanceRecord, 0, len(s.history[userID]))
	for _, r := range s.history[userID] {
		if e, ok := s.events[r.EventID]; ok {
			title, date := e.Title, e.Date
			r.EventTitle, r.EventDate = &title, &date
		}
		if a, ok := s.activities[r.ActivityID]; ok {
			name := a.Name
			r.ActivityName = &name
		}
		out = append(out, r)
	}
	return out, nil
}

func (s userStore) ReconcilePoints(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var changed int64
	for id, u := range s.users {
		total := 0
		for _, r := range s.history[id] {
			total += r.PointsEarned
		}
		if u.Points != total {
			u.Points = total
			changed++
		}
	}
	return changed, nil
}

func (s userStore) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, *log)
	return nil
}

// ledgerStore applies a mark the way the attendance transaction does.
type ledgerStore struct{ *memStore }

func (s ledgerStore) Mark(_ context.Context, cmd models.MarkAttendance) (*models.AttendanceEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.attendance[cmd.EventID] {
		if entry.StudentID == cmd.StudentID {
			return nil, repository.ErrAlreadyMarked
		}
	}
	user, ok := s.users[cmd.StudentID]
	if !ok {
		return nil, sql.ErrNoRows
	}

	entry := models.AttendanceEntry{EventID: cmd.EventID, StudentID: cmd.StudentID, Status: cmd.Status, MarkedBy: cmd.MarkedBy, MarkedAt: cmd.MarkedAt}
	if cmd.Status == models.AttendancePresent {
		entry.PointsAwarded = cmd.Points
		user.Points += cmd.Points
		s.history[cmd.StudentID] = append(s.history[cmd.StudentID], models.AttendanceRecord{
			EventID: cmd.EventID, ActivityID: cmd.ActivityID, EarnedAt: cmd.MarkedAt, PointsEarned: cmd.Points,
		})
	}
	s.attendance[cmd.EventID] = append(s.attendance[cmd.EventID], entry)
	return &entry, nil
}

// recordingNotifier captures fan-out calls without a queue.
type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingNotifier) NotifyActivityMembers(_ context.Context, activityID string, kind models.NotificationType, _, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, string(kind)+":activity:"+activityID)
}

func (r *recordingNotifier) NotifyUser(_ context.Context, userID, _ string, kind models.NotificationType, _, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, string(kind)+":user:"+userID)
}

func (r *recordingNotifier) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}
