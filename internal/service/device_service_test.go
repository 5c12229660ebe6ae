package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/geo-attendance-api/internal/dto"
	"github.com/noah-isme/geo-attendance-api/internal/models"
	"github.com/noah-isme/geo-attendance-api/internal/repository"
	appErrors "github.com/noah-isme/geo-attendance-api/pkg/errors"
)

type memDeviceRequests struct {
	mu       sync.Mutex
	requests map[string]models.DeviceRequest
	seq      int
	counts   int
}

func newMemDeviceRequests() *memDeviceRequests {
	return &memDeviceRequests{requests: make(map[string]models.DeviceRequest)}
}

func (m *memDeviceRequests) Create(_ context.Context, _ sqlx.ExtContext, request *models.DeviceRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.requests {
		if r.StudentID == request.StudentID && r.Status == models.DeviceRequestPending {
			return repository.ErrConflict
		}
	}
	m.seq++
	request.ID = "req-" + string(rune('0'+m.seq))
	request.Status = models.DeviceRequestPending
	m.requests[request.ID] = *request
	return nil
}

func (m *memDeviceRequests) LockByID(_ context.Context, _ sqlx.ExtContext, id string) (*models.DeviceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &r, nil
}

func (m *memDeviceRequests) FindLatestByStudent(_ context.Context, studentID string) (*models.DeviceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.DeviceRequest
	for _, r := range m.requests {
		r := r
		if r.StudentID == studentID && (latest == nil || r.ID > latest.ID) {
			latest = &r
		}
	}
	if latest == nil {
		return nil, sql.ErrNoRows
	}
	return latest, nil
}

func (m *memDeviceRequests) Resolve(_ context.Context, _ sqlx.ExtContext, request *models.DeviceRequest) (*models.DeviceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.requests[request.ID]
	if !ok || current.Status != models.DeviceRequestPending {
		return nil, sql.ErrNoRows
	}
	m.requests[request.ID] = *request
	stored := *request
	return &stored, nil
}

func (m *memDeviceRequests) List(_ context.Context, filter models.DeviceRequestFilter) ([]models.DeviceRequestView, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.DeviceRequestView{}
	for _, r := range m.requests {
		if filter.Status == nil || r.Status == *filter.Status {
			out = append(out, models.DeviceRequestView{DeviceRequest: r})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, len(out), nil
}

func (m *memDeviceRequests) CountByStatus(_ context.Context, status models.DeviceRequestStatus) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts++
	n := 0
	for _, r := range m.requests {
		if r.Status == status {
			n++
		}
	}
	return n, nil
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]models.User
	// boundElsewhere simulates a concurrent first-use bind.
	boundElsewhere *string
}

func newMemUsers(users ...models.User) *memUsers {
	m := &memUsers{users: make(map[string]models.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memUsers) get(id string) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id]
}

func (m *memUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &u, nil
}

func (m *memUsers) LockByID(ctx context.Context, _ sqlx.ExtContext, id string) (*models.User, error) {
	return m.FindByID(ctx, id)
}

func (m *memUsers) BindDeviceIfUnset(_ context.Context, id, deviceID string, _ time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[id]
	if m.boundElsewhere != nil {
		u.DeviceID = m.boundElsewhere
		m.users[id] = u
		return false, nil
	}
	if u.DeviceID != nil {
		return false, nil
	}
	u.DeviceID = &deviceID
	m.users[id] = u
	return true, nil
}

func (m *memUsers) SetPendingDeviceChange(_ context.Context, _ sqlx.ExtContext, id string, pending bool, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[id]
	u.PendingDeviceChange = pending
	m.users[id] = u
	return nil
}

func (m *memUsers) ApplyDeviceChange(_ context.Context, _ sqlx.ExtContext, id, deviceID string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[id]
	u.DeviceID = &deviceID
	u.PendingDeviceChange = false
	m.users[id] = u
	return nil
}

type memCache struct {
	mu      sync.Mutex
	values  map[string]int
	deletes int
}

func (c *memCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	*(dest.(*int)) = v
	return nil
}

func (c *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value.(int)
	return nil
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.values, k)
	}
	c.deletes++
	return nil
}

type deviceFixture struct {
	svc      *DeviceService
	requests *memDeviceRequests
	users    *memUsers
	cache    *memCache
	audit    *auditStoreStub
}

func newDeviceFixture(users ...models.User) *deviceFixture {
	f := &deviceFixture{
		requests: newMemDeviceRequests(),
		users:    newMemUsers(users...),
		cache:    &memCache{values: map[string]int{}},
		audit:    &auditStoreStub{},
	}
	cache := NewCacheService(f.cache, nil, time.Minute, nil, true)
	f.svc = NewDeviceService(f.requests, f.users, &txStub{}, cache, f.audit, NewMetricsService(), nil, nil)
	return f
}

func student(id, device string) models.User {
	u := models.User{ID: id, Role: models.RoleStudent, FullName: "Student " + id, StudentCode: ptr("S-" + id)}
	if device != "" {
		u.DeviceID = ptr(device)
	}
	return u
}

var deviceNow = time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)

func TestDeviceWorkflowSubmitConflictApprove(t *testing.T) {
	f := newDeviceFixture(student("stu-1", "phone-old"))

	request, err := f.svc.Submit(context.Background(), dto.SubmitDeviceRequest{StudentID: "stu-1", NewDeviceID: "phone-new"}, deviceNow)
	require.NoError(t, err)
	assert.Equal(t, models.DeviceRequestPending, request.Status)
	assert.Equal(t, "phone-old", *request.OldDeviceID)
	assert.True(t, f.users.get("stu-1").PendingDeviceChange)

	_, err = f.svc.Submit(context.Background(), dto.SubmitDeviceRequest{StudentID: "stu-1", NewDeviceID: "phone-other"}, deviceNow)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrDeviceRequestPending.Code))

	approved, err := f.svc.Approve(context.Background(), request.ID, owner, deviceNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.DeviceRequestApproved, approved.Status)
	assert.Equal(t, owner.UserID, *approved.ProcessedBy)
	assert.Equal(t, deviceNow.Add(time.Hour), *approved.ProcessedAt)

	user := f.users.get("stu-1")
	assert.Equal(t, "phone-new", *user.DeviceID)
	assert.False(t, user.PendingDeviceChange)

	_, err = f.svc.Approve(context.Background(), request.ID, owner, deviceNow)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrRequestAlreadyHandled.Code))
	_, err = f.svc.Reject(context.Background(), request.ID, dto.RejectDeviceRequest{}, owner, deviceNow)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrRequestAlreadyHandled.Code))

	// a fresh cycle may start once the previous one is terminal
	_, err = f.svc.Submit(context.Background(), dto.SubmitDeviceRequest{StudentID: "stu-1", NewDeviceID: "phone-3"}, deviceNow)
	require.NoError(t, err)

	assert.Equal(t, []string{
		models.AuditActionDeviceSubmit, models.AuditActionDeviceApprove, models.AuditActionDeviceSubmit,
	}, f.audit.actions())
}

func TestDeviceWorkflowApproveLeavesOtherStudents(t *testing.T) {
	f := newDeviceFixture(student("stu-1", "shared"), student("stu-2", "shared"))

	request, err := f.svc.Submit(context.Background(), dto.SubmitDeviceRequest{StudentID: "stu-1", NewDeviceID: "mine"}, deviceNow)
	require.NoError(t, err)
	_, err = f.svc.Approve(context.Background(), request.ID, admin, deviceNow)
	require.NoError(t, err)

	assert.Equal(t, "mine", *f.users.get("stu-1").DeviceID)
	assert.Equal(t, "shared", *f.users.get("stu-2").DeviceID)
}

func TestDeviceWorkflowReject(t *testing.T) {
	f := newDeviceFixture(student("stu-1", "phone-old"))
	request, err := f.svc.Submit(context.Background(), dto.SubmitDeviceRequest{StudentID: "stu-1", NewDeviceID: "phone-new", OldDeviceID: ptr("claimed")}, deviceNow)
	require.NoError(t, err)
	assert.Equal(t, "claimed", *request.OldDeviceID)

	rejected, err := f.svc.Reject(context.Background(), request.ID, dto.RejectDeviceRequest{}, owner, deviceNow)
	require.NoError(t, err)
	assert.Equal(t, models.DeviceRequestRejected, rejected.Status)
	assert.Equal(t, defaultRejectReason, *rejected.RejectReason)

	user := f.users.get("stu-1")
	assert.Equal(t, "phone-old", *user.DeviceID)
	assert.False(t, user.PendingDeviceChange)

	status, err := f.svc.LatestStatus(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, models.DeviceRequestRejected, status.Status)
}

func TestDeviceWorkflowErrors(t *testing.T) {
	f := newDeviceFixture(student("stu-1", ""), models.User{ID: "t-1", Role: models.RoleTeacher})

	_, err := f.svc.Submit(context.Background(), dto.SubmitDeviceRequest{StudentID: "ghost", NewDeviceID: "x"}, deviceNow)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrStudentNotFound.Code))

	_, err = f.svc.Submit(context.Background(), dto.SubmitDeviceRequest{StudentID: "t-1", NewDeviceID: "x"}, deviceNow)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrStudentNotFound.Code))

	_, err = f.svc.Submit(context.Background(), dto.SubmitDeviceRequest{StudentID: "stu-1"}, deviceNow)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	_, err = f.svc.Approve(context.Background(), "missing", owner, deviceNow)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrDeviceRequestNotFound.Code))

	_, err = f.svc.Approve(context.Background(), "missing", nil, deviceNow)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized.Code))

	_, err = f.svc.LatestStatus(context.Background(), "stu-1")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrDeviceRequestNotFound.Code))

	_, _, err = f.svc.List(context.Background(), dto.DeviceRequestQuery{Status: "archived"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
}

func TestDevicePendingCountIsCachedAndInvalidated(t *testing.T) {
	f := newDeviceFixture(student("stu-1", "a"), student("stu-2", "b"))

	count, hit, err := f.svc.PendingCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.False(t, hit)
	_, hit, _ = f.svc.PendingCount(context.Background())
	assert.True(t, hit)
	assert.Equal(t, 1, f.requests.counts)

	_, err = f.svc.Submit(context.Background(), dto.SubmitDeviceRequest{StudentID: "stu-1", NewDeviceID: "c"}, deviceNow)
	require.NoError(t, err)

	count, hit, err = f.svc.PendingCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.False(t, hit)
	assert.Equal(t, 2, f.requests.counts)
}

func TestDeviceListDefaultsPaging(t *testing.T) {
	f := newDeviceFixture(student("stu-1", "a"))
	_, err := f.svc.Submit(context.Background(), dto.SubmitDeviceRequest{StudentID: "stu-1", NewDeviceID: "c"}, deviceNow)
	require.NoError(t, err)

	items, page, err := f.svc.List(context.Background(), dto.DeviceRequestQuery{Status: "pending"})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)
	assert.Equal(t, 1, page.TotalCount)
}

func TestCheckBinding(t *testing.T) {
	t.Run("first use binds", func(t *testing.T) {
		f := newDeviceFixture(student("stu-1", ""))
		user := f.users.get("stu-1")
		require.NoError(t, f.svc.CheckBinding(context.Background(), &user, "phone", deviceNow))
		assert.Equal(t, "phone", *f.users.get("stu-1").DeviceID)
		assert.Equal(t, "phone", *user.DeviceID)
		assert.Equal(t, []string{models.AuditActionDeviceBound}, f.audit.actions())
	})

	t.Run("same device passes", func(t *testing.T) {
		f := newDeviceFixture(student("stu-1", "phone"))
		user := f.users.get("stu-1")
		assert.NoError(t, f.svc.CheckBinding(context.Background(), &user, "phone", deviceNow))
	})

	t.Run("mismatch carries context", func(t *testing.T) {
		f := newDeviceFixture(student("stu-1", "phone"))
		user := f.users.get("stu-1")
		err := f.svc.CheckBinding(context.Background(), &user, "tablet", deviceNow)
		require.True(t, appErrors.HasCode(err, appErrors.ErrDeviceMismatch.Code))
		details := appErrors.FromError(err).Details
		assert.Equal(t, "stu-1", details["studentId"])
		assert.Equal(t, "phone", details["oldDeviceId"])
		assert.Equal(t, "tablet", details["newDeviceId"])
		assert.Equal(t, "S-stu-1", details["studentCode"])
	})

	t.Run("pending change blocks login", func(t *testing.T) {
		u := student("stu-1", "phone")
		u.PendingDeviceChange = true
		f := newDeviceFixture(u)
		err := f.svc.CheckBinding(context.Background(), &u, "tablet", deviceNow)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrDeviceApprovalPending.Code))
	})

	t.Run("concurrent first bind is re-evaluated", func(t *testing.T) {
		f := newDeviceFixture(student("stu-1", ""))
		f.users.boundElsewhere = ptr("other-phone")
		user := f.users.get("stu-1")
		err := f.svc.CheckBinding(context.Background(), &user, "phone", deviceNow)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrDeviceMismatch.Code))
	})

	t.Run("students must present a device", func(t *testing.T) {
		f := newDeviceFixture(student("stu-1", ""))
		user := f.users.get("stu-1")
		err := f.svc.CheckBinding(context.Background(), &user, "", deviceNow)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
	})

	t.Run("staff are not bound", func(t *testing.T) {
		f := newDeviceFixture()
		assert.NoError(t, f.svc.CheckBinding(context.Background(), &models.User{ID: "t", Role: models.RoleTeacher}, "", deviceNow))
	})
}
