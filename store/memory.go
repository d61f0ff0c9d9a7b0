package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"ecoenzim-service/models"
)

// MemoryStore is an in-memory Store for tests and local development.
// Transactions hold the store mutex for their whole duration and work on a
// copy of the data, so they are serializable and roll back on error.
type MemoryStore struct {
	*memRepo
	mu sync.Mutex
}

var _ Store = (*MemoryStore)(nil)

type memData struct {
	projects map[string]models.Project
	uploads  map[string]models.Upload
	users    map[string]models.User
	ledger   []models.PointsHistory
	rewards  map[string]models.Reward
	claims   map[string]models.MilestoneClaim
}

func newMemData() *memData {
	return &memData{
		projects: make(map[string]models.Project),
		uploads:  make(map[string]models.Upload),
		users:    make(map[string]models.User),
		rewards:  make(map[string]models.Reward),
		claims:   make(map[string]models.MilestoneClaim),
	}
}

// clone copies every map. Stored structs are replaced wholesale on write and
// never mutated through their pointer fields, so a shallow value copy is enough.
func (d *memData) clone() *memData {
	c := newMemData()
	for k, v := range d.projects {
		c.projects[k] = v
	}
	for k, v := range d.uploads {
		c.uploads[k] = v
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.rewards {
		c.rewards[k] = v
	}
	for k, v := range d.claims {
		c.claims[k] = v
	}
	c.ledger = append([]models.PointsHistory(nil), d.ledger...)
	return c
}

type noLock struct{}

func (noLock) Lock()   {}
func (noLock) Unlock() {}

type memRepo struct {
	d    *memData
	lock sync.Locker
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	s.memRepo = &memRepo{d: newMemData(), lock: &s.mu, now: time.Now}
	return s
}

func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.memRepo.d.clone()
	if err := fn(&memRepo{d: work, lock: noLock{}, now: s.memRepo.now}); err != nil {
		return err
	}
	s.memRepo.d = work
	return nil
}

func window[T any](items []T, page Page) []T {
	if page.Offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if page.Limit > 0 && page.Offset+page.Limit < end {
		end = page.Offset + page.Limit
	}
	return items[page.Offset:end]
}

func (r *memRepo) stamp(ts *models.Timestamps) {
	now := r.now()
	if ts.CreatedAt.IsZero() {
		ts.CreatedAt = now
	}
	ts.UpdatedAt = now
}

// --- Projects ---

func (r *memRepo) CreateProject(ctx context.Context, p *models.Project) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.d.projects[p.ID]; ok {
		return ErrDuplicate
	}
	r.stamp(&p.Timestamps)
	r.d.projects[p.ID] = *p
	return nil
}

func (r *memRepo) FindProject(ctx context.Context, id string) (*models.Project, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	p, ok := r.d.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (r *memRepo) LockProject(ctx context.Context, id string) (*models.Project, error) {
	return r.FindProject(ctx, id)
}

func (r *memRepo) ListProjectsByUser(ctx context.Context, userID string, page Page) ([]models.Project, int64, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	var out []models.Project
	for _, p := range r.d.projects {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return window(out, page), int64(len(out)), nil
}

func (r *memRepo) CountActiveProjects(ctx context.Context, userID string, now time.Time) (int64, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	var n int64
	for _, p := range r.d.projects {
		if p.UserID != userID || p.EndDate.Before(now) {
			continue
		}
		if p.Status == models.ProjectNotStarted || p.Status == models.ProjectOngoing {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) ListExpiredOngoing(ctx context.Context, now time.Time) ([]models.Project, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	var out []models.Project
	for _, p := range r.d.projects {
		if p.Status == models.ProjectOngoing && p.EndDate.Before(now) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndDate.Before(out[j].EndDate) })
	return out, nil
}

func (r *memRepo) SaveProject(ctx context.Context, p *models.Project) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.stamp(&p.Timestamps)
	r.d.projects[p.ID] = *p
	return nil
}

func (r *memRepo) UpdateProjectState(ctx context.Context, id string, from, next models.ProjectState) (bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	p, ok := r.d.projects[id]
	if !ok || p.IsClaimed || p.State() != from {
		return false, nil
	}
	p.Status = next.Status
	p.CanClaim = next.CanClaim
	r.stamp(&p.Timestamps)
	r.d.projects[id] = p
	return true, nil
}

func (r *memRepo) SetProjectPrePoints(ctx context.Context, id string, points int64) (bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	p, ok := r.d.projects[id]
	if !ok || p.IsClaimed {
		return false, nil
	}
	p.PrePointsEarned = &points
	r.stamp(&p.Timestamps)
	r.d.projects[id] = p
	return true, nil
}

func (r *memRepo) DeleteProject(ctx context.Context, id string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.d.projects[id]; !ok {
		return ErrNotFound
	}
	for uid, u := range r.d.uploads {
		if u.ProjectID == id {
			delete(r.d.uploads, uid)
		}
	}
	delete(r.d.projects, id)
	return nil
}

// --- Uploads ---

func (r *memRepo) CreateUpload(ctx context.Context, u *models.Upload) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.d.uploads[u.ID]; ok {
		return ErrDuplicate
	}
	if u.MonthNumber != nil {
		for _, other := range r.d.uploads {
			if other.ProjectID == u.ProjectID && other.MonthNumber != nil && *other.MonthNumber == *u.MonthNumber {
				return ErrDuplicate
			}
		}
	}
	r.stamp(&u.Timestamps)
	r.d.uploads[u.ID] = *u
	return nil
}

func (r *memRepo) FindUpload(ctx context.Context, id string) (*models.Upload, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	u, ok := r.d.uploads[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (r *memRepo) LockUpload(ctx context.Context, id string) (*models.Upload, error) {
	return r.FindUpload(ctx, id)
}

func (r *memRepo) FindCheckpointUpload(ctx context.Context, projectID string, month int) (*models.Upload, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, u := range r.d.uploads {
		if u.ProjectID == projectID && u.MonthNumber != nil && *u.MonthNumber == month {
			found := u
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memRepo) sortedUploads(keep func(models.Upload) bool) []models.Upload {
	var out []models.Upload
	for _, u := range r.d.uploads {
		if keep(u) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedDate.After(out[j].UploadedDate) })
	return out
}

func (r *memRepo) ListUploadsByProject(ctx context.Context, projectID string) ([]models.Upload, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.sortedUploads(func(u models.Upload) bool { return u.ProjectID == projectID }), nil
}

func (r *memRepo) ListUploads(ctx context.Context, page Page) ([]models.Upload, int64, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	all := r.sortedUploads(func(models.Upload) bool { return true })
	return window(all, page), int64(len(all)), nil
}

func (r *memRepo) SaveUpload(ctx context.Context, u *models.Upload) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.stamp(&u.Timestamps)
	r.d.uploads[u.ID] = *u
	return nil
}

func (r *memRepo) CountVerifiedCheckpoints(ctx context.Context, projectID string) (int64, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	var n int64
	for _, u := range r.d.uploads {
		if u.ProjectID == projectID && u.Status == models.UploadVerified &&
			u.MonthNumber != nil && models.IsCheckpointMonth(*u.MonthNumber) {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) SumVerifiedPrePoints(ctx context.Context, projectID string) (int64, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	var total int64
	for _, u := range r.d.uploads {
		if u.ProjectID == projectID && u.Status == models.UploadVerified {
			total += u.PrePointsEarned
		}
	}
	return total, nil
}

// --- Users ---

func (r *memRepo) FindUser(ctx context.Context, id string) (*models.User, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	u, ok := r.d.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (r *memRepo) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, u := range r.d.users {
		if u.Username != "" && strings.EqualFold(u.Username, username) {
			found := u
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memRepo) LockUser(ctx context.Context, id string) (*models.User, error) {
	return r.FindUser(ctx, id)
}

func (r *memRepo) EnsureUser(ctx context.Context, u *models.User) (*models.User, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if existing, ok := r.d.users[u.ID]; ok {
		return &existing, nil
	}
	stored := *u
	r.stamp(&stored.Timestamps)
	r.d.users[u.ID] = stored
	return &stored, nil
}

func (r *memRepo) UpsertUsers(ctx context.Context, users []models.User) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, u := range users {
		if existing, ok := r.d.users[u.ID]; ok {
			existing.Username = u.Username
			existing.Email = u.Email
			existing.Role = u.Role
			r.stamp(&existing.Timestamps)
			r.d.users[u.ID] = existing
			continue
		}
		stored := u
		r.stamp(&stored.Timestamps)
		r.d.users[u.ID] = stored
	}
	return nil
}

func (r *memRepo) AddUserPoints(ctx context.Context, id string, delta int64) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	u, ok := r.d.users[id]
	if !ok {
		return ErrNotFound
	}
	u.TotalPoints += delta
	r.stamp(&u.Timestamps)
	r.d.users[id] = u
	return nil
}

// --- Ledger ---

func (r *memRepo) AppendPoints(ctx context.Context, e *models.PointsHistory) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now()
	}
	r.d.ledger = append(r.d.ledger, *e)
	return nil
}

func (r *memRepo) ListPointsHistory(ctx context.Context, userID string, page Page) ([]models.PointsHistory, int64, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	var out []models.PointsHistory
	for i := len(r.d.ledger) - 1; i >= 0; i-- {
		if r.d.ledger[i].UserID == userID {
			out = append(out, r.d.ledger[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return window(out, page), int64(len(out)), nil
}

func (r *memRepo) ListPointsSince(ctx context.Context, userID string, t time.Time) ([]models.PointsHistory, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	var out []models.PointsHistory
	for _, e := range r.d.ledger {
		if e.UserID == userID && e.CreatedAt.After(t) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// --- Rewards ---

func (r *memRepo) CreateReward(ctx context.Context, rw *models.Reward) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, other := range r.d.rewards {
		if other.ID == rw.ID || other.Code == rw.Code {
			return ErrDuplicate
		}
	}
	now := r.now()
	rw.CreatedAt, rw.UpdatedAt = now, now
	r.d.rewards[rw.ID] = *rw
	return nil
}

func (r *memRepo) FindReward(ctx context.Context, id string) (*models.Reward, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	rw, ok := r.d.rewards[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rw, nil
}

func (r *memRepo) FindRewardByCode(ctx context.Context, code string) (*models.Reward, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, rw := range r.d.rewards {
		if rw.Code == code {
			found := rw
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memRepo) ListRewards(ctx context.Context, filter RewardFilter, page Page) ([]models.Reward, int64, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	term := strings.ToLower(filter.Search)
	var out []models.Reward
	for _, rw := range r.d.rewards {
		if filter.IsActive != nil && rw.IsActive != *filter.IsActive {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(rw.Name), term) &&
			!strings.Contains(strings.ToLower(rw.Description), term) {
			continue
		}
		out = append(out, rw)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TargetDays == out[j].TargetDays {
			return out[i].Code < out[j].Code
		}
		return out[i].TargetDays < out[j].TargetDays
	})
	return window(out, page), int64(len(out)), nil
}

func (r *memRepo) SaveReward(ctx context.Context, rw *models.Reward) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, other := range r.d.rewards {
		if other.ID != rw.ID && other.Code == rw.Code {
			return ErrDuplicate
		}
	}
	rw.UpdatedAt = r.now()
	r.d.rewards[rw.ID] = *rw
	return nil
}

func (r *memRepo) DeleteReward(ctx context.Context, id string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.d.rewards[id]; !ok {
		return ErrNotFound
	}
	delete(r.d.rewards, id)
	return nil
}

func claimKey(userID, rewardID string) string {
	return userID + "|" + rewardID
}

func (r *memRepo) FindMilestoneClaim(ctx context.Context, userID, rewardID string) (*models.MilestoneClaim, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	c, ok := r.d.claims[claimKey(userID, rewardID)]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (r *memRepo) CreateMilestoneClaim(ctx context.Context, c *models.MilestoneClaim) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	key := claimKey(c.UserID, c.RewardID)
	if _, ok := r.d.claims[key]; ok {
		return ErrDuplicate
	}
	r.stamp(&c.Timestamps)
	r.d.claims[key] = *c
	return nil
}

func (r *memRepo) SaveMilestoneClaim(ctx context.Context, c *models.MilestoneClaim) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.stamp(&c.Timestamps)
	r.d.claims[claimKey(c.UserID, c.RewardID)] = *c
	return nil
}

func (r *memRepo) ListMilestoneClaims(ctx context.Context, userID string, page Page) ([]models.MilestoneClaim, int64, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	var out []models.MilestoneClaim
	for _, c := range r.d.claims {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].Code < out[j].Code
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return window(out, page), int64(len(out)), nil
}
