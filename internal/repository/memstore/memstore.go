// Package memstore keeps every record in process memory. It mirrors the
// method sets of the pgx repositories and backs the "memory" store driver.
package memstore

import (
	"cmp"
	"context"
	"iter"
	"slices"
	"sync"
	"time"

	"cuterank/internal/fingerprint"
	"cuterank/internal/models"
	"cuterank/internal/repository"
)

type Store struct {
	mu           sync.RWMutex
	submissions  []models.Submission
	fingerprints []models.FingerprintEntry
	warnings     map[int64]models.WarningState
	avatars      map[int64]models.Avatar
	nextSub      int64
	nextFP       int64
	now          func() time.Time
}

func New() *Store {
	return &Store{
		warnings: make(map[int64]models.WarningState),
		avatars:  make(map[int64]models.Avatar),
		now:      time.Now,
	}
}

func (s *Store) Submissions() *Submissions   { return &Submissions{s} }
func (s *Store) Fingerprints() *Fingerprints { return &Fingerprints{s} }
func (s *Store) Warnings() *Warnings         { return &Warnings{s} }
func (s *Store) Avatars() *Avatars           { return &Avatars{s} }

type Submissions struct{ s *Store }

func (r *Submissions) Create(_ context.Context, sub models.Submission) (models.Submission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextSub++
	sub.ID = r.s.nextSub
	sub.CreatedAt = r.s.now()
	if sub.Status == "" {
		sub.Status = models.StatusPending
	}
	r.s.submissions = append(r.s.submissions, sub)
	return sub, nil
}

func (r *Submissions) index(id int64) int {
	return slices.IndexFunc(r.s.submissions, func(s models.Submission) bool { return s.ID == id })
}

func (r *Submissions) GetByID(_ context.Context, id int64) (models.Submission, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	i := r.index(id)
	if i < 0 {
		return models.Submission{}, repository.ErrSubmissionNotFound
	}
	return r.s.submissions[i], nil
}

func (r *Submissions) GetByExactHash(_ context.Context, hash string) (models.Submission, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, sub := range r.s.submissions {
		if sub.ImageHash == hash {
			return sub, nil
		}
	}
	return models.Submission{}, repository.ErrSubmissionNotFound
}

func (r *Submissions) CountHigherScore(_ context.Context, score float64) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, sub := range r.s.submissions {
		if sub.RawScore > score {
			n++
		}
	}
	return n, nil
}

func byScore(a, b models.Submission) int {
	if c := cmp.Compare(b.RawScore, a.RawScore); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func (r *Submissions) Top(_ context.Context, n int) iter.Seq2[models.Submission, error] {
	return func(yield func(models.Submission, error) bool) {
		r.s.mu.RLock()
		var eligible []models.Submission
		for _, sub := range r.s.submissions {
			if sub.Approved() && !sub.NSFW {
				eligible = append(eligible, sub)
			}
		}
		r.s.mu.RUnlock()

		slices.SortFunc(eligible, byScore)
		if len(eligible) > n {
			eligible = eligible[:n]
		}
		for _, sub := range eligible {
			if !yield(sub, nil) {
				return
			}
		}
	}
}

func (r *Submissions) update(id int64, fn func(*models.Submission)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i := r.index(id)
	if i < 0 {
		return repository.ErrSubmissionNotFound
	}
	fn(&r.s.submissions[i])
	return nil
}

func (r *Submissions) SetStatus(_ context.Context, id int64, status models.ModerationStatus) error {
	return r.update(id, func(s *models.Submission) { s.Status = status })
}

func (r *Submissions) Reject(_ context.Context, id int64) (bool, error) {
	changed := false
	err := r.update(id, func(s *models.Submission) {
		if s.Status != models.StatusRejected {
			s.Status = models.StatusRejected
			changed = true
		}
	})
	return changed, err
}

func (r *Submissions) MarkFlagged(_ context.Context, id int64) error {
	return r.update(id, func(s *models.Submission) { s.Flagged = true })
}

func (r *Submissions) SetFilename(_ context.Context, id int64, filename string) error {
	return r.update(id, func(s *models.Submission) { s.Filename = &filename })
}

func (r *Submissions) ClearFilename(_ context.Context, id int64) error {
	return r.update(id, func(s *models.Submission) { s.Filename = nil })
}

func (r *Submissions) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i := r.index(id)
	if i < 0 {
		return repository.ErrSubmissionNotFound
	}
	r.s.submissions = slices.Delete(r.s.submissions, i, i+1)
	return nil
}

func (r *Submissions) List(_ context.Context, filter repository.ListFilter, limit, offset int) ([]models.Submission, error) {
	r.s.mu.RLock()
	var out []models.Submission
	for _, sub := range r.s.submissions {
		if sub.Status != models.StatusPending {
			continue
		}
		if filter == repository.ListFlagged && !sub.Flagged {
			continue
		}
		out = append(out, sub)
	}
	r.s.mu.RUnlock()

	slices.SortFunc(out, byScore)
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Submissions) Stats(_ context.Context) (models.Stats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	now := r.s.now()
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	users := make(map[int64]struct{})

	var st models.Stats
	for _, sub := range r.s.submissions {
		st.TotalImages++
		switch sub.Status {
		case models.StatusApproved:
			st.Approved++
		case models.StatusPending:
			st.Pending++
			if sub.Flagged {
				st.Flagged++
			}
		case models.StatusRejected:
			st.Rejected++
		}
		users[sub.UserID] = struct{}{}
		if !sub.CreatedAt.Before(midnight) {
			st.Today++
		}
		if sub.CreatedAt.After(now.AddDate(0, 0, -7)) {
			st.Week++
		}
		if sub.CreatedAt.After(now.AddDate(0, 0, -30)) {
			st.Month++
		}
	}
	st.Users = int64(len(users))
	for _, w := range r.s.warnings {
		if w.Banned {
			st.BannedUsers++
		}
	}
	return st, nil
}

type Fingerprints struct{ s *Store }

func (r *Fingerprints) Reserve(_ context.Context, e models.FingerprintEntry) (models.FingerprintEntry, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.fingerprints {
		if existing.ImageHash == e.ImageHash {
			return existing, false, nil
		}
	}
	r.s.nextFP++
	e.ID = r.s.nextFP
	e.CreatedAt = r.s.now()
	r.s.fingerprints = append(r.s.fingerprints, e)
	return e, true, nil
}

func (r *Fingerprints) GetByExactHash(_ context.Context, hash string) (models.FingerprintEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, e := range r.s.fingerprints {
		if e.ImageHash == hash {
			return e, nil
		}
	}
	return models.FingerprintEntry{}, repository.ErrFingerprintNotFound
}

func (r *Fingerprints) Candidates(_ context.Context, bands *[fingerprint.BandCount]int32) ([]models.FingerprintEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []models.FingerprintEntry
	for _, e := range r.s.fingerprints {
		if e.Perceptual == nil {
			continue
		}
		if bands != nil && !sharesBand(*bands, fingerprint.Bands(*e.Perceptual)) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func sharesBand(a, b [fingerprint.BandCount]int32) bool {
	for i := range a {
		if a[i] == b[i] {
			return true
		}
	}
	return false
}

func (r *Fingerprints) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i := slices.IndexFunc(r.s.fingerprints, func(e models.FingerprintEntry) bool { return e.ID == id })
	if i < 0 {
		return repository.ErrFingerprintNotFound
	}
	r.s.fingerprints = slices.Delete(r.s.fingerprints, i, i+1)
	return nil
}

type Warnings struct{ s *Store }

func (r *Warnings) Get(_ context.Context, userID int64) (models.WarningState, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	st, ok := r.s.warnings[userID]
	if !ok {
		return models.WarningState{UserID: userID}, nil
	}
	return st, nil
}

func (r *Warnings) Increment(_ context.Context, userID int64, threshold int) (models.WarningState, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := r.s.warnings[userID]
	st.UserID = userID
	st.Warnings++
	st.Banned = st.Warnings >= threshold
	r.s.warnings[userID] = st
	return st, nil
}

func (r *Warnings) Ban(_ context.Context, userID int64, threshold int) (models.WarningState, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := r.s.warnings[userID]
	st.UserID = userID
	st.Warnings = max(st.Warnings, threshold)
	st.Banned = true
	r.s.warnings[userID] = st
	return st, nil
}

func (r *Warnings) Put(_ context.Context, st models.WarningState) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.warnings[st.UserID] = st
	return nil
}

type Avatars struct{ s *Store }

func (r *Avatars) Upsert(_ context.Context, a models.Avatar) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.avatars[a.UserID]
	if ok && equalPtr(cur.Userpic, a.Userpic) && equalPtr(cur.Username, a.Username) {
		return nil
	}
	a.UpdatedAt = r.s.now()
	r.s.avatars[a.UserID] = a
	return nil
}

func (r *Avatars) Get(_ context.Context, userID int64) (models.Avatar, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.avatars[userID]
	if !ok {
		return models.Avatar{}, repository.ErrAvatarNotFound
	}
	return a, nil
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
