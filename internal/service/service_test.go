package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"cuterank/internal/clients"
	"cuterank/internal/config"
	"cuterank/internal/dedup"
	"cuterank/internal/fingerprint"
	"cuterank/internal/imagecache"
	"cuterank/internal/notify"
	"cuterank/internal/ranking"
	"cuterank/internal/ratelimit"
	"cuterank/internal/repository/memstore"
	"cuterank/internal/tasks"
	"cuterank/internal/warnings"
)

const (
	admin = int64(1)
	userA = int64(100)
	userB = int64(200)
	userC = int64(300)
)

// Pairwise at least 32 bits apart, so none of them is a near duplicate of
// another.
var patterns = []uint64{
	0x00000000FFFFFFFF,
	0xFFFFFFFF00000000,
	0x0F0F0F0F0F0F0F0F,
	0xF0F0F0F0F0F0F0F0,
	0x3333333333333333,
	0xCCCCCCCCCCCCCCCC,
}

func pngFor(t *testing.T, pattern uint64) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range 64 {
		c := color.RGBA{A: 255}
		if pattern&(1<<(63-i)) != 0 {
			c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
		}
		img.Set(i%8, i/8, c)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fakeScorer struct {
	mu    sync.Mutex
	score float64
	err   error
	stall bool
	calls int
}

func (f *fakeScorer) Score(ctx context.Context, _ []byte) (float64, error) {
	f.mu.Lock()
	f.calls++
	stall := f.stall
	f.mu.Unlock()
	if stall {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return f.score, f.err
}

type fakeNSFW struct {
	nsfw bool
	err  error
}

func (f *fakeNSFW) Check(context.Context, []byte) (bool, error) {
	return f.nsfw, f.err
}

type fakeRenderer struct {
	last *clients.Card
	err  error
}

func (f *fakeRenderer) Compose(_ context.Context, card clients.Card) ([]byte, error) {
	f.last = &card
	if f.err != nil {
		return nil, f.err
	}
	return []byte("card"), nil
}

type fakeTransport struct {
	n       int
	err     error
	stored  map[string][]byte
	deleted []string
}

func (f *fakeTransport) StoreOriginal(_ context.Context, userID int64, data []byte, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.n++
	ref := fmt.Sprintf("%d/%d", userID, f.n)
	f.stored[ref] = data
	return ref, nil
}

func (f *fakeTransport) DeleteOriginal(_ context.Context, ref string) error {
	f.deleted = append(f.deleted, ref)
	delete(f.stored, ref)
	return nil
}

type recordingQueue struct {
	tasks []tasks.Task
}

func (q *recordingQueue) Push(_ context.Context, task tasks.Task) error {
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *recordingQueue) types() []tasks.Type {
	out := make([]tasks.Type, 0, len(q.tasks))
	for _, t := range q.tasks {
		out = append(out, t.Type)
	}
	return out
}

type harness struct {
	store     *memstore.Store
	cache     *imagecache.Dir
	scorer    *fakeScorer
	nsfw      *fakeNSFW
	renderer  *fakeRenderer
	transport *fakeTransport
	notifier  *notify.MemNotifier
	queue     *recordingQueue
	ledger    *warnings.Ledger
	now       time.Time

	subs  *SubmissionService
	mod   *ModerationService
	board *LeaderboardService
}

func newHarness(t *testing.T, tweak ...func(*config.PolicyConfig)) *harness {
	t.Helper()
	policy := config.PolicyConfig{
		RateLimitWindow:  10 * time.Second,
		BanThreshold:     2,
		AutoFlagRank:     50,
		TopListSize:      30,
		HammingThreshold: 5,
		ScoreMin:         0,
		ScoreMax:         100,
		NSFWFailOpen:     true,
	}
	for _, fn := range tweak {
		fn(&policy)
	}

	cache, err := imagecache.New(t.TempDir())
	require.NoError(t, err)

	h := &harness{
		store:     memstore.New(),
		cache:     cache,
		scorer:    &fakeScorer{score: 50},
		nsfw:      &fakeNSFW{},
		renderer:  &fakeRenderer{},
		transport: &fakeTransport{stored: map[string][]byte{}},
		notifier:  notify.NewMemNotifier(),
		queue:     &recordingQueue{},
		now:       time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	h.ledger = warnings.NewLedger(h.store.Warnings(), policy.BanThreshold, 16, time.Minute)
	ranker := ranking.NewRanker(h.store.Submissions())

	h.subs = NewSubmissionService(SubmissionDeps{
		Limiter:   ratelimit.NewMemLimiter(policy.RateLimitWindow),
		Ledger:    h.ledger,
		Detector:  dedup.NewDetector(h.store.Fingerprints(), policy.HammingThreshold, policy.MaxImagePixels),
		Ranker:    ranker,
		Scorer:    h.scorer,
		NSFW:      h.nsfw,
		Renderer:  h.renderer,
		Transport: h.transport,
		Cache:     cache,
		Subs:      h.store.Submissions(),
		Avatars:   h.store.Avatars(),
		Notifier:  h.notifier,
		Queue:     h.queue,
		Policy:    policy,
		Timeout:   time.Second,
		Logger:    zerolog.Nop(),
		Now:       func() time.Time { return h.now },
	})
	h.mod = NewModerationService(h.store.Submissions(), h.ledger, cache, h.notifier, h.queue, []int64{admin}, zerolog.Nop())
	h.board = NewLeaderboardService(ranker, cache, h.notifier, ranking.ScorePolicy{Min: 0, Max: 100}, policy.TopListSize)
	return h
}

func (h *harness) submit(t *testing.T, userID int64, img []byte) (Outcome, error) {
	t.Helper()
	name := fmt.Sprintf("user%d", userID)
	h.now = h.now.Add(time.Minute)
	return h.subs.Submit(context.Background(), SubmissionInput{UserID: userID, Username: &name, Image: img})
}

func (h *harness) accept(t *testing.T, userID int64, img []byte, score float64) Outcome {
	t.Helper()
	h.scorer.score = score
	out, err := h.submit(t, userID, img)
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, out.Status)
	return out
}

func TestSubmit_FirstSubmissionThenDuplicateFromOtherUser(t *testing.T) {
	h := newHarness(t)
	x := pngFor(t, patterns[0])

	first := h.accept(t, userA, x, 72.4)
	require.Equal(t, 72, first.Score)
	require.Equal(t, 1, first.Rank)
	require.True(t, first.Flagged)
	require.Equal(t, []byte("card"), first.Card)
	require.Len(t, h.notifier.Reviews(), 1)
	require.Equal(t, first.Submission.ID, h.notifier.Reviews()[0].SubmissionID)
	require.Equal(t, []tasks.Type{tasks.TypeArchive}, h.queue.types())

	stored, err := h.cache.Read(first.Submission.CachedFile())
	require.NoError(t, err)
	require.Equal(t, x, stored)

	dup, err := h.submit(t, userB, x)
	require.NoError(t, err)
	require.Equal(t, StatusDuplicateOther, dup.Status)
	require.NotNil(t, dup.Duplicate)
	require.Equal(t, userA, dup.Duplicate.OwnerID)
	require.Equal(t, 72, dup.Duplicate.Score)
	require.Equal(t, 1, dup.Duplicate.Rank)
	require.Equal(t, 1, h.scorer.calls)

	st, err := h.store.Submissions().Stats(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, st.TotalImages)
}

func TestSubmit_DuplicateOwn(t *testing.T) {
	h := newHarness(t)
	x := pngFor(t, patterns[1])
	h.accept(t, userA, x, 10)

	out, err := h.submit(t, userA, x)
	require.NoError(t, err)
	require.Equal(t, StatusDuplicateOwn, out.Status)
	require.Nil(t, out.Duplicate)
}

func TestSubmit_RapidSubmissionsAreRateLimited(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	in := func(i int) SubmissionInput {
		return SubmissionInput{UserID: userC, Image: pngFor(t, patterns[i])}
	}

	out, err := h.subs.Submit(ctx, in(0))
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, out.Status)

	for i := 1; i <= 2; i++ {
		h.now = h.now.Add(3 * time.Second)
		out, err := h.subs.Submit(ctx, in(i))
		require.NoError(t, err)
		require.Equal(t, StatusRateLimited, out.Status)
		require.Positive(t, out.RetryAfter)
		require.LessOrEqual(t, out.RetryAfter, 10*time.Second)
	}
	require.Equal(t, 1, h.scorer.calls)
}

func TestSubmit_BannedUserIsDroppedSilently(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.ledger.Ban(ctx, userA)
	require.NoError(t, err)

	out, err := h.submit(t, userA, pngFor(t, patterns[0]))
	require.NoError(t, err)
	require.Equal(t, StatusBanned, out.Status)
	require.Zero(t, h.scorer.calls)
}

func TestSubmit_InvalidImage(t *testing.T) {
	h := newHarness(t)
	_, err := h.submit(t, userA, []byte("definitely not an image"))
	require.ErrorIs(t, err, ErrInvalidImage)
	require.Zero(t, h.scorer.calls)
}

func TestSubmit_OversizedImageIsInvalid(t *testing.T) {
	h := newHarness(t, func(p *config.PolicyConfig) { p.MaxImagePixels = 63 })

	_, err := h.submit(t, userA, pngFor(t, patterns[0]))
	require.ErrorIs(t, err, ErrInvalidImage)
	require.ErrorIs(t, err, fingerprint.ErrTooLarge)
	require.Zero(t, h.scorer.calls)

	st, err := h.store.Submissions().Stats(context.Background())
	require.NoError(t, err)
	require.Zero(t, st.TotalImages)
}

func TestSubmit_ScorerFailureReleasesFingerprint(t *testing.T) {
	h := newHarness(t)
	x := pngFor(t, patterns[2])

	h.scorer.err = errors.New("timeout")
	_, err := h.submit(t, userA, x)
	require.ErrorIs(t, err, ErrScoringUnavailable)

	st, err := h.store.Submissions().Stats(context.Background())
	require.NoError(t, err)
	require.Zero(t, st.TotalImages)

	h.scorer.err = nil
	h.accept(t, userA, x, 40)
}

func TestSubmit_StalledScorerTimesOut(t *testing.T) {
	h := newHarness(t)
	x := pngFor(t, patterns[4])

	h.scorer.stall = true
	start := time.Now()
	_, err := h.submit(t, userA, x)
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrScoringUnavailable)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.GreaterOrEqual(t, elapsed, h.subs.Timeout)
	require.Less(t, elapsed, h.subs.Timeout+2*time.Second)

	st, err := h.store.Submissions().Stats(context.Background())
	require.NoError(t, err)
	require.Zero(t, st.TotalImages)

	h.scorer.stall = false
	h.accept(t, userA, x, 40)
}

func TestSubmit_TransportFailureLeavesNothingBehind(t *testing.T) {
	h := newHarness(t)
	x := pngFor(t, patterns[3])

	h.transport.err = errors.New("minio down")
	_, err := h.submit(t, userA, x)
	require.ErrorIs(t, err, ErrTransportUnavailable)
	require.Empty(t, h.queue.tasks)

	h.transport.err = nil
	h.accept(t, userA, x, 40)
}

func TestSubmit_NSFW(t *testing.T) {
	enabled := func(p *config.PolicyConfig) { p.NSFWFilterEnabled = true }

	t.Run("positive is rejected and stays indexed", func(t *testing.T) {
		h := newHarness(t, enabled)
		h.nsfw.nsfw = true
		x := pngFor(t, patterns[0])

		out, err := h.submit(t, userA, x)
		require.NoError(t, err)
		require.Equal(t, StatusNSFWRejected, out.Status)
		require.Zero(t, h.scorer.calls)

		again, err := h.submit(t, userA, x)
		require.NoError(t, err)
		require.Equal(t, StatusDuplicateOwn, again.Status)

		other, err := h.submit(t, userB, x)
		require.NoError(t, err)
		require.Equal(t, StatusDuplicateOther, other.Status)
		require.Nil(t, other.Duplicate)
	})

	t.Run("classifier failure fails open", func(t *testing.T) {
		h := newHarness(t, enabled)
		h.nsfw.err = errors.New("503")
		h.accept(t, userA, pngFor(t, patterns[0]), 30)
	})

	t.Run("classifier failure fails closed", func(t *testing.T) {
		h := newHarness(t, enabled, func(p *config.PolicyConfig) { p.NSFWFailOpen = false })
		h.nsfw.err = errors.New("503")
		_, err := h.submit(t, userA, pngFor(t, patterns[0]))
		require.ErrorIs(t, err, ErrClassifierUnavailable)
	})

	t.Run("disabled filter never asks", func(t *testing.T) {
		h := newHarness(t)
		h.nsfw.nsfw = true
		h.accept(t, userA, pngFor(t, patterns[0]), 30)
	})
}

func TestSubmit_RendererFailureStillAccepts(t *testing.T) {
	h := newHarness(t)
	h.renderer.err = errors.New("boom")
	out := h.accept(t, userA, pngFor(t, patterns[0]), 30)
	require.Nil(t, out.Card)
}

func TestSubmit_CardCarriesApprovedThumbnailsAndAvatar(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	x := pngFor(t, patterns[0])

	first := h.accept(t, userA, x, 90)
	require.NoError(t, h.mod.Approve(ctx, admin, first.Submission.ID))

	name := "bee"
	h.scorer.score = 40
	h.now = h.now.Add(time.Minute)
	out, err := h.subs.Submit(ctx, SubmissionInput{
		UserID:   userB,
		Username: &name,
		Image:    pngFor(t, patterns[1]),
		Avatar:   []byte("avatar"),
	})
	require.NoError(t, err)
	require.Equal(t, 2, out.Rank)

	card := h.renderer.last
	require.NotNil(t, card)
	require.Equal(t, "bee", card.DisplayName)
	require.Equal(t, []byte("avatar"), card.Avatar)
	require.Equal(t, x, card.Top[0])
	require.Nil(t, card.Top[1])

	a, err := h.store.Avatars().Get(ctx, userB)
	require.NoError(t, err)
	require.NotNil(t, a.Userpic)
}

func TestSubmit_AutoFlagOnlyWithinThreshold(t *testing.T) {
	h := newHarness(t, func(p *config.PolicyConfig) { p.AutoFlagRank = 1 })

	high := h.accept(t, userA, pngFor(t, patterns[0]), 80)
	require.True(t, high.Flagged)

	low := h.accept(t, userB, pngFor(t, patterns[1]), 20)
	require.Equal(t, 2, low.Rank)
	require.False(t, low.Flagged)
	require.Len(t, h.notifier.Reviews(), 1)
}

func TestSubmit_ScoreIsClamped(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, 100, h.accept(t, userA, pngFor(t, patterns[0]), 142).Score)
	require.Equal(t, 0, h.accept(t, userB, pngFor(t, patterns[1]), -5).Score)
}
