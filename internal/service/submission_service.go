package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"cuterank/internal/clients"
	"cuterank/internal/config"
	"cuterank/internal/dedup"
	"cuterank/internal/fingerprint"
	"cuterank/internal/imagecache"
	"cuterank/internal/media/sniffer"
	"cuterank/internal/models"
	"cuterank/internal/notify"
	"cuterank/internal/queue"
	"cuterank/internal/ranking"
	"cuterank/internal/ratelimit"
	"cuterank/internal/repository"
	"cuterank/internal/tasks"
)

type OutcomeStatus string

const (
	StatusAccepted       OutcomeStatus = "accepted"
	StatusRateLimited    OutcomeStatus = "rate_limited"
	StatusBanned         OutcomeStatus = "banned"
	StatusDuplicateOwn   OutcomeStatus = "duplicate_own"
	StatusDuplicateOther OutcomeStatus = "duplicate_other"
	StatusNSFWRejected   OutcomeStatus = "nsfw_rejected"
)

type SubmissionInput struct {
	UserID   int64
	Username *string
	Image    []byte
	// Avatar is the raw profile picture, if the client sent one.
	Avatar []byte
}

// DuplicateInfo describes the earlier submission a duplicate matched.
type DuplicateInfo struct {
	OwnerID    int64
	Score      int
	Rank       int
	CachedFile string
}

type Outcome struct {
	Status     OutcomeStatus
	RetryAfter time.Duration
	Score      int
	Rank       int
	Card       []byte
	Submission *models.Submission
	Duplicate  *DuplicateInfo
	Flagged    bool
}

type SubmissionDeps struct {
	Limiter   ratelimit.Limiter
	Ledger    Ledger
	Detector  DuplicateDetector
	Ranker    Ranker
	Scorer    Scorer
	NSFW      NSFWClassifier
	Renderer  Renderer
	Transport Transport
	Cache     ImageCache
	Subs      SubmissionStore
	Avatars   AvatarStore
	Notifier  notify.Notifier
	Queue     queue.Queue
	Policy    config.PolicyConfig
	Timeout   time.Duration
	Logger    zerolog.Logger
	Now       func() time.Time
}

type SubmissionService struct {
	SubmissionDeps
	scores ranking.ScorePolicy
	log    zerolog.Logger
}

func NewSubmissionService(deps SubmissionDeps) *SubmissionService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Timeout <= 0 {
		deps.Timeout = 20 * time.Second
	}
	return &SubmissionService{
		SubmissionDeps: deps,
		scores:         ranking.ScorePolicy{Min: deps.Policy.ScoreMin, Max: deps.Policy.ScoreMax},
		log:            deps.Logger.With().Str("component", "submissions").Logger(),
	}
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// Submit runs one submission through the pipeline. Terminal states that are
// not failures are reported in Outcome.Status.
func (s *SubmissionService) Submit(ctx context.Context, in SubmissionInput) (Outcome, error) {
	log := s.log.With().Int64("user_id", in.UserID).Logger()

	ok, wait, err := s.Limiter.Allow(ctx, in.UserID, s.Now())
	if err != nil {
		return Outcome{}, storeErr("rate check", err)
	}
	if !ok {
		submissionsTotal.WithLabelValues(string(StatusRateLimited)).Inc()
		return Outcome{Status: StatusRateLimited, RetryAfter: wait}, nil
	}

	state, err := s.Ledger.Get(ctx, in.UserID)
	if err != nil {
		return Outcome{}, storeErr("ban check", err)
	}
	if state.Banned {
		log.Debug().Msg("dropping submission from banned user")
		submissionsTotal.WithLabelValues(string(StatusBanned)).Inc()
		return Outcome{Status: StatusBanned}, nil
	}

	media, err := sniffer.Detect(in.Image)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	if err := fingerprint.CheckPixels(in.Image, s.Policy.MaxImagePixels); err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}

	dup, err := s.Detector.Check(ctx, in.UserID, in.Image)
	if err != nil {
		return Outcome{}, storeErr("duplicate check", err)
	}
	if dup.Duplicate {
		return s.duplicateOutcome(ctx, in.UserID, dup)
	}

	// From here on the fingerprint is reserved. Abandoning the submission
	// before a decision is recorded must release it.
	decided := false
	defer func() {
		if decided {
			return
		}
		if err := s.Detector.Release(context.WithoutCancel(ctx), dup.EntryID); err != nil {
			log.Error().Err(err).Int64("entry_id", dup.EntryID).Msg("release fingerprint")
		}
	}()

	nsfw, err := s.checkNSFW(ctx, log, in.Image)
	if err != nil {
		return Outcome{}, err
	}
	if nsfw {
		decided = true
		submissionsTotal.WithLabelValues(string(StatusNSFWRejected)).Inc()
		return Outcome{Status: StatusNSFWRejected}, nil
	}

	raw, err := s.score(ctx, in.Image)
	if err != nil {
		return Outcome{}, err
	}

	sub, err := s.persist(ctx, log, in, media.MIME, dup.Hash, raw)
	if err != nil {
		return Outcome{}, err
	}
	decided = true

	rank, err := s.Ranker.Rank(ctx, raw)
	if err != nil {
		return Outcome{}, storeErr("rank", err)
	}

	out := Outcome{
		Status:     StatusAccepted,
		Score:      s.scores.Display(raw),
		Rank:       rank,
		Submission: &sub,
	}
	out.Card = s.renderCard(ctx, log, in, out.Score, rank)

	if rank <= s.Policy.AutoFlagRank {
		out.Flagged = s.flagForReview(ctx, log, sub, out.Score, rank)
	}

	if err := s.Queue.Push(ctx, tasks.Archive(in.Image)); err != nil {
		log.Warn().Err(err).Int64("submission_id", sub.ID).Msg("archive task not queued")
	}

	submissionsTotal.WithLabelValues(string(StatusAccepted)).Inc()
	log.Info().
		Int64("submission_id", sub.ID).
		Float64("raw_score", raw).
		Int("rank", rank).
		Msg("submission accepted")
	return out, nil
}

func (s *SubmissionService) duplicateOutcome(ctx context.Context, userID int64, dup dedup.Result) (Outcome, error) {
	if dup.OwnerID == userID {
		submissionsTotal.WithLabelValues(string(StatusDuplicateOwn)).Inc()
		return Outcome{Status: StatusDuplicateOwn}, nil
	}
	submissionsTotal.WithLabelValues(string(StatusDuplicateOther)).Inc()

	out := Outcome{Status: StatusDuplicateOther}
	original, err := s.Subs.GetByExactHash(ctx, dup.MatchedHash)
	if errors.Is(err, repository.ErrSubmissionNotFound) {
		// indexed but never scored, e.g. rejected as NSFW
		return out, nil
	}
	if err != nil {
		return Outcome{}, storeErr("duplicate lookup", err)
	}

	rank, err := s.Ranker.Rank(ctx, original.RawScore)
	if err != nil {
		return Outcome{}, storeErr("duplicate rank", err)
	}
	out.Duplicate = &DuplicateInfo{
		OwnerID:    dup.OwnerID,
		Score:      s.scores.Display(original.RawScore),
		Rank:       rank,
		CachedFile: original.CachedFile(),
	}
	return out, nil
}

func (s *SubmissionService) checkNSFW(ctx context.Context, log zerolog.Logger, image []byte) (bool, error) {
	if !s.Policy.NSFWFilterEnabled || s.NSFW == nil {
		return false, nil
	}
	cctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	flagged, err := s.NSFW.Check(cctx, image)
	if err != nil {
		if s.Policy.NSFWFailOpen {
			nsfwFailOpenTotal.Inc()
			log.Warn().Err(err).Msg("nsfw classifier failed, treating image as safe")
			return false, nil
		}
		log.Warn().Err(err).Msg("nsfw classifier failed, rejecting submission")
		return false, fmt.Errorf("%w: %w", ErrClassifierUnavailable, err)
	}
	return flagged, nil
}

func (s *SubmissionService) score(ctx context.Context, image []byte) (float64, error) {
	cctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	raw, err := s.Scorer.Score(cctx, image)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrScoringUnavailable, err)
	}
	return raw, nil
}

// persist stores the original, the cache copy and the record. Anything
// written before a failing step is undone.
func (s *SubmissionService) persist(ctx context.Context, log zerolog.Logger, in SubmissionInput, mime, hash string, raw float64) (models.Submission, error) {
	cctx, cancel := context.WithTimeout(ctx, s.Timeout)
	ref, err := s.Transport.StoreOriginal(cctx, in.UserID, in.Image, mime)
	cancel()
	if err != nil {
		return models.Submission{}, fmt.Errorf("store original: %w: %w", ErrTransportUnavailable, err)
	}
	undoOriginal := func() {
		if err := s.Transport.DeleteOriginal(context.WithoutCancel(ctx), ref); err != nil {
			log.Warn().Err(err).Str("ref", ref).Msg("delete orphaned original")
		}
	}

	s.upsertAvatar(ctx, log, in)

	filename := imagecache.NewName()
	if err := s.Cache.Write(filename, in.Image); err != nil {
		undoOriginal()
		return models.Submission{}, fmt.Errorf("write cache: %w: %w", ErrStoreUnavailable, err)
	}

	sub, err := s.Subs.Create(ctx, models.Submission{
		UserID:       in.UserID,
		Username:     in.Username,
		TransportRef: ref,
		ImageHash:    hash,
		RawScore:     raw,
		Status:       models.StatusPending,
		Filename:     &filename,
	})
	if err != nil {
		if rerr := s.Cache.Remove(filename); rerr != nil {
			log.Warn().Err(rerr).Str("filename", filename).Msg("remove cache file")
		}
		undoOriginal()
		return models.Submission{}, storeErr("insert submission", err)
	}
	return sub, nil
}

func (s *SubmissionService) upsertAvatar(ctx context.Context, log zerolog.Logger, in SubmissionInput) {
	a := models.Avatar{UserID: in.UserID, Username: in.Username}
	if len(in.Avatar) > 0 {
		pic := base64.StdEncoding.EncodeToString(in.Avatar)
		a.Userpic = &pic
	}
	if err := s.Avatars.Upsert(ctx, a); err != nil {
		log.Warn().Err(err).Msg("avatar upsert failed")
	}
}

func (s *SubmissionService) avatarBytes(ctx context.Context, in SubmissionInput) []byte {
	if len(in.Avatar) > 0 {
		return in.Avatar
	}
	a, err := s.Avatars.Get(ctx, in.UserID)
	if err != nil || a.Userpic == nil {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(*a.Userpic)
	if err != nil {
		return nil
	}
	return data
}

// renderCard returns nil when the renderer is unavailable; the reply then
// goes out without a card.
func (s *SubmissionService) renderCard(ctx context.Context, log zerolog.Logger, in SubmissionInput, score, rank int) []byte {
	if s.Renderer == nil {
		return nil
	}
	card := clients.Card{
		Score:       score,
		Rank:        rank,
		DisplayName: displayName(in.Username),
		Avatar:      s.avatarBytes(ctx, in),
	}

	top, err := s.Ranker.Collect(ctx, len(card.Top))
	if err != nil {
		log.Warn().Err(err).Msg("top thumbnails unavailable")
	}
	for i, sub := range top {
		if name := sub.CachedFile(); name != "" {
			if data, err := s.Cache.Read(name); err == nil {
				card.Top[i] = data
			}
		}
	}

	cctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	out, err := s.Renderer.Compose(cctx, card)
	if err != nil {
		log.Warn().Err(err).Msg("render card failed")
		return nil
	}
	return out
}

func (s *SubmissionService) flagForReview(ctx context.Context, log zerolog.Logger, sub models.Submission, score, rank int) bool {
	review := models.Review{
		SubmissionID: sub.ID,
		UserID:       sub.UserID,
		Username:     sub.DisplayName(),
		Score:        score,
		Rank:         rank,
		Actions: map[string]string{
			"approve": fmt.Sprintf("/api/v1/admin/submissions/%d/approve", sub.ID),
			"ban":     fmt.Sprintf("/api/v1/admin/submissions/%d/ban", sub.ID),
		},
		CreatedAt: s.Now(),
	}
	if err := s.Notifier.RequestReview(ctx, review); err != nil {
		log.Error().Err(err).Int64("submission_id", sub.ID).Msg("review request failed")
		return false
	}
	if err := s.Subs.MarkFlagged(ctx, sub.ID); err != nil {
		log.Error().Err(err).Int64("submission_id", sub.ID).Msg("mark flagged failed")
		return false
	}
	return true
}

func displayName(username *string) string {
	if username == nil || *username == "" {
		return ""
	}
	return *username
}
