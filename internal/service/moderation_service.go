package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"cuterank/internal/messages"
	"cuterank/internal/models"
	"cuterank/internal/notify"
	"cuterank/internal/queue"
	"cuterank/internal/repository"
	"cuterank/internal/tasks"
)

type BanResult struct {
	// Escalated is false when the submission was already rejected and the
	// owner's ledger was left untouched.
	Escalated bool
	State     models.WarningState
}

type ModerationService struct {
	subs     SubmissionStore
	ledger   Ledger
	cache    ImageCache
	notifier notify.Notifier
	queue    queue.Queue
	admins   []int64
	log      zerolog.Logger
	now      func() time.Time
}

func NewModerationService(
	subs SubmissionStore,
	ledger Ledger,
	cache ImageCache,
	notifier notify.Notifier,
	q queue.Queue,
	admins []int64,
	logger zerolog.Logger,
) *ModerationService {
	return &ModerationService{
		subs:     subs,
		ledger:   ledger,
		cache:    cache,
		notifier: notifier,
		queue:    q,
		admins:   admins,
		log:      logger.With().Str("component", "moderation").Logger(),
		now:      time.Now,
	}
}

func (m *ModerationService) IsAdmin(userID int64) bool {
	return slices.Contains(m.admins, userID)
}

func (m *ModerationService) authorize(actor int64) error {
	if !m.IsAdmin(actor) {
		m.log.Warn().Int64("actor", actor).Msg("moderation attempt by non-admin")
		return ErrUnauthorized
	}
	return nil
}

func mapStoreErr(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrSubmissionNotFound), errors.Is(err, repository.ErrAvatarNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	default:
		return storeErr(op, err)
	}
}

func (m *ModerationService) Approve(ctx context.Context, actor, id int64) error {
	if err := m.authorize(actor); err != nil {
		return err
	}
	if err := m.subs.SetStatus(ctx, id, models.StatusApproved); err != nil {
		return mapStoreErr("approve", err)
	}
	moderationTotal.WithLabelValues("approve").Inc()
	m.log.Info().Int64("actor", actor).Int64("submission_id", id).Msg("submission approved")
	m.requestRepair(ctx)
	return nil
}

// Ban rejects a submission and escalates its owner's ledger. Banning an
// already rejected submission changes nothing.
func (m *ModerationService) Ban(ctx context.Context, actor, id int64) (BanResult, error) {
	if err := m.authorize(actor); err != nil {
		return BanResult{}, err
	}
	sub, err := m.subs.GetByID(ctx, id)
	if err != nil {
		return BanResult{}, mapStoreErr("ban", err)
	}

	changed, err := m.subs.Reject(ctx, id)
	if err != nil {
		return BanResult{}, mapStoreErr("ban", err)
	}
	log := m.log.With().Int64("actor", actor).Int64("submission_id", id).Int64("user_id", sub.UserID).Logger()
	if !changed {
		log.Info().Msg("submission already rejected")
		state, err := m.ledger.Get(ctx, sub.UserID)
		if err != nil {
			return BanResult{}, storeErr("ban", err)
		}
		return BanResult{State: state}, nil
	}

	state, err := m.ledger.AddWarning(ctx, sub.UserID)
	if err != nil {
		// Put the status back so a retried ban escalates again.
		if rerr := m.subs.SetStatus(context.WithoutCancel(ctx), id, sub.Status); rerr != nil {
			log.Error().Err(rerr).Str("status", string(sub.Status)).Msg("restore status after failed warning")
		}
		return BanResult{}, storeErr("escalate warning", err)
	}
	m.dropCached(ctx, log, sub)
	moderationTotal.WithLabelValues("ban").Inc()
	log.Info().Int("warnings", state.Warnings).Bool("banned", state.Banned).Msg("submission banned")

	notice := models.Notice{UserID: sub.UserID, CreatedAt: m.now()}
	if state.Banned {
		notice.Kind, notice.Text = models.NoticeBan, messages.BanNotice
	} else {
		notice.Kind, notice.Text = models.NoticeWarning, messages.WarningText(state.Warnings, m.ledger.Threshold())
	}
	if err := m.notifier.NotifyUser(ctx, notice); err != nil {
		log.Error().Err(err).Msg("notify owner failed")
	}

	m.requestRepair(ctx)
	return BanResult{Escalated: true, State: state}, nil
}

// Delete removes a submission outright without touching the owner's ledger.
func (m *ModerationService) Delete(ctx context.Context, actor, id int64) error {
	if err := m.authorize(actor); err != nil {
		return err
	}
	sub, err := m.subs.GetByID(ctx, id)
	if err != nil {
		return mapStoreErr("delete", err)
	}
	if err := m.subs.Delete(ctx, id); err != nil {
		return mapStoreErr("delete", err)
	}
	log := m.log.With().Int64("actor", actor).Int64("submission_id", id).Logger()
	if name := sub.CachedFile(); name != "" {
		if err := m.cache.Remove(name); err != nil {
			log.Warn().Err(err).Str("filename", name).Msg("remove cache file")
		}
	}
	moderationTotal.WithLabelValues("delete").Inc()
	log.Info().Msg("submission deleted")
	m.requestRepair(ctx)
	return nil
}

func (m *ModerationService) BanUser(ctx context.Context, actor, userID int64) (models.WarningState, error) {
	if err := m.authorize(actor); err != nil {
		return models.WarningState{}, err
	}
	state, err := m.ledger.Ban(ctx, userID)
	if err != nil {
		return models.WarningState{}, storeErr("ban user", err)
	}
	moderationTotal.WithLabelValues("ban_user").Inc()
	m.log.Info().Int64("actor", actor).Int64("user_id", userID).Msg("user banned")

	notice := models.Notice{UserID: userID, Kind: models.NoticeBan, Text: messages.BanNotice, CreatedAt: m.now()}
	if err := m.notifier.NotifyUser(ctx, notice); err != nil {
		m.log.Error().Err(err).Int64("user_id", userID).Msg("notify banned user failed")
	}
	return state, nil
}

func (m *ModerationService) UnbanUser(ctx context.Context, actor, userID int64) (models.WarningState, error) {
	if err := m.authorize(actor); err != nil {
		return models.WarningState{}, err
	}
	state, err := m.ledger.Reset(ctx, userID)
	if err != nil {
		return models.WarningState{}, storeErr("unban user", err)
	}
	moderationTotal.WithLabelValues("unban_user").Inc()
	m.log.Info().Int64("actor", actor).Int64("user_id", userID).Msg("user unbanned")
	return state, nil
}

func (m *ModerationService) Stats(ctx context.Context, actor int64) (models.Stats, error) {
	if err := m.authorize(actor); err != nil {
		return models.Stats{}, err
	}
	st, err := m.subs.Stats(ctx)
	if err != nil {
		return models.Stats{}, storeErr("stats", err)
	}
	return st, nil
}

func (m *ModerationService) ListPending(ctx context.Context, actor int64, limit, offset int) ([]models.Submission, error) {
	return m.list(ctx, actor, repository.ListPending, limit, offset)
}

func (m *ModerationService) ListFlagged(ctx context.Context, actor int64, limit, offset int) ([]models.Submission, error) {
	return m.list(ctx, actor, repository.ListFlagged, limit, offset)
}

func (m *ModerationService) list(ctx context.Context, actor int64, filter repository.ListFilter, limit, offset int) ([]models.Submission, error) {
	if err := m.authorize(actor); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset = max(offset, 0)
	subs, err := m.subs.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, storeErr("list submissions", err)
	}
	return subs, nil
}

func (m *ModerationService) dropCached(ctx context.Context, log zerolog.Logger, sub models.Submission) {
	name := sub.CachedFile()
	if name == "" {
		return
	}
	if err := m.cache.Remove(name); err != nil {
		log.Warn().Err(err).Str("filename", name).Msg("remove cache file")
	}
	if err := m.subs.ClearFilename(ctx, sub.ID); err != nil {
		log.Warn().Err(err).Msg("clear filename")
	}
}

func (m *ModerationService) requestRepair(ctx context.Context) {
	if err := m.queue.Push(ctx, tasks.Repair()); err != nil {
		m.log.Warn().Err(err).Msg("repair task not queued")
	}
}
