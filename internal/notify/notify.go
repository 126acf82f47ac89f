// Package notify delivers user notices and moderation review requests.
package notify

import (
	"context"
	"errors"

	"cuterank/internal/models"
)

type Notifier interface {
	NotifyUser(ctx context.Context, n models.Notice) error
	RequestReview(ctx context.Context, r models.Review) error
}

// Multi fans out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) NotifyUser(ctx context.Context, n models.Notice) error {
	var errs []error
	for _, nt := range m {
		if err := nt.NotifyUser(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) RequestReview(ctx context.Context, r models.Review) error {
	var errs []error
	for _, nt := range m {
		if err := nt.RequestReview(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
