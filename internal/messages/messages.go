// Package messages holds every user-facing reply text.
package messages

import (
	"fmt"
	"time"
)

const (
	Accepted        = "Cuteness: %d%%. Place in the ranking: #%d"
	DuplicateOwn    = "You have already submitted this image."
	DuplicateOther  = "This image was already submitted by someone else."
	DuplicateScored = "This image was already submitted by someone else. It scored %d%% and holds place #%d."
	NSFW            = "This image looks inappropriate and was not scored."
	InvalidImage    = "Send a JPEG, PNG, GIF or WebP image."
	RateLimited     = "Slow down! Try again in %d s."
	Unavailable     = "The scoring service is unavailable right now. Please try again later."
	Failure         = "Something went wrong. Please try again later."
	TopEmpty        = "The leaderboard is empty."
	RankOutOfRange  = "Choose a place between 1 and %d."
	NoCachedImage   = "No image is stored for this place yet."
	Anonymous       = "anonymous"

	WarningNotice = "Your image was removed by a moderator. Warnings: %d of %d. Reaching the limit bans you permanently."
	BanNotice     = "You have been permanently banned for repeated rule violations."
)

func AcceptedText(score, rank int) string {
	return fmt.Sprintf(Accepted, score, rank)
}

func DuplicateScoredText(score, rank int) string {
	return fmt.Sprintf(DuplicateScored, score, rank)
}

func RateLimitedText(wait time.Duration) string {
	return fmt.Sprintf(RateLimited, int(wait/time.Second))
}

func WarningText(warnings, threshold int) string {
	return fmt.Sprintf(WarningNotice, warnings, threshold)
}

func RankOutOfRangeText(max int) string {
	return fmt.Sprintf(RankOutOfRange, max)
}
