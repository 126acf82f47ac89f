package models

import "time"

type WarningState struct {
	UserID   int64
	Warnings int
	Banned   bool
}

// Avatar is the last profile picture snapshot seen for a user, base64
// encoded.
type Avatar struct {
	UserID    int64
	Username  *string
	Userpic   *string
	UpdatedAt time.Time
}

type Stats struct {
	TotalImages int64 `json:"totalImages"`
	Approved    int64 `json:"approved"`
	Pending     int64 `json:"pending"`
	Rejected    int64 `json:"rejected"`
	Flagged     int64 `json:"flagged"`
	Users       int64 `json:"users"`
	BannedUsers int64 `json:"bannedUsers"`
	Today       int64 `json:"today"`
	Week        int64 `json:"week"`
	Month       int64 `json:"month"`
}

type NoticeKind string

const (
	NoticeWarning NoticeKind = "warning"
	NoticeBan     NoticeKind = "ban"
)

type Notice struct {
	UserID    int64      `json:"userId"`
	Kind      NoticeKind `json:"kind"`
	Text      string     `json:"text"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Review asks moderators to approve or ban a freshly ranked submission.
type Review struct {
	SubmissionID int64             `json:"submissionId"`
	UserID       int64             `json:"userId"`
	Username     string            `json:"username"`
	Score        int               `json:"score"`
	Rank         int               `json:"rank"`
	Actions      map[string]string `json:"actions"`
	CreatedAt    time.Time         `json:"createdAt"`
}
