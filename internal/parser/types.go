// Package parser defines the records, collaborators, and per-page handlers of the
// parsing stage.
package parser

import "time"

// Kind identifies which queue and handler a worker is bound to.
type Kind string

// Worker kinds owned by the supervisor.
const (
	KindProfile Kind = "profile"
	KindFollow  Kind = "follow"
)

// Kinds lists every worker kind in start order.
var Kinds = []Kind{KindProfile, KindFollow}

// Valid reports whether k names a known worker kind.
func (k Kind) Valid() bool {
	return k == KindProfile || k == KindFollow
}

// WorkerStatus is the lifecycle state a worker exposes to its supervisor.
type WorkerStatus string

// Worker status values.
const (
	StatusRunning WorkerStatus = "running"
	StatusError   WorkerStatus = "error"
	StatusStopped WorkerStatus = "stopped"
)

// PageTask is one fetched page waiting to be parsed.
type PageTask struct {
	ID         string  `json:"task_id"`
	HTML       *string `json:"html,omitempty"`
	Token      *string `json:"token,omitempty"`
	ThreadName string  `json:"thread_name,omitempty"`
}

// Employment is a single job/company pair; either side may be missing.
type Employment struct {
	Company *string `json:"company,omitempty"`
	Job     *string `json:"job,omitempty"`
}

// UserProfile is the structured projection of one user entity.
type UserProfile struct {
	URLToken          *string      `json:"urlToken,omitempty"`
	Name              *string      `json:"name,omitempty"`
	Headline          *string      `json:"headline,omitempty"`
	AvatarURLTemplate *string      `json:"avatarUrlTemplate,omitempty"`
	Locations         []string     `json:"locations,omitempty"`
	Business          *string      `json:"business,omitempty"`
	Employments       []Employment `json:"employments,omitempty"`
	Educations        []string     `json:"educations,omitempty"`
	Description       *string      `json:"description,omitempty"`
	SinaWeiboURL      *string      `json:"sinaWeiboUrl,omitempty"`
	Gender            *int64       `json:"gender,omitempty"`
	FollowingCount    *int64       `json:"followingCount,omitempty"`
	FollowerCount     *int64       `json:"followerCount,omitempty"`
	AnswerCount       *int64       `json:"answerCount,omitempty"`
	QuestionCount     *int64       `json:"questionCount,omitempty"`
	VoteupCount       *int64       `json:"voteupCount,omitempty"`
}

// NormalizedUserRecord is a UserProfile flattened for storage.
type NormalizedUserRecord struct {
	URLToken          *string   `json:"urlToken,omitempty"`
	Name              *string   `json:"name,omitempty"`
	Headline          *string   `json:"headline,omitempty"`
	AvatarURLTemplate *string   `json:"avatarUrlTemplate,omitempty"`
	Locations         string    `json:"locations"`
	Business          *string   `json:"business,omitempty"`
	Employments       string    `json:"employments"`
	Educations        string    `json:"educations"`
	Description       *string   `json:"description,omitempty"`
	SinaWeiboURL      *string   `json:"sinaWeiboUrl,omitempty"`
	Gender            *int64    `json:"gender,omitempty"`
	FollowingCount    *int64    `json:"followingCount,omitempty"`
	FollowerCount     *int64    `json:"followerCount,omitempty"`
	AnswerCount       *int64    `json:"answerCount,omitempty"`
	QuestionCount     *int64    `json:"questionCount,omitempty"`
	VoteupCount       *int64    `json:"voteupCount,omitempty"`
	ContentHash       string    `json:"contentHash,omitempty"`
	ParsedAt          time.Time `json:"parsedAt"`
}

// TokenInfo schedules a follow-list fetch for a parsed user.
type TokenInfo struct {
	URLToken       string `json:"urlToken"`
	FollowingCount *int64 `json:"followingCount,omitempty"`
	FollowerCount  *int64 `json:"followerCount,omitempty"`
}

// FrontierEntry is one identifier handed to the frontier. Info is nil for
// identifiers discovered on a follow-list page.
type FrontierEntry struct {
	Token string     `json:"token"`
	Info  *TokenInfo `json:"info,omitempty"`
}
