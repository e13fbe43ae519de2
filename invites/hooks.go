package invites

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/wanderlist/wanderlist-api/databases"
	"github.com/wanderlist/wanderlist-api/models"
)

// EventKind names a committed lifecycle change.
type EventKind string

const (
	EventInviteCreated  EventKind = "invite_created"
	EventInviteRedeemed EventKind = "invite_redeemed"
)

// Event describes a committed invite operation handed to post-commit
// hooks.
type Event struct {
	Kind         EventKind
	Invite       models.InviteCode
	RedeemedBy   primitive.ObjectID
	CreatedPlans []models.Plan
}

// Hook observes committed invite operations. A hook error is captured
// as a dispatch failure on the operation result and never rolls the
// operation back.
type Hook struct {
	Name string
	Run  func(ctx context.Context, ev Event) error
}

// DispatchFailure reports a post-commit hook that failed.
type DispatchFailure struct {
	Collaborator string `json:"collaborator"`
	Error        string `json:"error"`
}

func (s *Service) runHooks(ctx context.Context, ev Event) []DispatchFailure {
	var failures []DispatchFailure
	for _, h := range s.hooks {
		if err := h.Run(ctx, ev); err != nil {
			zap.S().Errorw("post-commit hook failed", "hook", h.Name, "event", ev.Kind, "error", err)
			failures = append(failures, DispatchFailure{Collaborator: h.Name, Error: err.Error()})
		}
	}
	return failures
}

// InviteEmail is the payload handed to the email collaborator. The
// engine never inspects rendered message content.
type InviteEmail struct {
	ToEmail          string
	InviterName      string
	Code             string
	InviteeName      string
	CustomMessage    string
	ExperienceCount  int
	DestinationCount int
}

// EmailSender delivers invite emails. The sendgrid-backed
// implementation lives in the api package.
type EmailSender interface {
	SendInviteEmail(ctx context.Context, email InviteEmail) error
}

// NewEmailHook returns a post-commit hook that emails newly created
// invites to their target recipient and records the delivery attempt
// in the invite's metadata. The metadata is write-only bookkeeping;
// nothing ever reads it back for authorization. Invites without a
// recipient email are skipped.
func NewEmailHook(sender EmailSender, users databases.UserDatabase, codes databases.InviteCodeDatabase, sentFrom string) Hook {
	return Hook{
		Name: "invite-email",
		Run: func(ctx context.Context, ev Event) error {
			if ev.Kind != EventInviteCreated || ev.Invite.Email == "" {
				return nil
			}

			inviterName := "A fellow traveler"
			if inviter, err := users.FindOne(ctx, bson.M{"_id": ev.Invite.CreatedBy}); err == nil {
				if inviter.Name != "" {
					inviterName = inviter.Name
				} else if inviter.Username != "" {
					inviterName = inviter.Username
				}
			}

			sendErr := sender.SendInviteEmail(ctx, InviteEmail{
				ToEmail:          ev.Invite.Email,
				InviterName:      inviterName,
				Code:             ev.Invite.Code,
				InviteeName:      ev.Invite.InviteeName,
				CustomMessage:    ev.Invite.CustomMessage,
				ExperienceCount:  len(ev.Invite.Experiences),
				DestinationCount: len(ev.Invite.Destinations),
			})

			now := time.Now()
			meta := models.InviteMetadata{SentFrom: sentFrom}
			if sendErr == nil {
				meta.EmailSent = true
				meta.SentAt = &now
			} else {
				meta.LastError = sendErr.Error()
			}
			if _, err := codes.UpdateOne(ctx, bson.M{"_id": ev.Invite.ID}, bson.M{"$set": bson.M{"inviteMetadata": meta}}); err != nil {
				zap.S().Errorw("failed to record invite email metadata", "invite", ev.Invite.ID.Hex(), "error", err)
			}

			if sendErr != nil {
				return &models.CollaboratorDispatchFailure{Collaborator: "sendgrid", Err: sendErr}
			}
			return nil
		},
	}
}
