// Package invites implements the invite code lifecycle: issuance,
// validation, redemption and deactivation of shareable codes that
// bundle experiences and destinations. Redemption is idempotent per
// (user, experience) pair and race-safe under concurrent submits.
package invites

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/wanderlist/wanderlist-api/databases"
	"github.com/wanderlist/wanderlist-api/models"
)

const maxCodeAttempts = 3

// Service owns the invite code lifecycle. Post-commit hooks run after
// an operation's writes have committed; hook failures surface as
// dispatch metadata on the result, never as operation errors.
type Service struct {
	Codes        databases.InviteCodeDatabase
	Plans        databases.PlanDatabase
	Experiences  databases.ExperienceDatabase
	Destinations databases.DestinationDatabase
	Users        databases.UserDatabase

	now   func() time.Time
	hooks []Hook
}

// NewService wires the invite engine over its collections.
func NewService(codes databases.InviteCodeDatabase, plans databases.PlanDatabase, experiences databases.ExperienceDatabase, destinations databases.DestinationDatabase, users databases.UserDatabase) *Service {
	return &Service{
		Codes:        codes,
		Plans:        plans,
		Experiences:  experiences,
		Destinations: destinations,
		Users:        users,
		now:          time.Now,
	}
}

// WithClock injects a deterministic clock for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// AddHook registers a post-commit hook.
func (s *Service) AddHook(h Hook) {
	s.hooks = append(s.hooks, h)
}

// CreateRequest carries the caller-supplied fields for a new invite.
type CreateRequest struct {
	Email         string               `json:"email"`
	InviteeName   string               `json:"inviteeName"`
	Experiences   []primitive.ObjectID `json:"experiences"`
	Destinations  []primitive.ObjectID `json:"destinations"`
	MaxUses       int                  `json:"maxUses"`
	ExpiresAt     *time.Time           `json:"expiresAt"`
	CustomMessage string               `json:"customMessage"`
}

// CreateResult is a created invite plus any dispatch failures from
// post-commit hooks.
type CreateResult struct {
	Invite   *models.InviteCode `json:"invite"`
	Dispatch []DispatchFailure  `json:"dispatch,omitempty"`
}

// Create issues a new invite code for the creator. A zero MaxUses
// defaults to single use. Referenced experiences and destinations
// must resolve or the whole request is rejected.
func (s *Service) Create(ctx context.Context, creator primitive.ObjectID, req CreateRequest) (*CreateResult, error) {
	if req.MaxUses == 0 {
		req.MaxUses = 1
	}
	if req.MaxUses < 1 {
		return nil, &models.ValidationError{Field: "maxUses", Reason: "must be at least 1"}
	}
	now := s.now()
	if req.ExpiresAt != nil && req.ExpiresAt.Before(now) {
		return nil, &models.ValidationError{Field: "expiresAt", Reason: "must be in the future"}
	}
	req.Experiences = dedupeIDs(req.Experiences)
	req.Destinations = dedupeIDs(req.Destinations)
	if err := s.resolveRefs(ctx, req); err != nil {
		return nil, err
	}

	invite := models.InviteCode{
		CreatedBy:     creator,
		Email:         strings.ToLower(strings.TrimSpace(req.Email)),
		InviteeName:   strings.TrimSpace(req.InviteeName),
		Experiences:   req.Experiences,
		Destinations:  req.Destinations,
		MaxUses:       req.MaxUses,
		UsesCount:     0,
		ExpiresAt:     req.ExpiresAt,
		Active:        true,
		CustomMessage: req.CustomMessage,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := generateCode()
		if err != nil {
			return nil, err
		}
		invite.ID = primitive.NewObjectID()
		invite.Code = code

		_, err = s.Codes.InsertOne(ctx, invite)
		if err == nil {
			result := &CreateResult{Invite: &invite}
			result.Dispatch = s.runHooks(ctx, Event{Kind: EventInviteCreated, Invite: invite})
			return result, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return nil, err
		}
		zap.S().Debugw("invite code collision, regenerating", "attempt", attempt+1)
	}
	return nil, errors.New("could not generate a unique invite code")
}

// BulkRowError pairs a failed row index with the failure reason.
type BulkRowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// BulkResult separates created invites from per-row failures. Partial
// success is the expected steady state, not an error.
type BulkResult struct {
	Created  []models.InviteCode `json:"created"`
	Errors   []BulkRowError      `json:"errors"`
	Dispatch []DispatchFailure   `json:"dispatch,omitempty"`
}

// BulkCreate processes each row independently; a malformed row never
// aborts the rest of the batch.
func (s *Service) BulkCreate(ctx context.Context, creator primitive.ObjectID, rows []CreateRequest) *BulkResult {
	result := &BulkResult{Created: []models.InviteCode{}, Errors: []BulkRowError{}}
	for i, row := range rows {
		created, err := s.Create(ctx, creator, row)
		if err != nil {
			result.Errors = append(result.Errors, BulkRowError{Row: i, Error: err.Error()})
			continue
		}
		result.Created = append(result.Created, *created.Invite)
		result.Dispatch = append(result.Dispatch, created.Dispatch...)
	}
	return result
}

// FailReason distinguishes why a code failed validation so the UI can
// say "this code was already used" rather than a generic error.
type FailReason string

const (
	ReasonNotFound      FailReason = "not_found"
	ReasonDeactivated   FailReason = "deactivated"
	ReasonExpired       FailReason = "expired"
	ReasonExhausted     FailReason = "exhausted"
	ReasonEmailMismatch FailReason = "email_mismatch"
)

// ValidateResult reports whether a code is currently redeemable.
type ValidateResult struct {
	Valid  bool               `json:"valid"`
	Reason FailReason         `json:"reason,omitempty"`
	Invite *models.InviteCode `json:"invite,omitempty"`
}

// Validate is the read-only redeemability check. Conditions are
// examined in a fixed order so the caller always learns the first
// failing one: existence, active, expiry, use count, then the
// optional target-email match. It never mutates state.
func (s *Service) Validate(ctx context.Context, code, email string) (*ValidateResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, &models.ValidationError{Field: "code", Reason: "code is required"}
	}

	invite, err := s.Codes.FindOne(ctx, bson.M{"code": code})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &ValidateResult{Valid: false, Reason: ReasonNotFound}, nil
		}
		return nil, err
	}
	if !invite.Active {
		return &ValidateResult{Valid: false, Reason: ReasonDeactivated}, nil
	}
	if invite.IsExpired(s.now()) {
		return &ValidateResult{Valid: false, Reason: ReasonExpired}, nil
	}
	if invite.IsExhausted() {
		return &ValidateResult{Valid: false, Reason: ReasonExhausted}, nil
	}
	if email != "" && invite.Email != "" && !strings.EqualFold(strings.TrimSpace(email), invite.Email) {
		return &ValidateResult{Valid: false, Reason: ReasonEmailMismatch}, nil
	}
	return &ValidateResult{Valid: true, Invite: invite}, nil
}

// Deactivate permanently disables a code. The boolean reports whether
// this call flipped it; deactivating twice is not an error.
func (s *Service) Deactivate(ctx context.Context, id primitive.ObjectID) (bool, error) {
	modified, err := s.Codes.UpdateOne(ctx,
		bson.M{"_id": id, "active": true},
		bson.M{"$set": bson.M{"active": false, "updatedAt": s.now()}},
	)
	if err != nil {
		return false, err
	}
	if modified == 1 {
		return true, nil
	}

	// Nothing changed: tell "already deactivated" apart from "gone".
	_, err = s.Codes.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, &models.NotFoundError{Resource: "invite", ID: id.Hex()}
		}
		return false, err
	}
	return false, nil
}

// GetUserInvites lists the codes a user created, newest first.
func (s *Service) GetUserInvites(ctx context.Context, userID primitive.ObjectID, limit, page int) ([]models.InviteCode, error) {
	opts := databases.Paginate(limit, page).SetSort(bson.M{"createdAt": -1})
	invites, err := s.Codes.Find(ctx, bson.M{"createdBy": userID}, opts)
	if err != nil {
		return nil, err
	}
	if invites == nil {
		invites = []models.InviteCode{}
	}
	return invites, nil
}

func (s *Service) resolveRefs(ctx context.Context, req CreateRequest) error {
	if len(req.Experiences) > 0 {
		count, err := s.Experiences.CountDocuments(ctx, bson.M{"_id": bson.M{"$in": req.Experiences}})
		if err != nil {
			return err
		}
		if count != int64(len(req.Experiences)) {
			return &models.ValidationError{Field: "experiences", Reason: "one or more experiences do not exist"}
		}
	}
	if len(req.Destinations) > 0 {
		count, err := s.Destinations.CountDocuments(ctx, bson.M{"_id": bson.M{"$in": req.Destinations}})
		if err != nil {
			return err
		}
		if count != int64(len(req.Destinations)) {
			return &models.ValidationError{Field: "destinations", Reason: "one or more destinations do not exist"}
		}
	}
	return nil
}

// generateCode returns a 12 character URL-safe token. Collisions are
// caught by the unique code index and retried.
func generateCode() (string, error) {
	buf := make([]byte, 9)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func dedupeIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
