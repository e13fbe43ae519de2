package invites

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/wanderlist/wanderlist-api/models"
)

// RedeemDenied reports a code that cannot be redeemed and why.
type RedeemDenied struct {
	Reason FailReason
}

func (e *RedeemDenied) Error() string {
	return "invite not redeemable: " + string(e.Reason)
}

// ExperienceFailure records one bundled experience that could not be
// materialized. The rest of the bundle proceeds without it.
type ExperienceFailure struct {
	Experience primitive.ObjectID `json:"experience"`
	Error      string             `json:"error"`
}

// RedeemResult reports what a redemption materialized. Destinations
// are handed back to the caller for its own favorite-toggling flow;
// the engine never writes favorites itself.
type RedeemResult struct {
	Invite       *models.InviteCode   `json:"invite"`
	CreatedPlans []models.Plan        `json:"createdPlans"`
	Skipped      []primitive.ObjectID `json:"skipped"`
	Destinations []primitive.ObjectID `json:"destinations"`
	Failures     []ExperienceFailure  `json:"failures,omitempty"`
	Dispatch     []DispatchFailure    `json:"dispatch,omitempty"`
}

// Redeem converts a valid code into entitlements for the user. The
// sequence is: validate read-only, short-circuit if the user already
// holds plans for every bundled experience (a repeat redemption is a
// success no-op and does not consume a use), atomically claim one use,
// then materialize a plan snapshot per experience. Per-experience
// failures are isolated; the use already claimed is not refunded.
func (s *Service) Redeem(ctx context.Context, code string, userID primitive.ObjectID) (*RedeemResult, error) {
	user, err := s.Users.FindOne(ctx, bson.M{"_id": userID})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &models.NotFoundError{Resource: "user", ID: userID.Hex()}
		}
		return nil, err
	}

	check, err := s.Validate(ctx, code, user.Email)
	if err != nil {
		return nil, err
	}
	if !check.Valid {
		return nil, &RedeemDenied{Reason: check.Reason}
	}
	invite := check.Invite

	if len(invite.Experiences) > 0 {
		existing, err := s.existingPlanExperiences(ctx, userID, invite.Experiences)
		if err != nil {
			return nil, err
		}
		if len(existing) == len(invite.Experiences) {
			return &RedeemResult{
				Invite:       invite,
				CreatedPlans: []models.Plan{},
				Skipped:      invite.Experiences,
				Destinations: invite.Destinations,
			}, nil
		}
	}

	claimed, err := s.claimUse(ctx, invite.Code)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Lost a race between validation and the claim; re-check
			// for the precise reason.
			recheck, verr := s.Validate(ctx, code, user.Email)
			if verr != nil {
				return nil, verr
			}
			if !recheck.Valid {
				return nil, &RedeemDenied{Reason: recheck.Reason}
			}
			return nil, &RedeemDenied{Reason: ReasonExhausted}
		}
		return nil, err
	}

	result := &RedeemResult{
		Invite:       claimed,
		CreatedPlans: []models.Plan{},
		Skipped:      []primitive.ObjectID{},
		Destinations: claimed.Destinations,
	}

	for _, expID := range claimed.Experiences {
		plan, created, err := s.materializePlan(ctx, userID, expID)
		if err != nil {
			zap.S().Errorw("failed to materialize plan from invite",
				"invite", claimed.ID.Hex(),
				"experience", expID.Hex(),
				"user", userID.Hex(),
				"error", err)
			result.Failures = append(result.Failures, ExperienceFailure{Experience: expID, Error: err.Error()})
			continue
		}
		if !created {
			result.Skipped = append(result.Skipped, expID)
			continue
		}
		result.CreatedPlans = append(result.CreatedPlans, *plan)
	}

	result.Dispatch = s.runHooks(ctx, Event{
		Kind:         EventInviteRedeemed,
		Invite:       *claimed,
		RedeemedBy:   userID,
		CreatedPlans: result.CreatedPlans,
	})
	return result, nil
}

// claimUse atomically consumes one use while every redeemability
// condition still holds, so the counter can never pass maxUses no
// matter how many requests race. mongo.ErrNoDocuments means some
// condition no longer held at claim time.
func (s *Service) claimUse(ctx context.Context, code string) (*models.InviteCode, error) {
	now := s.now()
	filter := bson.M{
		"code":   code,
		"active": true,
		"$expr":  bson.M{"$lt": bson.A{"$usesCount", "$maxUses"}},
		"$or": []bson.M{
			{"expiresAt": bson.M{"$exists": false}},
			{"expiresAt": nil},
			{"expiresAt": bson.M{"$gt": now}},
		},
	}
	update := bson.M{
		"$inc": bson.M{"usesCount": 1},
		"$set": bson.M{"updatedAt": now},
	}
	return s.Codes.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After))
}

func (s *Service) existingPlanExperiences(ctx context.Context, userID primitive.ObjectID, experiences []primitive.ObjectID) ([]primitive.ObjectID, error) {
	plans, err := s.Plans.Find(ctx, bson.M{"user": userID, "experience": bson.M{"$in": experiences}})
	if err != nil {
		return nil, err
	}
	existing := make([]primitive.ObjectID, 0, len(plans))
	for _, p := range plans {
		existing = append(existing, p.Experience)
	}
	return existing, nil
}

// materializePlan clones the experience's current template into a new
// plan owned by the user. The snapshot array is built in full before
// the insert so a failed write never leaves a partial plan behind. A
// duplicate key from the unique (user, experience) index means a
// concurrent request already satisfied the pair, which is a skip, not
// an error.
func (s *Service) materializePlan(ctx context.Context, userID, expID primitive.ObjectID) (*models.Plan, bool, error) {
	count, err := s.Plans.CountDocuments(ctx, bson.M{"user": userID, "experience": expID})
	if err != nil {
		return nil, false, err
	}
	if count > 0 {
		return nil, false, nil
	}

	exp, err := s.Experiences.FindOne(ctx, bson.M{"_id": expID})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, &models.NotFoundError{Resource: "experience", ID: expID.Hex()}
		}
		return nil, false, err
	}

	now := s.now()
	plan := models.Plan{
		ID:          primitive.NewObjectID(),
		User:        userID,
		Experience:  expID,
		Items:       models.SnapshotPlanItems(exp.PlanItems),
		Permissions: []models.Permission{models.NewUserPermission(userID, models.RoleOwner)},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.Plans.InsertOne(ctx, plan); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &plan, true, nil
}
