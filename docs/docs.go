// Package docs Wanderlist API.
//
// Documentation of the Wanderlist travel planning API.
//
//     Schemes: https
//     BasePath: /
//     Version: 1.0.0
//     Host: https://api.wanderlist.app
//
//     Consumes:
//     - application/json
//
//     Produces:
//     - application/json
//
//     Security:
//     - basic
//
//    SecurityDefinitions:
//    basic:
//      type: basic
//
// swagger:meta
package docs

import (
	"github.com/wanderlist/wanderlist-api/flags"
	"github.com/wanderlist/wanderlist-api/invites"
	"github.com/wanderlist/wanderlist-api/models"
)

// swagger:route GET /health health healthEndpointID
// Lists the healthchex of the web service api.
// responses:
//   200: healthResponse

// Shows the current health of the api. true means it is alive, false means it is not.
// swagger:response healthResponse
type healthResponseWrapper struct {
	// in:body
	Body models.HealthCheckResponse
}

// swagger:route GET /api/v1/invite/validate invites validateInvite
// Checks whether an invite code can still be redeemed, without consuming a use.
// responses:
//   200: validateInviteResponse

// Shows the code's redeemability and, when redeemable, the bundle preview.
// swagger:response validateInviteResponse
type validateInviteResponseWrapper struct {
	// in:body
	Body invites.ValidateResult
}

// swagger:route POST /api/v1/invite/redeem invites redeemInvite
// Redeems an invite code for a user, materializing the bundled experiences into plans.
// responses:
//   200: redeemInviteResponse

// Shows the plans created, the experiences skipped and any collaborator dispatch failures.
// swagger:response redeemInviteResponse
type redeemInviteResponseWrapper struct {
	// in:body
	Body invites.RedeemResult
}

// swagger:route GET /api/v1/feature-flags/check flags checkFeatureFlag
// Evaluates a feature flag for the acting user or the entity creator, depending on context.
// responses:
//   200: checkFeatureFlagResponse

// Shows whether the flag is allowed and why.
// swagger:response checkFeatureFlagResponse
type checkFeatureFlagResponseWrapper struct {
	// in:body
	Body flags.Decision
}

// swagger:route GET /api/v1/destination/{destination_id} destinations destinationByID
// Gets a single destination by ID.
// responses:
//   200: destinationByIDResponse

// Shows a single destination by the given {ID}
// swagger:response destinationByIDResponse
type destinationByIDResponseWrapper struct {
	// in:body
	Body models.Destination
}
