package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wanderlist/wanderlist-api/api"
	"github.com/wanderlist/wanderlist-api/api/scheduler"
	"github.com/wanderlist/wanderlist-api/config"
	"github.com/wanderlist/wanderlist-api/databases"
	"github.com/wanderlist/wanderlist-api/flags"
	"github.com/wanderlist/wanderlist-api/invites"
	"github.com/wanderlist/wanderlist-api/models"
	"github.com/wanderlist/wanderlist-api/permissions"
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router   *mux.Router
	DB       databases.CollectionHelper
	Config   config.Config
	dbHelper databases.DatabaseHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	// setup go-guardian for middleware
	m := api.MiddlewareDB{DB: databases.NewUserDatabase(a.dbHelper)}
	m.SetupGoGuardian()

	r := mux.NewRouter()
	r.Use(api.MetricsMiddleware)

	udb := databases.NewUserDatabase(a.dbHelper)
	idb := databases.NewInviteCodeDatabase(a.dbHelper)
	ddb := databases.NewDestinationDatabase(a.dbHelper)
	edb := databases.NewExperienceDatabase(a.dbHelper)
	pdb := databases.NewPlanDatabase(a.dbHelper)
	phdb := databases.NewPhotoDatabase(a.dbHelper)

	hub := NewEventHub()
	mailer := NewSendgridMailer(a.Config.SendgridAPIKey, a.Config.PublicWebBaseURL)

	inviteService := invites.NewService(idb, pdb, edb, ddb, udb)
	inviteService.AddHook(invites.NewEmailHook(mailer, udb, idb, "api"))
	inviteService.AddHook(NewRedemptionEventHook(hub))

	flagCache := flags.NewStatusCache(30 * time.Second)

	u := User{DB: udb, Invites: inviteService, Flags: flags.NewEvaluator(flagCache), FlagCache: flagCache}
	ic := InviteCode{Service: inviteService}
	perm := Permissions{Service: permissions.NewService(ddb, edb, pdb, phdb), UserDB: udb, Hub: hub}
	d := Destination{DB: ddb}
	e := Experience{DB: edb}
	p := Plan{DB: pdb, ExpDB: edb}
	ph := Photo{DB: phdb}
	adm := Admin{
		ADB:       databases.NewAdminDatabase(a.dbHelper),
		RDB:       databases.NewAdminResetDatabase(a.dbHelper),
		UDB:       udb,
		IDB:       idb,
		FlagCache: flagCache,
	}
	uploadHandler := UploadHandler{}
	metricsHandler := MetricsHandler{}

	// 10 writes per minute per client on the invite and permission
	// mutation routes
	limiter := api.NewRateLimiter(rate.Every(6*time.Second), 10)
	timeout := api.TimeoutMiddleware(30 * time.Second)

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)

	// realtime event stream, authenticated by userId query param at upgrade
	r.Handle("/ws/events", http.HandlerFunc(hub.EventsWebSocketHandler)).Methods("GET")

	apiCreate := r.PathPrefix("/api/v1").Subrouter()

	apiCreate.Handle("/auth/token", api.Middleware(http.HandlerFunc(m.CreateToken))).Methods("POST")
	apiCreate.Handle("/auth/logout", api.Middleware(http.HandlerFunc(api.RevokeToken))).Methods("DELETE")

	apiCreate.Handle("/user/create-user", http.HandlerFunc(u.UserCreateHandler)).Methods("POST")
	apiCreate.Handle("/user/check-user", http.HandlerFunc(u.UserCheckEmailHandler)).Methods("POST")
	apiCreate.Handle("/user/create-checkout-session", api.Middleware(http.HandlerFunc(u.CreateCheckoutSessionHandler))).Methods("POST")
	apiCreate.Handle("/user/verify-subscription", api.Middleware(http.HandlerFunc(u.VerifySubscriptionHandler))).Methods("POST")
	apiCreate.Handle("/user/unsubscribe", api.Middleware(http.HandlerFunc(u.UnsubscribeUserHandler))).Methods("POST")
	apiCreate.Handle("/user/{user_id}/feature-flags", api.Middleware(http.HandlerFunc(u.UserFeatureFlagsHandler))).Methods("GET")
	apiCreate.Handle("/user/{user_id}/favorites/{destination_id}", api.Middleware(http.HandlerFunc(u.ToggleFavoriteDestinationHandler))).Methods("PUT")
	apiCreate.Handle("/user/{user_id}", api.Middleware(http.HandlerFunc(u.UserUpdateHandler))).Methods("PUT")
	apiCreate.Handle("/user/{user_id}", api.Middleware(http.HandlerFunc(u.UserHandler))).Methods("GET")
	// All routes for user must go above this line

	apiCreate.Handle("/feature-flags/check", api.Middleware(http.HandlerFunc(u.FeatureFlagCheckHandler))).Methods("GET")

	apiCreate.Handle("/invite", limiter.Limit(api.Middleware(http.HandlerFunc(ic.InviteCodeCreateHandler)))).Methods("POST")
	apiCreate.Handle("/invite/validate", http.HandlerFunc(ic.InviteCodeValidateHandler)).Methods("GET")
	apiCreate.Handle("/invite/redeem", api.Middleware(http.HandlerFunc(ic.InviteCodeRedeemHandler))).Methods("POST")
	apiCreate.Handle("/invite/{invite_id}/deactivate", api.Middleware(http.HandlerFunc(ic.InviteCodeDeactivateHandler))).Methods("PUT")
	apiCreate.Handle("/invites/bulk", limiter.Limit(api.Middleware(http.HandlerFunc(ic.InviteCodeBulkCreateHandler)))).Methods("POST")
	apiCreate.Handle("/invites/user/{user_id}", api.Middleware(http.HandlerFunc(ic.InviteCodesByUserHandler))).Methods("GET")

	apiCreate.Handle("/destination", api.Middleware(http.HandlerFunc(d.DestinationCreateHandler))).Methods("POST")
	apiCreate.Handle("/destination/{destination_id}", api.Middleware(http.HandlerFunc(d.DestinationHandler))).Methods("GET")
	apiCreate.Handle("/destination/{destination_id}", api.Middleware(http.HandlerFunc(d.DestinationUpdateHandler))).Methods("PUT")
	apiCreate.Handle("/destination/{destination_id}", api.Middleware(http.HandlerFunc(d.DestinationDeleteHandler))).Methods("DELETE")
	apiCreate.Handle("/destinations/user/{user_id}", api.Middleware(http.HandlerFunc(d.DestinationsByUserHandler))).Methods("GET")

	apiCreate.Handle("/experience", api.Middleware(http.HandlerFunc(e.ExperienceCreateHandler))).Methods("POST")
	apiCreate.Handle("/experience/{experience_id}", api.Middleware(http.HandlerFunc(e.ExperienceHandler))).Methods("GET")
	apiCreate.Handle("/experience/{experience_id}", api.Middleware(http.HandlerFunc(e.ExperienceUpdateHandler))).Methods("PUT")
	apiCreate.Handle("/experience/{experience_id}", api.Middleware(http.HandlerFunc(e.ExperienceDeleteHandler))).Methods("DELETE")
	apiCreate.Handle("/experiences/user/{user_id}", api.Middleware(http.HandlerFunc(e.ExperiencesByUserHandler))).Methods("GET")
	apiCreate.Handle("/experiences/destination/{destination_id}", api.Middleware(http.HandlerFunc(e.ExperiencesByDestinationHandler))).Methods("GET")

	apiCreate.Handle("/plan", api.Middleware(http.HandlerFunc(p.PlanCreateHandler))).Methods("POST")
	apiCreate.Handle("/plan/{plan_id}", api.Middleware(http.HandlerFunc(p.PlanHandler))).Methods("GET")
	apiCreate.Handle("/plan/{plan_id}", api.Middleware(http.HandlerFunc(p.PlanDeleteHandler))).Methods("DELETE")
	apiCreate.Handle("/plan/{plan_id}/items/{item_id}", api.Middleware(http.HandlerFunc(p.PlanItemCompleteHandler))).Methods("PUT")
	apiCreate.Handle("/plans/user/{user_id}", api.Middleware(http.HandlerFunc(p.PlansByUserHandler))).Methods("GET")

	apiCreate.Handle("/photo", api.Middleware(http.HandlerFunc(ph.PhotoCreateHandler))).Methods("POST")
	apiCreate.Handle("/photo/{photo_id}", api.Middleware(http.HandlerFunc(ph.PhotoHandler))).Methods("GET")
	apiCreate.Handle("/photo/{photo_id}", api.Middleware(http.HandlerFunc(ph.PhotoDeleteHandler))).Methods("DELETE")
	apiCreate.Handle("/photos/user/{user_id}", api.Middleware(http.HandlerFunc(ph.PhotosByUserHandler))).Methods("GET")

	// permission routes match any entity kind; the handler rejects kinds
	// that do not carry a permissions array
	apiCreate.Handle("/{entity_kind}/{entity_id}/permissions", api.Middleware(http.HandlerFunc(perm.PermissionListHandler))).Methods("GET")
	apiCreate.Handle("/{entity_kind}/{entity_id}/permissions", limiter.Limit(api.Middleware(http.HandlerFunc(perm.PermissionAddHandler)))).Methods("POST")
	apiCreate.Handle("/{entity_kind}/{entity_id}/permissions/{grantee_id}", limiter.Limit(api.Middleware(http.HandlerFunc(perm.PermissionUpdateHandler)))).Methods("PUT")
	apiCreate.Handle("/{entity_kind}/{entity_id}/permissions/{grantee_id}", limiter.Limit(api.Middleware(http.HandlerFunc(perm.PermissionRemoveHandler)))).Methods("DELETE")

	apiCreate.Handle("/admin/login", http.HandlerFunc(adm.AdminLoginHandler)).Methods("POST")
	apiCreate.Handle("/admin/forgot-password", http.HandlerFunc(adm.AdminForgotPasswordHandler)).Methods("POST")
	apiCreate.Handle("/admin/reset-password", http.HandlerFunc(adm.AdminResetPasswordHandler)).Methods("POST")
	apiCreate.Handle("/admin/users/search", api.AdminJWTMiddleware(timeout(http.HandlerFunc(adm.AdminUserSearchHandler)))).Methods("POST")
	apiCreate.Handle("/admin/invites/search", api.AdminJWTMiddleware(timeout(http.HandlerFunc(adm.AdminInviteSearchHandler)))).Methods("POST")
	apiCreate.Handle("/admin/users/{user_id}", api.AdminJWTMiddleware(http.HandlerFunc(adm.AdminUserDetailsHandler))).Methods("GET")
	apiCreate.Handle("/admin/users/{user_id}/flags", api.AdminJWTMiddleware(http.HandlerFunc(adm.AdminUserFlagsHandler))).Methods("POST")
	apiCreate.Handle("/admin/users/{user_id}/temp-password", api.AdminJWTMiddleware(http.HandlerFunc(adm.AdminUserTempPasswordHandler))).Methods("POST")

	apiCreate.Handle("/metrics", api.Middleware(timeout(http.HandlerFunc(metricsHandler.GetMetricsDashboard)))).Methods("GET")
	apiCreate.Handle("/metrics/summary", api.Middleware(http.HandlerFunc(metricsHandler.GetMetricsSummary))).Methods("GET")
	apiCreate.Handle("/metrics/routes", api.Middleware(http.HandlerFunc(metricsHandler.GetRouteMetrics))).Methods("GET")
	apiCreate.Handle("/metrics/slow-queries", api.Middleware(http.HandlerFunc(metricsHandler.GetSlowQueries))).Methods("GET")

	apiCreate.Handle("/generate-upload-signature", api.Middleware(http.HandlerFunc(uploadHandler.GenerateSignature))).Methods("POST")

	apiCreate.Handle("/success", http.HandlerFunc(handleSuccessRedirect)).Methods("GET")
	apiCreate.Handle("/cancel", http.HandlerFunc(handleCancelRedirect)).Methods("GET")

	// swagger docs hosted at "/"
	r.PathPrefix("/").Handler(http.StripPrefix("/", http.FileServer(http.Dir("./docs/"))))
	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect()
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("wanderlist-api has connected to the database")

	// the unique indexes are what make concurrent redemption and signup safe,
	// so a failure here kills the pod too
	if err := databases.EnsureIndexes(context.Background(), a.dbHelper); err != nil {
		zap.S().With(err).Error("failed to ensure indexes")
		return err
	}

	if err := EnsureHeadAdmin(databases.NewAdminDatabase(a.dbHelper)); err != nil {
		zap.S().Warnw("failed to ensure head admin", "error", err)
	}

	// initialize stripe
	if a.Config.StripeSecretKey == "" {
		return fmt.Errorf("stripe secret key is not set")
	}
	stripe.Key = a.Config.StripeSecretKey

	api.InitMetrics(10000, time.Hour)

	// initialize api router
	a.initializeRoutes()
	a.startScheduler()
	return nil

}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

// startScheduler boots the background maintenance jobs: the terminal
// invite purge and the weekly creator digest.
func (a *App) startScheduler() {
	s := scheduler.NewScheduler(
		databases.NewInviteCodeDatabase(a.dbHelper),
		databases.NewUserDatabase(a.dbHelper),
		databases.NewSchedulerLockDatabase(a.dbHelper),
		NewSendgridMailer(a.Config.SendgridAPIKey, a.Config.PublicWebBaseURL),
	)
	s.Start()
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}
