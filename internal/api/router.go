package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/garderoba/internal/admin"
	"github.com/erazemk/garderoba/internal/advice"
	"github.com/erazemk/garderoba/internal/feed"
	"github.com/erazemk/garderoba/internal/localstate"
	"github.com/erazemk/garderoba/internal/model"
	"github.com/erazemk/garderoba/internal/session"
	"github.com/erazemk/garderoba/internal/workflow"
)

// Deps are the services the API is built on. Advice may be nil, which
// disables outfit suggestions.
type Deps struct {
	DB       *sql.DB
	Sessions *session.Service
	Devices  localstate.Devices
	Feed     feed.Feed
	Workflow *workflow.Workflow
	Admin    *admin.Service
	Advice   advice.Generator
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{Sessions: d.Sessions, Devices: d.Devices}
	usersHandler := &UsersHandler{DB: d.DB}
	garmentsHandler := &GarmentsHandler{DB: d.DB, Feed: d.Feed}
	wardrobeHandler := &WardrobeHandler{DB: d.DB, Feed: d.Feed}
	scanHandler := &ScanHandler{Workflow: d.Workflow}
	outfitsHandler := &OutfitsHandler{DB: d.DB, Advice: d.Advice, Feed: d.Feed}
	notificationsHandler := &NotificationsHandler{DB: d.DB, Feed: d.Feed}
	requestsHandler := &RequestsHandler{DB: d.DB, Admin: d.Admin}
	eventsHandler := &EventsHandler{Feed: d.Feed, Workflow: d.Workflow, Admin: d.Admin}

	authMW := AuthMiddleware(d.Sessions)
	requireAdmin := RequireRole(model.RoleAdmin)
	authed := func(h http.HandlerFunc) http.Handler { return authMW(h) }
	adminOnly := func(h http.HandlerFunc) http.Handler { return authMW(requireAdmin(h)) }

	// Public: sign-up and sign-in.
	mux.HandleFunc("POST /api/auth/signup", authHandler.Signup)
	mux.HandleFunc("POST /api/auth/verify", authHandler.Verify)
	mux.HandleFunc("POST /api/auth/resend", authHandler.Resend)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Session.
	mux.Handle("POST /api/auth/logout", authed(authHandler.Logout))
	mux.Handle("PUT /api/auth/password", authed(authHandler.ChangePassword))
	mux.Handle("GET /api/auth/events", authed(authHandler.Events))

	// Profile.
	mux.Handle("GET /api/profile", authed(usersHandler.Profile))
	mux.Handle("PUT /api/profile", authed(usersHandler.UpdateProfile))
	mux.Handle("PUT /api/profile/avatar", authed(usersHandler.UploadAvatar))
	mux.Handle("GET /api/users/{id}/avatar", authed(usersHandler.GetAvatar))

	// Users (admin only).
	mux.Handle("GET /api/users", adminOnly(usersHandler.List))
	mux.Handle("POST /api/users", adminOnly(usersHandler.Create))
	mux.Handle("GET /api/users/{id}", adminOnly(usersHandler.Get))
	mux.Handle("PUT /api/users/{id}", adminOnly(usersHandler.Update))
	mux.Handle("DELETE /api/users/{id}", adminOnly(usersHandler.Delete))

	// Catalog: read (all roles, codes hidden), write (admin).
	mux.Handle("GET /api/garments", authed(garmentsHandler.List))
	mux.Handle("POST /api/garments", adminOnly(garmentsHandler.Create))
	mux.Handle("GET /api/garments/{id}", authed(garmentsHandler.Get))
	mux.Handle("PUT /api/garments/{id}", adminOnly(garmentsHandler.Update))
	mux.Handle("DELETE /api/garments/{id}", adminOnly(garmentsHandler.Delete))
	mux.Handle("PUT /api/garments/{id}/image", adminOnly(garmentsHandler.UploadImage))
	mux.Handle("GET /api/garments/{id}/image", authed(garmentsHandler.GetImage))

	// Scan workflow.
	mux.Handle("GET /api/scan", authed(scanHandler.Current))
	mux.Handle("POST /api/scan", authed(scanHandler.Start))
	mux.Handle("DELETE /api/scan", authed(scanHandler.Cancel))
	mux.Handle("POST /api/scan/proceed", authed(scanHandler.Proceed))
	mux.Handle("POST /api/scan/request", authed(scanHandler.RequestCode))
	mux.Handle("POST /api/scan/reset", authed(scanHandler.ResetRequest))
	mux.Handle("POST /api/scan/code", authed(scanHandler.SubmitCode))

	// Wardrobe.
	mux.Handle("GET /api/wardrobe", authed(wardrobeHandler.List))
	mux.Handle("POST /api/wardrobe", authed(wardrobeHandler.AddManual))
	mux.Handle("GET /api/wardrobe/{id}", authed(wardrobeHandler.Get))
	mux.Handle("DELETE /api/wardrobe/{id}", authed(wardrobeHandler.Remove))
	mux.Handle("GET /api/wardrobe/{id}/image", authed(wardrobeHandler.GetImage))

	// Outfits.
	mux.Handle("GET /api/outfits", authed(outfitsHandler.List))
	mux.Handle("POST /api/outfits", authed(outfitsHandler.Save))
	mux.Handle("POST /api/outfits/suggest", authed(outfitsHandler.Suggest))
	mux.Handle("DELETE /api/outfits/{id}", authed(outfitsHandler.Delete))

	// Notifications.
	mux.Handle("GET /api/notifications", authed(notificationsHandler.List))
	mux.Handle("DELETE /api/notifications", authed(notificationsHandler.Clear))
	mux.Handle("POST /api/notifications/{id}/read", authed(notificationsHandler.MarkRead))

	// Access requests: own history (all), review (admin).
	mux.Handle("GET /api/requests/mine", authed(requestsHandler.Mine))
	mux.Handle("GET /api/requests", adminOnly(requestsHandler.List))
	mux.Handle("POST /api/requests/{id}/resolve", adminOnly(requestsHandler.Resolve))
	mux.Handle("POST /api/requests/{id}/deny", adminOnly(requestsHandler.Deny))
	mux.Handle("GET /api/admin/dashboard", adminOnly(requestsHandler.Dashboard))

	// Change stream.
	mux.Handle("GET /api/events", authed(eventsHandler.Stream))

	return mux
}
