package apiapp

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ivankudzin/trustsafety/internal/config"
	"github.com/ivankudzin/trustsafety/internal/domain/enums"
	"github.com/ivankudzin/trustsafety/internal/services/appeals"
	authsvc "github.com/ivankudzin/trustsafety/internal/services/auth"
	"github.com/ivankudzin/trustsafety/internal/services/reports"
	"github.com/ivankudzin/trustsafety/internal/transport/http/handlers"
)

type Dependencies struct {
	ReportService *reports.Service
	AppealService *appeals.Service
	JWT           *authsvc.JWTManager
	Resolver      *authsvc.Resolver
	Logger        *zap.Logger
	Config        config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	reportsHandler := handlers.NewReportsHandler(deps.ReportService)
	appealsHandler := handlers.NewAppealsHandler(deps.AppealService)
	authMW := AuthMiddleware(deps.JWT, deps.Resolver, deps.Logger)
	staffRoleMW := RequireRole(string(enums.RoleAdmin), string(enums.RoleModerator))
	adminRoleMW := RequireRole(string(enums.RoleAdmin))

	r.Get("/healthz", healthHandler.Get)
	r.Handle("/metrics", promhttp.Handler())

	r.Route(deps.Config.HTTP.APIPrefix, func(r chi.Router) {
		r.Get("/healthz", healthHandler.Get)

		r.Route("/admin/reports", func(r chi.Router) {
			r.Use(authMW, staffRoleMW)
			r.Get("/dashboard", reportsHandler.Dashboard)
			r.With(adminRoleMW).Get("/admin-dashboard", reportsHandler.AdminDashboard)
			r.Patch("/review", reportsHandler.Review)
			r.With(adminRoleMW).Patch("/assign", reportsHandler.Assign)
			r.Post("/action/auto", reportsHandler.ActionAuto)
			r.Post("/action/manual", reportsHandler.ActionManual)
			r.Get("/{case_number}", reportsHandler.Detail)
			r.Get("/{case_number}/related", reportsHandler.Related)
			r.Patch("/{case_number}/close", reportsHandler.Close)
		})

		r.Route("/admin/appeals", func(r chi.Router) {
			r.Use(authMW, staffRoleMW)
			r.Get("/dashboard", appealsHandler.Dashboard)
			r.With(adminRoleMW).Get("/admin-dashboard", appealsHandler.AdminDashboard)
			r.Patch("/review", appealsHandler.Review)
			r.With(adminRoleMW).Patch("/assign", appealsHandler.Assign)
			r.Post("/action", appealsHandler.Act)
			r.Get("/{case_number}", appealsHandler.Detail)
			r.Get("/{case_number}/related", appealsHandler.Related)
			r.Patch("/{case_number}/policy-check", appealsHandler.PolicyCheck)
			r.Patch("/{case_number}/close", appealsHandler.Close)
		})
	})
}
