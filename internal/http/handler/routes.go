package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"

	"catalogue/internal/http/middleware"
	"catalogue/internal/model"
	"catalogue/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// The account and upload routes are mounted only when authSvc and tokens are both set;
// db may be nil, in which case /health reports the database as disabled.
func RegisterRoutes(app *fiber.App, db *sql.DB, catSvc service.CatalogueService, authSvc service.AuthService, tokens middleware.TokenParser) {
	app.Get("/", Welcome())
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	app.Get("/api/files/:category", ListFiles(catSvc))
	app.Get("/download/:category/:filename", DownloadFile(catSvc))
	app.Get("/api/docx/:category/:filename", ConvertDocx(catSvc))
	app.Get("/uploads/*", ServeUpload(catSvc))

	if authSvc == nil || tokens == nil {
		return
	}

	requireAuth := middleware.RequireAuth(tokens)
	app.Post("/api/files/:category",
		requireAuth,
		middleware.RequireRoles(model.RoleModerator, model.RoleAdmin),
		UploadFile(catSvc),
	)

	app.Post("/api/auth/signup", SignUp(authSvc))
	app.Post("/api/auth/signin", SignIn(authSvc))
	app.Get("/api/users/me", requireAuth, CurrentUser(authSvc))
	app.Post("/api/users", requireAuth, middleware.RequireRoles(model.RoleAdmin), CreateUser(authSvc))
}
