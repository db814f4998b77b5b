package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/vitrine-app/vitrine/app/controllers"
	"github.com/vitrine-app/vitrine/app/repository"
	"github.com/vitrine-app/vitrine/internal/pkg/billing"
	"github.com/vitrine-app/vitrine/internal/pkg/blobstore"
	"github.com/vitrine-app/vitrine/internal/pkg/database"
	"github.com/vitrine-app/vitrine/internal/pkg/identity"
	"github.com/vitrine-app/vitrine/internal/pkg/middleware"
	"github.com/vitrine-app/vitrine/internal/pkg/publicview"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// InstallRouter wires the shared services and registers all routes. The API
// router installs first; the public router carries the catch-all storefront
// routes and must come last.
func InstallRouter(app *fiber.App) {
	verifier, err := identity.NewVerifierFromEnv()
	if err != nil {
		log.Fatalf("identity verifier setup failed: %v", err)
	}

	resolver := publicview.NewResolver(
		repository.GetGlobalFactory().GetPublicRepository(),
		publicview.NewRedisCache(),
	)
	billingService := billing.NewService(
		billing.NewRepository(database.GetDB()),
		billing.NewClientFromEnv(),
		billing.NewPriceTableFromEnv(),
	)

	controllers.Initialize(controllers.Deps{
		PublicResolver: resolver,
		BillingService: billingService,
		BlobStore:      blobstore.GetStore(),
	})

	app.Use(middleware.UserContextMiddleware(verifier))

	setup(app, NewApiRouter(), NewPublicRouter())
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
