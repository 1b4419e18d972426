package handler

import (
	"github.com/inkwell/internal/service"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db          *gorm.DB
	articles    *service.ArticleService
	views       *service.ViewService
	subscribers *service.SubscriberService
	analytics   *service.AnalyticsService
	users       *service.UserService
}

// NewAPI constructs a handler set with shared services.
func NewAPI(gdb *gorm.DB, images service.ImageStore, mailer service.Mailer, siteBaseURL string) *API {
	return &API{
		db:          gdb,
		articles:    service.NewArticleService(gdb, images),
		views:       service.NewViewService(gdb),
		subscribers: service.NewSubscriberService(gdb),
		analytics:   service.NewAnalyticsService(gdb),
		users:       service.NewUserService(gdb, mailer, siteBaseURL),
	}
}

// Views exposes the view service so the entry point can start the
// retention sweeper with its configured interval.
func (a *API) Views() *service.ViewService {
	return a.views
}
