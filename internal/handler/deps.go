package handler

import (
	"storefront/internal/app/tab"
	"storefront/internal/configs"
)

// AppDeps are the long-lived objects the HTTP layer needs.
type AppDeps struct {
	Manager *tab.Manager
	Config  *configs.AppConfig
}
