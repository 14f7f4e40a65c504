package service

import (
	"storefront-v2/internal/domain"
	"storefront-v2/pkg/logger"
)

// LogPresenter reflects chrome state into structured logs. It is the headless
// stand-in for the page; a real frontend would implement ChromePresenter over
// its DOM instead.
type LogPresenter struct {
	log *logger.Logger
}

// NewLogPresenter creates a presenter writing to the given logger
func NewLogPresenter(log *logger.Logger) *LogPresenter {
	return &LogPresenter{log: log.Named("chrome")}
}

func (p *LogPresenter) ShowLoggedIn(name string) {
	p.log.WithField("name", name).Info("chrome: profile entry point shown")
}

func (p *LogPresenter) ShowLoggedOut() {
	p.log.Info("chrome: login button shown")
}

func (p *LogPresenter) ShowProfile(profile domain.Profile) {
	p.log.WithFields(map[string]interface{}{
		"name":    profile.Name,
		"email":   profile.Email,
		"initial": profile.Initial,
	}).Info("chrome: profile panel opened")
}

func (p *LogPresenter) UpdateCartBadge(count int) {
	p.log.WithField("count", count).Debug("chrome: cart badge updated")
}

func (p *LogPresenter) RenderCart(view domain.CartView) {
	p.log.WithFields(map[string]interface{}{
		"items": len(view.Items),
		"total": view.Total,
		"empty": view.Empty,
	}).Debug("chrome: cart panel rendered")
}

func (p *LogPresenter) Toast(message string) {
	p.log.WithField("message", message).Info("chrome: toast")
}

func (p *LogPresenter) Alert(message string) {
	p.log.WithField("message", message).Warn("chrome: alert")
}

func (p *LogPresenter) RequireLogin(message string) {
	p.log.WithField("message", message).Info("chrome: redirecting to login page")
}

func (p *LogPresenter) NavigateHome() {
	p.log.Info("chrome: navigating to landing page")
}

func (p *LogPresenter) ForceReload() {
	p.log.Info("chrome: cached snapshot detected, forcing full reload")
}
