package dashboard

import (
	"github.com/gdamore/tcell/v2"
	"github.com/sirupsen/logrus"
)

// DashboardBuilderOption is a functional option for configuring a Dashboard.
type DashboardBuilderOption func(*dashboardImpl)

// WithScreen draws onto screen instead of the terminal. The dashboard initializes it.
//
// Parameters:
//   - screen: the screen to use
//
// Returns:
//   - DashboardBuilderOption: option function to apply
func WithScreen(screen tcell.Screen) DashboardBuilderOption {
	return func(d *dashboardImpl) {
		d.screen = screen
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logrus.Entry) DashboardBuilderOption {
	return func(d *dashboardImpl) {
		if logger != nil {
			d.logger = logger
		}
	}
}
