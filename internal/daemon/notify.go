package daemon

import (
	"fmt"

	"github.com/gen2brain/beeep"

	"github.com/theirongolddev/ccmeter/internal/logger"
	"github.com/theirongolddev/ccmeter/internal/model"
)

// Notifier delivers a desktop alert.
type Notifier interface {
	Notify(title, body string) error
}

type desktopNotifier struct{}

func (desktopNotifier) Notify(title, body string) error {
	return beeep.Notify(title, body, "")
}

// thresholdAlert fires once each time usage crosses the threshold upward.
type thresholdAlert struct {
	threshold float64
	armed     bool
}

func newThresholdAlert(threshold float64) *thresholdAlert {
	return &thresholdAlert{threshold: threshold, armed: true}
}

// check reports whether pct just crossed the threshold.
func (a *thresholdAlert) check(pct float64) bool {
	if a.threshold <= 0 {
		return false
	}
	if pct < a.threshold {
		a.armed = true
		return false
	}
	if !a.armed {
		return false
	}
	a.armed = false
	return true
}

func notifyQuota(n Notifier, q model.QuotaInfo) {
	title := "Claude usage high"
	body := fmt.Sprintf("%.0f%% of the %dh window used (%d of ~%d prompts)",
		q.UsagePercent, q.WindowHours, q.MessagesInWindow, q.EstimatedLimit)
	if err := n.Notify(title, body); err != nil {
		logger.Warn("desktop notification failed", "error", err)
	}
}
