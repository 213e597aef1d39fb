package alert

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/aldergrove/carecircle/internal/model"
	"github.com/aldergrove/carecircle/internal/push"
	"github.com/aldergrove/carecircle/internal/store"
)

// Notifier fans alert events out to the senior's care circle as web
// pushes, honoring per-membership delivery preferences and access levels.
// A nil push service disables delivery without disabling the rest of the
// pipeline.
type Notifier struct {
	memberships *store.MembershipStore
	pushStore   *store.PushStore
	pushSvc     *push.Service
	logger      *slog.Logger
}

func NewNotifier(memberships *store.MembershipStore, pushStore *store.PushStore, pushSvc *push.Service, logger *slog.Logger) *Notifier {
	return &Notifier{memberships: memberships, pushStore: pushStore, pushSvc: pushSvc, logger: logger}
}

// NotifyNew pushes a newly detected alert to eligible caregivers.
func (n *Notifier) NotifyNew(a *model.Alert, seniorName string) {
	title := fmt.Sprintf("New %s alert for %s", a.Severity, seniorName)
	n.fanOut(a, push.Payload{
		Title:    title,
		Body:     a.AlertType,
		Tag:      "alert-" + a.ID,
		URL:      "/alerts/" + a.ID,
		Severity: a.Severity,
	})
}

// NotifyStatus pushes a lifecycle change so other caregivers see the
// alert is being handled.
func (n *Notifier) NotifyStatus(a *model.Alert, seniorName string) {
	n.fanOut(a, push.Payload{
		Title:    fmt.Sprintf("Alert for %s is now %s", seniorName, a.Status),
		Body:     a.AlertType,
		Tag:      "alert-" + a.ID,
		URL:      "/alerts/" + a.ID,
		Severity: a.Severity,
	})
}

func (n *Notifier) fanOut(a *model.Alert, payload push.Payload) {
	if n.pushSvc == nil {
		return
	}

	members, err := n.memberships.ListBySenior(a.SeniorID)
	if err != nil {
		n.logger.Error("list members for alert notify", "alert_id", a.ID, "error", err)
		return
	}

	for _, m := range members {
		if !m.Notifications.PushEnabled {
			continue
		}
		if m.Notifications.CriticalOnly && a.Severity != model.SeverityCritical {
			continue
		}
		// Minimal-access members only ever see critical alerts.
		if m.AccessLevel == model.AccessMinimal && a.Severity != model.SeverityCritical {
			continue
		}

		subs, err := n.pushStore.ListByUser(m.UserID)
		if err != nil {
			n.logger.Error("list push subscriptions", "user_id", m.UserID, "error", err)
			continue
		}
		for i := range subs {
			sub := &subs[i]
			if err := n.pushSvc.Send(sub, payload); err != nil {
				if errors.Is(err, push.ErrExpired) {
					n.pushStore.DeleteByEndpoint(sub.Endpoint)
					continue
				}
				n.logger.Warn("send push", "user_id", m.UserID, "error", err)
			}
		}
	}
}
