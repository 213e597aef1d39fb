package push

import (
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aldergrove/carecircle/internal/model"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// ErrExpired is returned when a push subscription is no longer valid (410 Gone).
var ErrExpired = errors.New("push subscription expired")

const defaultContact = "mailto:noreply@carecircle.app"

// Payload is the JSON the family app's service worker receives. Severity
// also steers delivery: it sets the push service's urgency and how long an
// undelivered notification stays queued.
type Payload struct {
	Title    string              `json:"title"`
	Body     string              `json:"body"`
	URL      string              `json:"url,omitempty"`
	Tag      string              `json:"tag,omitempty"`
	Severity model.AlertSeverity `json:"severity,omitempty"`
}

// urgencyFor maps alert severity to push urgency. High urgency wakes a
// dozing device; low-severity alerts can wait for the next sync window.
func urgencyFor(s model.AlertSeverity) webpush.Urgency {
	switch s {
	case model.SeverityCritical, model.SeverityHigh:
		return webpush.UrgencyHigh
	case model.SeverityLow:
		return webpush.UrgencyLow
	default:
		return webpush.UrgencyNormal
	}
}

// ttlFor bounds how long the push service queues an undelivered
// notification. A critical alert that sat for an hour is no longer
// actionable; everything else keeps for a day.
func ttlFor(s model.AlertSeverity) int {
	if s == model.SeverityCritical {
		return 3600
	}
	return 86400
}

// Service sends web push notifications to caregiver devices.
type Service struct {
	publicKey  string
	privateKey string
	contact    string
}

// NewService creates a push service with VAPID keys. contact is the
// operator address reported to push services; a bare email address gets
// the mailto: scheme, empty falls back to a project default.
func NewService(publicKey, privateKey, contact string) *Service {
	if contact == "" {
		contact = defaultContact
	} else if !strings.Contains(contact, ":") {
		contact = "mailto:" + contact
	}
	return &Service{
		publicKey:  publicKey,
		privateKey: privateKey,
		contact:    contact,
	}
}

// VAPIDPublicKey returns the VAPID public key for client-side subscription.
func (s *Service) VAPIDPublicKey() string {
	return s.publicKey
}

// Send delivers one notification. The payload tag doubles as the push
// topic, so a newer notification about the same alert replaces a queued
// one instead of stacking on the lock screen.
func (s *Service) Send(sub *model.PushSubscription, payload Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := webpush.SendNotification(data, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}, &webpush.Options{
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		Subscriber:      s.contact,
		Urgency:         urgencyFor(payload.Severity),
		Topic:           payload.Tag,
		TTL:             ttlFor(payload.Severity),
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		return ErrExpired
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}

	return nil
}

// GenerateVAPIDKeys generates a P-256 key pair encoded the way push
// services expect VAPID keys: base64url, no padding, uncompressed point
// for the public half.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate P-256 key: %w", err)
	}

	publicKey = base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes())
	privateKey = base64.RawURLEncoding.EncodeToString(key.Bytes())
	return publicKey, privateKey, nil
}
