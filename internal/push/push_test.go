package push

import (
	"encoding/base64"
	"testing"

	"github.com/aldergrove/carecircle/internal/model"

	webpush "github.com/SherClockHolmes/webpush-go"
)

func TestUrgencyTracksSeverity(t *testing.T) {
	for _, tc := range []struct {
		severity model.AlertSeverity
		want     webpush.Urgency
	}{
		{model.SeverityCritical, webpush.UrgencyHigh},
		{model.SeverityHigh, webpush.UrgencyHigh},
		{model.SeverityMedium, webpush.UrgencyNormal},
		{model.SeverityLow, webpush.UrgencyLow},
		{"", webpush.UrgencyNormal},
	} {
		if got := urgencyFor(tc.severity); got != tc.want {
			t.Errorf("urgencyFor(%q) = %q, want %q", tc.severity, got, tc.want)
		}
	}
}

func TestCriticalNotificationsExpireSooner(t *testing.T) {
	if ttlFor(model.SeverityCritical) >= ttlFor(model.SeverityLow) {
		t.Error("critical TTL not shorter than low TTL")
	}
}

func TestNewServiceContact(t *testing.T) {
	if got := NewService("pub", "priv", "").contact; got != defaultContact {
		t.Errorf("empty contact = %q, want default", got)
	}
	if got := NewService("pub", "priv", "care@example.com").contact; got != "mailto:care@example.com" {
		t.Errorf("bare email contact = %q, want mailto: prefix", got)
	}
	if got := NewService("pub", "priv", "https://example.com/ops").contact; got != "https://example.com/ops" {
		t.Errorf("URL contact rewritten to %q", got)
	}
}

func TestGenerateVAPIDKeys(t *testing.T) {
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	pubBytes, err := base64.RawURLEncoding.DecodeString(pub)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	// Uncompressed P-256 point: 0x04 prefix plus two 32-byte coordinates.
	if len(pubBytes) != 65 || pubBytes[0] != 0x04 {
		t.Errorf("public key: %d bytes, prefix %#x", len(pubBytes), pubBytes[0])
	}

	privBytes, err := base64.RawURLEncoding.DecodeString(priv)
	if err != nil {
		t.Fatalf("decode private key: %v", err)
	}
	if len(privBytes) != 32 {
		t.Errorf("private key: %d bytes, want 32", len(privBytes))
	}

	pub2, _, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate again: %v", err)
	}
	if pub2 == pub {
		t.Error("two generations produced the same key")
	}
}
