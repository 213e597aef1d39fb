package email

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

// rewriteTransport points the client at the test server regardless of the
// request URL.
type rewriteTransport struct {
	target *url.URL
}

func (t rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = t.target.Scheme
	req.URL.Host = t.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func TestSendInviteCode(t *testing.T) {
	var got postmarkEmail
	var token string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token = r.Header.Get("X-Postmark-Server-Token")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	target, _ := url.Parse(srv.URL)
	client := NewClient("test-token", "noreply@carecircle.app",
		WithHTTPClient(&http.Client{Transport: rewriteTransport{target: target}}))

	if err := client.SendInviteCode("carl@example.com", "MC-AB12C", "Dorothy"); err != nil {
		t.Fatalf("send: %v", err)
	}

	if token != "test-token" {
		t.Errorf("server token header = %q", token)
	}
	if got.To != "carl@example.com" || got.From != "noreply@carecircle.app" {
		t.Errorf("addresses: %+v", got)
	}
	if !strings.Contains(got.TextBody, "MC-AB12C") || !strings.Contains(got.Subject, "Dorothy") {
		t.Errorf("body missing code or senior name: %+v", got)
	}
}

func TestSendInviteCodeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	target, _ := url.Parse(srv.URL)
	client := NewClient("test-token", "noreply@carecircle.app",
		WithHTTPClient(&http.Client{Transport: rewriteTransport{target: target}}))

	if err := client.SendInviteCode("carl@example.com", "MC-AB12C", "Dorothy"); err == nil {
		t.Error("expected error on API failure")
	}
}

func TestUnconfiguredClient(t *testing.T) {
	client := NewClient("", "noreply@carecircle.app")
	if client.Configured() {
		t.Error("client without token reports configured")
	}
	if err := client.SendInviteCode("carl@example.com", "MC-AB12C", "Dorothy"); err == nil {
		t.Error("send succeeded without configuration")
	}
}
