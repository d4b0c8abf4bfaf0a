package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"clinic_automation/platform/apperr"
	"clinic_automation/platform/logger"
)

type smsConfigStub struct {
	url string
}

func (c smsConfigStub) GetSMSGatewayURL() string      { return c.url }
func (c smsConfigStub) GetSMSGatewayKey() string      { return "secret" }
func (c smsConfigStub) GetSMSSenderID() string        { return "Clinic" }
func (c smsConfigStub) GetSMSRatePerSecond() float64  { return 0 }
func (c smsConfigStub) GetPhoneDefaultRegion() string { return "NL" }
func (c smsConfigStub) IsSMSEnabled() bool            { return c.url != "" }

func TestSendSMSPostsNormalisedNumber(t *testing.T) {
	var got sendRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client := NewClient(smsConfigStub{url: srv.URL + "/"}, logger.Nop())
	if err := client.SendSMS(context.Background(), "06 12345678", "Your appointment is tomorrow"); err != nil {
		t.Fatalf("SendSMS: %v", err)
	}

	if got.To != "+31612345678" || got.From != "Clinic" || got.Text == "" {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if auth != "Bearer secret" {
		t.Fatalf("unexpected auth header %q", auth)
	}
}

func TestSendSMSGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(smsConfigStub{url: srv.URL}, logger.Nop())
	if err := client.SendSMS(context.Background(), "+31612345678", "hi"); err == nil {
		t.Fatal("expected error for gateway failure")
	}
}

func TestSendSMSRejectsInvalidNumber(t *testing.T) {
	client := NewClient(smsConfigStub{url: "http://127.0.0.1:1"}, logger.Nop())
	err := client.SendSMS(context.Background(), "n/a", "hi")
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNewClientDisabled(t *testing.T) {
	if NewClient(smsConfigStub{}, logger.Nop()) != nil {
		t.Fatal("no gateway url should yield a nil client")
	}
}
