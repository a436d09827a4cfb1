package userinfo_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/civicworks/eventgate/internal/app/features/userinfo"
	"github.com/civicworks/eventgate/internal/app/system/auth"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestServeUserInfo_Unauthenticated(t *testing.T) {
	handler := userinfo.NewHandler()

	req := httptest.NewRequest("GET", "/api/me", nil)
	rec := httptest.NewRecorder()

	handler.ServeUserInfo(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want %q", ct, "application/json")
	}

	var resp struct {
		Authenticated bool   `json:"authenticated"`
		Name          string `json:"name"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Authenticated {
		t.Error("expected authenticated to be false")
	}
	if resp.Name != "" {
		t.Errorf("expected empty name, got %q", resp.Name)
	}
}

func TestServeUserInfo_Authenticated(t *testing.T) {
	handler := userinfo.NewHandler()

	req := httptest.NewRequest("GET", "/api/me", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{
		ID:        primitive.NewObjectID().Hex(),
		Name:      "Rita Santos",
		Email:     "rita@example.com",
		Authority: 60,
	})
	rec := httptest.NewRecorder()

	handler.ServeUserInfo(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var resp struct {
		Authenticated bool   `json:"authenticated"`
		ID            string `json:"id"`
		Name          string `json:"name"`
		Email         string `json:"email"`
		Authority     int    `json:"authority"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if !resp.Authenticated {
		t.Error("expected authenticated to be true")
	}
	if resp.Name != "Rita Santos" || resp.Email != "rita@example.com" {
		t.Errorf("unexpected identity: %+v", resp)
	}
	if resp.Authority != 60 {
		t.Errorf("authority: got %d, want 60", resp.Authority)
	}
	if resp.ID == "" {
		t.Error("expected non-empty id")
	}
}
