package care

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAuthenticatePatient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/auth/login/" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload["username"] != "P12345" || payload["user_type"] != "patient" {
			t.Errorf("unexpected payload: %v", payload)
		}
		json.NewEncoder(w).Encode(AuthResult{
			Authenticated: true,
			Name:          "Asha",
			Token:         "T1",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "service-key", time.Second)
	result, err := client.AuthenticatePatient(context.Background(), "P12345")
	if err != nil {
		t.Fatalf("AuthenticatePatient err: %v", err)
	}
	if !result.Authenticated || result.Name != "Asha" || result.Token != "T1" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.SubjectID != "P12345" {
		t.Fatalf("subject id should default to the patient id, got %q", result.SubjectID)
	}
}

func TestGetRecordsUsesUserToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/patient/P12345/records/" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer user-token" {
			t.Errorf("unexpected authorization: %s", got)
		}
		json.NewEncoder(w).Encode([]Record{{Date: "2025-01-01", Diagnosis: "Flu", Doctor: "Dr. Rao"}})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "service-key", time.Second)
	records, err := client.GetRecords(context.Background(), "P12345", "user-token")
	if err != nil {
		t.Fatalf("GetRecords err: %v", err)
	}
	if len(records) != 1 || records[0].Diagnosis != "Flu" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestNotifyPatient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/patient/P9/notification/" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var payload map[string]string
		json.NewDecoder(r.Body).Decode(&payload)
		if payload["message"] != "take your meds" {
			t.Errorf("unexpected message: %v", payload)
		}
		json.NewEncoder(w).Encode(NotifyResult{Success: true})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "service-key", time.Second)
	result, err := client.NotifyPatient(context.Background(), "P9", "take your meds", "tok")
	if err != nil {
		t.Fatalf("NotifyPatient err: %v", err)
	}
	if !result.Success {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestNon2xxIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "service-key", time.Second)
	if _, err := client.GetRecentPatients(context.Background(), "tok", 5); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
