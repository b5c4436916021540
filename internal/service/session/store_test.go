package session

import (
	"sync"
	"testing"
	"time"

	"github.com/carelink/whatsapp-bot/internal/model/bot"
	"github.com/carelink/whatsapp-bot/internal/service/token"
)

func newTestStore(t *testing.T, timeout time.Duration) *Store {
	t.Helper()
	issuer, err := token.NewIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer err: %v", err)
	}
	return NewStore(issuer, timeout)
}

func TestGetOrCreateFresh(t *testing.T) {
	store := newTestStore(t, time.Hour)

	sess, err := store.GetOrCreate("wa-1")
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}
	if sess.State != bot.StateNew {
		t.Fatalf("fresh session state: got %s want %s", sess.State, bot.StateNew)
	}
	if sess.Authenticated {
		t.Fatal("fresh session must not be authenticated")
	}
	if sess.Identity != "wa-1" {
		t.Fatalf("unexpected identity: %s", sess.Identity)
	}
}

func TestUpdateStateMergesAttributes(t *testing.T) {
	store := newTestStore(t, time.Hour)

	if err := store.UpdateState("wa-1", bot.StatePatientAuth, map[string]string{"a": "1"}); err != nil {
		t.Fatalf("UpdateState err: %v", err)
	}
	if err := store.UpdateState("wa-1", bot.StatePatientMenu, map[string]string{"a": "2", "b": "3"}); err != nil {
		t.Fatalf("UpdateState err: %v", err)
	}

	sess, err := store.GetOrCreate("wa-1")
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}
	if sess.State != bot.StatePatientMenu {
		t.Fatalf("unexpected state: %s", sess.State)
	}
	if sess.Attributes["a"] != "2" || sess.Attributes["b"] != "3" {
		t.Fatalf("attributes not merged: %v", sess.Attributes)
	}
}

func TestAuthenticateIssuesTokenWhenMissing(t *testing.T) {
	store := newTestStore(t, time.Hour)

	if err := store.Authenticate("wa-1", bot.UserTypePatient, "P12345", ""); err != nil {
		t.Fatalf("Authenticate err: %v", err)
	}

	sess, err := store.GetOrCreate("wa-1")
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}
	if !sess.Authenticated {
		t.Fatal("session should be authenticated")
	}
	if sess.Token == "" {
		t.Fatal("token should have been issued")
	}
	if sess.Attributes[bot.AttrUserID] != "P12345" {
		t.Fatalf("user id not stored: %v", sess.Attributes)
	}

	claims, err := store.issuer.Validate(sess.Token)
	if err != nil {
		t.Fatalf("issued token invalid: %v", err)
	}
	if claims.Subject != "P12345" || claims.Role != "patient" {
		t.Fatalf("unexpected claims: %s/%s", claims.Subject, claims.Role)
	}
	if _, ok := sess.Attributes[bot.AttrCareToken]; ok {
		t.Fatalf("no backend credential was supplied: %v", sess.Attributes)
	}
}

func TestAuthenticateKeepsBackendCredential(t *testing.T) {
	store := newTestStore(t, time.Hour)

	if err := store.Authenticate("wa-1", bot.UserTypePatient, "P12345", "T1"); err != nil {
		t.Fatalf("Authenticate err: %v", err)
	}

	sess, err := store.GetOrCreate("wa-1")
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}
	if !sess.Authenticated {
		t.Fatal("session should be authenticated")
	}
	if sess.Attributes[bot.AttrCareToken] != "T1" {
		t.Fatalf("backend credential not stored: %v", sess.Attributes)
	}
	if sess.Token == "T1" || sess.Token == "" {
		t.Fatalf("lifecycle token must be locally issued, got %q", sess.Token)
	}
	if _, err := store.issuer.Validate(sess.Token); err != nil {
		t.Fatalf("lifecycle token invalid: %v", err)
	}

	// The opaque credential must not interfere with sliding refresh.
	again, err := store.GetOrCreate("wa-1")
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}
	if !again.Authenticated || again.Token == sess.Token {
		t.Fatalf("refresh broken with backend credential present: %+v", again)
	}
	if again.Attributes[bot.AttrCareToken] != "T1" {
		t.Fatalf("backend credential lost on read: %v", again.Attributes)
	}
}

func TestSlidingRefreshOnRead(t *testing.T) {
	store := newTestStore(t, time.Hour)

	if err := store.Authenticate("wa-1", bot.UserTypePatient, "P12345", ""); err != nil {
		t.Fatalf("Authenticate err: %v", err)
	}
	before, _ := store.GetOrCreate("wa-1")

	after, err := store.GetOrCreate("wa-1")
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}
	if after.Token == before.Token {
		t.Fatal("read should write back a refreshed token")
	}
	if !after.Authenticated {
		t.Fatal("refresh must not deauthenticate")
	}
}

func TestInactivityReset(t *testing.T) {
	store := newTestStore(t, 30*time.Minute)

	if err := store.Authenticate("wa-1", bot.UserTypeStaff, "STAFF1", ""); err != nil {
		t.Fatalf("Authenticate err: %v", err)
	}
	if err := store.UpdateState("wa-1", bot.StateStaffMenu, map[string]string{"staff_name": "Lin"}); err != nil {
		t.Fatalf("UpdateState err: %v", err)
	}

	base := time.Now()
	store.now = func() time.Time { return base.Add(31 * time.Minute) }

	first, err := store.GetOrCreate("wa-1")
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}
	second, err := store.GetOrCreate("wa-1")
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}

	for _, sess := range []bot.Session{first, second} {
		if sess.State != bot.StateNew || sess.Authenticated || sess.Token != "" {
			t.Fatalf("expired session not reset: %+v", sess)
		}
		if len(sess.Attributes) != 0 {
			t.Fatalf("reset must drop attributes: %v", sess.Attributes)
		}
	}
}

func TestTokenExpiryReset(t *testing.T) {
	issuer, err := token.NewIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer err: %v", err)
	}
	store := NewStore(issuer, 48*time.Hour)

	if err := store.Authenticate("wa-1", bot.UserTypePatient, "P12345", ""); err != nil {
		t.Fatalf("Authenticate err: %v", err)
	}

	// A lifecycle token from a different signing key looks tampered and
	// must reset.
	foreign, err := token.NewIssuer("other-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer err: %v", err)
	}
	tok, err := foreign.Issue("P12345", "patient", time.Hour)
	if err != nil {
		t.Fatalf("Issue err: %v", err)
	}
	err = store.Update("wa-1", func(sc *Scope) error {
		sc.Session().Token = tok
		return nil
	})
	if err != nil {
		t.Fatalf("Update err: %v", err)
	}

	sess, err := store.GetOrCreate("wa-1")
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}
	if sess.Authenticated || sess.State != bot.StateNew {
		t.Fatalf("token-expired session not reset: %+v", sess)
	}
}

func TestLogoutKeepsAuditAttributes(t *testing.T) {
	store := newTestStore(t, time.Hour)

	if err := store.Authenticate("wa-1", bot.UserTypePatient, "P12345", "T1"); err != nil {
		t.Fatalf("Authenticate err: %v", err)
	}
	if err := store.Logout("wa-1"); err != nil {
		t.Fatalf("Logout err: %v", err)
	}

	sess, err := store.GetOrCreate("wa-1")
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}
	if sess.Authenticated || sess.Token != "" {
		t.Fatal("logout must clear authentication")
	}
	if _, ok := sess.Attributes[bot.AttrCareToken]; ok {
		t.Fatal("logout must drop the backend credential")
	}
	if sess.State != bot.StateNew {
		t.Fatalf("logout must return to NEW state, got %s", sess.State)
	}
	if sess.Attributes[bot.AttrUserID] != "P12345" {
		t.Fatal("logout should keep attribute history for audit")
	}
}

func TestReadActivityExtendsSession(t *testing.T) {
	store := newTestStore(t, 30*time.Minute)
	base := time.Now()
	store.now = func() time.Time { return base }

	if err := store.Authenticate("wa-1", bot.UserTypePatient, "P12345", ""); err != nil {
		t.Fatalf("Authenticate err: %v", err)
	}

	// A read-only event at 25 minutes counts as activity.
	store.now = func() time.Time { return base.Add(25 * time.Minute) }
	if _, err := store.GetOrCreate("wa-1"); err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}

	store.now = func() time.Time { return base.Add(50 * time.Minute) }
	sess, err := store.GetOrCreate("wa-1")
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}
	if !sess.Authenticated || sess.State == bot.StateNew {
		t.Fatalf("active session was reset: %+v", sess)
	}
}

func TestClearDropsEverything(t *testing.T) {
	store := newTestStore(t, time.Hour)

	if err := store.Authenticate("wa-1", bot.UserTypeStaff, "STAFF1", ""); err != nil {
		t.Fatalf("Authenticate err: %v", err)
	}
	if err := store.Clear("wa-1"); err != nil {
		t.Fatalf("Clear err: %v", err)
	}

	sess, err := store.GetOrCreate("wa-1")
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}
	if sess.Authenticated || sess.Token != "" || len(sess.Attributes) != 0 {
		t.Fatalf("clear left residual state: %+v", sess)
	}
}

func TestEmptyIdentityRejected(t *testing.T) {
	store := newTestStore(t, time.Hour)

	if _, err := store.GetOrCreate(""); err == nil {
		t.Fatal("expected error for empty identity")
	}
}

func TestConcurrentSameIdentityUpdates(t *testing.T) {
	store := newTestStore(t, time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Update("wa-1", func(sc *Scope) error {
				sc.UpdateState(bot.StateUserTypeSelection, map[string]string{"hits": "x"})
				return nil
			})
			if err != nil {
				t.Errorf("Update err: %v", err)
			}
		}()
	}
	wg.Wait()

	sess, err := store.GetOrCreate("wa-1")
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}
	if sess.State != bot.StateUserTypeSelection {
		t.Fatalf("unexpected state after concurrent updates: %s", sess.State)
	}
}
