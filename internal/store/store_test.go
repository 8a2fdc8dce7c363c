package store

import (
	"context"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAccount(t *testing.T) {
	tests := []struct {
		name        string
		seed        string // pre-existing username, or "" for none
		username    string
		wantCreated bool
	}{
		{name: "new account", username: "alice", wantCreated: true},
		{name: "duplicate username", seed: "alice", username: "alice", wantCreated: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			ctx := context.Background()

			if tt.seed != "" {
				if _, err := s.CreateAccount(ctx, tt.seed, "pw"); err != nil {
					t.Fatalf("seed CreateAccount() error = %v", err)
				}
			}

			got, err := s.CreateAccount(ctx, tt.username, "pw")
			if err != nil {
				t.Fatalf("CreateAccount() error = %v", err)
			}
			if got != tt.wantCreated {
				t.Errorf("CreateAccount() = %v, want %v", got, tt.wantCreated)
			}
		})
	}
}

func TestCreateReplicatedAccountIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.CreateReplicatedAccount(ctx, "bob")
	if err != nil || !first {
		t.Fatalf("first CreateReplicatedAccount() = %v, %v", first, err)
	}
	second, err := s.CreateReplicatedAccount(ctx, "bob")
	if err != nil || !second {
		t.Fatalf("second CreateReplicatedAccount() = %v, %v; want true, nil (already-exists is success)", second, err)
	}
}

func TestVerifyLogin(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.CreateAccount(ctx, "alice", "correct-horse"); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	tests := []struct {
		name     string
		username string
		password string
		want     bool
	}{
		{name: "correct password", username: "alice", password: "correct-horse", want: true},
		{name: "wrong password", username: "alice", password: "wrong", want: false},
		{name: "unknown user", username: "nobody", password: "pw", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.VerifyLogin(ctx, tt.username, tt.password)
			if err != nil {
				t.Fatalf("VerifyLogin() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("VerifyLogin() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStoreMessageForcedIDIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, u := range []string{"alice", "bob"} {
		if _, err := s.CreateAccount(ctx, u, "pw"); err != nil {
			t.Fatalf("CreateAccount(%s) error = %v", u, err)
		}
	}

	id := int64(42)
	got1, err := s.StoreMessage(ctx, "alice", "bob", "hi", false, &id)
	if err != nil {
		t.Fatalf("first StoreMessage() error = %v", err)
	}
	if got1 != id {
		t.Fatalf("first StoreMessage() id = %d, want %d", got1, id)
	}

	got2, err := s.StoreMessage(ctx, "alice", "bob", "hi", false, &id)
	if err != nil {
		t.Fatalf("second StoreMessage() error = %v, want success (E6 idempotence)", err)
	}
	if got2 != id {
		t.Fatalf("second StoreMessage() id = %d, want %d", got2, id)
	}

	page, err := s.GetMessagesBetweenUsers(ctx, "alice", "bob", 0, 10)
	if err != nil {
		t.Fatalf("GetMessagesBetweenUsers() error = %v", err)
	}
	if page.Total != 1 {
		t.Errorf("GetMessagesBetweenUsers() total = %d, want exactly one row for id 42", page.Total)
	}
}

func TestDeleteMessagesSoftDeleteIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, u := range []string{"alice", "bob"} {
		if _, err := s.CreateAccount(ctx, u, "pw"); err != nil {
			t.Fatalf("CreateAccount(%s) error = %v", u, err)
		}
	}
	id, err := s.StoreMessage(ctx, "alice", "bob", "hi", false, nil)
	if err != nil {
		t.Fatalf("StoreMessage() error = %v", err)
	}

	if ok, err := s.DeleteMessages(ctx, "alice", []int64{id}); err != nil || !ok {
		t.Fatalf("DeleteMessages() = %v, %v", ok, err)
	}

	alicePage, err := s.GetMessagesBetweenUsers(ctx, "alice", "bob", 0, 10)
	if err != nil {
		t.Fatalf("GetMessagesBetweenUsers(alice) error = %v", err)
	}
	if alicePage.Total != 0 {
		t.Errorf("alice should no longer see the message she deleted, total = %d", alicePage.Total)
	}

	bobPage, err := s.GetMessagesBetweenUsers(ctx, "bob", "alice", 0, 10)
	if err != nil {
		t.Fatalf("GetMessagesBetweenUsers(bob) error = %v", err)
	}
	if bobPage.Total != 1 {
		t.Errorf("bob's view must be unaffected by alice's soft-delete (§8 property 7), total = %d", bobPage.Total)
	}
}

func TestMarkMessagesAsReadMonotonic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, u := range []string{"alice", "bob"} {
		if _, err := s.CreateAccount(ctx, u, "pw"); err != nil {
			t.Fatalf("CreateAccount(%s) error = %v", u, err)
		}
	}
	id, err := s.StoreMessage(ctx, "alice", "bob", "hi", false, nil)
	if err != nil {
		t.Fatalf("StoreMessage() error = %v", err)
	}

	if ok, err := s.MarkMessagesAsRead(ctx, "bob", []int64{id}); err != nil || !ok {
		t.Fatalf("MarkMessagesAsRead() = %v, %v", ok, err)
	}
	// Marking again must stay a no-op (§8 property 8: no message transitions read->unread).
	if ok, err := s.MarkMessagesAsRead(ctx, "bob", []int64{id}); err != nil || !ok {
		t.Fatalf("second MarkMessagesAsRead() = %v, %v", ok, err)
	}

	page, err := s.GetMessagesBetweenUsers(ctx, "bob", "alice", 0, 10)
	if err != nil {
		t.Fatalf("GetMessagesBetweenUsers() error = %v", err)
	}
	if len(page.Messages) != 1 || !page.Messages[0].IsRead {
		t.Errorf("message should remain read, got %+v", page.Messages)
	}
}

func TestListAccountsPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	names := []string{"alice", "alicia", "bob", "carol", "dave"}
	for _, n := range names {
		if _, err := s.CreateAccount(ctx, n, "pw"); err != nil {
			t.Fatalf("CreateAccount(%s) error = %v", n, err)
		}
	}

	page, err := s.ListAccounts(ctx, "ali", 1)
	if err != nil {
		t.Fatalf("ListAccounts() error = %v", err)
	}
	if page.Total != 2 {
		t.Errorf("ListAccounts() total = %d, want 2 (alice, alicia)", page.Total)
	}
	if len(page.Users) != 2 || page.Users[0] != "alice" || page.Users[1] != "alicia" {
		t.Errorf("ListAccounts() users = %v, want [alice alicia] in stable order", page.Users)
	}
}

func TestDeleteAccountCascade(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, u := range []string{"alice", "bob"} {
		if _, err := s.CreateAccount(ctx, u, "pw"); err != nil {
			t.Fatalf("CreateAccount(%s) error = %v", u, err)
		}
	}
	if _, err := s.StoreMessage(ctx, "alice", "bob", "hi", false, nil); err != nil {
		t.Fatalf("StoreMessage() error = %v", err)
	}

	if ok, err := s.DeleteAccount(ctx, "alice"); err != nil || !ok {
		t.Fatalf("DeleteAccount() = %v, %v", ok, err)
	}

	exists, err := s.UserExists(ctx, "alice")
	if err != nil || exists {
		t.Fatalf("UserExists(alice) = %v, %v, want false after delete", exists, err)
	}
	partners, err := s.GetChatPartners(ctx, "bob")
	if err != nil {
		t.Fatalf("GetChatPartners() error = %v", err)
	}
	if len(partners) != 0 {
		t.Errorf("bob's chat partners should be empty after cascade delete, got %v", partners)
	}
}
