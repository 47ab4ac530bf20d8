package domain

import "testing"

func TestRecipientHasValidEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		email string
		want  bool
	}{
		{email: "alice@example.com", want: true},
		{email: "bob.smith+tag@sub.example.co", want: true},
		{email: "", want: false},
		{email: "   ", want: false},
		{email: "not-an-email", want: false},
		{email: "Alice <alice@example.com>", want: false},
		{email: "alice@", want: false},
	}

	for _, tt := range tests {
		r := BulkSendRecipient{Name: "Test", Email: tt.email}
		if got := r.HasValidEmail(); got != tt.want {
			t.Errorf("HasValidEmail(%q) = %v, want %v", tt.email, got, tt.want)
		}
	}
}

func TestRecipientValidate(t *testing.T) {
	t.Parallel()

	r := BulkSendRecipient{Name: "Alice", Email: "alice@example.com"}
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	r = BulkSendRecipient{Email: "alice@example.com"}
	if err := r.Validate(); err == nil {
		t.Fatal("Validate() should require a name")
	}

	r = BulkSendRecipient{Name: "Alice", Email: "nope"}
	if err := r.Validate(); err == nil {
		t.Fatal("Validate() should require a parseable email")
	}
}
