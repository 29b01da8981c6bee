package auth

import (
	"net/http/httptest"
	"testing"
)

func TestHashAPIKey(t *testing.T) {
	// sha256("test")
	want := "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"
	if got := HashAPIKey("test"); got != want {
		t.Errorf("HashAPIKey() = %s, want %s", got, want)
	}
}

func TestAuthenticator_ValidateAPIKey(t *testing.T) {
	a := NewAuthenticator([]string{HashAPIKey("key-one"), "  " + HashAPIKey("key-two") + " "})

	tests := []struct {
		key     string
		wantErr bool
	}{
		{"key-one", false},
		{"key-two", false},
		{"key-three", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if err := a.ValidateAPIKey(tt.key); (err != nil) != tt.wantErr {
				t.Errorf("ValidateAPIKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

func TestNewAuthenticator_Disabled(t *testing.T) {
	if a := NewAuthenticator(nil); a != nil {
		t.Error("expected nil authenticator for no hashes")
	}
	if a := NewAuthenticator([]string{"", "  "}); a != nil {
		t.Error("expected nil authenticator for blank hashes")
	}
}

func TestExtractAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"bearer", "Bearer abc", "abc", false},
		{"lower case scheme", "bearer abc", "abc", false},
		{"missing", "", "", true},
		{"no scheme", "abc", "", true},
		{"basic", "Basic abc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			got, err := ExtractAPIKey(r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExtractAPIKey() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ExtractAPIKey() = %q, want %q", got, tt.want)
			}
		})
	}
}
