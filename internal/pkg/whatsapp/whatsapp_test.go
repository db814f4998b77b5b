package whatsapp

import (
	"net/url"
	"strings"
	"testing"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "+55 (11) 91234-5678", want: "5511912345678"},
		{in: "5511912345678", want: "5511912345678"},
		{in: " 55 11 9 1234 5678 ", want: "5511912345678"},
	}
	for _, tt := range tests {
		if got := Sanitize(tt.in); got != tt.want {
			t.Fatalf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidNumber(t *testing.T) {
	if !ValidNumber("5511912345678") {
		t.Fatal("expected digits-only number to be valid")
	}
	for _, n := range []string{"", "12345", "+5511912345678", "55 11 91234"} {
		if ValidNumber(n) {
			t.Fatalf("expected %q to be invalid", n)
		}
	}
}

func TestRenderMessage(t *testing.T) {
	got := RenderMessage("Hello, about {{productName}} please", "Vestido")
	if got != "Hello, about Vestido please" {
		t.Fatalf("unexpected message: %q", got)
	}

	// Empty template falls back to a sane default.
	got = RenderMessage("", "Vestido")
	if !strings.Contains(got, "Vestido") {
		t.Fatalf("default template should mention the product, got %q", got)
	}
}

func TestBuildLink(t *testing.T) {
	link := BuildLink("+55 11 91234-5678", "Quero o {{productName}}!", "Vestido Floral")
	if link == "" {
		t.Fatal("expected a link")
	}

	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("link does not parse: %v", err)
	}
	if u.Host != "wa.me" || u.Path != "/5511912345678" {
		t.Fatalf("unexpected link target: %s", link)
	}
	if got := u.Query().Get("text"); got != "Quero o Vestido Floral!" {
		t.Fatalf("unexpected message text: %q", got)
	}

	if BuildLink("invalid", "", "x") != "" {
		t.Fatal("unusable numbers should produce no link")
	}
}
