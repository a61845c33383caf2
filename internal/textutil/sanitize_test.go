package textutil

import "testing"

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"sunrise.jpg", "sunrise.jpg"},
		{"crew/photo:1.jpg", "crew-photo-1.jpg"},
		{`what?.mp4`, "what.mp4"},
		{"  padded.png  ", "padded.png"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := SanitizeFileName(tc.in); got != tc.want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Sunrise Flight", "sunrise_flight"},
		{"---", "unknown"},
		{"", "unknown"},
		{"Crew #4", "crew__4"},
	}
	for _, tc := range tests {
		if got := SanitizeToken(tc.in); got != tc.want {
			t.Errorf("SanitizeToken(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDisplayTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"sunrise  over   cappadocia", "Sunrise Over Cappadocia"},
		{"Sunrise over Cappadocia", "Sunrise over Cappadocia"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := DisplayTitle(tc.in); got != tc.want {
			t.Errorf("DisplayTitle(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestArchiveName(t *testing.T) {
	if got := ArchiveName("Sunrise Flight"); got != "sunrise_flight-media.zip" {
		t.Errorf("ArchiveName = %q", got)
	}
}
