package notes

import "testing"

func TestTopic(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Morning Sync – July 25 – Platform Login Issues", "Platform Login Issues"},
		{"Standup – Aug 2 – EMR Sync + Retry Policy", "EMR Sync + Retry Policy"},
		{"Quick chat", "Other"},
		{"Sync – July 25", "Other"},
		{"Sync – July 25 –   ", "Other"},
		{"", "Other"},
	}
	for _, tt := range tests {
		n := Note{Title: tt.title}
		if got := n.Topic(); got != tt.want {
			t.Errorf("Topic(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}

func TestDateFragment(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Morning Sync – July 25 – Platform Login Issues", "July 25"},
		{"Sync – July 25", "July 25"},
		{"Quick chat", "Unknown"},
		{"", "Unknown"},
	}
	for _, tt := range tests {
		n := Note{Title: tt.title}
		if got := n.DateFragment(); got != tt.want {
			t.Errorf("DateFragment(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}
