package engine

import "testing"

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		fallback string
		want     string
	}{
		{
			name:     "english sentence",
			text:     "Please take two tablets with water every morning before breakfast.",
			fallback: "de",
			want:     "en",
		},
		{
			name:     "russian sentence",
			text:     "Принимайте по две таблетки каждое утро перед завтраком.",
			fallback: "en",
			want:     "ru",
		},
		{
			name:     "empty text falls back",
			text:     "",
			fallback: "en",
			want:     "en",
		},
		{
			name:     "whitespace falls back",
			text:     "   \n\t ",
			fallback: "fr",
			want:     "fr",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectLanguage(tt.text, tt.fallback); got != tt.want {
				t.Errorf("detectLanguage(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}
