package segment

import (
	"reflect"
	"testing"
)

func TestSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "Simple sentences",
			text: "This is a sentence. This is another sentence! And a third one?",
			want: []string{"This is a sentence.", "This is another sentence!", "And a third one?"},
		},
		{
			name: "Title abbreviation",
			text: "Dr. Watson arrived. He sat down.",
			want: []string{"Dr. Watson arrived.", "He sat down."},
		},
		{
			name: "Decimal number",
			text: "It costs 3.50 dollars. Cheap.",
			want: []string{"It costs 3.50 dollars.", "Cheap."},
		},
		{
			name: "No terminal punctuation",
			text: "just some words",
			want: []string{"just some words"},
		},
		{
			name: "Empty",
			text: "   ",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sentences(tt.text); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Sentences() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSplitRegexp(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "Terminal punctuation",
			text: "One. Two! Three? Four",
			want: []string{"One.", "Two!", "Three?", "Four"},
		},
		{
			name: "Closing quote stays with sentence",
			text: `He said "stop." Then left.`,
			want: []string{`He said "stop."`, "Then left."},
		},
		{
			name: "No space after period",
			text: "version1.2 is out",
			want: []string{"version1.2 is out"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SplitRegexp(tt.text); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitRegexp() = %q, want %q", got, tt.want)
			}
		})
	}
}
