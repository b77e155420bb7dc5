package utils

import (
	"path/filepath"
	"testing"

	"github.com/mitchellh/go-homedir"
)

func TestExpandPath(t *testing.T) {
	home, err := homedir.Dir()
	if err != nil {
		t.Skip("no home directory")
	}
	t.Setenv("READALOUD_TEST_DIR", "books")

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/tmp/cache", "/tmp/cache"},
		{"~/cache", filepath.Join(home, "cache")},
		{"$READALOUD_TEST_DIR/one", "books/one"},
	}
	for _, tt := range tests {
		if got := ExpandPath(tt.in); got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDisplayPath(t *testing.T) {
	home, err := homedir.Dir()
	if err != nil || home == "" || home == "/" {
		t.Skip("no home directory")
	}
	tests := []struct {
		in   string
		want string
	}{
		{filepath.Join(home, "books", "a.md"), filepath.Join("~", "books", "a.md")},
		{home, "~"},
		{home + "x/other", home + "x/other"},
		{"/elsewhere", "/elsewhere"},
	}
	for _, tt := range tests {
		if got := DisplayPath(tt.in); got != tt.want {
			t.Errorf("DisplayPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
