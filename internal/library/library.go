// Package library finds chapter files in a directory and loads their
// speakable text.
package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/muesli/gitcha"

	"github.com/dgnsrekt/readaloud/internal/segment"
)

// ErrNoChapters is returned when a directory holds no readable files.
var ErrNoChapters = errors.New("no chapters found")

var chapterExtensions = []string{
	"*.xhtml", "*.html", "*.htm",
	"*.md", "*.markdown", "*.mdown", "*.mkd",
	"*.txt",
}

var ignorePatterns = []string{"node_modules", ".git", "META-INF"}

// Chapter is one readable file.
type Chapter struct {
	Path    string
	Title   string
	Kind    segment.Kind
	ModTime time.Time
}

// Find lists the chapter files under dir in reading order. Unless all is
// set, files ignored by git are skipped.
func Find(dir string, all bool) ([]Chapter, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	var ch chan gitcha.SearchResult
	if all {
		ch, err = gitcha.FindAllFilesExcept(dir, chapterExtensions, nil)
	} else {
		ch, err = gitcha.FindFilesExcept(dir, chapterExtensions, ignorePatterns)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to search %s: %w", dir, err)
	}

	var chapters []Chapter
	for res := range ch {
		if res.Info == nil || res.Info.IsDir() {
			continue
		}
		chapters = append(chapters, Chapter{
			Path:    res.Path,
			Title:   title(dir, res.Path),
			Kind:    segment.KindFromPath(res.Path),
			ModTime: res.Info.ModTime(),
		})
	}
	if len(chapters) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoChapters, dir)
	}

	slices.SortFunc(chapters, func(a, b Chapter) int {
		return naturalCompare(a.Path, b.Path)
	})
	log.Debug("library: found chapters", "dir", dir, "count", len(chapters))
	return chapters, nil
}

// Load reads a chapter file and returns its normalized text.
func Load(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("unable to read chapter: %w", err)
	}
	return segment.Normalize(string(b), segment.KindFromPath(path)), nil
}

// Library walks an ordered list of chapters.
type Library struct {
	chapters []Chapter
	pos      int
}

// New creates a library positioned on the first chapter.
func New(chapters []Chapter) *Library {
	return &Library{chapters: chapters}
}

// Open finds the chapters in dir, or wraps a single file.
func Open(path string, all bool) (*Library, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}
		return New([]Chapter{{
			Path:    abs,
			Title:   title(filepath.Dir(abs), abs),
			Kind:    segment.KindFromPath(abs),
			ModTime: info.ModTime(),
		}}), nil
	}
	chapters, err := Find(path, all)
	if err != nil {
		return nil, err
	}
	return New(chapters), nil
}

// Len returns the number of chapters.
func (l *Library) Len() int { return len(l.chapters) }

// Chapters returns the chapters in reading order.
func (l *Library) Chapters() []Chapter { return l.chapters }

// Index returns the position of the current chapter.
func (l *Library) Index() int { return l.pos }

// Current returns the current chapter.
func (l *Library) Current() (Chapter, bool) {
	if l.pos < 0 || l.pos >= len(l.chapters) {
		return Chapter{}, false
	}
	return l.chapters[l.pos], true
}

// Next moves to the following chapter. It reports false at the end.
func (l *Library) Next() (Chapter, bool) {
	if l.pos+1 >= len(l.chapters) {
		return Chapter{}, false
	}
	l.pos++
	return l.chapters[l.pos], true
}

// Prev moves to the preceding chapter. It reports false at the start.
func (l *Library) Prev() (Chapter, bool) {
	if l.pos <= 0 {
		return Chapter{}, false
	}
	l.pos--
	return l.chapters[l.pos], true
}

// Seek moves to chapter i.
func (l *Library) Seek(i int) (Chapter, bool) {
	if i < 0 || i >= len(l.chapters) {
		return Chapter{}, false
	}
	l.pos = i
	return l.chapters[i], true
}

func title(dir, path string) string {
	if d, err := filepath.EvalSymlinks(dir); err == nil {
		dir = d
	}
	if p, err := filepath.EvalSymlinks(path); err == nil {
		path = p
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	return strings.TrimSuffix(rel, filepath.Ext(rel))
}

// naturalCompare orders digit runs by value, so ch2 sorts before ch10.
func naturalCompare(a, b string) int {
	for a != "" && b != "" {
		if isDigit(a[0]) && isDigit(b[0]) {
			na, restA := digits(a)
			nb, restB := digits(b)
			na, nb = strings.TrimLeft(na, "0"), strings.TrimLeft(nb, "0")
			if len(na) != len(nb) {
				return len(na) - len(nb)
			}
			if c := strings.Compare(na, nb); c != 0 {
				return c
			}
			a, b = restA, restB
			continue
		}
		if a[0] != b[0] {
			return int(a[0]) - int(b[0])
		}
		a, b = a[1:], b[1:]
	}
	return len(a) - len(b)
}

func digits(s string) (string, string) {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
