package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/icco/pocketseq/internal/decode"
)

// browserModel lists directories and the audio files the registry can
// decode.
type browserModel struct {
	reg         *decode.Registry
	currentDir  string
	files       []fileInfo
	cursor      int
	viewportTop int
	message     string
}

type fileInfo struct {
	name  string
	path  string
	isDir bool
}

func newBrowser(reg *decode.Registry, dir string) browserModel {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			wd = "."
		}
		dir = wd
	}
	b := browserModel{reg: reg, currentDir: dir}
	b.loadFiles()
	return b
}

func (b *browserModel) loadFiles() {
	b.files = b.files[:0]

	if parent := filepath.Dir(b.currentDir); parent != b.currentDir {
		b.files = append(b.files, fileInfo{name: "..", path: parent, isDir: true})
	}

	entries, err := os.ReadDir(b.currentDir)
	if err != nil {
		b.message = fmt.Sprintf("Error reading directory: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		path := filepath.Join(b.currentDir, entry.Name())
		if entry.IsDir() || b.reg.Supports(path) {
			b.files = append(b.files, fileInfo{name: entry.Name(), path: path, isDir: entry.IsDir()})
		}
	}

	if b.cursor >= len(b.files) {
		b.cursor = max(0, len(b.files)-1)
	}
	b.viewportTop = min(b.viewportTop, b.cursor)
}

// visibleLines is how many entries fit in a terminal of the given height.
func visibleLines(height int) int {
	return max(5, height-9)
}

func (b *browserModel) up() {
	if b.cursor > 0 {
		b.cursor--
	}
	if b.cursor < b.viewportTop {
		b.viewportTop = b.cursor
	}
}

func (b *browserModel) down(height int) {
	if b.cursor < len(b.files)-1 {
		b.cursor++
	}
	if n := visibleLines(height); b.cursor >= b.viewportTop+n {
		b.viewportTop = b.cursor - n + 1
	}
}

// enter descends into the selected directory, or returns the selected file.
func (b *browserModel) enter() (path string, ok bool) {
	if len(b.files) == 0 {
		return "", false
	}
	sel := b.files[b.cursor]
	if !sel.isDir {
		return sel.path, true
	}
	b.currentDir = sel.path
	b.cursor = 0
	b.viewportTop = 0
	b.message = ""
	b.loadFiles()
	return "", false
}
