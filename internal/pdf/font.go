package pdf

import (
	"fmt"
	"os"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/font"
	"golang.org/x/image/font/sfnt"
)

var fontMu sync.Mutex

// InstallFont registers a TrueType font with pdfcpu and returns the name
// stamps must use to select it. pdfcpu keeps installed fonts in a directory,
// which is created under the temp dir on first use.
func InstallFont(ttf []byte) (string, error) {
	name, err := PostScriptName(ttf)
	if err != nil {
		return "", err
	}

	fontMu.Lock()
	defer fontMu.Unlock()

	if font.UserFontDir == "" {
		dir, err := os.MkdirTemp("", "formstamp-fonts-*")
		if err != nil {
			return "", fmt.Errorf("failed to create font dir: %w", err)
		}
		font.UserFontDir = dir
	}

	if err := font.InstallFontFromBytes(font.UserFontDir, name, ttf); err != nil {
		return "", fmt.Errorf("failed to install font %s: %w", name, err)
	}
	if err := font.LoadUserFonts(); err != nil {
		return "", fmt.Errorf("failed to load fonts: %w", err)
	}
	if !font.IsUserFont(name) {
		return "", fmt.Errorf("font %s was not registered", name)
	}
	return name, nil
}

// PostScriptName reads the PostScript name pdfcpu registers a font under.
func PostScriptName(ttf []byte) (string, error) {
	f, err := sfnt.Parse(ttf)
	if err != nil {
		return "", fmt.Errorf("failed to parse font: %w", err)
	}
	name, err := f.Name(&sfnt.Buffer{}, sfnt.NameIDPostScript)
	if err != nil {
		return "", fmt.Errorf("font has no PostScript name: %w", err)
	}
	if name == "" {
		return "", fmt.Errorf("font has an empty PostScript name")
	}
	return name, nil
}
