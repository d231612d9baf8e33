package render

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// faces are loaded once per canvas, never per frame
type faces struct {
	small  font.Face // speed labels and results lines
	medium font.Face // leader line
	large  font.Face // titles
}

func loadFaces(fontPath string) (faces, error) {
	data, source := readFont(fontPath)

	parsed, err := opentype.Parse(data)
	if err != nil {
		return faces{}, fmt.Errorf("parse font %s: %w", source, err)
	}

	var f faces
	for _, fs := range []struct {
		dst  *font.Face
		size float64
	}{
		{&f.small, 14},
		{&f.medium, 16},
		{&f.large, 18},
	} {
		face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
			Size:    fs.size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			return faces{}, fmt.Errorf("font face %.0fpt: %w", fs.size, err)
		}
		*fs.dst = face
	}

	log.Printf("✅ Fonts loaded from %s", source)
	return f, nil
}

// readFont tries the configured file, then common system fonts, then the
// embedded Go Regular font.
func readFont(fontPath string) ([]byte, string) {
	candidates := []string{fontPath}
	if fontPath == "" {
		candidates = systemFontPaths()
	}

	for _, p := range candidates {
		if p == "" {
			continue
		}
		data, err := os.ReadFile(p)
		if err == nil {
			return data, p
		}
		if fontPath != "" {
			log.Printf("⚠️ Failed to read font file %s: %v", p, err)
		}
	}
	return goregular.TTF, "built-in Go Regular"
}

func systemFontPaths() []string {
	paths := []string{
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		"/usr/share/fonts/TTF/DejaVuSans.ttf",
		"C:\\Windows\\Fonts\\arial.ttf",
	}
	if matches, _ := filepath.Glob("*.ttf"); len(matches) > 0 {
		paths = append(paths, matches[0])
	}
	return paths
}
