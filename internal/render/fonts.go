package render

import (
	"os"
	"path/filepath"

	"github.com/golang/freetype/truetype"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// FaceSet holds the font faces used across both layout modes.
type FaceSet struct {
	Title  font.Face // banner, 50px italic
	Name   font.Face // server names and player ratios, 30px
	Tag    font.Face // version tags, latency, country, 20px
	Small  font.Face // sparkline value annotations, 14px
	Footer font.Face // render timestamp, 30px
}

// LoadFaces loads the TrueType faces from dir. A face whose file is missing
// or unparsable falls back to the built-in bitmap font with a warning, so a
// bare checkout still renders something legible.
func LoadFaces(dir string) *FaceSet {
	parsed := make(map[string]*truetype.Font)

	load := func(name string, size float64) font.Face {
		path := filepath.Join(dir, name)

		f, ok := parsed[path]
		if !ok {
			raw, err := os.ReadFile(path) //nolint:gosec
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("Font not found, using bitmap fallback")
				return basicfont.Face7x13
			}

			f, err = truetype.Parse(raw)
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("Font unparsable, using bitmap fallback")
				return basicfont.Face7x13
			}
			parsed[path] = f
		}

		return truetype.NewFace(f, &truetype.Options{Size: size})
	}

	return &FaceSet{
		Title:  load("Lato-BlackItalic.ttf", 50),
		Name:   load("Lato-Black.ttf", 30),
		Tag:    load("Lato-Black.ttf", 20),
		Small:  load("Lato-Light.ttf", 14),
		Footer: load("Lato-Black.ttf", 30),
	}
}
