package boardimg

import (
	"bytes"
	"embed"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/park285/Cheese-Damas/internal/checkers"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

//go:embed assets/*.svg
var pieceFiles embed.FS

type pieceCacheKey struct {
	cell checkers.Cell
	size int
}

var (
	pieceCache   = map[pieceCacheKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

func pieceAssetName(c checkers.Cell) (string, error) {
	switch c {
	case checkers.RedMan:
		return "assets/red_man.svg", nil
	case checkers.BlueMan:
		return "assets/blue_man.svg", nil
	case checkers.RedKing:
		return "assets/red_king.svg", nil
	case checkers.BlueKing:
		return "assets/blue_king.svg", nil
	}
	return "", fmt.Errorf("no asset for cell %v", c)
}

// renderPiece rasterizes the SVG for c at size x size pixels. Results are cached.
func renderPiece(c checkers.Cell, size int) (image.Image, error) {
	key := pieceCacheKey{cell: c, size: size}
	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	name, err := pieceAssetName(c)
	if err != nil {
		return nil, err
	}
	data, err := pieceFiles.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read piece asset %s: %w", name, err)
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg %s: %w", name, err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(size, size, scanner), 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()
	return img, nil
}
