package boardimg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"

	"github.com/park285/Cheese-Damas/internal/checkers"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	squareSize = 64
	margin     = 28
	headerH    = 36
	boardPx    = squareSize * checkers.Size
	piecePad   = 6
)

var (
	lightSquare     = color.RGBA{240, 217, 181, 255}
	darkSquare      = color.RGBA{120, 82, 58, 255}
	backgroundColor = color.RGBA{28, 31, 46, 255}
	textColor       = color.RGBA{236, 239, 255, 255}
	highlightColor  = color.NRGBA{R: 255, G: 228, B: 120, A: 120}
)

type Options struct {
	// Title is drawn above the board.
	Title string
	// Highlight marks squares, e.g. the last hop.
	Highlight []checkers.Coord
}

// Renderer draws boards as PNG images with row/column indices on the edges.
type Renderer struct{}

func NewRenderer() *Renderer { return &Renderer{} }

func (r *Renderer) RenderPNG(ctx context.Context, b checkers.Board, opts Options) ([]byte, error) {
	width := boardPx + margin*2
	height := boardPx + margin*2 + headerH
	origin := image.Point{X: margin, Y: margin + headerH}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, draw.Src)

	drawSquares(img, origin)
	for _, at := range opts.Highlight {
		if at.InBounds() {
			draw.Draw(img, squareRect(at, origin), image.NewUniform(highlightColor), image.Point{}, draw.Over)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := drawPieces(img, b, origin); err != nil {
		return nil, err
	}
	drawLabels(img, origin, opts.Title)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func squareRect(at checkers.Coord, origin image.Point) image.Rectangle {
	x := origin.X + at.Col*squareSize
	y := origin.Y + at.Row*squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}

func drawSquares(dst draw.Image, origin image.Point) {
	for row := 0; row < checkers.Size; row++ {
		for col := 0; col < checkers.Size; col++ {
			at := checkers.Coord{Row: row, Col: col}
			clr := lightSquare
			if at.Dark() {
				clr = darkSquare
			}
			draw.Draw(dst, squareRect(at, origin), image.NewUniform(clr), image.Point{}, draw.Src)
		}
	}
}

func drawPieces(dst draw.Image, b checkers.Board, origin image.Point) error {
	size := squareSize - piecePad*2
	for row := 0; row < checkers.Size; row++ {
		for col := 0; col < checkers.Size; col++ {
			at := checkers.Coord{Row: row, Col: col}
			cell := b.At(at)
			if cell == checkers.Empty {
				continue
			}
			piece, err := renderPiece(cell, size)
			if err != nil {
				return err
			}
			rect := squareRect(at, origin).Inset(piecePad)
			draw.Draw(dst, rect, piece, image.Point{}, draw.Over)
		}
	}
	return nil
}

func drawLabels(dst draw.Image, origin image.Point, title string) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(textColor), Face: face}
	ascent := face.Metrics().Ascent.Ceil()

	for i := 0; i < checkers.Size; i++ {
		label := strconv.Itoa(i)
		center := origin.Y + i*squareSize + squareSize/2
		drawCentered(d, label, origin.X-margin/2, center+ascent/2)
		colCenter := origin.X + i*squareSize + squareSize/2
		drawCentered(d, label, colCenter, origin.Y+boardPx+margin/2+ascent/2)
	}
	if title != "" {
		drawCentered(d, title, origin.X+boardPx/2, margin/2+headerH/2+ascent/2)
	}
}

func drawCentered(d *font.Drawer, text string, centerX, baseline int) {
	w := d.MeasureString(text).Round()
	d.Dot = fixed.P(centerX-w/2, baseline)
	d.DrawString(text)
}
