package formats

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// PNMImage is a decoded PGM (1 component) or PPM (3 component) image: planar
// samples plus the geometry needed to re-encode it.
type PNMImage struct {
	Width      int
	Height     int
	Components int
	MaxVal     int
	Planes     [][]int32
}

// ReadPNM decodes binary PGM (P5) or PPM (P6) streams.
func ReadPNM(r io.Reader) (*PNMImage, error) {
	br := bufio.NewReader(r)
	magic, err := readToken(br)
	if err != nil {
		return nil, fmt.Errorf("pnm: reading magic: %w", err)
	}
	var components int
	switch magic {
	case "P5":
		components = 1
	case "P6":
		components = 3
	default:
		return nil, fmt.Errorf("pnm: unsupported magic %q (only binary P5/P6)", magic)
	}

	w, err := readInt(br)
	if err != nil {
		return nil, fmt.Errorf("pnm: width: %w", err)
	}
	h, err := readInt(br)
	if err != nil {
		return nil, fmt.Errorf("pnm: height: %w", err)
	}
	maxVal, err := readInt(br)
	if err != nil {
		return nil, fmt.Errorf("pnm: maxval: %w", err)
	}
	// A single whitespace byte separates the header from the binary payload.
	if _, err := br.ReadByte(); err != nil {
		return nil, fmt.Errorf("pnm: reading header terminator: %w", err)
	}

	bytesPerSample := 1
	if maxVal > 255 {
		bytesPerSample = 2
	}
	n := w * h
	planes := make([][]int32, components)
	for c := range planes {
		planes[c] = make([]int32, n)
	}
	row := make([]byte, n*components*bytesPerSample)
	if _, err := io.ReadFull(br, row); err != nil {
		return nil, fmt.Errorf("pnm: reading pixel data: %w", err)
	}
	for i := 0; i < n; i++ {
		for c := 0; c < components; c++ {
			off := (i*components + c) * bytesPerSample
			var v int
			if bytesPerSample == 2 {
				v = int(row[off])<<8 | int(row[off+1]) // PNM 16-bit samples are big-endian
			} else {
				v = int(row[off])
			}
			planes[c][i] = int32(v)
		}
	}

	return &PNMImage{Width: w, Height: h, Components: components, MaxVal: maxVal, Planes: planes}, nil
}

// WritePNM encodes planar samples as binary PGM/PPM.
func WritePNM(w io.Writer, img *PNMImage) error {
	magic := "P5"
	if img.Components == 3 {
		magic = "P6"
	} else if img.Components != 1 {
		return fmt.Errorf("pnm: only 1 (PGM) or 3 (PPM) components supported, got %d", img.Components)
	}
	if _, err := fmt.Fprintf(w, "%s\n%d %d\n%d\n", magic, img.Width, img.Height, img.MaxVal); err != nil {
		return err
	}

	bytesPerSample := 1
	if img.MaxVal > 255 {
		bytesPerSample = 2
	}
	n := img.Width * img.Height
	buf := make([]byte, n*img.Components*bytesPerSample)
	for i := 0; i < n; i++ {
		for c := 0; c < img.Components; c++ {
			off := (i*img.Components + c) * bytesPerSample
			v := img.Planes[c][i]
			if bytesPerSample == 2 {
				buf[off] = byte(v >> 8)
				buf[off+1] = byte(v)
			} else {
				buf[off] = byte(v)
			}
		}
	}
	_, err := w.Write(buf)
	return err
}

func readToken(br *bufio.Reader) (string, error) {
	var b []byte
	for {
		c, err := br.ReadByte()
		if err != nil {
			return "", err
		}
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			if len(b) == 0 {
				continue
			}
			break
		}
		b = append(b, c)
	}
	return string(b), nil
}

func readInt(br *bufio.Reader) (int, error) {
	tok, err := readToken(br)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(tok)
}
