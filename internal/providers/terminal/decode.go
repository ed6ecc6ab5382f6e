package terminal

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Decoder turns output chunks into UTF-8 text.
//
// Chunks are cut at arbitrary byte offsets, so a character may straddle two
// reads. The incomplete tail of one chunk is kept and prepended to the next.
// Invalid bytes are replaced with U+FFFD.
// Not safe for concurrent use; Session calls it under its lock.
type Decoder struct {
	name        string
	transformer transform.Transformer
	carry       []byte
	auto        bool
}

// minDetectBytes is the smallest chunk handed to charset detection
const minDetectBytes = 32

// NewDecoder returns a decoder for the named charset ("utf-8", "latin1",
// "windows-1252", "shift_jis", ...). An empty name means UTF-8.
//
// "auto" starts as UTF-8 and, the first time a chunk of at least
// minDetectBytes is not valid UTF-8, switches to the charset chardet
// reports for it. The switch is permanent.
func NewDecoder(charset string) (*Decoder, error) {
	if strings.EqualFold(charset, "auto") {
		return newUTF8Decoder(true), nil
	}
	if charset == "" || strings.EqualFold(charset, "utf-8") || strings.EqualFold(charset, "utf8") {
		return newUTF8Decoder(false), nil
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unknown output encoding %q: %w", charset, err)
	}
	name, err := htmlindex.Name(enc)
	if err != nil {
		name = strings.ToLower(charset)
	}
	if name == "utf-8" {
		return newUTF8Decoder(false), nil
	}

	return &Decoder{
		name:        name,
		transformer: enc.NewDecoder(),
	}, nil
}

func newUTF8Decoder(auto bool) *Decoder {
	return &Decoder{
		name:        "utf-8",
		transformer: unicode.UTF8.NewDecoder(),
		auto:        auto,
	}
}

// Name returns the canonical charset name
func (d *Decoder) Name() string {
	return d.name
}

// Pending returns the number of held-back bytes
func (d *Decoder) Pending() int {
	return len(d.carry)
}

// Reset discards held-back bytes
func (d *Decoder) Reset() {
	d.carry = nil
	d.transformer.Reset()
}

// Decode converts chunk, plus any bytes held back from the previous call.
//
// A chunk that holds only the start of a character returns a
// *DecodeError with Partial set; the bytes are kept for the next call.
func (d *Decoder) Decode(chunk []byte) (string, error) {
	data := chunk
	if len(d.carry) > 0 {
		data = append(d.carry, chunk...)
		d.carry = nil
	}
	if len(data) == 0 {
		return "", nil
	}

	out, err := d.transform(data)
	if err != nil || !d.auto || !strings.ContainsRune(out, utf8.RuneError) {
		return out, err
	}

	// the replacement character may be genuine output; detection decides
	if d.detect(data) {
		d.Reset()
		return d.transform(data)
	}
	return out, nil
}

// detect locks the decoder to the charset of data. It reports false when
// detection fails or names a charset x/text does not know.
func (d *Decoder) detect(data []byte) bool {
	if len(data) < minDetectBytes {
		return false
	}
	result, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil || strings.EqualFold(result.Charset, "utf-8") {
		return false
	}
	enc, err := htmlindex.Get(result.Charset)
	if err != nil {
		return false
	}
	name, err := htmlindex.Name(enc)
	if err != nil || name == "utf-8" {
		return false
	}

	d.name = name
	d.transformer = enc.NewDecoder()
	d.auto = false
	return true
}

func (d *Decoder) transform(data []byte) (string, error) {
	var out bytes.Buffer
	dst := make([]byte, 4*len(data)+utf8.UTFMax)
	src := data

	for len(src) > 0 {
		nDst, nSrc, err := d.transformer.Transform(dst, src, false)
		out.Write(dst[:nDst])
		src = src[nSrc:]

		switch {
		case err == nil:
			if nSrc == 0 {
				src = nil
			}
		case errors.Is(err, transform.ErrShortDst):
			dst = make([]byte, 2*len(dst))
		case errors.Is(err, transform.ErrShortSrc):
			d.carry = append([]byte(nil), src...)
			src = nil
		default:
			d.transformer.Reset()
			return "", &DecodeError{Bytes: len(data), Err: err}
		}
	}

	if out.Len() == 0 && len(d.carry) > 0 {
		return "", &DecodeError{Partial: true, Bytes: len(d.carry), Err: ErrIncompleteSequence}
	}
	return out.String(), nil
}
