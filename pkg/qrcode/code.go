// Package qrcode implements the carton code grammar and its raster rendering.
//
// A code has the form
//
//	<QR|RGN>_<ShipmentCode>_<ArticleID>_<CartonSeq>_<UnixMillis>_<suffix>
//
// where suffix is 6 to 9 characters from [a-z0-9]. Scanners parse the same
// string back, so the layout must not change.
package qrcode

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	PrefixIssued      = "QR"
	PrefixRegenerated = "RGN"

	suffixAlphabet  = "abcdefghijklmnopqrstuvwxyz0123456789"
	minSuffixLength = 6
	maxSuffixLength = 9
	separator       = "_"
)

var (
	codePattern     = regexp.MustCompile(`^(QR|RGN)_[A-Za-z0-9-]+_\d+_\d+_\d+_[a-z0-9]+$`)
	shipmentPattern = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
)

// Parsed holds the fields embedded in a code string.
type Parsed struct {
	Regenerated  bool
	ShipmentCode string
	ArticleID    int64
	CartonSeq    int
	Timestamp    int64
	Suffix       string
}

// IssuedAt converts the embedded millisecond timestamp.
func (p Parsed) IssuedAt() time.Time {
	return time.UnixMilli(p.Timestamp).UTC()
}

// String rebuilds the code string.
func (p Parsed) String() string {
	prefix := PrefixIssued
	if p.Regenerated {
		prefix = PrefixRegenerated
	}
	return strings.Join([]string{
		prefix,
		p.ShipmentCode,
		strconv.FormatInt(p.ArticleID, 10),
		strconv.Itoa(p.CartonSeq),
		strconv.FormatInt(p.Timestamp, 10),
		p.Suffix,
	}, separator)
}

// Generator synthesises new code strings.
type Generator struct {
	now     func() time.Time
	entropy io.Reader
}

// NewGenerator returns a generator backed by the wall clock and crypto/rand.
func NewGenerator() *Generator {
	return &Generator{now: time.Now, entropy: rand.Reader}
}

// NewGeneratorWith is used by tests to pin the clock or the entropy source.
func NewGeneratorWith(now func() time.Time, entropy io.Reader) *Generator {
	g := NewGenerator()
	if now != nil {
		g.now = now
	}
	if entropy != nil {
		g.entropy = entropy
	}
	return g
}

// Generate builds a code for one carton using the current timestamp and a fresh suffix.
func (g *Generator) Generate(shipmentCode string, articleID int64, cartonSeq int, regenerated bool) (string, error) {
	if !ValidShipmentCode(shipmentCode) {
		return "", fmt.Errorf("invalid shipment code %q", shipmentCode)
	}
	if articleID <= 0 {
		return "", fmt.Errorf("invalid article id %d", articleID)
	}
	if cartonSeq <= 0 {
		return "", fmt.Errorf("invalid carton sequence %d", cartonSeq)
	}
	suffix, err := g.suffix()
	if err != nil {
		return "", err
	}
	return Parsed{
		Regenerated:  regenerated,
		ShipmentCode: shipmentCode,
		ArticleID:    articleID,
		CartonSeq:    cartonSeq,
		Timestamp:    g.now().UnixMilli(),
		Suffix:       suffix,
	}.String(), nil
}

// Regenerate builds an RGN code reusing the identifiers embedded in previous.
func (g *Generator) Regenerate(previous string) (string, Parsed, error) {
	parsed, ok := Parse(previous)
	if !ok {
		return "", Parsed{}, fmt.Errorf("malformed code %q", previous)
	}
	code, err := g.Generate(parsed.ShipmentCode, parsed.ArticleID, parsed.CartonSeq, true)
	if err != nil {
		return "", Parsed{}, err
	}
	next, _ := Parse(code)
	return code, next, nil
}

func (g *Generator) suffix() (string, error) {
	span := big.NewInt(int64(maxSuffixLength - minSuffixLength + 1))
	n, err := rand.Int(g.entropy, span)
	if err != nil {
		return "", fmt.Errorf("draw suffix length: %w", err)
	}
	length := minSuffixLength + int(n.Int64())

	alphabet := big.NewInt(int64(len(suffixAlphabet)))
	buf := make([]byte, length)
	for i := range buf {
		idx, err := rand.Int(g.entropy, alphabet)
		if err != nil {
			return "", fmt.Errorf("draw suffix: %w", err)
		}
		buf[i] = suffixAlphabet[idx.Int64()]
	}
	return string(buf), nil
}

// Valid reports whether code matches the grammar.
func Valid(code string) bool {
	return codePattern.MatchString(code)
}

// ValidShipmentCode reports whether s can be embedded in a code.
func ValidShipmentCode(s string) bool {
	return shipmentPattern.MatchString(s)
}

// Parse extracts the embedded fields. The boolean is false for any string
// outside the grammar, including numeric overflow.
func Parse(code string) (Parsed, bool) {
	if !Valid(code) {
		return Parsed{}, false
	}
	parts := strings.Split(code, separator)
	if len(parts) != 6 {
		return Parsed{}, false
	}
	articleID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return Parsed{}, false
	}
	seq, err := strconv.Atoi(parts[3])
	if err != nil {
		return Parsed{}, false
	}
	ts, err := strconv.ParseInt(parts[4], 10, 64)
	if err != nil {
		return Parsed{}, false
	}
	return Parsed{
		Regenerated:  parts[0] == PrefixRegenerated,
		ShipmentCode: parts[1],
		ArticleID:    articleID,
		CartonSeq:    seq,
		Timestamp:    ts,
		Suffix:       parts[5],
	}, true
}
