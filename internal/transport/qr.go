package transport

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/widavies/RobluScouter/internal/checkout"
)

// QR transfer squeezes one checkout into a scannable code. Camera capacity
// is tiny, so the two heavyweight metric kinds are dropped before
// compression: gallery images and field-diagram data never survive a QR
// hop. Everything else round-trips.

// EncodeQR serializes a checkout for QR display: strip oversized metric
// payloads, gzip, base64.
func EncodeQR(c checkout.Checkout) (string, error) {
	slim := c.Clone()
	for ti := range slim.Team.Tabs {
		tab := &slim.Team.Tabs[ti]
		kept := tab.Metrics[:0]
		for _, m := range tab.Metrics {
			switch m.Value.Kind() {
			case checkout.KindGallery, checkout.KindFieldData, checkout.KindFieldDiagram:
				continue
			}
			kept = append(kept, m)
		}
		tab.Metrics = kept
	}

	raw, err := json.Marshal(slim)
	if err != nil {
		return "", fmt.Errorf("qr: encode checkout %d: %w", c.ID, err)
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return "", fmt.Errorf("qr: compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("qr: compress: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeQR reverses EncodeQR.
func DecodeQR(payload string) (checkout.Checkout, error) {
	var c checkout.Checkout
	compressed, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return c, fmt.Errorf("qr: not base64: %w", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return c, fmt.Errorf("qr: not gzip: %w", err)
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		return c, fmt.Errorf("qr: decompress: %w", err)
	}
	if err := zr.Close(); err != nil {
		return c, fmt.Errorf("qr: decompress: %w", err)
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("qr: decode checkout: %w", err)
	}
	return c, nil
}
