// Package png renders QR codes as PNG images.
package png

import "github.com/skip2/go-qrcode"

// DefaultSize is the image side in pixels, large enough for a printed receipt.
const DefaultSize = 300

func Qr(content string) ([]byte, error) {
	return QrSized(content, DefaultSize)
}

// QrSized renders content with medium error correction, which AFIP links need to stay
// readable on thermal paper.
func QrSized(content string, size int) ([]byte, error) {
	return qrcode.Encode(content, qrcode.Medium, size)
}
