// Package qrx renders QR codes for TOTP provisioning URIs.
package qrx

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

var ErrEmptyContent = errors.New("qrx: content cannot be empty")

const defaultSize = 256

// PNG encodes content as a QR code PNG at the given pixel size.
func PNG(content string, size int) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if size <= 0 {
		size = defaultSize
	}
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("qrx: encode: %w", err)
	}
	return png, nil
}

// DataURL encodes content as a base64 PNG data URL, suitable for embedding
// directly in an <img> tag during 2FA setup.
func DataURL(content string, size int) (string, error) {
	png, err := PNG(content, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
