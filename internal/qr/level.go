package qr

import (
	"fmt"
	"strings"

	skip2 "github.com/skip2/go-qrcode"
	"github.com/yeqown/go-qrcode/v2"
)

// Level is a QR error correction level.
type Level string

const (
	LevelLow    Level = "L"
	LevelMedium Level = "M"
	LevelQuart  Level = "Q"
	LevelHigh   Level = "H"
)

// ParseLevel accepts L, M, Q or H in any case.
func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToUpper(strings.TrimSpace(s))); l {
	case LevelLow, LevelMedium, LevelQuart, LevelHigh:
		return l, nil
	default:
		return "", fmt.Errorf("qr: unknown error correction level %q", s)
	}
}

func (l Level) yeqownOption() qrcode.EncodeOption {
	switch l {
	case LevelLow:
		return qrcode.WithErrorCorrectionLevel(qrcode.ErrorCorrectionLow)
	case LevelMedium:
		return qrcode.WithErrorCorrectionLevel(qrcode.ErrorCorrectionMedium)
	case LevelQuart:
		return qrcode.WithErrorCorrectionLevel(qrcode.ErrorCorrectionQuart)
	default:
		return qrcode.WithErrorCorrectionLevel(qrcode.ErrorCorrectionHighest)
	}
}

func (l Level) skip2() skip2.RecoveryLevel {
	switch l {
	case LevelLow:
		return skip2.Low
	case LevelMedium:
		return skip2.Medium
	case LevelQuart:
		return skip2.High
	default:
		return skip2.Highest
	}
}
