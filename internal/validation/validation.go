// Package validation checks user-supplied input before it reaches the
// store or the codec: description ids, file paths and markup files.
package validation

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/FocuswithJustin/msdesc/core/errors"
)

// Limits on user input (CWE-400).
const (
	// MaxMarkupSize is the largest description accepted (32 MB).
	MaxMarkupSize = 32 << 20
	// MaxIDLength is the longest description id accepted.
	MaxIDLength = 128
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
)

// ValidateID checks a description id. Ids are non-blank, free of control
// characters and path separators, and do not start with a hyphen.
func ValidateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.NewValidation("id", "must not be empty")
	}
	if len(id) > MaxIDLength {
		return errors.NewValidation("id", fmt.Sprintf("longer than %d bytes", MaxIDLength))
	}
	if strings.ContainsAny(id, "/\\") {
		return errors.NewValidation("id", "path separator not allowed")
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return errors.NewValidation("id", "control character not allowed")
		}
	}
	// Can be confused with command flags.
	if strings.HasPrefix(id, "-") {
		return errors.NewValidation("id", "cannot start with hyphen")
	}
	return nil
}

// ValidatePath checks for empty paths, length limits and control characters.
func ValidatePath(path string) error {
	if path == "" {
		return errors.NewValidation("path", "must not be empty")
	}
	if len(path) > MaxPathLength {
		return errors.NewValidation("path", "too long")
	}
	if strings.Contains(path, "\x00") {
		return errors.NewValidation("path", "null byte not allowed")
	}
	for _, r := range path {
		if unicode.IsControl(r) {
			return errors.NewValidation("path", "control character not allowed")
		}
	}
	return nil
}

// ValidateMarkupSize rejects markup larger than MaxMarkupSize.
func ValidateMarkupSize(n int64) error {
	if n > MaxMarkupSize {
		return errors.NewValidation("markup", fmt.Sprintf("%d bytes exceeds the %d byte limit", n, MaxMarkupSize))
	}
	return nil
}

// ReadMarkup reads a description file. Oversized files and files whose
// content is binary are rejected before they are parsed.
func ReadMarkup(path string) ([]byte, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, errors.NewValidation("path", path+" is a directory")
	}
	if err := ValidateMarkupSize(info.Size()); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	head := data[:min(len(data), 512)]
	if kind := detectBinary(head); kind != "" {
		return nil, errors.NewValidation("markup", fmt.Sprintf("%s is %s data, not markup", path, kind))
	}
	if !isLikelyText(head) {
		return nil, errors.NewValidation("markup", path+" does not look like text")
	}
	return data, nil
}

// magicBytes are signatures of binary formats a description file is
// commonly confused with.
var magicBytes = []struct {
	kind  string
	magic []byte
}{
	{"gzip", []byte{0x1f, 0x8b}},
	{"xz", []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}},
	{"zip", []byte{0x50, 0x4b, 0x03, 0x04}},
	{"sqlite", []byte("SQLite format 3")},
}

func detectBinary(buf []byte) string {
	for _, sig := range magicBytes {
		if bytes.HasPrefix(buf, sig.magic) {
			return sig.kind
		}
	}
	return ""
}

// isLikelyText reports whether buf appears to be UTF-8 or ASCII text.
func isLikelyText(buf []byte) bool {
	if len(buf) == 0 {
		return false
	}

	// Null bytes are a strong indicator of binary content.
	if bytes.IndexByte(buf, 0) != -1 {
		return false
	}

	printable := 0
	control := 0
	for _, b := range buf {
		if b >= 0x20 && b <= 0x7e || b == '\t' || b == '\n' || b == '\r' {
			printable++
		} else if b < 0x20 {
			control++
		}
		// UTF-8 continuation and start bytes are neutral
	}

	return printable > 0 && float64(printable)/float64(printable+control) > 0.95
}
