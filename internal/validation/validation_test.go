package validation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/FocuswithJustin/msdesc/core/errors"
)

func fieldOf(t *testing.T, err error) string {
	t.Helper()
	var ve *errors.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error %v is not a validation error", err)
	}
	return ve.Field
}

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"shelfmark", "HSK-12", false},
		{"with spaces", "Cod. Pal. germ. 848", false},
		{"unicode", "Ms-Würzburg-3", false},
		{"empty", "", true},
		{"blank", "   ", true},
		{"too long", strings.Repeat("a", MaxIDLength+1), true},
		{"slash", "a/b", true},
		{"backslash", `a\b`, true},
		{"control", "a\tb", true},
		{"leading hyphen", "-rf", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
			if err != nil {
				if fieldOf(t, err) != "id" || !errors.Is(err, errors.ErrInvalidInput) {
					t.Errorf("unexpected error %v", err)
				}
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"relative", "ms/12.xml", false},
		{"absolute", "/var/lib/msdesc.db", false},
		{"empty", "", true},
		{"null byte", "a\x00b", true},
		{"newline", "a\nb", true},
		{"too long", strings.Repeat("a", MaxPathLength+1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidatePath(tt.path); (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateMarkupSize(t *testing.T) {
	if err := ValidateMarkupSize(MaxMarkupSize); err != nil {
		t.Errorf("limit rejected: %v", err)
	}
	if err := ValidateMarkupSize(MaxMarkupSize + 1); fieldOf(t, err) != "markup" {
		t.Errorf("oversize error = %v", err)
	}
}

func TestReadMarkup(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, data []byte) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0644); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}
		return path
	}

	markup := []byte("<TEI><msDesc><head>Gebetbuch für Äbtissin</head></msDesc></TEI>")
	got, err := ReadMarkup(write("ok.xml", markup))
	if err != nil || string(got) != string(markup) {
		t.Fatalf("ReadMarkup = %q, %v", got, err)
	}

	tests := []struct {
		name  string
		path  string
		field string
	}{
		{"xz", write("a.xml", []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00, 1, 2}), "markup"},
		{"sqlite", write("b.xml", []byte("SQLite format 3\x00rest")), "markup"},
		{"binary", write("c.xml", []byte{1, 2, 3, 4, 5, 6, 7, 8}), "markup"},
		{"empty", write("d.xml", nil), "markup"},
		{"directory", dir, "path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadMarkup(tt.path)
			if fieldOf(t, err) != tt.field {
				t.Errorf("field = %q, want %q", fieldOf(t, err), tt.field)
			}
		})
	}

	if _, err := ReadMarkup(filepath.Join(dir, "missing.xml")); !os.IsNotExist(err) {
		t.Errorf("missing file error = %v", err)
	}
}

func TestIsLikelyText(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		want bool
	}{
		{"ascii", []byte("<TEI/>"), true},
		{"utf8", []byte("<head>Überlieferung</head>"), true},
		{"null", []byte("a\x00b"), false},
		{"empty", nil, false},
		{"controls", []byte{1, 2, 3, 'a'}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isLikelyText(tt.buf); got != tt.want {
				t.Errorf("isLikelyText(%q) = %v, want %v", tt.buf, got, tt.want)
			}
		})
	}
}
