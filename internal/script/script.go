// Package script reads narration scripts from plain text, Word and PDF files.
package script

import (
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"avatarpipe/internal/pkg/errors"
)

// Script is the narration text of one input file.
type Script struct {
	// Name is the file name including extension.
	Name string
	// Stem is the file name without extension; it names every derived artifact.
	Stem string
	// Text is the NFC-normalised, trimmed content.
	Text string
	// Length is the number of characters in Text.
	Length int
}

// Supported lists the accepted file extensions.
var Supported = []string{".txt", ".docx", ".pdf"}

// Read extracts the text of the script at path. An unknown extension is an
// UNSUPPORTED_FORMAT error; an unreadable file is NOT_FOUND or INTERNAL_ERROR.
// Empty content is returned as-is; callers decide whether that is an error.
func Read(path string) (*Script, error) {
	const op = "script.read"

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("script", path).WithOp(op)
		}
		return nil, errors.Wrap(err, op, "stat script")
	}

	ext := strings.ToLower(filepath.Ext(path))

	var (
		text string
		err  error
	)
	switch ext {
	case ".txt":
		text, err = readText(path)
	case ".docx":
		text, err = readDocx(path)
	case ".pdf":
		text, err = readPDF(path)
	default:
		return nil, errors.Newf(errors.CodeUnsupportedFormat,
			"unsupported file format: %s. Supported: %s", ext, strings.Join(Supported, ", ")).
			WithOp(op).
			WithField("extension", ext)
	}
	if err != nil {
		return nil, errors.Wrapf(err, op, "extract %s text", ext)
	}

	text = strings.TrimSpace(norm.NFC.String(text))
	base := filepath.Base(path)

	return &Script{
		Name:   base,
		Stem:   strings.TrimSuffix(base, filepath.Ext(base)),
		Text:   text,
		Length: utf8.RuneCountInString(text),
	}, nil
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	// Tolerate a UTF-8 byte order mark.
	return strings.TrimPrefix(string(data), "\ufeff"), nil
}
