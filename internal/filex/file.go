// Package filex contains file-system helpers: safe client filenames, lazy
// directory creation and durable writes.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// MaxFilenameLength bounds the sanitized name so that a timestamp prefix
// still fits in common 255-byte name limits.
const MaxFilenameLength = 200

// SecureFilename turns a client-supplied name into one that is safe to use as
// a single path element. Accents are decomposed and non-ASCII runes dropped,
// path separators and whitespace become "_", anything outside [A-Za-z0-9_.-]
// is removed and leading or trailing dots and underscores are stripped.
// Windows device names such as "CON" or "com1.txt" get a "_" prefix.
// The result may be empty, which callers must treat as invalid.
func SecureFilename(name string) string {
	name = norm.NFKD.String(name)

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r > unicode.MaxASCII:
			continue
		case r == '/' || r == '\\':
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}

	joined := strings.Join(strings.Fields(b.String()), "_")

	b.Reset()
	for _, r := range joined {
		if isSafeRune(r) {
			b.WriteRune(r)
		}
	}

	safe := strings.Trim(b.String(), "._")
	if isWindowsDevice(safe) {
		safe = "_" + safe
	}
	if len(safe) > MaxFilenameLength {
		ext := filepath.Ext(safe)
		if len(ext) >= MaxFilenameLength {
			ext = ""
		}
		safe = strings.TrimRight(safe[:MaxFilenameLength-len(ext)], "._") + ext
	}
	return safe
}

var windowsDevices = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {}, "COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {}, "LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

func isWindowsDevice(name string) bool {
	stem, _, _ := strings.Cut(name, ".")
	_, ok := windowsDevices[strings.ToUpper(stem)]
	return ok
}

func isSafeRune(r rune) bool {
	return r >= 'a' && r <= 'z' ||
		r >= 'A' && r <= 'Z' ||
		r >= '0' && r <= '9' ||
		r == '_' || r == '.' || r == '-'
}

// EnsureDir creates dir and any missing parents. Concurrent callers racing on
// the same path all succeed.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

// WriteFileAtomic writes data to a temp file next to path, syncs it and
// renames it into place, so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	if err := EnsureDir(dir); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err = tmp.Chmod(perm); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
