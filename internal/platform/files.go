package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// File permissions
const (
	DefaultDirPermissions  = 0755
	DefaultFilePermissions = 0644
)

// File naming
const (
	// DefaultSongExtension is appended to every saved song
	DefaultSongExtension = ".mp3"

	// UnnamedSong replaces song names that sanitize to nothing
	UnnamedSong = "untitled"

	// TempFilePattern is used for in-progress writes next to the destination
	TempFilePattern = ".part-*"

	// MaxFileNameLength keeps generated names within common filesystem limits
	MaxFileNameLength = 200
)

// Characters that are unsafe in file names on at least one supported OS
var unsafeFileNameChars = []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|", "\x00"}

// CreateDirectoryIfNotExists creates directory if it doesn't exist
func CreateDirectoryIfNotExists(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return os.MkdirAll(dirPath, DefaultDirPermissions)
	}
	return nil
}

// SanitizeFileName turns a song title into a single safe path element
func SanitizeFileName(name string) string {
	for _, c := range unsafeFileNameChars {
		name = strings.ReplaceAll(name, c, "_")
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return '_'
		}
		return r
	}, name)
	name = trimFileName(name)
	if len(name) > MaxFileNameLength {
		cut := MaxFileNameLength
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = trimFileName(name[:cut])
	}
	if name == "" {
		return UnnamedSong
	}
	return name
}

func trimFileName(name string) string {
	return strings.TrimFunc(name, func(r rune) bool {
		return r == '.' || unicode.IsSpace(r)
	})
}

// SongFileName returns the file name a downloaded song is saved under
func SongFileName(song, ext string) string {
	if ext == "" {
		ext = DefaultSongExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return SanitizeFileName(song) + ext
}

// WriteFileAtomic writes data to a temporary file in the destination directory
// and renames it into place, so a reader never sees a partially written song.
// An existing file is replaced.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := CreateDirectoryIfNotExists(dir); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, TempFilePattern)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, DefaultFilePermissions); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to chmod %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename %s to %s: %w", tmpPath, path, err)
	}
	return nil
}

// SaveSong writes a downloaded song into dir and returns its path
func SaveSong(dir, song, ext string, data []byte) (string, error) {
	path := filepath.Join(dir, SongFileName(song, ext))
	if err := WriteFileAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}
