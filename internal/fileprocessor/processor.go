package fileprocessor

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"board-tiler/internal/logger"
	"board-tiler/internal/util"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Stats tracks processing statistics
type Stats struct {
	Processed int
	Succeeded int
	Failed    int
}

// Processor handles file scanning, decoding, and moving
type Processor struct {
	localDir string
	doneDir  string
}

// NewProcessor creates a new file processor
func NewProcessor(localDir, doneDir string) *Processor {
	return &Processor{
		localDir: localDir,
		doneDir:  doneDir,
	}
}

// ScanFiles returns the image files of the local directory sorted by name
func (p *Processor) ScanFiles() ([]string, error) {
	entries, err := os.ReadDir(p.localDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if !IsImageFile(entry.Name()) {
			logger.Debug.Printf("Skipping non-image file %s", entry.Name())
			continue
		}
		files = append(files, entry.Name())
	}

	slices.Sort(files)
	return files, nil
}

// GetFilePath returns the full path to a file in the local directory
func (p *Processor) GetFilePath(filename string) string {
	return filepath.Join(p.localDir, filename)
}

// MoveFile moves a finished file to the done directory. A non-empty tag
// is appended to the name: originalname_<tag>.ext
func (p *Processor) MoveFile(filename, tag string) error {
	if p.doneDir == "" {
		return nil
	}
	if err := os.MkdirAll(p.doneDir, 0o755); err != nil {
		return fmt.Errorf("failed to create done directory: %w", err)
	}

	newFilename := filename
	if tag != "" {
		ext := filepath.Ext(filename)
		newFilename = fmt.Sprintf("%s_%s%s", strings.TrimSuffix(filename, ext), tag, ext)
	}
	if err := moveOrCopy(p.GetFilePath(filename), filepath.Join(p.doneDir, newFilename)); err != nil {
		return fmt.Errorf("failed to move %s: %w", filename, err)
	}
	return nil
}

// moveOrCopy moves a file, with fallback to copy+delete
func moveOrCopy(src, dst string) error {
	// Try rename first (fast, works if same filesystem)
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}

	// Fallback to copy+delete (works across filesystems)
	if err := copyFile(src, dst); err != nil {
		return err
	}

	return os.Remove(src)
}

// copyFile copies a file from src to dst
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	return destFile.Sync()
}

// IsImageFile checks if a file is a decodable image based on extension
func IsImageFile(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	imageExts := []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".tif", ".tiff"}
	return slices.Contains(imageExts, ext)
}

// Dimensions reads only the header of an image.
func Dimensions(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read image header: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// Decode decodes an image, honoring the EXIF orientation of JPEGs.
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// LogFileInfo logs information about a file
func LogFileInfo(filename string, size int64, success bool, err error) {
	status := "SUCCESS"
	if !success {
		status = "FAILED"
	}

	if err != nil {
		logger.Warn.Printf("[%s] %s (%s) - Error: %v", status, filename, util.FormatBytesToHumanReadable(size), err)
	} else {
		logger.Info.Printf("[%s] %s (%s)", status, filename, util.FormatBytesToHumanReadable(size))
	}
}
