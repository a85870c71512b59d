package pin

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Category classifies an upload and carries its size ceiling. Ceilings are
// enforced before any bytes leave the process.
type Category string

const (
	CategoryPrescription Category = "prescription"
	CategoryMRI          Category = "mri"
	CategoryXRay         Category = "xray"
	CategoryResearchDoc  Category = "research_document"
	CategorySupporting   Category = "supporting_file"
)

const megabyte = 1 << 20

// MaxSize returns the byte ceiling for the category, or 0 for an unknown
// category.
func (c Category) MaxSize() int64 {
	switch c {
	case CategoryPrescription:
		return 10 * megabyte
	case CategoryMRI, CategoryXRay:
		return 15 * megabyte
	case CategoryResearchDoc:
		return 25 * megabyte
	case CategorySupporting:
		return 20 * megabyte
	default:
		return 0
	}
}

// Pinned describes a file accepted by the content-addressable store.
type Pinned struct {
	CID  string
	URL  string
	Size int64
}

var (
	// ErrEmptyFile indicates a zero-length upload.
	ErrEmptyFile = errors.New("file is empty")
	// ErrUnknownCategory indicates the upload category is not recognized.
	ErrUnknownCategory = errors.New("unknown upload category")
)

// TooLargeError indicates an upload exceeds its category ceiling.
type TooLargeError struct {
	Category Category
	Size     int64
	Max      int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("%s file of %d bytes exceeds limit of %d bytes", e.Category, e.Size, e.Max)
}

// Pinner uploads files to the content-addressable store.
type Pinner interface {
	Pin(ctx context.Context, category Category, filename string, content io.Reader, size int64) (Pinned, error)
}

// CheckSize validates the declared size against the category ceiling.
func CheckSize(category Category, size int64) error {
	max := category.MaxSize()
	if max == 0 {
		return ErrUnknownCategory
	}
	if size <= 0 {
		return ErrEmptyFile
	}
	if size > max {
		return &TooLargeError{Category: category, Size: size, Max: max}
	}
	return nil
}
