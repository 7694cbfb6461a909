// Package storage defines the persistence contract for saved source files.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a file does not exist.
var ErrNotFound = errors.New("file not found")

// File is a named source file saved by a user of the editor.
type File struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Content   string    `json:"content" yaml:"content"`
	Language  string    `json:"language" yaml:"language"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Store persists files.
type Store interface {
	// Create assigns ID and timestamps when they are empty and inserts f.
	Create(ctx context.Context, f *File) error
	Get(ctx context.Context, id string) (*File, error)
	// List returns every file, most recently updated first.
	List(ctx context.Context) ([]File, error)
	// Update overwrites name, content and language and bumps UpdatedAt.
	Update(ctx context.Context, f *File) error
	Delete(ctx context.Context, id string) error
	Close() error
}
