// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package model

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"

	"github.com/Thermoquad/gyrostat/pkg/fc"
)

// eepromMagic identifies a gyrostat EEPROM image.
const eepromMagic = "GYRO"

// eepromVersion is bumped when an image can no longer be decoded into the
// current Config.
const eepromVersion = 1

var (
	// ErrNoImage is returned by Load when nothing has been saved yet.
	ErrNoImage = errors.New("eeprom: no saved configuration")
	// ErrNoStore is returned by Save when the model has no persistent store.
	ErrNoStore = errors.New("eeprom: no persistent store")
)

// Store persists the configuration.
type Store interface {
	Load(cfg *fc.Config) error
	Save(cfg *fc.Config) error
}

// eepromImage is the on-disk layout.
type eepromImage struct {
	Magic   string    `cbor:"1,keyasint"`
	Version uint8     `cbor:"2,keyasint"`
	Config  fc.Config `cbor:"3,keyasint"`
}

// FileStore keeps the configuration in a CBOR file.
type FileStore struct {
	path string
	enc  cbor.EncMode
}

// NewFileStore creates a store backed by path. The file is created on the
// first Save.
func NewFileStore(path string) (*FileStore, error) {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR encoder: %w", err)
	}
	return &FileStore{path: path, enc: enc}, nil
}

// Path returns the image file path
func (s *FileStore) Path() string {
	return s.path
}

// Load decodes the saved image into cfg. Fields missing from an older
// image keep the values already in cfg.
func (s *FileStore) Load(cfg *fc.Config) error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNoImage
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	img := eepromImage{Config: *cfg}
	if err := cbor.Unmarshal(data, &img); err != nil {
		return fmt.Errorf("failed to decode %s: %w", s.path, err)
	}
	if img.Magic != eepromMagic {
		return fmt.Errorf("%s is not an EEPROM image (magic %q)", s.path, img.Magic)
	}
	if img.Version != eepromVersion {
		return fmt.Errorf("%s has unsupported image version %d", s.path, img.Version)
	}
	*cfg = img.Config
	return nil
}

// Save writes cfg atomically: the image is written to a temporary file in
// the same directory and renamed over the previous one.
func (s *FileStore) Save(cfg *fc.Config) error {
	data, err := s.enc.Marshal(eepromImage{Magic: eepromMagic, Version: eepromVersion, Config: *cfg})
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary image: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write image: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close image: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}
