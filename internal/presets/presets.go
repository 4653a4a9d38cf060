// Bike Course Simulator - predicts finish time and pacing for a given
// cyclist and course.
// Copyright (C) 2026  Paulo Sérgio
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package presets persists named rider and environment presets a CLI
// collaborator can load by name, the way the teacher's storage.Service
// persists a user profile — adapted here to scenario presets rather
// than user accounts, since accounts/persistence proper are out of
// kernel scope (spec §1).
package presets

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/nick-riduck/bike-course-simulator/internal/drivetrain"
)

// RiderPreset is a saved RiderInput (spec §6), keyed by Name.
type RiderPreset struct {
	Name       string `gorm:"primaryKey"`
	MassKg     float64
	CPW        float64
	WPrimeJ    float64
	PDCJSON    string // JSON-encoded map[int]float64, kept opaque to the schema
	CdAM2      float64
	Crr        float64
	BikeMassKg float64
	Drivetrain string
}

// EnvironmentPreset is a saved EnvironmentInput (spec §6), keyed by Name.
type EnvironmentPreset struct {
	Name           string `gorm:"primaryKey"`
	TemperatureC   float64
	AltitudeM      float64
	WindSpeedMps   float64
	WindBearingDeg float64
}

// ResultCache is a content-addressed memoization entry: Key is the
// sha256 hex digest of the exact request JSON that produced ResultJSON,
// so a repeated request (same course, rider, environment, overrides)
// can skip the kernel entirely. Used by cmd/batch.
type ResultCache struct {
	Key        string `gorm:"primaryKey"`
	ResultJSON string
}

// Service encapsulates the preset store (mirrors the teacher's
// storage.Service shape: one struct wrapping *gorm.DB).
type Service struct {
	db *gorm.DB
	mu sync.Mutex // serializes cache writes across cmd/batch's worker goroutines
}

// Open opens (creating if needed) the sqlite-backed preset store at
// dbPath and seeds a single default rider/environment pair, the way the
// teacher's NewService seeds a default UserProfile.
func Open(dbPath string) (*Service, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("presets: open %s: %w", dbPath, err)
	}
	if err := db.AutoMigrate(&RiderPreset{}, &EnvironmentPreset{}, &ResultCache{}); err != nil {
		return nil, fmt.Errorf("presets: migrate: %w", err)
	}

	svc := &Service{db: db}
	if err := svc.seedDefaults(); err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *Service) seedDefaults() error {
	var count int64
	if err := s.db.Model(&RiderPreset{}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		if err := s.db.Create(&RiderPreset{
			Name:       "default",
			MassKg:     75,
			CPW:        250,
			WPrimeJ:    20000,
			PDCJSON:    `{"5":1000,"60":600,"300":350,"1200":280,"3600":230}`,
			CdAM2:      0.32,
			Crr:        0.005,
			BikeMassKg: 9,
			Drivetrain: string(drivetrain.Ultegra),
		}).Error; err != nil {
			return err
		}
	}

	var envCount int64
	if err := s.db.Model(&EnvironmentPreset{}).Count(&envCount).Error; err != nil {
		return err
	}
	if envCount == 0 {
		if err := s.db.Create(&EnvironmentPreset{
			Name:         "default",
			TemperatureC: 20,
		}).Error; err != nil {
			return err
		}
	}
	return nil
}

// RiderByName returns the rider preset registered under name.
func (s *Service) RiderByName(name string) (RiderPreset, error) {
	var preset RiderPreset
	result := s.db.First(&preset, "name = ?", name)
	return preset, result.Error
}

// SaveRider upserts a rider preset.
func (s *Service) SaveRider(p RiderPreset) error {
	return s.db.Save(&p).Error
}

// EnvironmentByName returns the environment preset registered under name.
func (s *Service) EnvironmentByName(name string) (EnvironmentPreset, error) {
	var preset EnvironmentPreset
	result := s.db.First(&preset, "name = ?", name)
	return preset, result.Error
}

// SaveEnvironment upserts an environment preset.
func (s *Service) SaveEnvironment(p EnvironmentPreset) error {
	return s.db.Save(&p).Error
}

// ListRiders returns every saved rider preset.
func (s *Service) ListRiders() ([]RiderPreset, error) {
	var presets []RiderPreset
	result := s.db.Order("name asc").Find(&presets)
	return presets, result.Error
}

// ResultCacheKey derives a ResultCache key from the exact bytes of a
// kernel.RunJSON request payload.
func ResultCacheKey(requestJSON []byte) string {
	sum := sha256.Sum256(requestJSON)
	return hex.EncodeToString(sum[:])
}

// CachedResult looks up a prior SimulationResult by its request-derived
// key. ok is false on a cache miss.
func (s *Service) CachedResult(key string) (resultJSON []byte, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entry ResultCache
	result := s.db.First(&entry, "key = ?", key)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, result.Error
	}
	return []byte(entry.ResultJSON), true, nil
}

// StoreResult memoizes resultJSON under key, overwriting any prior entry.
func (s *Service) StoreResult(key string, resultJSON []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Save(&ResultCache{Key: key, ResultJSON: string(resultJSON)}).Error
}
