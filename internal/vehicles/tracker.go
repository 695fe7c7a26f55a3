// Package vehicles tracks live shuttle positions in a Redis hash so
// concurrent driver reports stay last-write-wins per vehicle.
package vehicles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const locationsKey = "vehicles:locations"

// ErrNotFound means no location has been reported for the vehicle.
var ErrNotFound = errors.New("vehicle location not found")

// ErrInvalid marks a rejected report; callers map it to a 400.
var ErrInvalid = errors.New("invalid vehicle location")

// Location is one reported shuttle position.
type Location struct {
	VehicleID string    `json:"vehicleId"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

// Tracker stores vehicle locations.
type Tracker struct {
	client *redis.Client
}

// NewTracker wraps a Redis client.
func NewTracker(client *redis.Client) *Tracker {
	return &Tracker{client: client}
}

func validate(vehicleID string, lat, lng float64) error {
	if strings.TrimSpace(vehicleID) == "" {
		return fmt.Errorf("%w: vehicle id required", ErrInvalid)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalid, lat)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalid, lng)
	}
	return nil
}

// Report upserts a vehicle's position. The timestamp is assigned server-side
// so clients with skewed clocks cannot reorder history.
func (t *Tracker) Report(ctx context.Context, vehicleID string, lat, lng float64) (Location, error) {
	if err := validate(vehicleID, lat, lng); err != nil {
		return Location{}, err
	}
	loc := Location{
		VehicleID: vehicleID,
		Latitude:  lat,
		Longitude: lng,
		Timestamp: time.Now().UTC(),
	}
	payload, err := json.Marshal(loc)
	if err != nil {
		return Location{}, err
	}
	if err := t.client.HSet(ctx, locationsKey, vehicleID, payload).Err(); err != nil {
		return Location{}, fmt.Errorf("vehicles: store location failed: %w", err)
	}
	return loc, nil
}

// Get returns the latest position for one vehicle.
func (t *Tracker) Get(ctx context.Context, vehicleID string) (Location, error) {
	raw, err := t.client.HGet(ctx, locationsKey, vehicleID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Location{}, ErrNotFound
		}
		return Location{}, fmt.Errorf("vehicles: read location failed: %w", err)
	}
	var loc Location
	if err := json.Unmarshal([]byte(raw), &loc); err != nil {
		return Location{}, fmt.Errorf("vehicles: decode location failed: %w", err)
	}
	return loc, nil
}

// All returns every known vehicle position keyed by vehicle id.
func (t *Tracker) All(ctx context.Context) (map[string]Location, error) {
	raw, err := t.client.HGetAll(ctx, locationsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("vehicles: read locations failed: %w", err)
	}
	out := make(map[string]Location, len(raw))
	for id, payload := range raw {
		var loc Location
		if err := json.Unmarshal([]byte(payload), &loc); err != nil {
			continue
		}
		out[id] = loc
	}
	return out, nil
}
