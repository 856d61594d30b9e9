package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"gt06gateway/internal/core/model"
	"gt06gateway/internal/core/repository"
)

// Cache is the fast cache used for last positions and live sessions
type Cache interface {
	PositionCache
	SetDeviceSession(ctx context.Context, session *model.DeviceSession) error
	RemoveDeviceSession(ctx context.Context, deviceID string) error
}

// Broadcaster publishes real-time updates and push notification requests
type Broadcaster interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
	Notify(ctx context.Context, deviceID, kind string, payload interface{}) error
}

// Notification kinds
const (
	NotifyAlarm    = "alarm"
	NotifyIgnition = "ignition"
)

// IgnitionChange is the payload of an ignition notification
type IgnitionChange struct {
	Ignition  bool      `json:"ignition"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

// AlarmEvent is the payload of an alarm notification
type AlarmEvent struct {
	Alarms    []string  `json:"alarms"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Speed     float64   `json:"speed"`
	Timestamp time.Time `json:"timestamp"`
}

// TrackingService fans decoded device events out to the registry, the location
// store, the cache and the broadcast bus. Collaborator failures are logged and
// never returned; a device stream must keep flowing when a backend is down.
type TrackingService struct {
	devices   *deviceRegistry
	registry  repository.DeviceRepository
	positions repository.PositionRepository
	cache     Cache
	broadcast Broadcaster
	log       zerolog.Logger
	now       func() time.Time
}

func NewTrackingService(
	devices repository.DeviceRepository,
	positions repository.PositionRepository,
	cache Cache,
	broadcast Broadcaster,
	logger zerolog.Logger,
) *TrackingService {
	return &TrackingService{
		devices:   newDeviceRegistry(devices),
		registry:  devices,
		positions: positions,
		cache:     cache,
		broadcast: broadcast,
		log:       logger.With().Str("component", "tracking").Logger(),
		now:       time.Now,
	}
}

// OnLogin records the new session and marks the device online
func (s *TrackingService) OnLogin(ctx context.Context, session *model.DeviceSession) {
	log := s.log.With().Str("device_id", session.DeviceID).Logger()

	device, err := s.devices.resolve(ctx, session.DeviceID)
	if err != nil {
		log.Error().Err(err).Msg("Device lookup failed")
	} else if device == nil {
		log.Warn().Msg("Login from unregistered device")
	}

	if err := s.cache.SetDeviceSession(ctx, session); err != nil {
		log.Error().Err(err).Msg("Failed to cache session")
	}

	if device != nil {
		s.updateLive(ctx, device, map[string]interface{}{
			model.LiveOnline:   true,
			model.LiveLastSeen: s.now().UTC(),
		})
	}
}

// OnPosition handles a located report: store, cache, live status, broadcast
// and notifications. Reports without coordinates are broadcast but neither
// stored nor cached, so they never replace the last known fix.
func (s *TrackingService) OnPosition(ctx context.Context, pos *model.Position) {
	prev := s.previous(ctx, pos.DeviceID)
	device := s.devices.get(pos.DeviceID)
	located := pos.HasCoordinates()

	if located && device != nil && s.positions != nil {
		if err := s.positions.Append(ctx, pos); err != nil {
			s.log.Error().Err(err).Str("device_id", pos.DeviceID).Msg("Failed to store position")
		}
	}

	if located {
		s.cachePosition(ctx, pos)
	}
	if device != nil {
		s.updateLive(ctx, device, positionFields(pos, located, s.now().UTC()))
	}
	s.publish(ctx, "positions."+pos.DeviceID, pos)
	s.notifyEvents(ctx, prev, pos)
}

// OnStatus handles reports without a fix of their own (heartbeat, status,
// command replies). They refresh the live state but are not kept as history.
func (s *TrackingService) OnStatus(ctx context.Context, pos *model.Position) {
	prev := s.previous(ctx, pos.DeviceID)
	device := s.devices.get(pos.DeviceID)

	if pos.HasCoordinates() {
		s.cachePosition(ctx, pos)
	}
	if device != nil {
		s.updateLive(ctx, device, statusFields(pos, s.now().UTC()))
	}
	s.publish(ctx, "status."+pos.DeviceID, pos)
	s.notifyEvents(ctx, prev, pos)
}

// OnDisconnect drops the session and marks the device offline
func (s *TrackingService) OnDisconnect(ctx context.Context, deviceID string) {
	if err := s.cache.RemoveDeviceSession(ctx, deviceID); err != nil {
		s.log.Error().Err(err).Str("device_id", deviceID).Msg("Failed to remove session")
	}

	if device := s.devices.get(deviceID); device != nil {
		s.updateLive(ctx, device, map[string]interface{}{
			model.LiveOnline:   false,
			model.LiveLastSeen: s.now().UTC(),
		})
	}
	s.devices.forget(deviceID)
}

func (s *TrackingService) previous(ctx context.Context, deviceID string) *model.Position {
	prev, err := s.cache.GetLastPosition(ctx, deviceID)
	if err != nil {
		s.log.Debug().Err(err).Str("device_id", deviceID).Msg("Previous position unavailable")
		return nil
	}
	return prev
}

func (s *TrackingService) cachePosition(ctx context.Context, pos *model.Position) {
	if err := s.cache.SetLastPosition(ctx, pos); err != nil {
		s.log.Error().Err(err).Str("device_id", pos.DeviceID).Msg("Failed to cache position")
	}
}

func (s *TrackingService) updateLive(ctx context.Context, device *model.Device, fields map[string]interface{}) {
	if err := s.registry.UpdateLiveStatus(ctx, device.ID, fields); err != nil {
		s.log.Error().Err(err).Str("device_id", device.UniqueID).Msg("Failed to update live status")
	}
}

func (s *TrackingService) publish(ctx context.Context, topic string, payload interface{}) {
	if s.broadcast == nil {
		return
	}
	if err := s.broadcast.Publish(ctx, topic, payload); err != nil {
		s.log.Error().Err(err).Str("topic", topic).Msg("Broadcast failed")
	}
}

func (s *TrackingService) notify(ctx context.Context, deviceID, kind string, payload interface{}) {
	if s.broadcast == nil {
		return
	}
	if err := s.broadcast.Notify(ctx, deviceID, kind, payload); err != nil {
		s.log.Error().Err(err).Str("device_id", deviceID).Str("kind", kind).Msg("Notification failed")
	}
}

func (s *TrackingService) notifyEvents(ctx context.Context, prev, pos *model.Position) {
	if pos.HasAlarms() {
		event := AlarmEvent{
			Alarms:    pos.Alarms,
			Latitude:  pos.Latitude,
			Longitude: pos.Longitude,
			Speed:     pos.Speed,
			Timestamp: pos.Timestamp,
		}
		s.publish(ctx, "alarms."+pos.DeviceID, event)
		s.notify(ctx, pos.DeviceID, NotifyAlarm, event)
	}

	if ignitionChanged(prev, pos) {
		s.notify(ctx, pos.DeviceID, NotifyIgnition, IgnitionChange{
			Ignition:  pos.Ignition,
			Latitude:  pos.Latitude,
			Longitude: pos.Longitude,
			Timestamp: pos.Timestamp,
		})
	}
}

// ignitionChanged needs both reports to carry an ignition state
func ignitionChanged(prev, pos *model.Position) bool {
	return prev != nil && prev.IgnitionKnown && pos.IgnitionKnown && prev.Ignition != pos.Ignition
}

func statusFields(pos *model.Position, seen time.Time) map[string]interface{} {
	fields := map[string]interface{}{
		model.LiveOnline:   true,
		model.LiveLastSeen: seen,
	}
	if pos.IgnitionKnown {
		fields[model.LiveIgnition] = pos.Ignition
	}
	return fields
}

func positionFields(pos *model.Position, located bool, seen time.Time) map[string]interface{} {
	fields := statusFields(pos, seen)
	if located {
		fields[model.LiveLatitude] = pos.Latitude
		fields[model.LiveLongitude] = pos.Longitude
		fields[model.LiveSpeed] = pos.Speed
		fields[model.LiveCourse] = pos.Course
		fields[model.LiveAltitude] = pos.Altitude
		fields[model.LiveSatellites] = pos.Satellites
	}
	return fields
}
