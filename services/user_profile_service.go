package services

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"roomie_server/apperrors"
	"roomie_server/geo"
	"roomie_server/logging"
	"roomie_server/models"
	"roomie_server/store"
	"roomie_server/validation"
)

type UserProfileService struct {
	Store        store.DocumentStore
	Interactions *InteractionService
	S3           *S3Service
	Events       *EventBus
	validator    *validation.Validator
	logger       logging.Logger
}

func NewUserProfileService(
	s store.DocumentStore,
	interactions *InteractionService,
	s3 *S3Service,
	events *EventBus,
	v *validation.Validator,
	logger logging.Logger,
) *UserProfileService {
	if logger == nil {
		logger = logging.Nop()
	}
	if v == nil {
		v = validation.New()
	}
	return &UserProfileService{
		Store:        s,
		Interactions: interactions,
		S3:           s3,
		Events:       events,
		validator:    v,
		logger:       logger,
	}
}

// validate rejects a profile before it reaches the store.
func (ups *UserProfileService) validate(p *models.UserProfile) error {
	if err := ups.validator.Validate(p); err != nil {
		var verr *validation.ValidationError
		if errors.As(err, &verr) {
			return apperrors.ErrValidation.WithDetails(verr.Errors)
		}
		return apperrors.Validation(err.Error())
	}
	if err := p.CheckVariant(); err != nil {
		return apperrors.Validation(err.Error())
	}
	if (p.Latitude == nil) != (p.Longitude == nil) {
		return apperrors.Validation("lat and lng must be set together")
	}
	return nil
}

// Upsert creates or replaces the caller's profile. The geohash is derived
// from the coordinates; createdAt and the block list survive updates.
func (ups *UserProfileService) Upsert(ctx context.Context, p *models.UserProfile) (*models.UserProfile, error) {
	p.Phone = strings.TrimSpace(p.Phone)
	if err := ups.validate(p); err != nil {
		return nil, err
	}

	p.Geohash = ""
	if p.HasLocation() {
		p.Geohash = geo.Encode(geo.Point{Lat: *p.Latitude, Lng: *p.Longitude}, models.GeohashPrecision)
	}

	ts := timestamp(now())
	keepBlocked := p.Blocked == nil
	var saved models.UserProfile
	err := store.Update(ctx, ups.Store, profileKey(p.UserID), func(item store.Item) (store.Item, error) {
		// built fresh on every attempt
		saved = *p
		saved.CreatedAt = ts
		if item != nil {
			var existing models.UserProfile
			if err := store.Unmarshal(item, &existing); err != nil {
				return nil, err
			}
			if existing.CreatedAt != "" {
				saved.CreatedAt = existing.CreatedAt
			}
			if keepBlocked {
				saved.Blocked = existing.Blocked
			}
		}
		saved.UpdatedAt = ts
		return store.Marshal(saved)
	})
	if err != nil {
		return nil, storeError(err, "upsert profile")
	}
	p = &saved

	ups.logger.Info(ctx, "profile saved", "userId", p.UserID, "role", p.Role)
	snapshot := *p
	ups.Events.Publish(ctx, Event{Type: EventProfileUpdated, UserID: p.UserID, Profile: &snapshot})
	return p, nil
}

func (ups *UserProfileService) Get(ctx context.Context, uid string) (*models.UserProfile, error) {
	if uid == "" {
		return nil, apperrors.Validation("user id is required")
	}
	item, err := ups.Store.Get(ctx, profileKey(uid))
	if err != nil {
		return nil, storeError(err, "get profile")
	}
	var p models.UserProfile
	if err := store.Unmarshal(item, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Block adds target to uid's block list. Blocking is idempotent.
func (ups *UserProfileService) Block(ctx context.Context, uid, target string) error {
	if err := requirePair(uid, target); err != nil {
		return err
	}
	err := store.Update(ctx, ups.Store, profileKey(uid), func(item store.Item) (store.Item, error) {
		if item == nil {
			return nil, store.ErrNotFound
		}
		var p models.UserProfile
		if err := store.Unmarshal(item, &p); err != nil {
			return nil, err
		}
		if !slices.Contains(p.Blocked, target) {
			p.Blocked = append(p.Blocked, target)
		}
		return store.Marshal(p)
	})
	return storeError(err, "block")
}

// DeleteAccount unmatches uid from everyone, deletes every interaction uid
// made or received, then the profile. Stored images are removed by the
// UserDeleted handler.
func (ups *UserProfileService) DeleteAccount(ctx context.Context, uid string) error {
	if uid == "" {
		return apperrors.ErrUnauthorized
	}

	items, err := ups.Store.Query(ctx, matchesQuery(uid))
	if err != nil {
		return storeError(err, "delete account")
	}
	matches, err := decodeMatches(items)
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := ups.Interactions.Unmatch(ctx, uid, m.Other(uid)); err != nil {
			return err
		}
	}

	var keys []store.Key
	out, err := ups.Interactions.outgoing(ctx, uid)
	if err != nil {
		return storeError(err, "delete account")
	}
	for _, in := range out {
		keys = append(keys, interactionKey(in.FromUID, in.ToUID))
	}
	in, err := ups.Interactions.incoming(ctx, uid)
	if err != nil {
		return storeError(err, "delete account")
	}
	for _, i := range in {
		keys = append(keys, interactionKey(i.FromUID, i.ToUID))
	}
	keys = append(keys, profileKey(uid))

	if err := ups.Store.BatchDelete(ctx, keys); err != nil {
		return storeError(err, "delete account")
	}

	ups.logger.Info(ctx, "account deleted", "userId", uid, "matches", len(matches), "interactions", len(keys)-1)
	ups.Events.Publish(ctx, Event{Type: EventUserDeleted, UserID: uid})
	return nil
}

// UploadURL returns a presigned URL the client PUTs an image to, and the
// key to store in the profile's images.
func (ups *UserProfileService) UploadURL(ctx context.Context, uid, fileName, contentType string) (string, string, error) {
	if uid == "" {
		return "", "", apperrors.ErrUnauthorized
	}
	if fileName == "" || !strings.HasPrefix(contentType, "image/") {
		return "", "", apperrors.Validation("fileName and an image contentType are required")
	}
	if ups.S3 == nil {
		return "", "", apperrors.New(apperrors.CodeInternalError, "image storage is not configured", http.StatusServiceUnavailable)
	}
	key := UploadKey(uid, fileName, now())
	url, err := ups.S3.PresignUpload(ctx, key, contentType)
	if err != nil {
		return "", "", err
	}
	return url, key, nil
}

// ReadURL returns a presigned URL for a stored profile image.
func (ups *UserProfileService) ReadURL(ctx context.Context, key string) (string, error) {
	if !strings.HasPrefix(key, "users/") || strings.Contains(key, "..") {
		return "", apperrors.Validation("invalid image key")
	}
	if ups.S3 == nil {
		return "", apperrors.New(apperrors.CodeInternalError, "image storage is not configured", http.StatusServiceUnavailable)
	}
	return ups.S3.PresignRead(ctx, key)
}
