package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"flowtrack/internal/models"
)

const profilesPath = "/users-management"

// GetProfile fetches the profile registered for email. It returns nil, nil
// when no such profile exists.
func (c *Client) GetProfile(ctx context.Context, email string) (*models.Profile, error) {
	data, err := c.do(ctx, "fetch user profile", http.MethodGet, profilesPath+"/email/"+url.PathEscape(email), nil)
	if err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var p models.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("fetch user profile: decode response: %w", err)
	}
	return &p, nil
}

// ListProfiles fetches all profiles
func (c *Client) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	data, err := c.do(ctx, "fetch user profiles", http.MethodGet, profilesPath, nil)
	if err != nil {
		return nil, err
	}
	profiles := []models.Profile{}
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("fetch user profiles: decode response: %w", err)
	}
	return profiles, nil
}

// CreateProfile registers a new profile
func (c *Client) CreateProfile(ctx context.Context, p models.Profile) (models.Profile, error) {
	p.ID = 0
	return c.sendProfile(ctx, "create user profile", http.MethodPost, profilesPath, p)
}

// UpdateProfile replaces the profile stored under id
func (c *Client) UpdateProfile(ctx context.Context, id int64, p models.Profile) (models.Profile, error) {
	p.ID = 0
	return c.sendProfile(ctx, "update user profile", http.MethodPut, profilesPath+"/"+strconv.FormatInt(id, 10), p)
}

// DeleteProfile removes the profile stored under id
func (c *Client) DeleteProfile(ctx context.Context, id int64) error {
	_, err := c.do(ctx, "delete user profile", http.MethodDelete, profilesPath+"/"+strconv.FormatInt(id, 10), nil)
	return err
}

// SaveProfile looks the profile up by email and then updates or creates it.
// The lookup and the write are separate requests, so two concurrent savers
// for the same email race; the last write wins and a concurrent create can
// be rejected as a duplicate. UpsertProfile avoids the race.
func (c *Client) SaveProfile(ctx context.Context, p models.Profile) (models.Profile, error) {
	existing, err := c.GetProfile(ctx, p.Email)
	if err != nil {
		return models.Profile{}, err
	}
	if existing != nil {
		return c.UpdateProfile(ctx, existing.ID, p)
	}
	return c.CreateProfile(ctx, p)
}

// UpsertProfile creates or replaces the profile for p.Email in one request
func (c *Client) UpsertProfile(ctx context.Context, p models.Profile) (models.Profile, error) {
	p.ID = 0
	return c.sendProfile(ctx, "save user profile", http.MethodPut, profilesPath+"/email/"+url.PathEscape(p.Email), p)
}

func (c *Client) sendProfile(ctx context.Context, op, method, path string, p models.Profile) (models.Profile, error) {
	data, err := c.do(ctx, op, method, path, p)
	if err != nil {
		return models.Profile{}, err
	}
	var out models.Profile
	if err := json.Unmarshal(data, &out); err != nil {
		return models.Profile{}, fmt.Errorf("%s: decode response: %w", op, err)
	}
	return out, nil
}
