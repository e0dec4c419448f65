package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"flowtrack/internal/models"
)

// Alternate key spellings accepted for inbound asset fields, canonical first
var (
	idKeys          = []string{"id", "asset_id", "pk"}
	emailKeys       = []string{"email", "email_id"}
	typeKeys        = []string{"type", "asset_type"}
	openDateKeys    = []string{"openDate", "open_date", "open_date_time", "assigned_date"}
	closeDateKeys   = []string{"closeDate", "close_date", "return_date"}
	descriptionKeys = []string{"description", "desc"}
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// List fetches every asset. The body may be a bare array or an envelope
// keyed by "value" or "items"; anything else yields an empty list.
func (c *Client) List(ctx context.Context) ([]models.Asset, error) {
	data, err := c.do(ctx, "list assets", http.MethodGet, "/assets", nil)
	if err != nil {
		return nil, err
	}
	v, err := decodeJSON(data)
	if err != nil {
		return nil, fmt.Errorf("list assets: decode response: %w", err)
	}
	raws := unwrapList(v)
	assets := make([]models.Asset, 0, len(raws))
	for _, raw := range raws {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		a, err := c.normalize(obj)
		if err != nil {
			return nil, fmt.Errorf("list assets: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, nil
}

// Create submits a new asset. Only the fields the API schema accepts are sent.
func (c *Client) Create(ctx context.Context, a models.Asset) (models.Asset, error) {
	location := a.Location
	status := a.Status.Remote()
	description := a.Description
	body := models.CreateAssetRequest{
		Email:       a.Email,
		Type:        a.Type,
		Location:    &location,
		Status:      &status,
		Description: &description,
	}
	data, err := c.do(ctx, "add asset", http.MethodPost, "/assets", body)
	if err != nil {
		return models.Asset{}, err
	}
	return c.decodeOne("add asset", data)
}

// Update sends a sparse patch containing only the fields set in p
func (c *Client) Update(ctx context.Context, id string, p models.AssetPatch) (models.Asset, error) {
	body := models.UpdateAssetRequest{
		Email:       p.Email,
		Type:        p.Type,
		Location:    p.Location,
		Description: p.Description,
	}
	if p.Status != nil {
		remote := p.Status.Remote()
		body.Status = &remote
	}
	data, err := c.do(ctx, "update asset", http.MethodPut, "/assets/"+url.PathEscape(id), body)
	if err != nil {
		return models.Asset{}, err
	}
	return c.decodeOne("update asset", data)
}

// Delete removes an asset. An empty acknowledgement body is accepted.
func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := c.do(ctx, "delete asset", http.MethodDelete, "/assets/"+url.PathEscape(id), nil)
	return err
}

// decodeOne normalizes a mutation response: a record, a list or an envelope.
// An unrecognized body yields the zero asset.
func (c *Client) decodeOne(op string, data []byte) (models.Asset, error) {
	v, err := decodeJSON(data)
	if err != nil {
		return models.Asset{}, fmt.Errorf("%s: decode response: %w", op, err)
	}
	if obj, ok := v.(map[string]any); ok && firstOf(obj, idKeys) != nil {
		return c.normalize(obj)
	}
	for _, raw := range unwrapList(v) {
		if obj, ok := raw.(map[string]any); ok {
			return c.normalize(obj)
		}
	}
	return models.Asset{}, nil
}

func unwrapList(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case map[string]any:
		if list, ok := t["value"].([]any); ok {
			return list
		}
		if list, ok := t["items"].([]any); ok {
			return list
		}
	}
	return nil
}

// normalize coalesces alternate key spellings and maps the status into the
// local vocabulary
func (c *Client) normalize(obj map[string]any) (models.Asset, error) {
	consumed := map[string]bool{"location": true, "status": true}
	for _, keys := range [][]string{idKeys, emailKeys, typeKeys, openDateKeys, closeDateKeys, descriptionKeys} {
		for _, k := range keys {
			consumed[k] = true
		}
	}

	a := models.Asset{
		ID:          stringify(firstOf(obj, idKeys)),
		Email:       stringify(firstOf(obj, emailKeys)),
		Type:        stringify(firstOf(obj, typeKeys)),
		Location:    stringify(obj["location"]),
		Description: stringify(firstOf(obj, descriptionKeys)),
		OpenDate:    parseTime(firstOf(obj, openDateKeys)),
		CloseDate:   parseTime(firstOf(obj, closeDateKeys)),
	}

	if remote := stringify(obj["status"]); remote != "" {
		status, known := models.StatusFromRemote(remote)
		if !known && !status.Known() {
			if c.strictStatus {
				return models.Asset{}, fmt.Errorf("asset %s: %w %q", a.ID, models.ErrUnknownStatus, remote)
			}
			c.logger.Warn("passing through unrecognized asset status", "id", a.ID, "status", remote)
		}
		a.Status = status
	}

	for k, v := range obj {
		if consumed[k] {
			continue
		}
		if a.Extra == nil {
			a.Extra = make(map[string]any)
		}
		a.Extra[k] = v
	}
	return a, nil
}

func firstOf(obj map[string]any, keys []string) any {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// parseTime accepts RFC 3339, naive ISO timestamps (read as UTC) and epoch
// milliseconds
func parseTime(v any) *time.Time {
	switch t := v.(type) {
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return &parsed
			}
		}
	case json.Number:
		if ms, err := t.Int64(); err == nil {
			parsed := time.UnixMilli(ms).UTC()
			return &parsed
		}
	}
	return nil
}
