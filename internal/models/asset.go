package models

import (
	"errors"
	"strings"
	"time"
)

// Status is the board-side lifecycle state of an asset
type Status string

const (
	StatusActive      Status = "active"
	StatusMaintenance Status = "maintenance"
	StatusInactive    Status = "inactive"
)

// Statuses lists the local vocabulary in board column order
var Statuses = []Status{StatusActive, StatusMaintenance, StatusInactive}

// Remote status vocabulary used by the API
const (
	RemoteOpen     = "Open"
	RemoteAssigned = "Assigned"
	RemoteClosed   = "Closed"
)

// ErrUnknownStatus is returned when a status is outside both vocabularies
var ErrUnknownStatus = errors.New("unknown status")

var localToRemote = map[Status]string{
	StatusActive:      RemoteOpen,
	StatusMaintenance: RemoteAssigned,
	StatusInactive:    RemoteClosed,
}

var remoteToLocal = map[string]Status{
	RemoteOpen:     StatusActive,
	RemoteAssigned: StatusMaintenance,
	RemoteClosed:   StatusInactive,
}

// Known reports whether s is a member of the local vocabulary
func (s Status) Known() bool {
	_, ok := localToRemote[s]
	return ok
}

// Remote maps a local status to the API vocabulary. Values outside the table
// are passed through unchanged.
func (s Status) Remote() string {
	if r, ok := localToRemote[s]; ok {
		return r
	}
	return string(s)
}

// StatusFromRemote maps an API status to the local vocabulary. An
// unrecognized value is lowercased and returned with ok=false.
func StatusFromRemote(remote string) (Status, bool) {
	if s, ok := remoteToLocal[remote]; ok {
		return s, true
	}
	return Status(strings.ToLower(remote)), false
}

// Asset type and location vocabularies offered by the board
const (
	TypeLaptop       = "Laptop"
	TypeCharger      = "Charger"
	TypeNetworkIssue = "Network issue"

	LocationWFO = "WFO"
	LocationWFH = "WFH"
)

// Asset is a tracked hardware or issue record as held by the board
type Asset struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Type        string     `json:"type"`
	Location    string     `json:"location"`
	Status      Status     `json:"status"`
	Description string     `json:"description"`
	OpenDate    *time.Time `json:"openDate,omitempty"`
	CloseDate   *time.Time `json:"closeDate,omitempty"`
	// Extra holds inbound fields the board does not model
	Extra map[string]any `json:"-"`
}

// Clone returns a deep copy of the asset
func (a Asset) Clone() Asset {
	c := a
	if a.OpenDate != nil {
		t := *a.OpenDate
		c.OpenDate = &t
	}
	if a.CloseDate != nil {
		t := *a.CloseDate
		c.CloseDate = &t
	}
	if a.Extra != nil {
		c.Extra = make(map[string]any, len(a.Extra))
		for k, v := range a.Extra {
			c.Extra[k] = v
		}
	}
	return c
}

// AssetPatch is a sparse update; nil fields are left untouched
type AssetPatch struct {
	Email       *string `json:"email,omitempty"`
	Type        *string `json:"type,omitempty"`
	Location    *string `json:"location,omitempty"`
	Status      *Status `json:"status,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Empty reports whether the patch changes nothing
func (p AssetPatch) Empty() bool {
	return p.Email == nil && p.Type == nil && p.Location == nil && p.Status == nil && p.Description == nil
}

// Apply copies the set fields of the patch onto a
func (p AssetPatch) Apply(a *Asset) {
	if p.Email != nil {
		a.Email = *p.Email
	}
	if p.Type != nil {
		a.Type = *p.Type
	}
	if p.Location != nil {
		a.Location = *p.Location
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.Description != nil {
		a.Description = *p.Description
	}
}

// StoredAsset is the server-side row, kept in the remote vocabulary
type StoredAsset struct {
	ID          int64      `json:"id"`
	Email       string     `json:"email"`
	Type        string     `json:"type"`
	Location    string     `json:"location"`
	Status      string     `json:"status"`
	Description *string    `json:"description"`
	OpenDate    time.Time  `json:"open_date"`
	CloseDate   *time.Time `json:"close_date"`
}

// CreateAssetRequest represents the request body for creating a new asset
type CreateAssetRequest struct {
	Email       string  `json:"email"`
	Type        string  `json:"type"`
	Location    *string `json:"location,omitempty"`
	Status      *string `json:"status,omitempty"`
	Description *string `json:"description,omitempty"`
}

// UpdateAssetRequest represents the request body for updating an asset
type UpdateAssetRequest struct {
	Email       *string `json:"email,omitempty"`
	Type        *string `json:"type,omitempty"`
	Location    *string `json:"location,omitempty"`
	Status      *string `json:"status,omitempty"`
	Description *string `json:"description,omitempty"`
}

// AssetFilter narrows a server-side asset listing
type AssetFilter struct {
	Statuses  []string
	UserEmail string
	Query     string
	Sort      string
	Limit     int
	Offset    int
}

// compact lowercases s and strips everything but letters and digits
func compact(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeRemoteStatus maps either vocabulary (any casing or spacing) to the
// API vocabulary. Empty input defaults to Open.
func NormalizeRemoteStatus(in string) string {
	switch compact(in) {
	case "", "active", "open":
		return RemoteOpen
	case "maintenance", "assigned":
		return RemoteAssigned
	case "inactive", "closed":
		return RemoteClosed
	}
	return strings.TrimSpace(in)
}

// NormalizeType maps spelling variants to the canonical asset type
func NormalizeType(in string) string {
	switch compact(in) {
	case "laptop":
		return TypeLaptop
	case "charger":
		return TypeCharger
	case "networkissue", "network":
		return TypeNetworkIssue
	}
	return strings.TrimSpace(in)
}

// NormalizeLocation maps spelling variants to WFO or WFH. Empty input defaults to WFO.
func NormalizeLocation(in string) string {
	switch compact(in) {
	case "", "wfo", "office", "onsite":
		return LocationWFO
	case "wfh", "home":
		return LocationWFH
	}
	return strings.TrimSpace(in)
}
