package models

import "fmt"

type Role string

const (
	RoleHunter Role = "hunter"
	RoleHost   Role = "host"
)

func (r Role) Valid() bool {
	return r == RoleHunter || r == RoleHost
}

// Counterpart is the role a user of role r is shown in the feed.
func (r Role) Counterpart() Role {
	switch r {
	case RoleHunter:
		return RoleHost
	case RoleHost:
		return RoleHunter
	}
	return ""
}

// HostDetails is populated only for RoleHost.
type HostDetails struct {
	Rent     int    `dynamodbav:"rent" json:"rent" validate:"gte=0"`
	Address  string `dynamodbav:"address,omitempty" json:"address,omitempty"`
	RoomType string `dynamodbav:"roomType,omitempty" json:"roomType,omitempty"`
}

// HunterDetails is populated only for RoleHunter.
type HunterDetails struct {
	Budget     int    `dynamodbav:"budget" json:"budget" validate:"gte=0"`
	MoveInDate string `dynamodbav:"moveInDate,omitempty" json:"moveInDate,omitempty"`
}

// UserProfile is a hunter or a host. Role selects which of Host / Hunter is set.
type UserProfile struct {
	UserID     string         `dynamodbav:"userId" json:"userId" validate:"required"`
	Name       string         `dynamodbav:"name" json:"name" validate:"required,max=80"`
	Age        int            `dynamodbav:"age,omitempty" json:"age,omitempty" validate:"omitempty,gte=18,lte=120"`
	Images     []string       `dynamodbav:"images,omitempty" json:"images,omitempty" validate:"max=9"`
	Role       Role           `dynamodbav:"role" json:"role" validate:"is-role"`
	Latitude   *float64       `dynamodbav:"lat,omitempty" json:"lat,omitempty" validate:"omitempty,latitude"`
	Longitude  *float64       `dynamodbav:"lng,omitempty" json:"lng,omitempty" validate:"omitempty,longitude"`
	Geohash    string         `dynamodbav:"geohash,omitempty" json:"geohash,omitempty"`
	Tags       []string       `dynamodbav:"tags,stringset,omitempty" json:"tags,omitempty"`
	Occupation string         `dynamodbav:"occupation,omitempty" json:"occupation,omitempty"`
	Phone      string         `dynamodbav:"phone,omitempty" json:"phone,omitempty" validate:"omitempty,e164"`
	Blocked    []string       `dynamodbav:"blocked,omitempty" json:"blocked,omitempty"`
	Host       *HostDetails   `dynamodbav:"host,omitempty" json:"host,omitempty"`
	Hunter     *HunterDetails `dynamodbav:"hunter,omitempty" json:"hunter,omitempty"`
	CreatedAt  string         `dynamodbav:"createdAt,omitempty" json:"createdAt,omitempty"`
	UpdatedAt  string         `dynamodbav:"updatedAt,omitempty" json:"updatedAt,omitempty"`

	DistanceKm float64        `dynamodbav:"-" json:"distanceKm,omitempty"` // computed, not stored
}

// HasLocation reports whether both coordinates are present.
func (p *UserProfile) HasLocation() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// CheckVariant enforces that exactly the role-specific details matching Role are set.
func (p *UserProfile) CheckVariant() error {
	switch p.Role {
	case RoleHost:
		if p.Hunter != nil {
			return fmt.Errorf("host profile %s carries hunter details", p.UserID)
		}
	case RoleHunter:
		if p.Host != nil {
			return fmt.Errorf("hunter profile %s carries host details", p.UserID)
		}
	default:
		return fmt.Errorf("profile %s has unknown role %q", p.UserID, p.Role)
	}
	return nil
}

// PrimaryImage is the first image, or "".
func (p *UserProfile) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// Snapshot is the denormalized subset of a profile copied into interactions and matches.
type Snapshot struct {
	UserID     string `dynamodbav:"userId" json:"userId"`
	Name       string `dynamodbav:"name" json:"name"`
	Image      string `dynamodbav:"image,omitempty" json:"image,omitempty"`
	Occupation string `dynamodbav:"occupation,omitempty" json:"occupation,omitempty"`
	Age        int    `dynamodbav:"age,omitempty" json:"age,omitempty"`
	Role       Role   `dynamodbav:"role,omitempty" json:"role,omitempty"`
}

func (p *UserProfile) Snapshot() Snapshot {
	return Snapshot{
		UserID:     p.UserID,
		Name:       p.Name,
		Image:      p.PrimaryImage(),
		Occupation: p.Occupation,
		Age:        p.Age,
		Role:       p.Role,
	}
}
