package model

import "time"

// Role is a member's role within a community.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Member records one node's membership in a community.
type Member struct {
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// Community is a geofenced group of nodes. The cell set is materialized once
// at creation from the center and radius; later coordinate changes do not
// move the fence.
type Community struct {
	ID         string            `json:"community_id"`
	Name       string            `json:"name"`
	Lat        float64           `json:"lat"`
	Lon        float64           `json:"lon"`
	RadiusKm   float64           `json:"radius_km"`
	H3Res      int               `json:"h3_res"`
	Cells      []string          `json:"h3_cells"`
	InviteCode string            `json:"invite_code"`
	CreatedBy  string            `json:"created_by"`
	CreatedAt  time.Time         `json:"created_at"`
	Members    map[string]Member `json:"members"`
}

// HasMember reports whether the node is currently a member.
func (c *Community) HasMember(nodeID string) bool {
	_, ok := c.Members[nodeID]
	return ok
}

// MemberIDs returns the node IDs of all current members.
func (c *Community) MemberIDs() []string {
	ids := make([]string, 0, len(c.Members))
	for id := range c.Members {
		ids = append(ids, id)
	}
	return ids
}
