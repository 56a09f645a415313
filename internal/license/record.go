package license

import "time"

// DefaultPlan is assumed for records persisted without an explicit plan tag.
const DefaultPlan = "monthly"

// Record is the durable state of a single license key. The key itself is the
// map key in the store document and never changes.
type Record struct {
	// Active must be true for any activation to succeed.
	Active bool `json:"active"`
	// Plan is an informational tag embedded in issued tokens.
	Plan string `json:"plan"`
	// ExpiresUnix is the absolute license expiry in Unix seconds. The
	// license is unusable once this has passed.
	ExpiresUnix int64 `json:"expires_unix"`
	// Seats is the maximum number of distinct bound machines.
	Seats int `json:"seats"`
	// Machines holds canonical machine fingerprints in binding order.
	Machines []string `json:"machines"`
}

// Normalize fills in defaults for fields that legacy store documents may
// omit, mirroring how records have historically been repaired on load.
func (r *Record) Normalize() {
	if r.Plan == "" {
		r.Plan = DefaultPlan
	}
	if r.Seats < 1 {
		r.Seats = 1
	}
	if r.Machines == nil {
		r.Machines = []string{}
	}
}

// Expired reports whether the license is past its expiry at the given time.
func (r *Record) Expired(now time.Time) bool {
	return r.ExpiresUnix <= now.Unix()
}

// SeatsLeft returns how many unbound seats remain.
func (r *Record) SeatsLeft() int {
	left := r.Seats - len(r.Machines)
	if left < 0 {
		return 0
	}
	return left
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	out := r
	out.Machines = append([]string(nil), r.Machines...)
	return out
}
