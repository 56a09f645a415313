package license

// RepairMachines renormalizes and de-duplicates a stored machine list,
// preserving first-seen order. Stored entries may predate the current
// normalization rules, so every bind attempt repairs the full list before
// the seat-limit check. Returns the repaired list and whether it differs
// from the input.
func RepairMachines(machines []string) ([]string, bool) {
	repaired := make([]string, 0, len(machines))
	seen := make(map[string]struct{}, len(machines))
	changed := false

	for _, m := range machines {
		fp := NormalizeMachineID(m)
		if fp != m {
			changed = true
		}
		if fp == "" {
			changed = true
			continue
		}
		if _, dup := seen[fp]; dup {
			changed = true
			continue
		}
		seen[fp] = struct{}{}
		repaired = append(repaired, fp)
	}

	return repaired, changed
}

// Bind associates the canonical fingerprint with the record, enforcing the
// seat limit. Re-binding an already bound machine is a no-op success even
// when all seats are taken. The record's machine list is repaired as a side
// effect; changed reports whether the record differs from its stored form so
// the caller can skip the store write when nothing moved.
func Bind(rec *Record, fingerprint string) (changed bool, err error) {
	if fingerprint == "" {
		return false, ErrBadMachineID
	}

	repaired, repairedChanged := RepairMachines(rec.Machines)
	rec.Machines = repaired

	for _, m := range rec.Machines {
		if m == fingerprint {
			return repairedChanged, nil
		}
	}

	seats := rec.Seats
	if seats < 1 {
		seats = 1
	}
	if len(rec.Machines) >= seats {
		return repairedChanged, ErrSeatLimit
	}

	rec.Machines = append(rec.Machines, fingerprint)
	return true, nil
}
