package key

import "time"

type Status string

const (
	StatusValid     Status = "valid"
	StatusNotFound  Status = "not_found"
	StatusRevoked   Status = "revoked"
	StatusExpired   Status = "expired"
	StatusExhausted Status = "exhausted"
)

var statusReasons = map[Status]string{
	StatusValid:     "Key is valid",
	StatusNotFound:  "Key is invalid",
	StatusRevoked:   "Key has been revoked",
	StatusExpired:   "Key has expired",
	StatusExhausted: "Key has reached its usage limit",
}

func (s Status) Reason() string {
	if r, ok := statusReasons[s]; ok {
		return r
	}
	return string(s)
}

// Outcome is the result of a validation attempt. Owner, RemainingUses and
// ExpiresAt are only populated when Status is StatusValid.
type Outcome struct {
	Status        Status
	Owner         string
	RemainingUses int
	ExpiresAt     time.Time
}

func (o Outcome) Valid() bool {
	return o.Status == StatusValid
}

// Check runs the validation checks against a record without mutating it.
// The order is fixed: revoked, then expired, then exhausted. A nil record
// yields StatusNotFound.
func Check(k *Key, now time.Time) Status {
	switch {
	case k == nil:
		return StatusNotFound
	case !k.Active:
		return StatusRevoked
	case k.IsExpired(now):
		return StatusExpired
	case k.CurrentUses >= k.MaxUses:
		return StatusExhausted
	default:
		return StatusValid
	}
}
