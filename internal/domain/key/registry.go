package key

import "time"

type Registry interface {
	Generate(owner string, duration time.Duration, maxUses int) (*Key, error)
	Validate(token string) Outcome
	Info(token string) (*Key, error)
	Revoke(token string) error
	List() []*Key
	Stats() Stats
}
