package domain

import (
	"fmt"
	"strings"
)

// Tier ranks subscriptions. The zero value is TierNone, held by users
// without an active subscription.
type Tier int

const (
	TierNone Tier = iota
	TierBasic
	TierPremium
	TierElite
)

var tierNames = map[Tier]string{
	TierNone:    "none",
	TierBasic:   "basic",
	TierPremium: "premium",
	TierElite:   "elite",
}

func (t Tier) String() string {
	if n, ok := tierNames[t]; ok {
		return n
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// AtLeast reports whether t ranks at or above min.
func (t Tier) AtLeast(min Tier) bool {
	return t >= min
}

func ParseTier(s string) (Tier, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for t, n := range tierNames {
		if n == needle {
			return t, nil
		}
	}
	return TierNone, fmt.Errorf("unknown tier %q: %w", s, ErrInvalidRecord)
}

func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	parsed, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
