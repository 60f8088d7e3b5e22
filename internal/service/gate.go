package service

// GenerationCost is the price of one generation in credits.
const GenerationCost int64 = 1

type Decision int

const (
	Deny Decision = iota
	Permit
)

func (d Decision) String() string {
	if d == Permit {
		return "permit"
	}
	return "deny"
}

// Authorize permits a spend of cost iff balance >= cost. A balance equal to
// the cost is permitted and may leave the account at zero.
func Authorize(balance, cost int64) Decision {
	if balance >= cost {
		return Permit
	}
	return Deny
}
