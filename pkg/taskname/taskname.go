package taskname

const (
	// Loyalty tasks
	LoyaltyStampAdd = "loyalty:stamp:add"
)
