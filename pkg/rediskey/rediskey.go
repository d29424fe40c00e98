package rediskey

import "fmt"

const (
	SequencePrefix       = "seq"
	RedemptionSeqPrefix  = "seq:redemption"
	LoyaltyCardKeyPrefix = "loyalty:card"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildRedemptionSequenceKey returns "seq:redemption:{yymmdd}"
func BuildRedemptionSequenceKey(day string) string {
	return NamespaceKey(RedemptionSeqPrefix, day)
}

// BuildLoyaltyCardKey returns "loyalty:card:{partnerID}"
func BuildLoyaltyCardKey(partnerID string) string {
	return NamespaceKey(LoyaltyCardKeyPrefix, partnerID)
}
