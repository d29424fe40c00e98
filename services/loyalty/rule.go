package loyalty

import (
	"time"

	"studentslife/pkg/celengine"

	"github.com/google/cel-go/cel"
)

// stampRuleVariables are the inputs an earn rule may reference, e.g.
// `weekday != "Sunday"` or `hour >= 14 && hour < 17`.
var stampRuleVariables = []celengine.Variable{
	{Name: "client_id", Type: cel.StringType},
	{Name: "partner_id", Type: cel.StringType},
	{Name: "stamps_count", Type: cel.IntType},
	{Name: "hour", Type: cel.IntType},
	{Name: "weekday", Type: cel.StringType},
}

func newRuleEngine() *celengine.Engine {
	engine, err := celengine.New(stampRuleVariables...)
	if err != nil {
		panic(err)
	}
	return engine
}

// stampRuleAttrs describes the stamp about to be added. stamps_count is the
// count before it; hour and weekday are read from now as given, which callers
// set to the card's time zone.
func stampRuleAttrs(clientID, partnerID string, current int32, now time.Time) map[string]any {
	return map[string]any{
		"client_id":    clientID,
		"partner_id":   partnerID,
		"stamps_count": int64(current),
		"hour":         int64(now.Hour()),
		"weekday":      now.Weekday().String(),
	}
}
