package config

import (
	"fmt"
	"strconv"
	"strings"

	"openamm/internal/model"
)

// TakerOrder is one scripted order replayed against the simulated venue.
type TakerOrder struct {
	Side  model.Side
	Lots  uint64
	Price uint64
}

// ParseTakerOrders parses entries of the form side:lots:price, for example
// "bid:10:1003". Side accepts bid/buy or ask/sell.
func ParseTakerOrders(inputs []string) ([]TakerOrder, error) {
	orders := make([]TakerOrder, 0, len(inputs))
	for _, input := range inputs {
		parts := strings.Split(strings.TrimSpace(input), ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid order %q: want side:lots:price", input)
		}

		var side model.Side
		switch strings.ToLower(parts[0]) {
		case "bid", "buy":
			side = model.Bid
		case "ask", "sell":
			side = model.Ask
		default:
			return nil, fmt.Errorf("invalid order side %q", parts[0])
		}

		lots, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil || lots == 0 {
			return nil, fmt.Errorf("invalid order lots %q", parts[1])
		}
		price, err := strconv.ParseUint(parts[2], 10, 64)
		if err != nil || price == 0 {
			return nil, fmt.Errorf("invalid order price %q", parts[2])
		}
		orders = append(orders, TakerOrder{Side: side, Lots: lots, Price: price})
	}
	return orders, nil
}
