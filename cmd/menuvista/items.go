package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"menuvista-session/internal/model"
)

// parseItems turns "id:name:qty:price[:variation:delta]" flags into
// cart lines.
func parseItems(raw []string) ([]model.OrderLineItem, error) {
	items := make([]model.OrderLineItem, 0, len(raw))
	for _, r := range raw {
		parts := strings.Split(r, ":")
		if len(parts) != 4 && len(parts) != 6 {
			return nil, fmt.Errorf("item %q: want id:name:qty:price[:variation:delta]", r)
		}
		id, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("item %q: bad id: %w", r, err)
		}
		qty, err := strconv.Atoi(parts[2])
		if err != nil || qty <= 0 {
			return nil, fmt.Errorf("item %q: quantity must be a positive integer", r)
		}
		price, err := strconv.ParseFloat(parts[3], 64)
		if err != nil {
			return nil, fmt.Errorf("item %q: bad price: %w", r, err)
		}
		item := model.OrderLineItem{ID: id, Name: strings.TrimSpace(parts[1]), Quantity: qty, Price: price}
		if len(parts) == 6 {
			delta, err := strconv.ParseFloat(parts[5], 64)
			if err != nil {
				return nil, fmt.Errorf("item %q: bad variation price: %w", r, err)
			}
			item.Variation = &model.Variation{Name: strings.TrimSpace(parts[4]), Price: delta}
		}
		items = append(items, item)
	}
	return items, nil
}

func daysToDuration(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}
