// Package invalidation defines catalog-update events that purge
// cached asset payloads.
package invalidation

import (
	"fmt"
	"strings"
	"time"
)

// Event announces that catalog items changed upstream. Cached asset
// bytes for the named items become stale and must be dropped. Assets
// lists the affected asset names; producers send one event per
// changed asset set.
type Event struct {
	Version    int       `json:"version"`
	Op         string    `json:"op"`
	Collection string    `json:"collection"`
	TS         time.Time `json:"ts"`
	ItemIDs    []string  `json:"item_ids"`
	Assets     []string  `json:"assets"`
	Source     string    `json:"source,omitempty"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	switch e.Op {
	case "insert", "update", "delete":
	default:
		return fmt.Errorf("op must be insert|update|delete")
	}
	if strings.TrimSpace(e.Collection) == "" {
		return fmt.Errorf("collection is required")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	if len(e.ItemIDs) == 0 {
		return fmt.Errorf("at least one item id is required")
	}
	if len(e.Assets) == 0 {
		return fmt.Errorf("at least one asset name is required")
	}
	return nil
}
