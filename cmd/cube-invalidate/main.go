// cube-invalidate announces changed catalog items on the invalidation
// topic so running cube-server instances drop the affected cached
// assets. It is the ingest-side counterpart of the consumer embedded
// in cube-server.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/geoscape-io/stacube/internal/config"
	"github.com/geoscape-io/stacube/internal/invalidation"
	"github.com/geoscape-io/stacube/internal/logger"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	brokers := flag.String("brokers", cfg.Invalidation.Brokers, "kafka brokers, comma separated")
	topic := flag.String("topic", cfg.Invalidation.Topic, "invalidation topic")
	op := flag.String("op", "update", "catalog operation: insert, update or delete")
	collection := flag.String("collection", cfg.Collection, "collection identifier")
	items := flag.String("items", "", "changed item identifiers, comma separated")
	assets := flag.String("assets", cfg.AssetKey, "affected asset names, comma separated")
	source := flag.String("source", "cube-invalidate", "event source tag")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println(Version)
		return 0
	}

	log := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   true,
		Component: "cube-invalidate",
	}, os.Stderr)

	ev, err := buildEvent(*op, *collection, *items, *assets, *source)
	if err != nil {
		fmt.Fprintln(os.Stderr, "cube-invalidate:", err)
		return 2
	}

	pub, err := invalidation.NewPublisher(splitFlag(*brokers), *topic, 16, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "cube-invalidate:", err)
		return 1
	}
	if err := pub.Publish(ev); err != nil {
		_ = pub.Close()
		fmt.Fprintln(os.Stderr, "cube-invalidate:", err)
		return 1
	}
	// Close drains the queue and flushes the producer before returning.
	if err := pub.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "cube-invalidate:", err)
		return 1
	}
	log.Info().Str("collection", ev.Collection).Int("items", len(ev.ItemIDs)).
		Int("assets", len(ev.Assets)).Msg("invalidation published")
	return 0
}

func buildEvent(op, collection, items, assets, source string) (invalidation.Event, error) {
	ev := invalidation.Event{
		Version:    1,
		Op:         op,
		Collection: collection,
		TS:         time.Now().UTC(),
		ItemIDs:    splitFlag(items),
		Assets:     splitFlag(assets),
		Source:     source,
	}
	if err := ev.Validate(); err != nil {
		return invalidation.Event{}, err
	}
	return ev, nil
}

func splitFlag(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
