package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/hearthd/hearth"
	"github.com/hearthd/hearth/discovery"
	"github.com/hearthd/hearth/hass"
	hearthlog "github.com/hearthd/hearth/log"
	"github.com/hearthd/hearth/platform"
)

// A small host that consumes MQTT binary sensors: static sensors come from a YAML file
// passed as the first argument, dynamic ones arrive via discovery. Every observed state
// transition is logged.
func main() {
	hearthlog.To(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	brokerURL, err := url.Parse("mqtt://0.0.0.0:1883")
	if err != nil {
		panic(err)
	}

	w, sm, disconnect, err := configureMQTT(ctx, brokerURL)
	if err != nil {
		panic(err)
	}

	log := hearthlog.ForComponent("example")
	log.Info("Starting Up")

	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		log.Info("Disconnecting from mqtt")
		if err := disconnect(shutdownCtx); err != nil {
			log.With(hearthlog.Error(err)).Error("Failed to disconnect from mqtt")
		}
	}()

	host := hearth.NewHost(sm, w, nil)
	host.OnStateChange(func(c hearth.StateChange) {
		log.With(
			slog.String("entity", c.Entity.Name()),
			slog.String("previous", c.Previous),
			slog.String("state", c.Current),
			slog.Bool("available", c.Available),
		).Info("State changed")
	})

	if len(os.Args) > 1 {
		data, err := os.ReadFile(os.Args[1])
		if err != nil {
			panic(err)
		}

		configs, err := platform.ParseStaticYAMLList(data)
		if err != nil {
			panic(err)
		}

		for _, cfg := range configs {
			log.With(slog.String("entity", cfg.Name)).Info("Adding static sensor")
			if err := host.Add(ctx, platform.NewBinarySensor(cfg)); err != nil {
				panic(err)
			}
		}
	}

	log.Info("Listening for discovered sensors")
	l := discovery.NewListener(host, discovery.DefaultPrefix)
	if err := l.Subscribe(ctx); err != nil {
		panic(err)
	}

	if err := host.PublishStatus(ctx, hass.Available); err != nil {
		panic(err)
	}

	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := host.PublishStatus(shutdownCtx, hass.Unavailable); err != nil {
			log.With(hearthlog.Error(err)).Error("Failed to publish offline status")
		}
	}()

	<-ctx.Done()
	log.Info("Goodbye!")
}
