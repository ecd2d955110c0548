package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	hearthlog "github.com/hearthd/hearth/log"
	"github.com/hearthd/hearth/mqtt"
	adapter "github.com/hearthd/hearth/mqtt/adapter/autopaho"
)

type disconnectFunc func(context.Context) error

func configureMQTT(ctx context.Context, brokerURL *url.URL) (mqtt.Writer, mqtt.Subscriber, disconnectFunc, error) {
	log := hearthlog.ForComponent("mqtt")

	mqttConfig := autopaho.ClientConfig{
		ServerUrls: []*url.URL{brokerURL},
		KeepAlive:  20,

		// SessionExpiryInterval - Seconds that a session will survive after disconnection. It is important to set this
		// because otherwise, any queued messages will be lost if the connection drops and the server will not queue
		// messages while it is down. The specific setting will depend upon your needs (60 = 1 minute, 3600 = 1 hour,
		// 86400 = one day, 0xFFFFFFFE = 136 years, 0xFFFFFFFF = don't expire)
		SessionExpiryInterval: 60,

		OnConnectionUp: func(cm *autopaho.ConnectionManager, connAck *paho.Connack) {
			log.Info("mqtt connected")
		},
		OnConnectError: func(err error) {
			slog.With(hearthlog.Error(err)).Error("mqtt connection error")
		},

		ClientConfig: paho.ClientConfig{
			ClientID: "hearth:example:host",
			OnClientError: func(err error) {
				log.With(hearthlog.Error(err)).Error("mqtt client error")
			},
			OnServerDisconnect: func(d *paho.Disconnect) {
				log := log.With(slog.Int("reason", int(d.ReasonCode)))

				if d.Properties != nil {
					log = log.With(
						slog.Group(
							"properties",
							slog.String("reference", d.Properties.ServerReference),
							slog.String("reason", d.Properties.ReasonString),
							slog.Any("user", d.Properties.User),
						),
					)
				}

				log.Warn("Disconnected from server")
			},
		},
	}

	log.With(slog.String("broker", brokerURL.String())).Info("Connecting to mqtt")
	w, s, disconnect, err := adapter.DialMQTT(ctx, mqttConfig)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("mqtt: connect: %w", err)
	}

	log.With(slog.String("broker", brokerURL.String())).Info("Connected to mqtt")

	return w, s, disconnect, nil
}
