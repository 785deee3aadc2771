package server

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/host"

	"github.com/nomoresecretz/flymap/common/flyStruct"
)

// MQTT topics
const (
	TopicMonster = "flymap/monster"
	TopicPlayer  = "flymap/player"
	TopicUser    = "flymap/user"
	TopicChat    = "flymap/chat"
)

type publisher interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// telemetry mirrors decoded events to an MQTT broker. It implements flyStruct.Emitter.
type telemetry struct {
	client   mqtt.Client
	pub      publisher
	broker   string
	metadata map[string]interface{}
	log      zerolog.Logger
}

// hostMetadata describes the machine doing the decoding.
func hostMetadata() map[string]interface{} {
	md := map[string]interface{}{
		"arch": runtime.GOARCH,
	}

	if hn, err := os.Hostname(); err == nil {
		md["hostname"] = hn
	}

	if hi, err := host.Info(); err == nil {
		md["platform"] = fmt.Sprintf("%s %s", hi.Platform, hi.PlatformVersion)
		md["uptime"] = hi.Uptime
	}

	return md
}

func NewTelemetry(broker string) *telemetry {
	md := hostMetadata()
	t := &telemetry{
		broker:   broker,
		metadata: md,
		log:      ComponentLogger("telemetry"),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(fmt.Sprintf("flymap-%v", md["hostname"]))
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)

	opts.SetOnConnectHandler(func(mqtt.Client) {
		t.log.Info().Str("broker", broker).Msg("MQTT connected")
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		t.log.Warn().Err(err).Msg("MQTT connection lost")
	})

	t.client = mqtt.NewClient(opts)
	t.pub = t.client

	return t
}

// Start connects to the broker and holds the connection until the context ends.
func (t *telemetry) Start(ctx context.Context) error {
	t.log.Info().Str("broker", t.broker).Msg("connecting to MQTT broker")

	token := t.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect failed: %w", token.Error())
	}

	<-ctx.Done()

	t.client.Disconnect(5000)
	t.log.Info().Msg("MQTT disconnected")

	return nil
}

func (t *telemetry) OnMonsterPosition(e flyStruct.PositionEvent) {
	t.publish(TopicMonster, positionPayload(e))
}

func (t *telemetry) OnPlayerPosition(e flyStruct.PositionEvent) {
	t.publish(TopicPlayer, positionPayload(e))
}

func (t *telemetry) OnUserPosition(e flyStruct.PositionEvent) {
	t.publish(TopicUser, positionPayload(e))
}

func (t *telemetry) OnChatMessage(e flyStruct.ChatEvent) {
	t.publish(TopicChat, map[string]interface{}{
		"direction":  e.Direction.String(),
		"message":    e.Message,
		"observedAt": e.ObservedAt.UTC().Format(time.RFC3339Nano),
	})
}

func positionPayload(e flyStruct.PositionEvent) map[string]interface{} {
	p := map[string]interface{}{
		"kind":       e.Kind.String(),
		"x":          e.X,
		"y":          e.Y,
		"z":          e.Z,
		"rotation":   e.Rotation,
		"isSpawn":    e.IsSpawn,
		"observedAt": e.ObservedAt.UTC().Format(time.RFC3339Nano),
	}
	if e.ID != "" {
		p["id"] = e.ID
	}

	return p
}

// publish sends a JSON message without waiting for the broker.
func (t *telemetry) publish(topic string, payload interface{}) {
	if !t.pub.IsConnected() {
		return
	}

	msg := make(map[string]interface{}, len(t.metadata)+2)
	for k, v := range t.metadata {
		msg[k] = v
	}
	msg["payload"] = payload
	msg["timestamp"] = time.Now().UTC().Format(time.RFC3339)

	data, err := json.Marshal(msg)
	if err != nil {
		t.log.Warn().Err(err).Str("topic", topic).Msg("failed to marshal MQTT message")
		return
	}

	token := t.pub.Publish(topic, 0, false, data)
	go func() {
		token.Wait()
		if token.Error() != nil {
			t.log.Warn().Err(token.Error()).Str("topic", topic).Msg("MQTT publish failed")
		}
	}()
}
