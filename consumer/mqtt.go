package consumer

import (
  "context"
  "encoding/json"
  "fmt"
  "strconv"
  "strings"
  "time"

  mqtt "github.com/eclipse/paho.mqtt.golang"
  "github.com/robertof/go-vitals-collector/device"
  "github.com/rs/zerolog"
)

const (
  defaultTopicPrefix = "vitals"
  mqttConnectTimeout = 10 * time.Second
  mqttPublishTimeout = 10 * time.Second
  mqttDisconnectQuiesceMs = 250
)

type publisher interface {
  Publish(topic string, qos byte, retained bool, payload []byte) error
  Close()
}

type pahoPublisher struct {
  client mqtt.Client
}

func (p *pahoPublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
  token := p.client.Publish(topic, qos, retained, payload)

  if !token.WaitTimeout(mqttPublishTimeout) {
    return fmt.Errorf("timed out publishing to topic %s", topic)
  }

  if err := token.Error(); err != nil {
    return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
  }

  return nil
}

func (p *pahoPublisher) Close() {
  p.client.Disconnect(mqttDisconnectQuiesceMs)
}

// MQTT publishes the readings of every session as one JSON document to
// `<topic_prefix>/<device_name>`.
type MQTT struct {
  pub publisher
  topicPrefix string
  qos byte
  retained bool
}

func NewMQTT(cfg device.Config, logger zerolog.Logger) (Consumer, error) {
  broker := cfg.Setting("mqtt.broker")

  if broker == "" {
    return nil, fmt.Errorf("%w: [MQTT] broker is required", device.ErrConfiguration)
  }

  qos, err := strconv.ParseUint(cfg.SettingOr("mqtt.qos", "1"), 10, 8)
  if err != nil || qos > 2 {
    return nil, fmt.Errorf("%w: [MQTT] qos must be 0, 1 or 2", device.ErrConfiguration)
  }

  retained, err := strconv.ParseBool(cfg.SettingOr("mqtt.retained", "false"))
  if err != nil {
    return nil, fmt.Errorf("%w: [MQTT] invalid retained flag: %v", device.ErrConfiguration, err)
  }

  opts := mqtt.NewClientOptions()
  opts.AddBroker(broker)
  opts.SetClientID(cfg.SettingOr("mqtt.client_id", "vitals-collector-" + cfg.Type))

  if username := cfg.Setting("mqtt.username"); username != "" {
    opts.SetUsername(username)
  }
  if password := cfg.Setting("mqtt.password"); password != "" {
    opts.SetPassword(password)
  }

  opts.SetAutoReconnect(true)
  opts.SetConnectRetry(true)
  opts.SetCleanSession(true)
  opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
    logger.Warn().Err(err).Str("Broker", broker).Msg("Lost connection to MQTT broker")
  })

  client := mqtt.NewClient(opts)
  token := client.Connect()

  // the client keeps retrying in the background, sessions only start failing to publish.
  if !token.WaitTimeout(mqttConnectTimeout) {
    logger.Warn().Str("Broker", broker).Msg("MQTT broker not reachable yet, will keep retrying")
  } else if err := token.Error(); err != nil {
    return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
  }

  return newMQTT(
    &pahoPublisher{client: client},
    cfg.SettingOr("mqtt.topic_prefix", defaultTopicPrefix),
    byte(qos),
    retained,
  ), nil
}

func newMQTT(pub publisher, topicPrefix string, qos byte, retained bool) *MQTT {
  return &MQTT{
    pub: pub,
    topicPrefix: strings.TrimSuffix(topicPrefix, "/"),
    qos: qos,
    retained: retained,
  }
}

func (m *MQTT) Topic(cfg device.Config) string {
  return m.topicPrefix + "/" + cfg.Name
}

func (m *MQTT) Execute(ctx context.Context, cfg device.Config, readings device.ReadingSet) error {
  payload, err := json.Marshal(newSessionPayload(cfg, readings))
  if err != nil {
    return fmt.Errorf("failed to encode readings: %w", err)
  }

  return m.pub.Publish(m.Topic(cfg), m.qos, m.retained, payload)
}

func (m *MQTT) Close() error {
  m.pub.Close()
  return nil
}
