package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/retroboard/go/internal/retro/registry"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// RelayConfig holds configuration for the cross-instance room relay
type RelayConfig struct {
	URL           string
	StreamName    string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
	// MaxAge only needs to cover in-flight fan-out; nothing replays old room traffic.
	MaxAge time.Duration
}

// DefaultRelayConfig returns default relay configuration
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		URL:           nats.DefaultURL,
		StreamName:    "RETRO_ROOMS",
		SubjectPrefix: "retro.rooms",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
		MaxAge:        time.Minute,
	}
}

// relayEnvelope is what travels between instances.
type relayEnvelope struct {
	BoardID       uuid.UUID       `json:"board_id"`
	ExcludePeerID string          `json:"exclude_peer_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// Relay fans room events out through NATS JetStream so that every gateway
// instance delivers them to its own connections. Delivery is at most once.
type Relay struct {
	registry *registry.Registry
	nc       *nats.Conn
	js       jetstream.JetStream
	config   RelayConfig
}

// NewRelay connects to NATS and makes sure the room stream exists.
func NewRelay(reg *registry.Registry, config RelayConfig) (*Relay, error) {
	opts := []nats.Option{
		nats.Name("retroboard-gateway"),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	r := &Relay{registry: reg, nc: nc, js: js, config: config}
	if err := r.ensureStream(context.Background()); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}
	return r, nil
}

func (r *Relay) streamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        r.config.StreamName,
		Description: "Retrospective board room fan-out",
		Subjects:    []string{r.config.SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      r.config.MaxAge,
		Storage:     jetstream.MemoryStorage,
		Replicas:    1,
	}
}

func (r *Relay) ensureStream(ctx context.Context) error {
	sc := r.streamConfig()

	stream, err := r.js.Stream(ctx, sc.Name)
	if err != nil {
		if _, err = r.js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		log.Info().Str("stream", sc.Name).Msg("created JetStream stream")
		return nil
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("get stream info: %w", err)
	}
	if info.Config.MaxAge != sc.MaxAge {
		if _, err = r.js.UpdateStream(ctx, sc); err != nil {
			return fmt.Errorf("update stream: %w", err)
		}
		log.Info().Str("stream", sc.Name).Msg("updated JetStream stream")
	}
	return nil
}

// Subject is the subject room events for boardID are published on.
func (r *Relay) Subject(boardID uuid.UUID) string {
	return fmt.Sprintf("%s.%s", r.config.SubjectPrefix, boardID)
}

// Publish sends the delivery to every instance. If JetStream is unavailable
// the local room still gets it.
func (r *Relay) Publish(ctx context.Context, d registry.Delivery) error {
	data, err := encodeRelayEnvelope(d)
	if err != nil {
		return err
	}

	if _, err := r.js.Publish(ctx, r.Subject(d.BoardID), data); err != nil {
		r.registry.Deliver(d)
		return fmt.Errorf("publish to JetStream: %w", err)
	}
	return nil
}

// Start consumes room events until ctx is cancelled and hands them to the
// local registry.
func (r *Relay) Start(ctx context.Context) error {
	consumer, err := r.js.OrderedConsumer(ctx, r.config.StreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{r.config.SubjectPrefix + ".>"},
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("create ordered consumer: %w", err)
	}

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		d, err := decodeRelayEnvelope(msg.Data())
		if err != nil {
			log.Error().Err(err).Str("subject", msg.Subject()).Msg("failed to decode relayed event")
			return
		}
		r.registry.Deliver(d)
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	log.Info().
		Str("stream", r.config.StreamName).
		Str("subjects", r.config.SubjectPrefix+".>").
		Msg("room relay started")

	<-ctx.Done()
	log.Info().Msg("room relay shutting down")
	return nil
}

// Close drops the NATS connection.
func (r *Relay) Close() error {
	if r.nc != nil {
		r.nc.Close()
	}
	return nil
}

func encodeRelayEnvelope(d registry.Delivery) ([]byte, error) {
	data, err := json.Marshal(relayEnvelope{
		BoardID:       d.BoardID,
		ExcludePeerID: d.ExcludePeerID,
		Payload:       d.Payload,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal relay envelope: %w", err)
	}
	return data, nil
}

func decodeRelayEnvelope(data []byte) (registry.Delivery, error) {
	var env relayEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return registry.Delivery{}, fmt.Errorf("unmarshal relay envelope: %w", err)
	}
	if env.BoardID == uuid.Nil {
		return registry.Delivery{}, fmt.Errorf("relay envelope has no board_id")
	}
	return registry.Delivery{
		BoardID:       env.BoardID,
		ExcludePeerID: env.ExcludePeerID,
		Payload:       env.Payload,
	}, nil
}
