// Package scan bridges physical scan devices to the identity resolver.
// NFC and camera readers publish one identifier string per successful read
// to scan/<org>/<session>; the gateway resolves it and publishes the
// outcome to scan/<org>/<session>/result. The gateway has no knowledge of
// which modality produced the identifier.
package scan

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/tagworks/servicedesk/internal/apperr"
	"github.com/tagworks/servicedesk/internal/resolver"
)

const scanTopicFilter = "scan/+/+"

// TagResolver resolves an identifier within an organization and session.
type TagResolver interface {
	Resolve(ctx context.Context, orgID, sessionID, identifier string) (*resolver.Resolution, error)
}

// Gateway subscribes to scan topics on the MQTT broker and feeds the
// resolver.
type Gateway struct {
	client   mqtt.Client
	resolver TagResolver
	timeout  time.Duration
}

// NewGateway connects to the broker and returns a gateway ready to Start.
func NewGateway(brokerURL, clientID string, tagResolver TagResolver) (*Gateway, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return nil, errors.New("mqtt connect timed out")
	}
	if err := token.Error(); err != nil {
		return nil, err
	}
	return &Gateway{client: client, resolver: tagResolver, timeout: 10 * time.Second}, nil
}

// Start subscribes to the scan topic tree.
func (g *Gateway) Start() error {
	token := g.client.Subscribe(scanTopicFilter, 1, g.handleMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		return err
	}
	log.WithField("topic", scanTopicFilter).Info("scan gateway listening")
	return nil
}

// Stop unsubscribes and disconnects from the broker.
func (g *Gateway) Stop() {
	g.client.Unsubscribe(scanTopicFilter)
	g.client.Disconnect(250)
}

// scanResult is published back to the scanning device's result topic.
type scanResult struct {
	Identifier string               `json:"identifier"`
	Found      bool                 `json:"found"`
	Busy       bool                 `json:"busy,omitempty"`
	Error      string               `json:"error,omitempty"`
	Resolution *resolver.Resolution `json:"resolution,omitempty"`
}

func (g *Gateway) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	parts := strings.Split(msg.Topic(), "/")
	if len(parts) != 3 {
		log.WithField("topic", msg.Topic()).Warn("ignoring malformed scan topic")
		return
	}
	orgID, sessionID := parts[1], parts[2]
	identifier := strings.TrimSpace(string(msg.Payload()))

	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	result := scanResult{Identifier: identifier}
	resolution, err := g.resolver.Resolve(ctx, orgID, sessionID, identifier)
	switch {
	case errors.Is(err, apperr.ErrScanInProgress):
		result.Busy = true
	case err != nil:
		log.WithError(err).WithField("identifier", identifier).Error("scan resolution failed")
		result.Error = "resolution failed"
	default:
		result.Found = resolution.Found
		result.Resolution = resolution
	}

	g.publishResult(msg.Topic()+"/result", result)
}

func (g *Gateway) publishResult(topic string, result scanResult) {
	payload, err := json.Marshal(result)
	if err != nil {
		log.WithError(err).Error("marshal scan result")
		return
	}
	token := g.client.Publish(topic, 1, false, payload)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		log.WithError(token.Error()).WithField("topic", topic).Warn("publish scan result failed")
	}
}
