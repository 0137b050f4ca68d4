// scansim publishes simulated scan events to the MQTT broker the way a
// physical NFC or barcode reader would: one identifier string per read, on
// scan/<org>/<session>. It prints whatever the gateway publishes back on
// the result topic.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func randomTag() string {
	// Tags look like NFC serials from common readers.
	return fmt.Sprintf("04:%02x:%02x:%02x:%02x:62:80",
		rand.Intn(256), rand.Intn(256), rand.Intn(256), rand.Intn(256))
}

func main() {
	broker := envOr("MQTT_BROKER", "tcp://localhost:1883")
	orgID := envOr("SCAN_ORG", "demo-org")
	interval, err := time.ParseDuration(envOr("SCAN_INTERVAL", "5s"))
	if err != nil {
		interval = 5 * time.Second
	}
	count, err := strconv.Atoi(envOr("SCAN_COUNT", "10"))
	if err != nil {
		count = 10
	}

	sessionID := uuid.NewString()
	topic := fmt.Sprintf("scan/%s/%s", orgID, sessionID)

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("scansim-" + sessionID[:8])
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.WithError(token.Error()).Fatal("failed to connect to broker")
	}
	defer client.Disconnect(250)

	client.Subscribe(topic+"/result", 1, func(_ mqtt.Client, msg mqtt.Message) {
		log.WithField("result", string(msg.Payload())).Info("gateway responded")
	})

	log.WithFields(log.Fields{"broker": broker, "topic": topic, "count": count}).
		Info("publishing simulated scans")

	for i := 0; i < count; i++ {
		tag := randomTag()
		if token := client.Publish(topic, 1, false, tag); token.Wait() && token.Error() != nil {
			log.WithError(token.Error()).Error("publish failed")
		} else {
			log.WithField("tag", tag).Info("scan published")
		}
		time.Sleep(interval)
	}
	// Leave a moment for the last result to arrive.
	time.Sleep(2 * time.Second)
}
