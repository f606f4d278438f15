// Command ratelmq-loadgen drives a RatelMQ broker with N concurrent MQTT
// publishers, useful as a smoke test and a rough throughput probe.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type telemetryPayload struct {
	ClientID  string  `json:"client_id"`
	Sequence  int     `json:"sequence"`
	Value     float64 `json:"value"`
	Timestamp string  `json:"timestamp"`
}

func main() {
	brokerAddr := flag.String("broker", "tcp://localhost:1883", "MQTT broker address, e.g. tcp://localhost:1883")
	clients := flag.Int("clients", 10, "number of concurrent publishing clients")
	topic := flag.String("topic", "loadgen/telemetry", "topic each client publishes to")
	interval := flag.Duration("interval", time.Second, "interval between publishes per client")

	flag.Parse()

	if *clients <= 0 {
		log.Fatal("clients must be positive")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			runClient(ctx, index, *brokerAddr, *topic, *interval)
		}(i)
	}

	wg.Wait()
	log.Print("all clients disconnected, exiting")
}

func runClient(ctx context.Context, index int, brokerAddr, topic string, interval time.Duration) {
	clientID := fmt.Sprintf("ratelmq-loadgen-%d-%d", time.Now().UnixNano(), index)

	opts := mqtt.NewClientOptions().AddBroker(brokerAddr).SetClientID(clientID)
	opts = opts.SetOrderMatters(false)
	opts = opts.SetAutoReconnect(false)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Printf("client %s: failed to connect: %v", clientID, token.Error())
		return
	}
	log.Printf("client %s: connected to %s", clientID, brokerAddr)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sequence := 0
	publish := func() {
		sequence++
		payload := telemetryPayload{
			ClientID:  clientID,
			Sequence:  sequence,
			Value:     rand.Float64() * 100,
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		}

		data, err := json.Marshal(payload)
		if err != nil {
			log.Printf("client %s: encode failed: %v", clientID, err)
			return
		}

		token := client.Publish(topic, 0, false, data)
		token.Wait()
		if err := token.Error(); err != nil {
			log.Printf("client %s: publish failed: %v", clientID, err)
		}
	}

	publish()

	for {
		select {
		case <-ctx.Done():
			client.Disconnect(250)
			return
		case <-ticker.C:
			publish()
		}
	}
}
