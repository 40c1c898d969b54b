package main

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	errgo "gopkg.in/errgo.v1"
)

// publisher sends messages to a broker.
type publisher interface {
	Publish(topic string, payload []byte) error
	Close()
}

type mqttPublisher struct {
	client mqtt.Client
}

// dialMQTT connects to broker, for example "tcp://localhost:1883".
func dialMQTT(broker, clientID string) (publisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(10 * time.Second)
	client := mqtt.NewClient(opts)
	if tok := client.Connect(); tok.Wait() && tok.Error() != nil {
		return nil, errgo.Notef(tok.Error(), "cannot connect to %s", broker)
	}
	return &mqttPublisher{client: client}, nil
}

func (p *mqttPublisher) Publish(topic string, payload []byte) error {
	tok := p.client.Publish(topic, 1, false, payload)
	tok.Wait()
	return tok.Error()
}

func (p *mqttPublisher) Close() {
	p.client.Disconnect(250)
}

// cmdPublish publishes "<RFC3339 time> <run state>" every e.interval, e.count times or forever if e.count is 0.
func cmdPublish(e *env, _ []string) error {
	if e.broker == "" {
		return errgo.WithCausef(nil, errUsage, "no broker given (use -broker)")
	}
	p, err := e.dial(e.broker, e.clientID)
	if err != nil {
		return errgo.Mask(err)
	}
	defer p.Close()
	logger.Infof("publishing to %s on %s every %v", e.topic, e.broker, e.interval)
	for i := 0; e.count == 0 || i < e.count; i++ {
		if i > 0 {
			e.sleep(e.interval)
		}
		t, err := e.rtc.Now()
		if err != nil {
			return errgo.Mask(err, errgo.Any)
		}
		state, err := e.rtc.State()
		if err != nil {
			return errgo.Mask(err, errgo.Any)
		}
		msg := fmt.Sprintf("%s %v", t.Format(time.RFC3339), state)
		if err := p.Publish(e.topic, []byte(msg)); err != nil {
			return errgo.Notef(err, "cannot publish to %s", e.topic)
		}
		logger.Debugf("published %q", msg)
	}
	return nil
}
