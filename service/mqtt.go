/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTTCoupling serves Ops over MQTT.
//
// A client publishes an Op to PREFIX/SID/in and gets the Op back,
// with its results, on PREFIX/SID/out.  For an "open" op, SID is
// anything the client likes (it's only used to route the reply), and
// the reply carries the new session id.  For other ops, a missing
// Op.Session is taken from the topic.
type MQTTCoupling struct {
	Client  mqtt.Client
	Prefix  string
	QoS     byte
	Quiesce uint

	// OpTimeout bounds the processing of each incoming Op.
	OpTimeout time.Duration

	Logger *zap.Logger
}

// MQTTOptions configures NewMQTTCoupling.
type MQTTOptions struct {
	Broker    string
	ClientID  string
	Username  string
	Password  string
	KeepAlive time.Duration
	Reconnect bool
	Prefix    string
	QoS       byte
}

// NewMQTTCoupling makes a coupling with a new (unconnected) client.
func NewMQTTCoupling(opts MQTTOptions, logger *zap.Logger) *MQTTCoupling {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.KeepAlive == 0 {
		opts.KeepAlive = 10 * time.Second
	}
	if opts.Prefix == "" {
		opts.Prefix = "sage"
	}

	copts := mqtt.NewClientOptions()
	copts.AddBroker(opts.Broker)
	copts.SetClientID(opts.ClientID)
	copts.SetKeepAlive(opts.KeepAlive)
	copts.Username = opts.Username
	copts.Password = opts.Password
	copts.AutoReconnect = opts.Reconnect
	copts.CleanSession = true
	// Handlers publish replies and wait.
	copts.SetOrderMatters(false)
	copts.OnConnectionLost = func(client mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", zap.Error(err))
	}

	return &MQTTCoupling{
		Client:    mqtt.NewClient(copts),
		Prefix:    opts.Prefix,
		QoS:       opts.QoS,
		Quiesce:   100,
		OpTimeout: 10 * time.Second,
		Logger:    logger,
	}
}

// InTopic is the subscription for incoming Ops.
func (c *MQTTCoupling) InTopic() string {
	return c.Prefix + "/+/in"
}

// OutTopic is where replies for the given topic segment go.
func (c *MQTTCoupling) OutTopic(sid string) string {
	return c.Prefix + "/" + sid + "/out"
}

// topicSession extracts SID from PREFIX/SID/in.
func (c *MQTTCoupling) topicSession(topic string) (string, error) {
	rest := strings.TrimPrefix(topic, c.Prefix+"/")
	if rest == topic || !strings.HasSuffix(rest, "/in") {
		return "", fmt.Errorf("unexpected topic %q", topic)
	}
	sid := strings.TrimSuffix(rest, "/in")
	if sid == "" || strings.Contains(sid, "/") {
		return "", fmt.Errorf("unexpected topic %q", topic)
	}
	return sid, nil
}

// Handle processes one incoming message and returns the reply's
// topic and payload.
func (c *MQTTCoupling) Handle(ctx context.Context, s *Service, topic string, payload []byte) (string, []byte, error) {
	sid, err := c.topicSession(topic)
	if err != nil {
		return "", nil, err
	}

	var op Op
	if err := json.Unmarshal(payload, &op); err != nil {
		op.Error, op.Err = erred(fmt.Errorf("can't parse: %w", err))
	} else {
		if op.Session == "" && op.Op != OpOpen {
			op.Session = sid
		}
		if c.OpTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.OpTimeout)
			defer cancel()
		}
		if err := op.Do(ctx, s); err != nil {
			c.log().Debug("op failed", zap.String("op", op.Op), zap.Error(err))
		}
	}

	js, err := json.Marshal(&op)
	if err != nil {
		return "", nil, err
	}
	return c.OutTopic(sid), js, nil
}

func (c *MQTTCoupling) log() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// Run connects, subscribes, and serves until the context is done.
func (c *MQTTCoupling) Run(ctx context.Context, s *Service) error {
	if t := c.Client.Connect(); t.Wait() && t.Error() != nil {
		return t.Error()
	}
	c.log().Info("connected to broker")

	handler := func(client mqtt.Client, msg mqtt.Message) {
		out, js, err := c.Handle(ctx, s, msg.Topic(), msg.Payload())
		if err != nil {
			c.log().Warn("ignoring message", zap.String("topic", msg.Topic()), zap.Error(err))
			return
		}
		t := client.Publish(out, c.QoS, false, js)
		if t.Wait() && t.Error() != nil {
			c.log().Warn("publish", zap.String("topic", out), zap.Error(t.Error()))
		}
	}

	topic := c.InTopic()
	if t := c.Client.Subscribe(topic, c.QoS, handler); t.Wait() && t.Error() != nil {
		c.Client.Disconnect(c.Quiesce)
		return t.Error()
	}
	c.log().Info("subscribed", zap.String("topic", topic))

	<-ctx.Done()

	c.Client.Unsubscribe(topic).Wait()
	c.Client.Disconnect(c.Quiesce)
	c.log().Info("disconnected")
	return nil
}
