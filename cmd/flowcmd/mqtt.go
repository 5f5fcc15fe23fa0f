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

package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Comcast/flowcmd/core"
	"github.com/Comcast/flowcmd/sio"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConf holds the broker connection settings.  The flags follow
// mosquitto_sub.
type MQTTConf struct {
	Broker    string
	Port      int
	ClientId  string
	KeepAlive int
	Username  string
	Password  string
	Reconnect bool
	Clean     bool

	WillTopic   string
	WillPayload string
	WillQoS     int
	WillRetain  bool

	CertFilename string
	KeyFilename  string
	CAFilename   string
	CAPath       string
	Insecure     bool
}

func (conf *MQTTConf) Flags(fs *flag.FlagSet) {
	fs.StringVar(&conf.Broker, "h", "tcp://localhost", "Broker hostname")
	fs.IntVar(&conf.Port, "p", 1883, "Broker port")
	fs.StringVar(&conf.ClientId, "i", "", "Client id")
	fs.IntVar(&conf.KeepAlive, "k", 10, "Keep-alive in seconds")
	fs.StringVar(&conf.Username, "u", "", "Username")
	fs.StringVar(&conf.Password, "P", "", "Password")
	fs.BoolVar(&conf.Reconnect, "reconnect", false, "Automatically attempt to reconnect")
	fs.BoolVar(&conf.Clean, "c", true, "Clean session")

	fs.StringVar(&conf.WillTopic, "will-topic", "", "Optional will topic")
	fs.StringVar(&conf.WillPayload, "will-payload", "", "Optional will message")
	fs.IntVar(&conf.WillQoS, "will-qos", 0, "Optional will QoS")
	fs.BoolVar(&conf.WillRetain, "will-retain", false, "Optional will retention")

	fs.StringVar(&conf.CertFilename, "cert", "", "Optional cert filename")
	fs.StringVar(&conf.KeyFilename, "key", "", "Optional key filename")
	fs.StringVar(&conf.CAFilename, "cafile", "", "Optional CA cert filename")
	fs.StringVar(&conf.CAPath, "capath", "", "Optional path to CA cert filename")
	fs.BoolVar(&conf.Insecure, "insecure", false, "Skip broker cert checking")
}

// ClientOptions makes Paho options from the settings.
func (conf *MQTTConf) ClientOptions() (*mqtt.ClientOptions, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("%s:%d", conf.Broker, conf.Port))
	opts.SetClientID(conf.ClientId)
	opts.SetKeepAlive(time.Duration(conf.KeepAlive) * time.Second)
	opts.SetUsername(conf.Username)
	opts.SetPassword(conf.Password)
	opts.SetAutoReconnect(conf.Reconnect)
	opts.SetCleanSession(conf.Clean)

	if conf.WillTopic != "" {
		if conf.WillPayload == "" {
			return nil, errors.New("will topic without payload")
		}
		opts.SetWill(conf.WillTopic, conf.WillPayload, byte(conf.WillQoS), conf.WillRetain)
	}

	tlsConf, err := conf.TLSConfig()
	if err != nil {
		return nil, err
	}
	opts.SetTLSConfig(tlsConf)

	return opts, nil
}

// TLSConfig loads the optional CA and client certificates.
func (conf *MQTTConf) TLSConfig() (*tls.Config, error) {
	tlsConf := &tls.Config{
		InsecureSkipVerify: conf.Insecure,
	}

	if conf.CAPath != "" || conf.CAFilename != "" {
		rootCAs, _ := x509.SystemCertPool()
		if rootCAs == nil {
			rootCAs = x509.NewCertPool()
		}
		filename := filepath.Join(conf.CAPath, conf.CAFilename)
		certs, err := ioutil.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("couldn't read CA certs: %w", err)
		}
		if ok := rootCAs.AppendCertsFromPEM(certs); !ok {
			log.Printf("No certs appended from %s, using system certs only", filename)
		}
		tlsConf.RootCAs = rootCAs
	}

	if conf.KeyFilename != "" {
		cert, err := tls.LoadX509KeyPair(conf.CertFilename, conf.KeyFilename)
		if err != nil {
			return nil, err
		}
		tlsConf.Certificates = []tls.Certificate{cert}
	}

	return tlsConf, nil
}

// MQTTCouplings is an sio.Couplings for an MQTT client.
//
// Payloads of messages on the subscribed topics are input data.
// Output writes are published to OutTopic.  A message on EOFTopic
// ends the input.
type MQTTCouplings struct {
	MQTTConf

	Client    mqtt.Client
	Quiesce   uint
	SubTopics string
	OutTopic  string
	EOFTopic  string

	// Lines makes each incoming payload a line even if it doesn't
	// end with a newline.
	Lines bool

	lines *sio.Lines

	// err is a configuration problem, which Start reports.
	err error
}

func NewMQTTCouplings(args []string) (*MQTTCouplings, *flag.FlagSet) {
	var (
		c = &MQTTCouplings{
			lines: sio.NewLines(),
		}
		fs      = flag.NewFlagSet("mq", flag.ExitOnError)
		quiesce = fs.Int("quiesce", 100, "Disconnection quiescence (in milliseconds)")
	)

	c.MQTTConf.Flags(fs)
	fs.StringVar(&c.SubTopics, "t", "flowchart/in", "subscription topic(s) for input")
	fs.StringVar(&c.OutTopic, "out-topic", "flowchart/out", "topic (TOPIC:QOS) for output")
	fs.StringVar(&c.EOFTopic, "eof-topic", "flowchart/eof", "topic that ends input")
	fs.BoolVar(&c.Lines, "lines", true, "treat each payload as a line")

	if args == nil {
		return nil, fs
	}

	fs.Parse(args)
	c.Quiesce = uint(*quiesce)

	mqtt.ERROR = log.New(os.Stderr, "mqtt.error ", 0)

	opts, err := c.MQTTConf.ClientOptions()
	if err != nil {
		c.err = err
		return c, fs
	}
	opts.SetDefaultPublishHandler(c.inHandler)
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("MQTT connection lost: %v", err)
	})

	c.Client = mqtt.NewClient(opts)

	return c, fs
}

// inHandler is a Paho publish handler, which is used to handle
// messages send to us from the MQTT broker due to our subscriptions.
func (c *MQTTCouplings) inHandler(client mqtt.Client, msg mqtt.Message) {
	log.Printf("incoming: %s %s\n", msg.Topic(), msg.Payload())

	if c.EOFTopic != "" && msg.Topic() == c.EOFTopic {
		c.lines.End()
		return
	}

	s := string(msg.Payload())
	if c.Lines && !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	if _, err := io.WriteString(c.lines, s); err != nil {
		log.Printf("dropping %q: %v", s, err)
	}
}

// Start creates the MQTT session.
func (c *MQTTCouplings) Start(ctx context.Context) error {
	if c.err != nil {
		return c.err
	}
	log.Printf("Attempting to connected to broker")
	if token := c.Client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("Connected to broker")

	topics := strings.Split(c.SubTopics, ",")
	if c.EOFTopic != "" {
		topics = append(topics, c.EOFTopic)
	}
	for _, topic := range topics {
		topic, qos := parseTopic(topic)
		if topic == "" {
			continue
		}
		log.Printf("Subscribing to %s (%d)", topic, qos)
		if t := c.Client.Subscribe(topic, qos, nil); t.Wait() && t.Error() != nil {
			return t.Error()
		}
	}
	log.Printf("Couplings started")

	return nil
}

// IO returns the Lines fed by subscriptions and a writer that
// publishes.
func (c *MQTTCouplings) IO(ctx context.Context) (core.LineSource, io.Writer, error) {
	topic, qos := parseTopic(c.OutTopic)
	return c.lines, &mqttWriter{
		client: c.Client,
		topic:  topic,
		qos:    qos,
	}, nil
}

// Stop terminates the MQTT session.
func (c *MQTTCouplings) Stop(ctx context.Context) error {
	if c.Client != nil {
		log.Printf("Disconnecting")
		c.Client.Disconnect(c.Quiesce)
	}
	return c.lines.Close()
}

// mqttWriter publishes each Write.
type mqttWriter struct {
	client mqtt.Client
	topic  string
	qos    byte
}

func (w *mqttWriter) Write(p []byte) (int, error) {
	token := w.client.Publish(w.topic, w.qos, false, p)
	token.Wait()
	if err := token.Error(); err != nil {
		return 0, err
	}
	return len(p), nil
}

// parseTopic can extract QoS from a topic name of the form TOPIC:QOS.
func parseTopic(s string) (string, byte) {
	var topic string
	var qos byte
	if _, err := fmt.Sscanf(strings.Replace(s, ":", " ", 1), "%s %d", &topic, &qos); err == nil {
		return topic, qos
	}
	return s, 0
}
