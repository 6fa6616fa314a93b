package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/matryer/is"

	"github.com/eddielth/sdr-weather/config"
	"github.com/eddielth/sdr-weather/event"
	"github.com/eddielth/sdr-weather/publish"
	"github.com/eddielth/sdr-weather/units"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func completedToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func pendingToken() *fakeToken {
	return &fakeToken{done: make(chan struct{})}
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }

func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	connectToken paho.Token
	publishToken paho.Token
	sent         []published
	disconnected bool
}

func (c *fakeClient) Connect() paho.Token { return c.connectToken }

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.sent = append(c.sent, published{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return c.publishToken
}

func (c *fakeClient) Disconnect(uint) { c.disconnected = true }

func testReading(t *testing.T) publish.Reading {
	t.Helper()
	ev, err := event.NewDecoder("", nil).Decode(`{"model":"Acurite-Tower","id":1234,"channel":"A","temperature_C":21.0,"humidity":50}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return publish.NewReading(ev, units.Normalize(ev, units.Fahrenheit))
}

func TestDispatchPublishesJSON(t *testing.T) {
	is := is.New(t)

	fc := &fakeClient{connectToken: completedToken(nil), publishToken: completedToken(nil)}
	p := newPublisher(fc, config.MQTTConfig{Broker: "tcp://localhost:1883", Topic: "weather/", QoS: 1, Retain: true})

	is.NoErr(p.Connect())
	is.NoErr(p.Dispatch(context.Background(), testReading(t)))

	is.Equal(len(fc.sent), 1)
	msg := fc.sent[0]
	is.Equal(msg.topic, "weather/Acurite-Tower_Id_1234_Ch_A")
	is.Equal(msg.qos, byte(1))
	is.True(msg.retained)

	var body map[string]interface{}
	is.NoErr(json.Unmarshal(msg.payload, &body))
	is.Equal(body["temperature"], 69.8)
	is.Equal(body["unit"], "F")

	p.Disconnect()
	is.True(fc.disconnected)
}

func TestDispatchReportsBrokerError(t *testing.T) {
	is := is.New(t)

	fc := &fakeClient{publishToken: completedToken(errors.New("not connected"))}
	p := newPublisher(fc, config.MQTTConfig{Topic: "weather"})

	is.True(p.Dispatch(context.Background(), testReading(t)) != nil)
}

func TestDispatchStopsOnCancel(t *testing.T) {
	is := is.New(t)

	fc := &fakeClient{publishToken: pendingToken()}
	p := newPublisher(fc, config.MQTTConfig{Topic: "weather"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Dispatch(ctx, testReading(t))
	is.True(errors.Is(err, context.Canceled))
}

func TestConnectError(t *testing.T) {
	is := is.New(t)

	fc := &fakeClient{connectToken: completedToken(errors.New("refused"))}
	p := newPublisher(fc, config.MQTTConfig{})

	is.True(p.Connect() != nil)
}

func TestNewPublisherRequiresBroker(t *testing.T) {
	is := is.New(t)

	_, err := NewPublisher(config.MQTTConfig{})
	is.True(err != nil)

	p, err := NewPublisher(config.MQTTConfig{Broker: "tcp://localhost:1883"})
	is.NoErr(err)
	is.True(p != nil)
}

func TestTopic(t *testing.T) {
	is := is.New(t)

	is.Equal(Topic("sdrweather/readings", "Acurite-Tower Id 1234 Ch A"), "sdrweather/readings/Acurite-Tower_Id_1234_Ch_A")
	is.Equal(Topic("a", "x/y+#"), "a/xy")
	is.Equal(Topic("a", ""), "a/unknown")
	is.Equal(Topic("", "k"), "k")
}
