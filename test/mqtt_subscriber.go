package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/pflag"
)

// 读数数据结构
type Reading struct {
	Time        int64                  `json:"time"`
	Sensor      string                 `json:"sensor"`
	Temperature *float64               `json:"temperature"`
	Unit        string                 `json:"unit"`
	Humidity    string                 `json:"humidity"`
	Fields      map[string]interface{} `json:"fields"`
}

func main() {
	// 命令行参数
	broker := pflag.String("broker", "tcp://localhost:1883", "MQTT broker address")
	username := pflag.String("username", "", "MQTT username")
	password := pflag.String("password", "", "MQTT password")
	topic := pflag.String("topic", "sdrweather/readings/#", "topic filter to subscribe to")
	raw := pflag.Bool("raw", false, "print payloads as received")
	pflag.Parse()

	// 创建MQTT客户端选项
	opts := paho.NewClientOptions()
	opts.AddBroker(*broker)
	opts.SetClientID(fmt.Sprintf("sdrweather-watch-%d", time.Now().Unix()))
	if *username != "" {
		opts.SetUsername(*username)
		opts.SetPassword(*password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		fmt.Printf("connection lost: %v\n", err)
	})

	client := paho.NewClient(opts)

	// 连接到MQTT服务器
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		fmt.Printf("failed to connect to %s: %v\n", *broker, token.Error())
		os.Exit(1)
	}
	fmt.Printf("connected to %s\n", *broker)

	token := client.Subscribe(*topic, 0, func(_ paho.Client, msg paho.Message) {
		printReading(msg.Topic(), msg.Payload(), *raw)
	})
	if token.Wait() && token.Error() != nil {
		fmt.Printf("failed to subscribe to %s: %v\n", *topic, token.Error())
		os.Exit(1)
	}
	fmt.Printf("watching %s\n", *topic)

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("disconnecting...")
	client.Disconnect(250)
}

func printReading(topic string, payload []byte, raw bool) {
	if raw {
		fmt.Printf("[%s] %s\n", topic, payload)
		return
	}

	var r Reading
	if err := json.Unmarshal(payload, &r); err != nil {
		fmt.Printf("[%s] undecodable payload: %v\n", topic, err)
		return
	}

	line := fmt.Sprintf("%s %s", time.Unix(r.Time, 0).Format("2006-01-02 15:04:05"), r.Sensor)
	if r.Temperature != nil {
		line += fmt.Sprintf(" Temperature %.1f%s", *r.Temperature, r.Unit)
	}
	if r.Humidity != "" {
		line += " Humidity " + r.Humidity
	}
	fmt.Println(line)
}
