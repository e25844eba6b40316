package main

import (
	"flag"
	"log"
	"net"
	"time"

	"github.com/netlabsim/simpletcp/config"
	"github.com/netlabsim/simpletcp/lib"
)

func main() {
	localAddr := flag.String("localAddr", "127.0.0.1:9000", "Local UDP address")
	serverAddr := flag.String("serverAddr", "127.0.0.1:8000", "Server UDP address")
	configPath := flag.String("config", "config.yaml", "Configuration file")
	lossy := flag.Bool("lossy", false, "Simulate loss/corruption/delay on the send path")
	linger := flag.Duration("linger", 500*time.Millisecond, "Time to stay connected before closing")
	flag.Parse()

	var err error
	config.AppConfig, err = config.ReadConfig(*configPath)
	if err != nil {
		log.Fatalln("Configuration file error:", err)
	}

	udpChannel, err := lib.NewUDPChannel(*localAddr, config.AppConfig.BufferPoolSize, config.AppConfig.BufferLength)
	if err != nil {
		log.Fatalln("Error creating UDP channel:", err)
	}
	defer udpChannel.Close()

	var channel lib.Channel = udpChannel
	if *lossy {
		channel = lib.NewLossyChannel(udpChannel, config.AppConfig, time.Now().UnixNano())
	}

	peer, err := net.ResolveUDPAddr("udp", *serverAddr)
	if err != nil {
		log.Fatalln("Error resolving server address:", err)
	}

	initiator := lib.NewInitiator(channel, config.AppConfig)

	log.Printf("Connecting to server at %s...", peer)
	conn, err := initiator.Open(peer)
	if err != nil {
		log.Fatalln("Error connecting:", err)
	}
	log.Printf("Connection established (%s)", conn.State())

	time.Sleep(*linger)

	log.Println("Initiating close (FIN)")
	if err := initiator.Close(conn); err != nil {
		log.Fatalln("Error closing:", err)
	}
	log.Printf("Connection closed (%s)", conn.State())
}
