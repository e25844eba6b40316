package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/netlabsim/simpletcp/config"
	"github.com/netlabsim/simpletcp/lib"
)

func main() {
	localAddr := flag.String("localAddr", "127.0.0.1:8000", "Local UDP address to listen on")
	configPath := flag.String("config", "config.yaml", "Configuration file")
	lossy := flag.Bool("lossy", false, "Simulate loss/corruption/delay on the send path")
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

	var channel lib.Channel = udpChannel
	if *lossy {
		channel = lib.NewLossyChannel(udpChannel, config.AppConfig, time.Now().UnixNano())
	}

	responder := lib.NewResponder(channel, config.AppConfig)

	// Stop the responder on Ctrl+C; the blocked Accept then returns.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Shutting down...")
		responder.Stop()
	}()

	log.Printf("Listening on %s...", *localAddr)
	for {
		conn, err := responder.Accept()
		if err == lib.ErrHandshakeTimeout {
			log.Println("Handshake timed out, waiting for the next connection")
			continue
		}
		if err != nil {
			log.Println("Accept:", err)
			return
		}
		log.Printf("Connection accepted (%s)", conn.State())

		// Passive close: wait for the peer's FIN, then answer with FIN-ACK.
		if err := responder.AwaitClose(conn); err != nil {
			log.Println("Teardown:", err)
			continue
		}
		if conn.State() == lib.StateCloseWait {
			if err := responder.Close(conn); err != nil {
				log.Println("Close:", err)
			}
		}
		log.Printf("Connection closed (%s)", conn.State())
	}
}
