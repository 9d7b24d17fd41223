package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/golang/glog"

	socmonitor "github.com/diysolarfarm/Solar-Farm-AntMiner-Automation-Script"
)

var (
	haURL   = flag.String("ha-url", "", "Base URL of Home Assistant")
	sensor  = flag.String("sensor", "", "Entity ID of the battery SoC sensor")
	config  = flag.String("config", "", "Path to miners.json")
	poll    = flag.Duration("poll", 60*time.Second, "Polling interval")
	haToken = flag.String("ha-token", "", "HA long-lived token (else env HA_TOKEN)")

	debug = flag.Bool("debug", false, "Used for debugging to set rigs to READONLY mode")

	broker = flag.String("broker", "", "MQTT broker for cycle state snapshots, e.g. tcp://host:1883 (empty to disable)")

	emailEnabled  = flag.Bool("email-enabled", false, "Enable/Disable email notifications")
	email         = flag.String("email", "", "Email to send from and to")
	emailHost     = flag.String("email-host", "", "Email host")
	emailPassword = flag.String("email-password", "", "Email password")
	emailPort     = flag.Int("email-port", 25, "Email port, default 25")

	emailMaxInterval = flag.Int("email-max-interval", 5, "Max emails to send in email-timeout duration")
	emailTimeout     = flag.Duration("email-timeout", 1*time.Hour, "Time between sending emails if maximum is reached")
)

func main() {
	flag.Parse()
	s := make(chan os.Signal, 1)
	in := make(chan string)
	signal.Notify(s, os.Interrupt)
	log.SetOutput(os.Stdout)

	token := *haToken
	if token == "" {
		token = os.Getenv("HA_TOKEN")
	}
	if token == "" {
		fmt.Fprintln(os.Stderr, "Missing Home-Assistant token (use -ha-token or HA_TOKEN env)")
		os.Exit(1)
	}
	if *haURL == "" || *sensor == "" || *config == "" {
		fmt.Fprintln(os.Stderr, "-ha-url, -sensor and -config are required")
		os.Exit(1)
	}

	configs, err := socmonitor.LoadRigConfigs(*config)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Setup EventService with or without email depending on flags
	eventService := socmonitor.NewEventService()
	if *emailEnabled {
		es := socmonitor.NewSMTPEmailService(*emailHost, *email, []string{*email}, *email, *emailPassword, *emailPort)
		es.SetMaxEmails(*emailMaxInterval, *emailTimeout)
		eventService.EmailService = es
	}

	// Optional MQTT cycle snapshots
	if *broker != "" {
		pub, err := socmonitor.NewPahoPublisher(*broker)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer pub.Close()
		eventService.Publisher = pub
	}

	provider := socmonitor.NewHomeAssistantProvider(*haURL, token, *sensor)
	m := socmonitor.NewMonitor(provider, eventService, *poll)

	// Build a client per configured rig, in configuration order
	clients := make([]socmonitor.Client, 0, len(configs))
	for _, cfg := range configs {
		c := cfg.NewClient()
		c.SetReadOnly(*debug, true)
		clients = append(clients, c)
		m.AddRig(c, cfg)
	}
	log.Printf("Loaded %d rigs from %s. Poll %v", len(configs), *config, *poll)

	if err := m.Start(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Start goroutine to monitor stdin of the program and take actions if keys are pressed
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			in <- scanner.Text()
		}
	}()

	glog.Info("SoC Monitor running\nCommands:\nstop|s - stop the monitoring\nresume|r - resume the monitoring\ndebug|d - toggle readonly mode\n\n")
	for {
		select {
		case inputStr := <-in:
			handleCommand(m, clients, inputStr)
		case <-s:
			m.Stop()
			log.Println("Exiting Program.")
			time.Sleep(2 * time.Second)
			return
		}
	}
}

// handleCommand dispatches a single stdin command.
func handleCommand(m *socmonitor.Monitor, clients []socmonitor.Client, cmd string) {
	switch cmd {
	case "stop", "s":
		log.Printf("Stopping monitoring service...")
		if err := m.Stop(); err != nil {
			log.Printf("failed to stop monitoring: %s", err)
			return
		}
		log.Printf("Monitoring service stopped")
	case "resume", "r":
		log.Printf("Starting monitoring service...")
		if err := m.Start(); err != nil {
			log.Printf("failed to start monitoring: %s", err)
			return
		}
		log.Printf("Monitoring service started")
	case "debug", "d":
		for _, c := range clients {
			c.SetReadOnly(!c.ReadOnly(), false)
		}
		log.Printf("Set %d rigs readonly toggle", len(clients))
	}
}
