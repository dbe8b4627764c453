package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/evse-controller/internal/config"
	"github.com/sweeney/evse-controller/internal/evse"
	"github.com/sweeney/evse-controller/internal/hal"
	"github.com/sweeney/evse-controller/internal/mqtt"
	"github.com/sweeney/evse-controller/internal/status"
	"github.com/sweeney/evse-controller/internal/web"
)

const (
	defaultClientID = "evse-controller"
	ledInterval     = 50 * time.Millisecond
)

// controller is the part of evse.Controller the loop drives.
type controller interface {
	Tick(now time.Time) ([]evse.Event, error)
	Status() evse.Status
}

func run(cfg config.Config) error {
	dev, err := openDevices(cfg)
	if err != nil {
		return err
	}
	defer dev.Close()

	ctrl, err := evse.New(dev.hw, evse.Options{
		Jumper:          dev.jumper,
		SoftwareCurrent: cfg.SoftwareCurrent,
		StartupDelay:    cfg.StartupDelay,
		ButtonDebounce:  cfg.ButtonDebounce,
	}, time.Now())
	if err != nil {
		return fmt.Errorf("init controller: %w", err)
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		TickMs:      cfg.TickInterval.Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		TopicPrefix: cfg.MQTT.Prefix,
		HTTPAddr:    cfg.HTTPAddr,
	})
	tracker.Update(ctrl.Status())
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	clientID := cfg.MQTT.ClientID
	if clientID == "" {
		clientID = defaultClientID
	}
	publisher, err := mqtt.NewRealPublisher(mqtt.Options{
		Broker:   cfg.MQTT.Broker,
		ClientID: clientID,
		Prefix:   cfg.MQTT.Prefix,
		Handlers: mqtt.Handlers{
			Command: func(cmd evse.Command) error {
				return ctrl.Handle(time.Now(), cmd)
			},
			Measurement: dev.adc.Update,
		},
		OnConnectionChange: tracker.SetMQTTConnected,
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTPAddr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if dev.ledLine != nil {
		go hal.DriveLED(ctx, dev.led, dev.ledLine, ledInterval)
	}

	log.Printf("started: tick=%v jumper=%s broker=%s prefix=%s heartbeat=%v",
		cfg.TickInterval, dev.jumper, cfg.MQTT.Broker, cfg.MQTT.Prefix, cfg.Heartbeat)

	ticker := time.NewTicker(cfg.TickInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(ctrl, publisher, publisher, tracker, cfg.Heartbeat, time.Now, ticker.C, sigCh)
}

// runLoop ticks the controller until a signal arrives or the controller
// requests a restart. A restart is returned as an error wrapping
// evse.ErrRestart.
func runLoop(ctrl controller, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	lastHeartbeat := now()

	refreshMQTT := func() {
		if mqttStatus == nil {
			return
		}
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
		tracker.SetMQTTBuffered(mqttStatus.Buffered())
	}

	systemEvent := func(t time.Time, name, reason string, retained bool) mqtt.SystemEvent {
		refreshMQTT()
		return mqtt.SystemEvent{
			Timestamp:  t,
			Event:      name,
			Reason:     reason,
			Retained:   retained,
			RawPayload: status.FormatStatusEvent(tracker.Snapshot(), name, reason),
		}
	}

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			tracker.Update(ctrl.Status())
			if err := publisher.PublishSystem(systemEvent(now(), "SHUTDOWN", signalName, true)); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()
			events, tickErr := ctrl.Tick(t)

			for _, event := range events {
				if err := publisher.Publish(event); err != nil {
					log.Printf("publish error: %v", err)
					// Don't crash on publish failure
				}
			}
			tracker.RecordEvents(events)
			tracker.Update(ctrl.Status())
			refreshMQTT()

			if tickErr != nil {
				if !errors.Is(tickErr, evse.ErrRestart) {
					log.Printf("tick error: %v", tickErr)
					continue
				}
				if err := publisher.PublishSystem(systemEvent(t, "RESTART", tickErr.Error(), true)); err != nil {
					log.Printf("failed to publish restart event: %v", err)
				}
				return tickErr
			}

			if heartbeat > 0 && t.Sub(lastHeartbeat) >= heartbeat {
				lastHeartbeat = t
				// Refresh network info for heartbeat
				if net := readNetworkInfo(); net != nil {
					tracker.SetNetwork(net)
				}
				snap := tracker.Snapshot()
				log.Printf("heartbeat: uptime=%v state=%s transitions=%d sessions=%d",
					snap.Uptime().Truncate(time.Second), status.StateName(snap), snap.Counts.Transitions, snap.Counts.Sessions)
				if err := publisher.PublishSystem(systemEvent(t, "HEARTBEAT", "", false)); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}
		}
	}
}
