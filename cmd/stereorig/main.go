package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ayusman/stereorig/internal/grabber"
	"github.com/ayusman/stereorig/internal/registry"
	"github.com/ayusman/stereorig/internal/server"
	"github.com/ayusman/stereorig/internal/store"
)

func main() {
	var (
		cameraName  = flag.String("camera", "arducam", "camera family to use")
		calibPath   = flag.String("calibration", "", "path to calibration JSON document")
		deviceID    = flag.Int("device", 0, "video device ID")
		framerate   = flag.Int("framerate", 30, "target frames per second")
		queueCap    = flag.Int("queue", 4, "frame queue capacity")
		addr        = flag.String("addr", ":8080", "HTTP listen address")
		listCameras = flag.Bool("list-cameras", false, "list available camera families and exit")
	)
	flag.Parse()

	reg := registry.New()
	if err := registry.RegisterBuiltins(reg); err != nil {
		log.Fatalf("Failed to populate camera registry: %v", err)
	}

	if *listCameras {
		fmt.Println(strings.Join(reg.Available(), "\n"))
		return
	}

	if *calibPath == "" {
		log.Fatal("Missing required -calibration flag")
	}

	// Initialize the session store
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("Failed to get home directory: %v", err)
	}

	dbDir := filepath.Join(homeDir, ".stereorig")
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	st, err := store.New(filepath.Join(dbDir, "stereorig.db"))
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	queue := grabber.NewQueue(*queueCap)
	g, err := reg.Create(*cameraName, queue, grabber.Config{
		CalibrationPath: *calibPath,
		DeviceID:        *deviceID,
		Framerate:       *framerate,
	})
	if err != nil {
		log.Fatalf("Failed to create grabber: %v", err)
	}

	if err := g.Connect(); err != nil {
		log.Fatalf("Failed to connect to camera: %v", err)
	}

	session, err := st.Sessions().Create(*cameraName, *calibPath)
	if err != nil {
		log.Fatalf("Failed to record session: %v", err)
	}

	pairs := server.NewPairCache()
	defer pairs.Close()

	// Consume rectified pairs into the preview cache until the grabber
	// closes the queue.
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		for {
			pair, ok := queue.Get()
			if !ok {
				return
			}
			pairs.Update(pair)
		}
	}()

	if err := g.Start(); err != nil {
		log.Fatalf("Failed to start acquisition: %v", err)
	}

	srv := server.New(server.Config{
		Store: st,
		Pairs: pairs,
		Stats: g.Stats,
	})
	go func() {
		log.Printf("Serving on %s", *addr)
		if err := srv.ListenAndServe(*addr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Stop on SIGINT/SIGTERM or when the acquisition run dies on its
	// own (camera loss).
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Printf("Received %v, stopping acquisition", s)
		g.Stop()
		<-g.Done()
	case <-g.Done():
	}
	<-consumerDone

	var errText string
	if err := g.Err(); err != nil {
		errText = err.Error()
		log.Printf("Acquisition ended with error: %v", err)
	}

	stats := g.Stats()
	if err := st.Sessions().Finish(session.ID, int64(stats.FramesDelivered), errText); err != nil {
		log.Printf("Failed to finalize session: %v", err)
	}
	log.Printf("Session %s: %d frames delivered", session.ID, stats.FramesDelivered)

	if errText != "" {
		os.Exit(1)
	}
}
