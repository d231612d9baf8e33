package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"roach-race/internal/api"
	"roach-race/internal/audio"
	"roach-race/internal/config"
	"roach-race/internal/game"
	"roach-race/internal/race"
	"roach-race/internal/render"
)

// raceHost restarts the music together with the race
type raceHost struct {
	*game.Engine
	music *audio.MusicPlayer
	fader *audio.Fader
}

func (h *raceHost) Restart() error {
	if err := h.Engine.Restart(); err != nil {
		return err
	}
	h.fader.Reset()
	h.music.SetVolume(h.fader.Volume())
	if err := h.music.Play(); err != nil {
		log.Printf("⚠️ Music not restarted: %v", err)
	}
	return nil
}

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🪳 ================================")
	log.Println("🪳  ROACH RACE - SPECTATOR SERVER")
	log.Println("🪳 ================================")

	appConfig := config.Load()
	raceCfg := appConfig.Race
	audioCfg := appConfig.Audio
	serverCfg := appConfig.Server

	log.Printf("🏁 Config: %d roaches, %d laps, radius %.0f, tick %v",
		raceCfg.NumRacers, raceCfg.LapTarget, raceCfg.BaseRadius, appConfig.Engine.TickInterval)

	engine, err := game.NewEngine(appConfig.Engine, raceCfg)
	if err != nil {
		log.Fatalf("❌ Race not created: %v", err)
	}

	if path := appConfig.Engine.EventLogPath; path != "" {
		if err := engine.StartEventLog(path); err != nil {
			log.Printf("⚠️ Event log disabled: %v", err)
		} else {
			log.Printf("📝 Event log: %s", path)
		}
	}

	if err := api.StartDebugServer(api.ObservabilityConfig{
		Enabled:    serverCfg.DebugEnabled,
		ListenAddr: serverCfg.DebugAddr,
	}); err != nil {
		log.Printf("⚠️ Debug server disabled: %v", err)
	}

	var renderer api.FrameRenderer
	if canvas, err := render.NewCanvas(appConfig.Video, raceCfg); err != nil {
		log.Printf("⚠️ Frame rendering disabled: %v", err)
	} else {
		renderer = canvas
	}

	musicPath := ""
	if audioCfg.Enabled {
		musicPath = audioCfg.MusicPath
	}
	music := audio.NewMusicPlayer(musicPath, audioCfg.Volume)
	fader := audio.NewFader(audioCfg.Volume, audioCfg.FadeStep, audioCfg.FadeEvery)
	host := &raceHost{Engine: engine, music: music, fader: fader}

	server := api.NewServer(host, renderer, serverCfg)

	engine.SetCallbacks(
		func(report race.TickReport) {
			music.SetVolume(fader.OnTick(report.Tick))
		},
		nil,
		func(ranking []race.RankEntry) {
			music.Stop()
			server.Hub().NotifyRaceOver(engine.RaceID(), ranking)
		},
	)

	if err := music.Play(); err != nil {
		log.Printf("⚠️ Racing in silence: %v", err)
	}

	engine.Start()
	log.Println("✅ Race engine started")

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		log.Printf("⚠️ HTTP shutdown: %v", err)
	}
	engine.Stop()
	engine.StopEventLog()
	music.Close()
	log.Println("👋 Goodbye!")
}
