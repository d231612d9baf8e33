package audio

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/vorbis"
)

// targetSampleRate is the rate the speaker is initialised with
const targetSampleRate = beep.SampleRate(44100)

var (
	speakerOnce sync.Once
	speakerErr  error
)

// initSpeaker opens the audio device once per process
func initSpeaker() error {
	speakerOnce.Do(func() {
		speakerErr = speaker.Init(targetSampleRate, targetSampleRate.N(100*time.Millisecond))
	})
	return speakerErr
}

type decodeFunc func(io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error)

// decoderFor picks the decoder from the file extension
func decoderFor(path string) (decodeFunc, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".ogg", ".oga":
		return vorbis.Decode, nil
	case ".mp3":
		return mp3.Decode, nil
	default:
		return nil, fmt.Errorf("unsupported music format %q", ext)
	}
}

// MusicPlayer loops an OGG Vorbis or MP3 track on the speaker.
// If the file or the audio device is unavailable it stays silent and every
// method remains safe to call.
type MusicPlayer struct {
	mu sync.Mutex

	filePath string
	volume   float64
	loaded   bool
	playing  bool

	streamer beep.StreamSeekCloser
	format   beep.Format
	gain     *effects.Volume
	ctrl     *beep.Ctrl
}

// NewMusicPlayer decodes the header of filePath. A missing or broken file
// is logged and yields a silent player.
func NewMusicPlayer(filePath string, volume float64) *MusicPlayer {
	mp := &MusicPlayer{filePath: filePath, volume: clamp(volume)}

	if err := mp.load(); err != nil {
		log.Printf("⚠️ Background music disabled: %v", err)
	}
	return mp
}

func (mp *MusicPlayer) load() error {
	if mp.filePath == "" {
		return errors.New("no music path configured")
	}
	decode, err := decoderFor(mp.filePath)
	if err != nil {
		return err
	}
	file, err := os.Open(mp.filePath)
	if err != nil {
		return err
	}

	// Streaming decode, the file stays open until Close
	streamer, format, err := decode(file)
	if err != nil {
		file.Close()
		return err
	}

	mp.streamer = streamer
	mp.format = format
	mp.loaded = true

	log.Printf("✅ Background music loaded: %s", mp.filePath)
	log.Printf("   Sample rate: %d Hz, Channels: %d", format.SampleRate, format.NumChannels)
	return nil
}

// Play starts the looping track from the beginning, or resumes it after Stop
func (mp *MusicPlayer) Play() error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if !mp.loaded || mp.playing {
		return nil
	}
	if err := initSpeaker(); err != nil {
		log.Printf("⚠️ Audio device unavailable, music muted: %v", err)
		mp.loaded = false
		return err
	}

	if mp.ctrl == nil {
		var s beep.Streamer = beep.Loop(-1, mp.streamer)
		if mp.format.SampleRate != targetSampleRate {
			log.Printf("   Resampling from %d Hz to %d Hz", mp.format.SampleRate, targetSampleRate)
			s = beep.Resample(4, mp.format.SampleRate, targetSampleRate, s)
		}
		mp.gain = &effects.Volume{Streamer: s, Base: 2}
		applyGain(mp.gain, mp.volume)
		mp.ctrl = &beep.Ctrl{Streamer: mp.gain}
		speaker.Play(mp.ctrl)
	} else {
		speaker.Lock()
		mp.ctrl.Paused = false
		speaker.Unlock()
	}

	mp.playing = true
	log.Println("🎵 Music playing")
	return nil
}

// Stop pauses playback and rewinds the track
func (mp *MusicPlayer) Stop() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if !mp.playing {
		return
	}
	speaker.Lock()
	mp.ctrl.Paused = true
	if err := mp.streamer.Seek(0); err != nil {
		log.Printf("⚠️ Music rewind failed: %v", err)
	}
	speaker.Unlock()

	mp.playing = false
	log.Println("🔇 Music stopped")
}

// SetVolume sets the linear volume, clamped to [0, 1]
func (mp *MusicPlayer) SetVolume(v float64) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.volume = clamp(v)
	if mp.gain != nil {
		speaker.Lock()
		applyGain(mp.gain, mp.volume)
		speaker.Unlock()
	}
}

// applyGain maps a linear volume onto the logarithmic effects.Volume scale
func applyGain(g *effects.Volume, v float64) {
	if v <= 0 {
		g.Silent = true
		return
	}
	g.Silent = false
	g.Volume = math.Log2(v)
}

// Volume returns the current linear volume
func (mp *MusicPlayer) Volume() float64 {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.volume
}

// IsLoaded reports whether a track is available for playback
func (mp *MusicPlayer) IsLoaded() bool {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.loaded
}

// IsPlaying reports whether the track is currently audible or fading
func (mp *MusicPlayer) IsPlaying() bool {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.playing
}

// Close stops playback and releases the file
func (mp *MusicPlayer) Close() error {
	mp.Stop()

	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.ctrl != nil {
		speaker.Clear()
		mp.ctrl = nil
	}
	mp.loaded = false
	if mp.streamer != nil {
		err := mp.streamer.Close()
		mp.streamer = nil
		return err
	}
	return nil
}
