// Command race runs one roach race in the terminal: live lap progress while
// it runs, then the results table and an optional results picture.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/joho/godotenv"

	"roach-race/internal/config"
	"roach-race/internal/game"
	"roach-race/internal/race"
	"roach-race/internal/render"
)

func main() {
	seed := flag.Int64("seed", 0, "race seed (0 seeds from the clock)")
	racers := flag.Int("racers", 0, "number of roaches (0 keeps the configured value)")
	laps := flag.Int("laps", 0, "laps to win (0 keeps the configured value)")
	pngPath := flag.String("png", "", "save the results screen to this PNG file")
	eventsPath := flag.String("events", "", "write the JSONL event log to this file")
	browse := flag.Bool("browse", false, "browse results line by line afterwards (u/d/q)")
	fast := flag.Bool("fast", false, "tick as fast as possible instead of in real time")
	flag.Parse()

	if err := godotenv.Load(".env"); err == nil {
		log.Println("✅ Loaded environment from .env")
	}

	appConfig := config.Load()
	raceCfg := appConfig.Race
	if *seed != 0 {
		raceCfg.Seed = *seed
	}
	if *racers > 0 {
		raceCfg.NumRacers = *racers
	}
	if *laps > 0 {
		raceCfg.LapTarget = *laps
	}

	engine, err := game.NewEngine(appConfig.Engine, raceCfg)
	if err != nil {
		log.Fatalf("❌ Race not created: %v", err)
	}
	if *eventsPath != "" {
		if err := engine.StartEventLog(*eventsPath); err != nil {
			log.Printf("⚠️ Event log disabled: %v", err)
		}
		defer engine.StopEventLog()
	}

	runWithProgress(engine, *fast)

	results := engine.Results()
	fmt.Println()
	render.WriteResultsTable(os.Stdout, results)

	if *pngPath != "" {
		if err := savePicture(*pngPath, appConfig.Video, raceCfg, engine.GetSnapshot()); err != nil {
			log.Printf("⚠️ Results picture not saved: %v", err)
		} else {
			log.Printf("🖼️ Results picture saved to %s", *pngPath)
		}
	}

	if *browse {
		browseResults(os.Stdin, os.Stdout, results)
	}
}

// runWithProgress drives the race to the end, one progress bar per roach
func runWithProgress(engine *game.Engine, fast bool) {
	lapTarget := engine.RaceConfig().LapTarget
	pw := newProgressWriter(engine.RaceConfig().NumRacers)

	snap := engine.GetSnapshot()
	trackers := make(map[int]*progress.Tracker, len(snap.Racers))
	for _, rs := range snap.Racers {
		t := &progress.Tracker{
			Message: fmt.Sprintf("%-8s", rs.Name),
			Total:   int64(lapTarget * 100),
			Units:   progress.UnitsDefault,
		}
		pw.AppendTracker(t)
		trackers[rs.ID] = t
	}

	go pw.Render()

	over := make(chan struct{})
	engine.SetCallbacks(
		func(race.TickReport) {
			for _, rs := range engine.GetSnapshot().Racers {
				if !rs.Finished {
					trackers[rs.ID].SetValue(lapProgress(rs, lapTarget))
				}
			}
		},
		func(entry race.RankEntry) {
			t := trackers[entry.RacerID]
			t.SetValue(t.Total)
			t.MarkAsDone()
		},
		func([]race.RankEntry) { close(over) },
	)

	if fast {
		for engine.State() == race.Running {
			engine.Step()
		}
	} else {
		engine.Start()
		<-over
		engine.Stop()
	}

	// let the writer draw the final state before stopping it
	time.Sleep(150 * time.Millisecond)
	pw.Stop()
	for pw.IsRenderInProgress() {
		time.Sleep(10 * time.Millisecond)
	}
}

func newProgressWriter(numRacers int) progress.Writer {
	pw := progress.NewWriter()
	pw.SetAutoStop(false)
	pw.SetTrackerLength(40)
	pw.SetNumTrackersExpected(numRacers)
	pw.SetSortBy(progress.SortByNone)
	pw.SetStyle(progress.StyleDefault)
	pw.SetTrackerPosition(progress.PositionRight)
	pw.SetUpdateFrequency(100 * time.Millisecond)
	pw.Style().Colors = progress.StyleColorsDefault
	pw.Style().Options.Separator = " "
	pw.Style().Visibility.ETA = false
	pw.Style().Visibility.ETAOverall = false
	pw.Style().Visibility.Speed = false
	pw.Style().Visibility.SpeedOverall = false
	pw.Style().Visibility.Time = false
	pw.Style().Visibility.TrackerOverall = false
	pw.Style().Visibility.Value = false
	pw.Style().Visibility.Pinned = false
	pw.Style().Chars.BoxLeft = "|"
	pw.Style().Chars.BoxRight = "☕"
	pw.Style().Chars.Finished = "="
	pw.Style().Chars.Finished25 = "-"
	pw.Style().Chars.Finished50 = "-"
	pw.Style().Chars.Finished75 = "="
	pw.Style().Chars.Unfinished = " "
	return pw
}

// lapProgress is completed laps plus the fraction of the current one, in hundredths
func lapProgress(rs game.RacerSnapshot, lapTarget int) int64 {
	v := int64(rs.Laps*100) + int64(rs.Angle/race.FullTurn*100)
	if limit := int64(lapTarget * 100); v > limit {
		v = limit
	}
	return v
}

func savePicture(path string, video config.VideoConfig, raceCfg config.RaceConfig, snap *game.RaceSnapshot) error {
	canvas, err := render.NewCanvas(video, raceCfg)
	if err != nil {
		return err
	}
	return canvas.SavePNG(path, snap)
}

// browseResults shows one result at a time. u moves up, d (or enter) moves
// down, q quits; both ends wrap.
func browseResults(in io.Reader, out io.Writer, results []race.RankEntry) {
	cursor := race.NewResultCursor(results)
	entry, ok := cursor.Current()
	if !ok {
		return
	}

	fmt.Fprintln(out, "Browse results: u = up, d = down, q = quit")
	show := func(e race.RankEntry) {
		fmt.Fprintf(out, "#%d %s\n", cursor.Index()+1, race.FormatResult(e))
	}
	show(entry)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "q":
			return
		case "u", "k":
			entry, _ = cursor.Prev()
		case "d", "j", "":
			entry, _ = cursor.Next()
		default:
			continue
		}
		show(entry)
	}
}
