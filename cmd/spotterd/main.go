// Command spotterd runs the target spotter: it wires a frame source to
// the detection engine and serves the browser-facing HTTP interface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spotterhq/spotter/internal/api"
	"github.com/spotterhq/spotter/internal/spotter"
	"github.com/spotterhq/spotter/internal/version"
)

var (
	listen      = flag.String("listen", ":8000", "HTTP listen address")
	videoPath   = flag.String("video", "", "replay a recorded video file instead of capturing")
	emulate     = flag.Bool("emulate", false, "generate a synthetic target scene (no camera needed)")
	seed        = flag.Int64("seed", 1, "synthetic scene random seed")
	width       = flag.Int("width", 1280, "synthetic frame width")
	height      = flag.Int("height", 720, "synthetic frame height")
	fps         = flag.Float64("fps", 15, "synthetic frame rate")
	showVersion = flag.Bool("version", false, "print version and exit")
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println("spotterd", version.String())
		return
	}
	log.Printf("spotterd %s starting", version.String())

	var source spotter.FrameSource
	switch {
	case *videoPath != "":
		v, err := spotter.NewVideoSource(*videoPath)
		if err != nil {
			log.Fatalf("failed to open video source: %v", err)
		}
		v.Realtime = true
		defer v.Close()
		source = v
		log.Printf("replaying %s", *videoPath)
	case *emulate:
		s := spotter.NewSyntheticSource(*width, *height, *seed)
		if *fps > 0 {
			s.Interval = time.Duration(float64(time.Second) / *fps)
		}
		source = s
		log.Printf("emulating camera at %dx%d, %.1f fps", *width, *height, *fps)
	default:
		log.Fatal("no source selected: pass -video <file> or -emulate (live capture adapters attach via spotter.NewLiveSource)")
	}

	engine := spotter.New(spotter.Config{Source: source})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- engine.Run(ctx)
	}()

	server := &http.Server{
		Addr:    *listen,
		Handler: api.LoggingMiddleware(api.NewServer(engine).ServeMux()),
	}
	go func() {
		log.Printf("user interface on http://localhost%s", *listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Print("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Printf("pipeline halted: %v", err)
		} else {
			log.Print("pipeline finished")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
}
