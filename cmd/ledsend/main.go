// Command ledsend drives the far-end light transmitter over a serial link.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/peterh/liner"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/speters/ledlink/pkg/ledlink"
)

var connTo = flag.String("c", "", "connection string, use socket://[host]:[port] for TCP or [serialDevice] for direct serial connection")
var device = flag.String("m", "", "device class of the receiver (0=raspi, 1=t21p, 2=wr1043nd or a name from the profile file)")
var timing = flag.String("b", "", "raw bit timing as one,zero,guard in microseconds, overrides -m")
var profileFile = flag.String("p", "", "profile file with additional transmitter profiles like `file`")
var sendFile = flag.String("f", "", "send the content of `file`, - for stdin")
var typing = flag.Bool("t", false, "typing mode, every entered line is sent as a frame")
var measure = flag.Int("measure", -1, "send a measurement pattern (0: zero bytes, 1: 0xff bytes, 2: alternating bits)")
var chunk = flag.Int("chunk", 0, "split data into frames of at most `n` bytes (0: one frame)")
var capacity = flag.Int("capacity", 0, "far end buffer size in bytes, larger frames are refused locally")
var timeout = flag.Duration("timeout", ledlink.DefaultTimeout, "how long to wait for an acknowledgment")
var httpServe = flag.String("s", "", "start http server at [bindtohost][:]port")
var listProfiles = flag.Bool("l", false, "list known profiles and exit")
var verbose = flag.Bool("v", false, "verbose logging")

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
var memprofile = flag.String("memprofile", "", "write memory profile to `file`")

// To be set via go build -ldflags "-X main.buildVersion=$(git describe --dirty) -X main.buildDate=$(date -u +%FT%TZ)"
var buildVersion = "unspecified"
var buildDate = "unknown"

func main() {
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp: true,
		})
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	err := run()
	writeMemProfile()
	if err != nil {
		pprof.StopCPUProfile()
		log.Fatal(err)
	}
}

func writeMemProfile() {
	if *memprofile == "" {
		return
	}
	f, err := os.Create(*memprofile)
	if err != nil {
		log.Error("could not create memory profile: ", err)
		return
	}
	defer f.Close()
	runtime.GC() // get up-to-date statistics
	if err := pprof.WriteHeapProfile(f); err != nil {
		log.Error("could not write memory profile: ", err)
	}
}

func run() error {
	profiles := ledlink.Profiles
	if *profileFile != "" {
		pf, err := ledlink.LoadProfiles(*profileFile)
		if err != nil {
			return err
		}
		profiles = profiles.Merge(pf.Transmitters)
	}

	if *listProfiles {
		for _, name := range profiles.Names() {
			fmt.Printf("%-12s %v\n", name, profiles[name])
		}
		return nil
	}

	p, err := selectProfile(profiles)
	if err != nil {
		return err
	}

	if *connTo == "" {
		return errors.New("need connection string in -c option")
	}

	conn := ledlink.NewDevice()
	conn.Timeout = *timeout
	if err := conn.Connect(*connTo); err != nil {
		return err
	}
	defer conn.Close()

	enc := ledlink.NewEncoder(conn)
	enc.Capacity = *capacity
	if err := enc.Reset(); err != nil {
		return fmt.Errorf("could not reset transmitter: %w", err)
	}
	if err := enc.SelectMode(p); err != nil {
		return fmt.Errorf("could not select timing %v: %w", p, err)
	}
	log.Infof("Transmitter ready (%v)", p)

	switch {
	case *httpServe != "":
		return serve(enc, profiles)
	case *typing:
		return typeLines(enc)
	case *measure >= 0:
		data := ledlink.MeasurementPattern(*measure)
		log.Infof("Sending %d byte measurement pattern, airtime %v", len(data), p.Airtime(data))
		_, err := enc.SendChunks(data, chunkSize(len(data)))
		return err
	case *sendFile != "":
		return sendFrom(enc, *sendFile)
	}
	return nil
}

// selectProfile picks the raw timing of -b or the device profile of -m
func selectProfile(profiles ledlink.ProfileTable) (ledlink.Profile, error) {
	if *timing != "" {
		p, err := parseTiming(*timing)
		if err != nil {
			return p, err
		}
		return p, p.Validate()
	}
	if *device == "" {
		return ledlink.Profile{}, errors.New("need a device class in -m or a timing in -b option")
	}
	return profiles.Lookup(*device)
}

func parseTiming(s string) (ledlink.Profile, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return ledlink.Profile{}, fmt.Errorf("invalid timing %q, need one,zero,guard", s)
	}
	var v [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return ledlink.Profile{}, fmt.Errorf("invalid timing %q: %w", s, err)
		}
		v[i] = n
	}
	return ledlink.Profile{One: v[0], Zero: v[1], Guard: v[2]}, nil
}

func chunkSize(n int) int {
	if *chunk > 0 {
		return *chunk
	}
	return n
}

func sendFrom(enc *ledlink.Encoder, name string) error {
	var r io.Reader = os.Stdin
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return fmt.Errorf("could not open %q: %w", name, err)
		}
		defer f.Close()
		r = f
	}
	n, err := enc.SendFrom(r, *chunk)
	log.Infof("Sent %d bytes", n)
	return err
}

// typeLines sends every line entered at the prompt as a frame
func typeLines(enc *ledlink.Encoder) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		s, err := line.Prompt("> ")
		switch {
		case errors.Is(err, liner.ErrPromptAborted), errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return fmt.Errorf("could not read line: %w", err)
		}
		if s == "" {
			continue
		}
		line.AppendHistory(s)

		data := []byte(s + "\n")
		if _, err := enc.SendChunks(data, chunkSize(len(data))); err != nil {
			// the link stays usable after a refused or unacknowledged frame
			log.Errorf("%v (%v)", err, ledlink.StatusOf(err))
			continue
		}
		log.Debugf("Sent %d bytes", len(data))
	}
}

// serve runs the HTTP API until a signal arrives
func serve(enc *ledlink.Encoder, profiles ledlink.ProfileTable) error {
	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	defer stop()

	// accept :[portnum] as well as [portnum]
	addr := *httpServe
	if i, err := strconv.Atoi(addr); err == nil {
		addr = fmt.Sprintf(":%d", i)
	}
	h := &http.Server{Addr: addr, Handler: newAPI(enc, profiles).router()}

	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		log.Infof("Serving on %s", addr)
		err := h.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	grp.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return h.Shutdown(sctx)
	})
	return grp.Wait()
}
