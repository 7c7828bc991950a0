// Command ledtrx receives and sends data through the led_transceiver kernel module on the target.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/speters/ledlink/pkg/ledlink"
)

var kmodPath = flag.String("d", ledlink.DefaultKmodPath, "char device of the kernel module")
var preset = flag.String("preset", "", "receiver preset of the target board (raspi, t21p, wr1043nd, mr3020 or a name from the profile file)")
var profileFile = flag.String("p", "", "profile file with additional receiver presets like `file`")
var pin = flag.Int("pin", -1, "GPIO the LED is attached to, overrides the preset")
var mode = flag.String("mode", "", "sensing mode, res or cap, overrides the preset")
var load = flag.Int("load", 0, "capacitor charge time in microseconds")
var unload = flag.Int("unload", 0, "capacitor discharge time in microseconds")
var bufLen = flag.Int("buf", 0, "number of samples the module stores")
var lower = flag.Int64("lower", -1, "shortest pulse in microseconds that is not noise")
var center = flag.Int64("center", 0, "pulse duration in microseconds separating zero and one bits")
var upper = flag.Int64("upper", 0, "longest pulse in microseconds that is not noise")
var maxDur = flag.Int("maxdur", 0, "maximum pulse duration in microseconds (default 2 * center)")
var measure = flag.Bool("m", false, "print statistics of the received pulses instead of decoding them")
var loadSamples = flag.Int("l", 0, "measure the capacitor charge time `n` times and exit, needs capacitor mode")
var noWatchdog = flag.Bool("nowd", false, "disable the AR9331 hardware watchdog before receiving (implied by the mr3020 and wr1043nd presets)")
var devMem = flag.String("mem", ledlink.DefaultDevMem, "physical memory device used to disable the watchdog")
var output = flag.String("o", "", "append received data to `file` instead of stdout")
var count = flag.Int("n", 1, "number of receptions, 0 to receive until interrupted")
var transmit = flag.String("tx", "", "transmit the content of `file` by blinking the LED, - for stdin")
var bitDur = flag.Int("bit", 0, "bit duration in microseconds for -tx")
var guard = flag.Int("guard", 0, "guard duration in microseconds for -tx")
var preamble = flag.Bool("preamble", false, "send a 0xaa byte ahead of the data for -tx")
var testPattern = flag.Bool("test", false, "transmit the module's test pattern and exit")
var gpioUtil = flag.String("gpio", "gpio", "path to the gpio utility, empty to leave the pin alone")
var verbose = flag.Bool("v", false, "verbose logging")

func main() {
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp: true,
		})
	}

	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	kmod, err := ledlink.OpenKmod(*kmodPath)
	if err != nil {
		return err
	}
	defer kmod.Close()

	switch {
	case *testPattern:
		return ledlink.NewKernelTransmitter(kmod).TransmitTest()
	case *transmit != "":
		return transmitFrom(kmod, *transmit)
	}

	p, err := receiverPreset()
	if err != nil {
		return err
	}
	if p.DisableWatchdog || *noWatchdog {
		if err := ledlink.DisableAR9331Watchdog(*devMem); err != nil {
			return err
		}
	}
	var pins ledlink.PinConfigurator = ledlink.NopPins{}
	if *gpioUtil != "" {
		pins = ledlink.GPIOUtility{Path: *gpioUtil}
	}
	rx, err := setupReceiver(kmod, pins, p, *center)
	if err != nil {
		return err
	}

	if *loadSamples > 0 {
		st, err := rx.MeasureLoad(*loadSamples)
		if err != nil {
			return err
		}
		fmt.Println(st)
		return nil
	}
	log.Infof("Receiving on gpio %d in %v mode, thresholds %+v", p.Pin, p.Mode, rx.Thresholds())

	var w io.Writer = os.Stdout
	if *output != "" {
		f, err := os.OpenFile(*output, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("could not open output %q: %w", *output, err)
		}
		defer f.Close()
		w = f
	}

	for i := 0; *count == 0 || i < *count; i++ {
		if err := receiveOnce(rx, w); err != nil {
			return err
		}
	}
	return nil
}

// setupReceiver applies the preset to the module
func setupReceiver(dev ledlink.ControlSurface, pins ledlink.PinConfigurator, p ledlink.ReceiverPreset, center int64) (*ledlink.Receiver, error) {
	rx, err := ledlink.NewReceiver(dev, pins, p.Pin, p.Thresholds(center))
	if err != nil {
		return nil, err
	}
	p.Apply(rx)
	if err := rx.Configure(p.Mode); err != nil {
		return nil, fmt.Errorf("could not configure receiver: %w", err)
	}
	return rx, nil
}

// receiveOnce waits for one transmission. An aborted reception is logged and not fatal.
func receiveOnce(rx *ledlink.Receiver, w io.Writer) error {
	if err := rx.Arm(); err != nil {
		return err
	}
	n, err := rx.Receive()
	if errors.Is(err, ledlink.ErrAbortedReception) {
		log.Warnf("Nothing received")
		return nil
	}
	if err != nil {
		return err
	}

	if *measure {
		st, err := rx.Measure(n)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d pulses: %v\n", n, st)
		return nil
	}

	data, err := rx.Decode(n)
	if err != nil {
		return err
	}
	log.Debugf("Decoded %d bytes from %d pulses", len(data), n)
	_, err = w.Write(data)
	return err
}

// receiverPreset merges the selected preset with the command line overrides
func receiverPreset() (ledlink.ReceiverPreset, error) {
	var p ledlink.ReceiverPreset
	if *preset != "" {
		presets := ledlink.Presets
		if *profileFile != "" {
			pf, err := ledlink.LoadProfiles(*profileFile)
			if err != nil {
				return p, err
			}
			presets = presets.Merge(pf.Receivers)
		}
		var err error
		if p, err = presets.Lookup(*preset); err != nil {
			return p, err
		}
	}

	if *pin >= 0 {
		p.Pin = *pin
	}
	if *mode != "" {
		k, err := ledlink.ParseModeKind(*mode)
		if err != nil {
			return p, err
		}
		p.Mode.Kind = k
	}
	if *load > 0 {
		p.Mode.Load = *load
	}
	if *unload > 0 {
		p.Mode.Unload = *unload
	}
	if *bufLen > 0 {
		p.BufferLen = *bufLen
	}
	if *lower >= 0 {
		p.Lower = *lower
	}
	if *upper > 0 {
		p.Upper = *upper
	}
	if *maxDur > 0 {
		p.MaxDuration = *maxDur
	}
	if *center == 0 && p.Center == 0 {
		return p, errors.New("need the center threshold in -center option")
	}
	return p, p.Mode.Validate()
}

func transmitFrom(kmod ledlink.ControlSurface, name string) error {
	var r io.Reader = os.Stdin
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return fmt.Errorf("could not open %q: %w", name, err)
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("could not read data to transmit: %w", err)
	}

	p := *pin
	if p < 0 {
		return errors.New("need the LED's gpio in -pin option")
	}
	tx := ledlink.NewKernelTransmitter(kmod)
	if err := tx.Configure(p, *bitDur, *guard, *preamble); err != nil {
		return err
	}
	n, err := tx.Transmit(data)
	if err != nil {
		return err
	}
	log.Infof("Transmitted %d of %d bytes", n, len(data))
	return nil
}
