package ledlink

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const testProfiles = `
transmitters:
  lab: {one: 500, zero: 250, guard: 100}
  raspi: {one: 160, zero: 80, guard: 40}
receivers:
  lab:
    pin: 26
    mode: capacitor
    load: 120
    unload: 20
    buffer_len: 8000
    lower: 10
    upper: 100000
  bench: {pin: 17, mode: res, lower: 30, center: 300, upper: 10000}
`

func TestLoadProfiles(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "profiles.yml")
	if err := os.WriteFile(fname, []byte(testProfiles), 0644); err != nil {
		t.Fatalf("could not write profile file: %+v", err)
	}

	f, err := LoadProfiles(fname)
	if err != nil {
		t.Fatalf("could not load profiles: %+v", err)
	}

	tx := Profiles.Merge(f.Transmitters)
	if got, want := tx["lab"], (Profile{One: 500, Zero: 250, Guard: 100}); got != want {
		t.Fatalf("invalid lab profile: got=%v, want=%v", got, want)
	}
	if got, want := tx["raspi"], (Profile{One: 160, Zero: 80, Guard: 40}); got != want {
		t.Fatalf("file does not override built-in profile: got=%v, want=%v", got, want)
	}
	if _, ok := tx["t21p"]; !ok {
		t.Fatalf("built-in profiles lost: %v", tx.Names())
	}
	if Profiles["raspi"].One != 150 {
		t.Fatalf("built-in table modified")
	}

	rx := Presets.Merge(f.Receivers)
	lab, err := rx.Lookup("lab")
	if err != nil {
		t.Fatalf("could not find lab preset: %+v", err)
	}
	want := ReceiverPreset{
		Pin: 26, Mode: CapacitorMode(120, 20), BufferLen: 8000,
		Lower: 10, Upper: 100000,
	}
	if lab != want {
		t.Fatalf("invalid lab preset:\ngot= %+v\nwant=%+v", lab, want)
	}
	bench := rx["bench"]
	if bench.Mode.Kind != Resistor || bench.Thresholds(0) != (Thresholds{30, 300, 10000}) {
		t.Fatalf("invalid bench preset %+v", bench)
	}
	if got := bench.Thresholds(500).Center; got != 500 {
		t.Fatalf("center not overridden: %d", got)
	}
	if len(rx) != len(Presets)+2 {
		t.Fatalf("invalid merged presets %v", rx.Names())
	}
}

func TestParseProfilesInvalid(t *testing.T) {
	for _, tc := range []struct {
		name string
		data string
		want error
	}{
		{
			name: "equal-durations",
			data: "transmitters:\n  bad: {one: 100, zero: 100, guard: 100}\n",
			want: ErrInvalidProfile,
		},
		{
			name: "capacitor-without-load",
			data: "receivers:\n  bad: {pin: 1, mode: cap, lower: 1, upper: 10}\n",
			want: ErrInvalidMode,
		},
		{
			name: "unknown-mode",
			data: "receivers:\n  bad: {pin: 1, mode: photon, lower: 1, upper: 10}\n",
			want: ErrInvalidMode,
		},
		{
			name: "thresholds",
			data: "receivers:\n  bad: {pin: 1, mode: res, lower: 10, upper: 1}\n",
			want: ErrInvalidThresholds,
		},
		{
			name: "syntax",
			data: "transmitters: [",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseProfiles([]byte(tc.data))
			if err == nil {
				t.Fatalf("invalid profiles accepted")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("invalid error: got=%+v, want=%v", err, tc.want)
			}
		})
	}

	if _, err := LoadProfiles(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Fatalf("missing file accepted")
	}
}

func TestPresets(t *testing.T) {
	for _, name := range Presets.Names() {
		if err := Presets[name].Validate(); err != nil {
			t.Fatalf("preset %q: %+v", name, err)
		}
	}
	p, err := Presets.Lookup("t21p")
	if err != nil {
		t.Fatalf("could not find t21p: %+v", err)
	}
	r, err := NewReceiver(newFakeKmod(), nil, 0, p.Thresholds(5000))
	if err != nil {
		t.Fatalf("could not create receiver: %+v", err)
	}
	p.Apply(r)
	if r.Pin != 112 || r.BufferLen != 8000 {
		t.Fatalf("preset not applied: pin=%d buffer=%d", r.Pin, r.BufferLen)
	}
	if _, err := Presets.Lookup("toaster"); err == nil {
		t.Fatalf("unknown board found")
	}
}
