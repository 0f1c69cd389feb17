// Command patone plays a test tone through the loopback backend, where
// nothing is audible, or, with -device, through an actual sound card via
// backend/paio, and prints a one-line summary when the tone ends.
package main

import (
	"fmt"
	"math"
	"os"
	"time"
	"unsafe"

	"github.com/charmbracelet/log"
	gopa "github.com/gordonklaus/portaudio"
	"github.com/spf13/pflag"

	"github.com/kd7yne/padsp"
	"github.com/kd7yne/padsp/backend/loopback"
	"github.com/kd7yne/padsp/backend/paio"
)

func main() {
	var frequency = pflag.Float64P("frequency", "f", 440.0, "Tone frequency in Hz.")
	var sampleRate = pflag.Float64P("rate", "r", 44100.0, "Sample rate in Hz.")
	var duration = pflag.Float64P("duration", "d", 2.0, "Tone duration in seconds.")
	var framesPerBuffer = pflag.IntP("frames", "n", 256, "Frames per buffer.")
	var useDevice = pflag.BoolP("device", "D", false, "Play through sound device 0 (backend/paio) instead of loopback.")
	var help = pflag.Bool("help", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "patone: generate a test tone through padsp\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	if err := padsp.Initialize(); err != nil {
		log.Fatal("initialize failed", "error", err)
	}
	defer padsp.Terminate()

	output := &padsp.StreamParameters{
		DeviceIndex:      padsp.NoDevice,
		ChannelCount:     1,
		SampleFormat:     padsp.FormatFloat32,
		SuggestedLatency: 0.05,
	}

	var phase float64
	callback := func(input, out *padsp.Buffer, frameCount int, t padsp.TimeInfo, status padsp.StatusFlags, userData any) padsp.Verdict {
		samples := unsafeFloat32Slice(out.Interleaved, frameCount)
		step := 2 * math.Pi * (*frequency) / *sampleRate
		for i := range samples {
			samples[i] = float32(math.Sin(phase))
			phase += step
		}
		return padsp.Continue
	}

	var backend padsp.Backend
	if *useDevice {
		if err := gopa.Initialize(); err != nil {
			log.Fatal("portaudio initialize failed", "error", err)
		}
		defer gopa.Terminate()
		backend = paio.New(paio.Config{
			OutputChannels:  1,
			FramesPerBuffer: *framesPerBuffer,
		})
	} else {
		backend = loopback.New(loopback.Config{
			SampleRate:          *sampleRate,
			OutputChannels:      1,
			FramesPerHostBuffer: *framesPerBuffer,
		})
	}

	stream, err := padsp.OpenStream(backend, nil, output, *sampleRate, *framesPerBuffer, 0, callback, nil, nil, nil)
	if err != nil {
		log.Fatal("open stream failed", "error", err)
	}

	if err := padsp.StartStream(stream); err != nil {
		log.Fatal("start stream failed", "error", err)
	}

	time.Sleep(time.Duration(*duration * float64(time.Second)))

	if err := padsp.StopStream(stream); err != nil {
		log.Fatal("stop stream failed", "error", err)
	}
	if err := padsp.CloseStream(stream); err != nil {
		log.Fatal("close stream failed", "error", err)
	}

	fmt.Printf("played %.2f Hz tone for %.2fs\n", *frequency, *duration)
}

func unsafeFloat32Slice(p unsafe.Pointer, frameCount int) []float32 {
	return unsafe.Slice((*float32)(p), frameCount)
}
