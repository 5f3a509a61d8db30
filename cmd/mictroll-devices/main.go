// ABOUTME: Lists audio devices and shows which one a session would route into
// ABOUTME: Helps confirm the virtual cable driver is installed before starting
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/mictroll/mictroll-go/pkg/audio/device"
)

var (
	backend   = flag.String("backend", device.BackendMalgo, "Audio backend: malgo or portaudio")
	sinkMatch = flag.String("sink", device.DefaultSinkMatch, "Name fragment of the output device to route into")
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	b, err := device.New(*backend)
	if err != nil {
		log.Fatalf("Failed to open %s backend: %v", *backend, err)
	}
	defer b.Close()

	devices, err := b.Devices()
	if err != nil {
		log.Fatalf("Failed to list devices: %v", err)
	}

	fmt.Printf("%-5s %-3s %-3s %s\n", "INDEX", "IN", "OUT", "NAME")
	for _, d := range devices {
		fmt.Printf("%-5d %-3s %-3s %s\n", d.Index, mark(d.Input), mark(d.Output), d.Name)
	}
	fmt.Println()

	index, err := device.Resolve(devices, *sinkMatch)
	var nf *device.NotFoundError
	switch {
	case errors.As(err, &nf):
		fmt.Printf("No output device matches %q.\n", nf.Match)
		fmt.Printf("Install VB-Audio Virtual Cable from %s and run this again.\n", nf.InstallURL)
		os.Exit(1)
	case err != nil:
		log.Fatalf("Failed to resolve sink: %v", err)
	}

	fmt.Printf("Sessions will route into #%d %s\n", index, devices[index].Name)
}

func mark(b bool) string {
	if b {
		return "x"
	}
	return "-"
}
