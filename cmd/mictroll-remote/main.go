// ABOUTME: Command-line remote for a running mictroll instance
// ABOUTME: Discovers an instance over mDNS (or uses -addr) and sends one command
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mictroll/mictroll-go/internal/discovery"
	"github.com/mictroll/mictroll-go/internal/remote"
)

var (
	addr    = flag.String("addr", "", "Instance address host:port (skip mDNS)")
	timeout = flag.Duration("timeout", 5*time.Second, "Discovery and command timeout")
)

const usage = `usage: mictroll-remote [flags] <command> [args]

commands:
  status                      show the current state
  start                       start a session
  stop                        stop the session
  reset                       restore default parameters
  set key=value [key=value]   change parameters, e.g. set break_chance=0.3 noise_type=white
`

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	log.SetFlags(0)

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	msgType, payload, err := parseCommand(flag.Args())
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	target := *addr
	if target == "" {
		target, err = discover(*timeout)
		if err != nil {
			log.Fatalf("%v", err)
		}
	}

	client, err := remote.Dial(ctx, target)
	if err != nil {
		log.Fatalf("Connection failed: %v", err)
	}
	defer client.Close()

	st, err := client.Do(ctx, msgType, payload)
	var reply *remote.ErrorReply
	if errors.As(err, &reply) {
		fmt.Fprintf(os.Stderr, "error: %s\n", reply.Message)
		if reply.InstallURL != "" {
			fmt.Fprintf(os.Stderr, "install the virtual cable from %s\n", reply.InstallURL)
		}
		if reply.Kind == remote.KindBadRequest {
			os.Exit(2)
		}
	} else if err != nil {
		log.Fatalf("Command failed: %v", err)
	}

	out, _ := json.MarshalIndent(st, "", "  ")
	fmt.Println(string(out))
	if err != nil {
		os.Exit(1)
	}
}

func discover(timeout time.Duration) (string, error) {
	mgr := discovery.NewManager(discovery.Config{BrowseTimeout: timeout})
	defer mgr.Stop()

	found, err := mgr.Lookup()
	if err != nil {
		return "", err
	}
	if len(found) == 0 {
		return "", fmt.Errorf("no instance found after %s (use -addr)", timeout)
	}
	log.Printf("Using %s at %s", found[0].Name, found[0].Addr())
	return found[0].Addr(), nil
}

// parseCommand maps CLI words onto a control message
func parseCommand(args []string) (string, interface{}, error) {
	switch args[0] {
	case "status":
		return remote.TypeStatusGet, nil, nil
	case "start":
		return remote.TypeSessionStart, nil, nil
	case "stop":
		return remote.TypeSessionStop, nil, nil
	case "reset":
		return remote.TypeParamsReset, nil, nil
	case "set":
		if len(args) < 2 {
			return "", nil, fmt.Errorf("set needs at least one key=value")
		}
		patch := make(map[string]interface{}, len(args)-1)
		for _, kv := range args[1:] {
			key, value, ok := strings.Cut(kv, "=")
			if !ok || key == "" {
				return "", nil, fmt.Errorf("invalid assignment %q", kv)
			}
			patch[key] = parseValue(value)
		}
		return remote.TypeParamsSet, patch, nil
	}
	return "", nil, fmt.Errorf("unknown command %q", args[0])
}

func parseValue(s string) interface{} {
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
