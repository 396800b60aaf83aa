// rgbi-host is an interactive console for an RGB indicator board attached
// over serial.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"rgbind/host/indicator"
)

var (
	device = flag.String("device", "/dev/ttyACM0", "Serial device path")
	oid    = flag.Uint("oid", 1, "Indicator object ID")
	bus    = flag.Uint("bus", 0, "I2C bus number on the board")
	rate   = flag.Uint("rate", 100000, "I2C bus frequency in Hz")
	addr   = flag.Uint("addr", 0x33, "LP5817 I2C address")
)

func main() {
	flag.Parse()

	fmt.Printf("Connecting to %s...\n", *device)
	client, err := indicator.Connect(*device)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: connect: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	if err := client.RetrieveDictionary(); err != nil {
		fmt.Fprintf(os.Stderr, "error: retrieve dictionary: %v\n", err)
		os.Exit(1)
	}
	dict := client.Dictionary()
	fmt.Printf("Connected: %s (%s), %d commands\n",
		dict.Version, dict.BuildVersions, len(dict.Commands))

	if err := client.ConfigureIndicator(uint8(*oid), uint8(*bus), uint32(*rate), uint8(*addr)); err != nil {
		fmt.Fprintf(os.Stderr, "error: configure indicator: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Indicator %d configured on bus %d @ 0x%02x\n", *oid, *bus, *addr)

	fmt.Println("Enter commands ('help' for a list, 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		if err := run(client, uint8(*oid), parts); err != nil {
			if err == errQuit {
				return
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "error reading input: %v\n", err)
		os.Exit(1)
	}
}

var errQuit = fmt.Errorf("quit")

func run(client *indicator.Client, oid uint8, parts []string) error {
	switch parts[0] {
	case "quit", "exit", "q":
		return errQuit

	case "help", "?":
		printHelp()
		return nil

	case "dict":
		fmt.Println(string(client.DictionaryRaw()))
		return nil

	case "color":
		r, g, b, err := parseRGB(parts[1:])
		if err != nil {
			return err
		}
		return client.SetColor(oid, r, g, b)

	case "off":
		return client.Off(oid)

	case "flash":
		// flash R G B on_ms off_ms [count]
		if len(parts) < 6 {
			return fmt.Errorf("usage: flash R G B on_ms off_ms [count]")
		}
		r, g, b, err := parseRGB(parts[1:4])
		if err != nil {
			return err
		}
		onMS, err := strconv.ParseUint(parts[4], 10, 32)
		if err != nil {
			return fmt.Errorf("bad on_ms: %w", err)
		}
		offMS, err := strconv.ParseUint(parts[5], 10, 32)
		if err != nil {
			return fmt.Errorf("bad off_ms: %w", err)
		}
		count := uint64(0)
		if len(parts) > 6 {
			count, err = strconv.ParseUint(parts[6], 10, 8)
			if err != nil {
				return fmt.Errorf("bad count: %w", err)
			}
		}
		// Firmware ticks are microseconds
		return client.Flash(oid, r, g, b, uint32(onMS)*1000, uint32(offMS)*1000, uint8(count))

	case "cancel":
		return client.Cancel(oid)

	case "busy":
		busy, err := client.Busy(oid)
		if err != nil {
			return err
		}
		fmt.Printf("busy=%v\n", busy)
		return nil

	case "uptime":
		uptime, err := client.Uptime()
		if err != nil {
			return err
		}
		fmt.Printf("uptime=%d ticks\n", uptime)
		return nil

	default:
		return fmt.Errorf("unknown command: %s", parts[0])
	}
}

func parseRGB(parts []string) (r, g, b uint8, err error) {
	if len(parts) < 3 {
		return 0, 0, 0, fmt.Errorf("need R G B values (0-255)")
	}
	vals := make([]uint8, 3)
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseUint(parts[i], 10, 8)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("bad channel value %q: %w", parts[i], err)
		}
		vals[i] = uint8(v)
	}
	return vals[0], vals[1], vals[2], nil
}

func printHelp() {
	fmt.Println("\nAvailable commands:")
	fmt.Println("  color R G B              - Show a solid color")
	fmt.Println("  off                      - Darken the display")
	fmt.Println("  flash R G B on off [n]   - Flash (durations in ms, n=0 or omitted for continuous)")
	fmt.Println("  cancel                   - Stop a running flash sequence")
	fmt.Println("  busy                     - Query whether a sequence is running")
	fmt.Println("  uptime                   - Query firmware uptime")
	fmt.Println("  dict                     - Print the raw firmware dictionary")
	fmt.Println("  quit                     - Exit")
	fmt.Println()
}
