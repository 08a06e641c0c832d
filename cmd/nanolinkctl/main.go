// cmd/nanolinkctl/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/ovenlabs/nanolink"
)

const usage = `usage: nanolinkctl [-a address] <command> [arg]

commands:
  sensors            print the current sensor report
  status             print "running" or "stopped"
  get-temp           print the current water temperature
  get-target         print the target temperature
  set-target <deg>   set the target temperature
  get-timer          print the remaining timer (minutes)
  set-timer <min>    set the timer (minutes)
  get-unit           print the display unit (C or F)
  set-unit <C|F>     set the display unit
  start              start cooking
  stop               stop cooking
  firmware           print the firmware build info
`

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	args := os.Args[1:]

	var address string
	if len(args) >= 2 && args[0] == "-a" {
		address = args[1]
		args = args[2:]
	}
	if len(args) < 1 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cmd := args[0]
	args = args[1:]

	client, err := nanolink.New(nanolink.Options{Address: address, Logger: &log})
	if err != nil {
		log.Fatal().Err(err).Msg("client build failed")
	}

	if err := client.Connect(); err != nil {
		log.Fatal().Err(err).Msg("connect failed")
	}
	defer client.Disconnect()

	ctx := context.Background()

	if err := run(ctx, client, cmd, args); err != nil {
		log.Fatal().Err(err).Str("command", cmd).Msg("command failed")
	}
}

func run(ctx context.Context, client *nanolink.Client, cmd string, args []string) error {
	switch cmd {
	case "sensors":
		sv, err := client.GetSensorValues(ctx)
		if err != nil {
			return err
		}
		printSensors(sv)
		return nil

	case "status":
		s, err := client.GetStatus(ctx)
		if err != nil {
			return err
		}
		fmt.Println(s)
		return nil

	case "get-temp":
		t, err := client.GetCurrentTemperature(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%.2f\n", t)
		return nil

	case "get-target":
		t, err := client.GetTargetTemperature(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%.1f\n", t)
		return nil

	case "set-target":
		deg, err := argFloat(args)
		if err != nil {
			return err
		}
		return client.SetTargetTemperature(ctx, deg)

	case "get-timer":
		m, err := client.GetTimer(ctx)
		if err != nil {
			return err
		}
		fmt.Println(m)
		return nil

	case "set-timer":
		min, err := argInt(args)
		if err != nil {
			return err
		}
		return client.SetTimer(ctx, min)

	case "get-unit":
		u, err := client.GetUnit(ctx)
		if err != nil {
			return err
		}
		fmt.Println(u)
		return nil

	case "set-unit":
		if len(args) < 1 {
			return fmt.Errorf("set-unit needs an argument")
		}
		return client.SetUnit(ctx, args[0])

	case "start":
		sv, err := client.Start(ctx)
		if err != nil {
			return err
		}
		printSensors(sv)
		return nil

	case "stop":
		sv, err := client.Stop(ctx)
		if err != nil {
			return err
		}
		printSensors(sv)
		return nil

	case "firmware":
		fi, err := client.GetFirmwareInfo(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("commit=%s tag=%s date=%d\n", fi.CommitID, fi.TagID, fi.DateCode)
		return nil
	}

	fmt.Fprint(os.Stderr, usage)
	return fmt.Errorf("unknown command %q", cmd)
}

func printSensors(sv nanolink.SensorValues) {
	fmt.Printf("water: %.2f%s  heater: %.2f%s  triac: %.2f%s  internal: %.2f%s\n",
		sv.WaterTemp, sv.WaterTempUnits,
		sv.HeaterTemp, sv.HeaterTempUnits,
		sv.TriacTemp, sv.TriacTempUnits,
		sv.InternalTemp, sv.InternalTempUnits)
	fmt.Printf("motor: %d  water_low: %v  water_leak: %v\n",
		sv.MotorSpeed, sv.WaterLow, sv.WaterLeak)
}

func argFloat(args []string) (float64, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("missing numeric argument")
	}
	return strconv.ParseFloat(args[0], 64)
}

func argInt(args []string) (int64, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("missing numeric argument")
	}
	return strconv.ParseInt(args[0], 10, 64)
}
