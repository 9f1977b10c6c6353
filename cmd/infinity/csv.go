package main

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"github.com/zberg/go-infinity/pkg/infinity"
)

// appendCSV writes one reading row: timestamp, outdoor temp, then per
// present zone its name, temperature, status, activity, and setpoints.
// Temperatures are truncated to whole degrees to match the historical
// log format.
func appendCSV(path string, sys *infinity.System) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	row := []string{
		time.Now().Format("01-02-2006 15:04"),
		strconv.Itoa(int(sys.OutdoorTemp)),
	}
	for _, z := range sys.Zones {
		row = append(row,
			z.Name,
			strconv.Itoa(int(z.Temp)),
			z.Status,
			z.Activity,
			strconv.Itoa(int(z.HeatSetpoint)),
			strconv.Itoa(int(z.CoolSetpoint)),
		)
	}

	w := csv.NewWriter(f)
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
